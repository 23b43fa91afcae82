package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibikido/hibikido"
	mcpinternal "github.com/hibikido/hibikido/internal/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OpsServer provides the ops HTTP surface backed by a hibikido Server:
// liveness, catalog stats, Prometheus metrics, and the MCP endpoint. It is
// read-only; all mutation flows through the OSC surface.
type OpsServer struct {
	client       *hibikido.Server
	version      string
	server       *Server
	router       chi.Router
	routerCalled bool
	logger       *slog.Logger
}

// NewOpsServer creates an OpsServer wired to the given hibikido Server.
func NewOpsServer(client *hibikido.Server, version string) *OpsServer {
	return &OpsServer{
		client:  client,
		version: version,
		logger:  client.Logger(),
	}
}

// Router returns the chi router for customization before starting.
// Call this first, add custom middleware with router.Use(), then call MountRoutes().
// If not called, ListenAndServe creates a default router with all standard routes.
func (o *OpsServer) Router() chi.Router {
	if o.router != nil {
		return o.router
	}

	o.router = chi.NewRouter()
	o.routerCalled = true
	return o.router
}

// MountRoutes wires up all ops routes on the router.
// Call this after adding any custom middleware via Router().Use().
func (o *OpsServer) MountRoutes() {
	if o.router == nil {
		o.Router()
	}
	o.mountRoutes(o.router)
}

// mountRoutes wires up all ops routes on the given router.
func (o *OpsServer) mountRoutes(router chi.Router) {
	// The MCP endpoint keeps its session state in response headers, so
	// browser-based clients need them readable cross-origin.
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Mcp-Session-Id"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
		MaxAge:         300,
	}))

	router.Get("/healthz", o.Health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(30 * time.Second))
		r.Get("/stats", o.Stats)
	})

	// Prometheus metrics from the process-wide registry.
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// MCP (Model Context Protocol) endpoint, no timeout middleware.
	// MCP uses streaming responses and manages its own session state via
	// response headers, which is incompatible with chi's Timeout middleware
	// that wraps the ResponseWriter.
	c := o.client
	mcpSrv := mcpinternal.NewServer(c.Engine, c.Engine, c.Orchestrator, c.Config().Search, o.version, o.logger)
	router.Mount("/mcp", server.NewStreamableHTTPServer(mcpSrv.MCPServer()))
}

// Health handles GET /healthz.
func (o *OpsServer) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

// statsResponse is the body of GET /api/v1/stats.
type statsResponse struct {
	Recordings   int64 `json:"recordings"`
	Segments     int64 `json:"segments"`
	Effects      int64 `json:"effects"`
	Presets      int64 `json:"presets"`
	Embeddings   int   `json:"embeddings"`
	ActiveNiches int   `json:"active_niches"`
	Queued       int   `json:"queued"`
}

// Stats handles GET /api/v1/stats. It reports the same counters as the OSC
// /stats command, as JSON.
func (o *OpsServer) Stats(w http.ResponseWriter, req *http.Request) {
	engine, err := o.client.Engine.Stats(req.Context())
	if err != nil {
		o.logger.Error("stats query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	niches := o.client.Orchestrator.Stats()

	writeJSON(w, http.StatusOK, statsResponse{
		Recordings:   engine.Recordings,
		Segments:     engine.Segments,
		Effects:      engine.Effects,
		Presets:      engine.Presets,
		Embeddings:   engine.Embeddings,
		ActiveNiches: niches.ActiveNiches,
		Queued:       niches.Queued,
	})
}

// writeJSON writes data as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// ListenAndServe starts the HTTP server on the given address.
func (o *OpsServer) ListenAndServe(addr string) error {
	server := NewServer(addr, o.logger)
	o.server = &server

	if o.routerCalled && o.router != nil {
		server.Router().Mount("/", o.router)
	} else {
		o.mountRoutes(server.Router())
	}

	return server.Start()
}

// Shutdown gracefully shuts down the server.
func (o *OpsServer) Shutdown(ctx context.Context) error {
	if o.server == nil {
		return nil
	}
	return o.server.Shutdown(ctx)
}

// Handler returns the router as an http.Handler for use with custom servers.
func (o *OpsServer) Handler() http.Handler {
	if o.router == nil {
		o.Router()
		o.MountRoutes()
	}
	return o.router
}
