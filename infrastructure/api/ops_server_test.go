package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hibikido/hibikido"
	"github.com/hibikido/hibikido/domain/catalog"
	"github.com/hibikido/hibikido/infrastructure/api"
	"github.com/hibikido/hibikido/internal/config"
	"github.com/hibikido/hibikido/test/embed"
)

func newOpsClient(t *testing.T) *hibikido.Server {
	t.Helper()
	tmpDir := t.TempDir()

	cfg := config.Default()
	cfg.Database.URL = "sqlite:///" + filepath.Join(tmpDir, "hibikido.db")
	cfg.Embedding.IndexFile = filepath.Join(tmpDir, "hibikido.index")
	cfg.OSC.ListenPort = 0

	srv, err := hibikido.New(cfg,
		hibikido.WithLogger(slog.New(slog.DiscardHandler)),
		hibikido.WithEmbedder(embed.NewFake()),
	)
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func getJSON(t *testing.T, handler http.Handler, path string, out any) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if out != nil {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("decode %s response: %v", path, err)
		}
	}
	return w
}

func TestOpsServer_Healthz(t *testing.T) {
	client := newOpsClient(t)
	handler := api.NewOpsServer(client, "1.0.0").Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if body := w.Body.String(); body != `{"status":"healthy"}` {
		t.Errorf("body = %q, want {\"status\":\"healthy\"}", body)
	}
}

func TestOpsServer_Stats(t *testing.T) {
	client := newOpsClient(t)
	handler := api.NewOpsServer(client, "1.0.0").Handler()

	var stats struct {
		Recordings   int64 `json:"recordings"`
		Segments     int64 `json:"segments"`
		Effects      int64 `json:"effects"`
		Presets      int64 `json:"presets"`
		Embeddings   int   `json:"embeddings"`
		ActiveNiches int   `json:"active_niches"`
		Queued       int   `json:"queued"`
	}

	w := getJSON(t, handler, "/api/v1/stats", &stats)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if stats.Recordings != 0 || stats.Segments != 0 || stats.Embeddings != 0 {
		t.Errorf("empty catalog stats = %+v, want zeros", stats)
	}

	// One recording brings its auto-created whole-file segment and one
	// index embedding with it.
	_, created, err := client.Engine.IngestRecording(context.Background(), catalog.AddRecordingParams{
		Path:        "koto.wav",
		Description: "plucked koto string resonance",
	})
	if err != nil {
		t.Fatalf("ingest recording: %v", err)
	}
	if !created {
		t.Fatal("expected recording to be created")
	}

	w = getJSON(t, handler, "/api/v1/stats", &stats)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if stats.Recordings != 1 {
		t.Errorf("recordings = %d, want 1", stats.Recordings)
	}
	if stats.Segments != 1 {
		t.Errorf("segments = %d, want 1", stats.Segments)
	}
	if stats.Embeddings != 1 {
		t.Errorf("embeddings = %d, want 1", stats.Embeddings)
	}
	if stats.ActiveNiches != 0 || stats.Queued != 0 {
		t.Errorf("orchestrator stats = %+v, want idle", stats)
	}
}

func TestOpsServer_Metrics(t *testing.T) {
	client := newOpsClient(t)
	handler := api.NewOpsServer(client, "1.0.0").Handler()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body := w.Body.String(); !strings.Contains(body, "go_goroutines") {
		t.Error("expected process metrics in /metrics output")
	}
}

func TestOpsServer_CORS(t *testing.T) {
	client := newOpsClient(t)
	handler := api.NewOpsServer(client, "1.0.0").Handler()

	// Preflight for a cross-origin MCP POST.
	req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("preflight status = %d, want %d", w.Code, http.StatusOK)
	}
	if origin := w.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", origin)
	}

	// Actual requests must expose the MCP session header.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if exposed := w.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(exposed, "Mcp-Session-Id") {
		t.Errorf("Access-Control-Expose-Headers = %q, want Mcp-Session-Id", exposed)
	}
}

func mcpRequest(t *testing.T, method string, id int, params map[string]any) []byte {
	t.Helper()
	msg := map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
	}
	if params != nil {
		msg["params"] = params
	}
	b, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return b
}

func postMCP(t *testing.T, handler http.Handler, body []byte, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("Mcp-Session-Id", sessionID)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// initMCPSession sends an initialize request and returns the session ID.
func initMCPSession(t *testing.T, handler http.Handler) string {
	t.Helper()
	body := mcpRequest(t, "initialize", 1, map[string]any{
		"protocolVersion": "2025-06-18",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test", "version": "0.0.1"},
	})
	w := postMCP(t, handler, body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("initialize: status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	sessionID := w.Header().Get("Mcp-Session-Id")
	if sessionID == "" {
		t.Fatal("initialize did not return a session ID")
	}
	return sessionID
}

// toolResultText decodes the JSON-RPC response from a tools/call and returns
// the text content and whether the tool reported an error.
func toolResultText(t *testing.T, w *httptest.ResponseRecorder) (string, bool) {
	t.Helper()
	var resp struct {
		Result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode tool result: %v", err)
	}
	if len(resp.Result.Content) == 0 {
		return "", resp.Result.IsError
	}
	return resp.Result.Content[0].Text, resp.Result.IsError
}

func TestMCPEndpoint_Initialize(t *testing.T) {
	client := newOpsClient(t)
	handler := api.NewOpsServer(client, "1.2.3").Handler()

	body := mcpRequest(t, "initialize", 1, map[string]any{
		"protocolVersion": "2025-06-18",
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "test", "version": "0.0.1"},
	})

	w := postMCP(t, handler, body, "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Result struct {
			ServerInfo struct {
				Name    string `json:"name"`
				Version string `json:"version"`
			} `json:"serverInfo"`
			Capabilities struct {
				Tools json.RawMessage `json:"tools"`
			} `json:"capabilities"`
		} `json:"result"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if resp.Result.ServerInfo.Name != "hibikido" {
		t.Errorf("server name = %q, want hibikido", resp.Result.ServerInfo.Name)
	}
	if resp.Result.ServerInfo.Version != "1.2.3" {
		t.Errorf("server version = %q, want 1.2.3", resp.Result.ServerInfo.Version)
	}
	if resp.Result.Capabilities.Tools == nil {
		t.Error("expected tools capability to be present")
	}
}

func TestMCPEndpoint_ListTools(t *testing.T) {
	client := newOpsClient(t)
	handler := api.NewOpsServer(client, "1.0.0").Handler()

	sessionID := initMCPSession(t, handler)

	body := mcpRequest(t, "tools/list", 2, nil)
	w := postMCP(t, handler, body, sessionID)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	names := map[string]bool{}
	for _, tool := range resp.Result.Tools {
		names[tool.Name] = true
	}

	expected := []string{"search_sounds", "get_stats", "get_version"}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("missing %s tool", name)
		}
	}
	if len(resp.Result.Tools) != len(expected) {
		t.Errorf("expected %d tools, got %d", len(expected), len(resp.Result.Tools))
	}
}

func TestMCPEndpoint_SearchSounds(t *testing.T) {
	client := newOpsClient(t)

	_, _, err := client.Engine.IngestRecording(context.Background(), catalog.AddRecordingParams{
		Path:        "koto.wav",
		Description: "plucked koto string resonance",
	})
	if err != nil {
		t.Fatalf("ingest recording: %v", err)
	}

	handler := api.NewOpsServer(client, "1.0.0").Handler()
	sessionID := initMCPSession(t, handler)

	body := mcpRequest(t, "tools/call", 2, map[string]any{
		"name": "search_sounds",
		"arguments": map[string]any{
			"query": "plucked koto string resonance",
		},
	})
	w := postMCP(t, handler, body, sessionID)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	text, isError := toolResultText(t, w)
	if isError {
		t.Fatalf("search_sounds returned error: %s", text)
	}
	if !strings.Contains(text, `"path":"koto.wav"`) {
		t.Errorf("expected koto.wav hit, got: %s", text)
	}
	if !strings.Contains(text, `"collection":"segments"`) {
		t.Errorf("expected a segments hit, got: %s", text)
	}
}

// TestMCPEndpoint_ServerMiddlewareStack verifies that MCP works through the
// full server middleware stack (as built by ListenAndServe). chi's Timeout
// middleware wraps the ResponseWriter, which breaks MCP's session headers,
// so the /mcp mount must stay outside any timeout group.
func TestMCPEndpoint_ServerMiddlewareStack(t *testing.T) {
	client := newOpsClient(t)
	ops := api.NewOpsServer(client, "1.0.0")
	ops.MountRoutes()

	// Build the same handler stack as ListenAndServe: the Server router
	// (with RequestID, RealIP, Recoverer) wrapping the ops routes.
	srv := api.NewServer("", nil)
	srv.Router().Mount("/", ops.Router())
	handler := srv.Router()

	sessionID := initMCPSession(t, handler)

	body := mcpRequest(t, "tools/call", 2, map[string]any{
		"name":      "get_version",
		"arguments": map[string]any{},
	})
	w := postMCP(t, handler, body, sessionID)
	if w.Code != http.StatusOK {
		t.Fatalf("tools/call: status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	text, isError := toolResultText(t, w)
	if isError {
		t.Fatalf("get_version returned error: %s", text)
	}
	if text != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %s", text)
	}
}
