// Package mcp exposes the sound catalog over the Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibikido/hibikido/application/service"
	"github.com/hibikido/hibikido/domain/search"
	"github.com/hibikido/hibikido/internal/config"
	"github.com/hibikido/hibikido/internal/observe"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Searcher runs semantic searches over the sound catalog.
type Searcher interface {
	Search(ctx context.Context, query string, k int, minScore float64) ([]service.Hit, error)
}

// CatalogStats reports document and index counts.
type CatalogStats interface {
	Stats(ctx context.Context) (service.EngineStats, error)
}

// NicheStats reports live orchestration occupancy.
type NicheStats interface {
	Stats() service.OrchestratorStats
}

// Server wraps the MCP server with the sound-catalog tools.
type Server struct {
	mcpServer *server.MCPServer
	engine    Searcher
	catalog   CatalogStats
	niches    NicheStats
	search    config.SearchConfig
	version   string
	metrics   *observe.Metrics
	logger    *slog.Logger
}

// NewServer creates an MCP server with the given dependencies. The search
// config supplies the tool's default top_k and min_score.
func NewServer(engine Searcher, catalog CatalogStats, niches NicheStats, search config.SearchConfig, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		engine:  engine,
		catalog: catalog,
		niches:  niches,
		search:  search,
		version: version,
		metrics: observe.DefaultMetrics(),
		logger:  logger,
	}

	mcpServer := server.NewMCPServer(
		"hibikido",
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)
	s.mcpServer = mcpServer
	return s
}

// registerTools registers the sound-catalog tools with the MCP server.
func (s *Server) registerTools(mcpServer *server.MCPServer) {
	searchTool := mcp.NewTool("search_sounds",
		mcp.WithDescription("Search the sound catalog with a natural-language description; returns ranked segments and presets"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search text"),
		),
		mcp.WithNumber("top_k",
			mcp.Description("Maximum number of results (default: the configured search.top_k)"),
		),
		mcp.WithNumber("min_score",
			mcp.Description("Minimum cosine score in [-1, 1] (default: the configured search.min_score)"),
		),
	)
	mcpServer.AddTool(searchTool, s.handleSearchSounds)

	statsTool := mcp.NewTool("get_stats",
		mcp.WithDescription("Get catalog, index, and orchestrator counts"),
	)
	mcpServer.AddTool(statsTool, s.handleGetStats)

	versionTool := mcp.NewTool("get_version",
		mcp.WithDescription("Get the server version"),
	)
	mcpServer.AddTool(versionTool, s.handleGetVersion)
}

// soundResult is one search hit in the tool's JSON output.
type soundResult struct {
	Collection  string  `json:"collection"`
	ID          int64   `json:"id"`
	Score       float64 `json:"score"`
	Path        string  `json:"path"`
	Description string  `json:"description"`
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	Parameters  string  `json:"parameters,omitempty"`
}

// handleSearchSounds handles the search_sounds tool invocation.
func (s *Server) handleSearchSounds(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		s.metrics.RecordToolCall(ctx, "search_sounds", observe.StatusError)
		return mcp.NewToolResultError("query is required"), nil
	}

	topK := request.GetInt("top_k", s.search.TopK)
	minScore := request.GetFloat("min_score", s.search.MinScore)

	hits, err := s.engine.Search(ctx, query, topK, minScore)
	if err != nil {
		s.logger.Error("search_sounds failed", slog.Any("error", err))
		s.metrics.RecordToolCall(ctx, "search_sounds", observe.StatusError)
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	results := make([]soundResult, len(hits))
	for i, hit := range hits {
		results[i] = toSoundResult(hit)
	}

	jsonBytes, err := json.Marshal(results)
	if err != nil {
		s.metrics.RecordToolCall(ctx, "search_sounds", observe.StatusError)
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}

	s.metrics.RecordToolCall(ctx, "search_sounds", observe.StatusOK)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func toSoundResult(hit service.Hit) soundResult {
	if hit.Collection() == search.CollectionPresets {
		preset := hit.Preset()
		return soundResult{
			Collection:  hit.Collection(),
			ID:          preset.ID(),
			Score:       hit.Score(),
			Path:        preset.EffectPath(),
			Description: preset.Description(),
			Parameters:  preset.ParametersJSON(),
		}
	}
	segment := hit.Segment()
	return soundResult{
		Collection:  hit.Collection(),
		ID:          segment.ID(),
		Score:       hit.Score(),
		Path:        segment.SourcePath(),
		Description: segment.Description(),
		Start:       segment.Start(),
		End:         segment.End(),
	}
}

// handleGetStats handles the get_stats tool invocation.
func (s *Server) handleGetStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	engineStats, err := s.catalog.Stats(ctx)
	if err != nil {
		s.logger.Error("get_stats failed", slog.Any("error", err))
		s.metrics.RecordToolCall(ctx, "get_stats", observe.StatusError)
		return mcp.NewToolResultError(fmt.Sprintf("stats failed: %v", err)), nil
	}
	nicheStats := s.niches.Stats()

	result := struct {
		Recordings   int64 `json:"recordings"`
		Segments     int64 `json:"segments"`
		Effects      int64 `json:"effects"`
		Presets      int64 `json:"presets"`
		Embeddings   int   `json:"embeddings"`
		ActiveNiches int   `json:"active_niches"`
		Queued       int   `json:"queued"`
	}{
		Recordings:   engineStats.Recordings,
		Segments:     engineStats.Segments,
		Effects:      engineStats.Effects,
		Presets:      engineStats.Presets,
		Embeddings:   engineStats.Embeddings,
		ActiveNiches: nicheStats.ActiveNiches,
		Queued:       nicheStats.Queued,
	}

	jsonBytes, err := json.Marshal(result)
	if err != nil {
		s.metrics.RecordToolCall(ctx, "get_stats", observe.StatusError)
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal stats: %v", err)), nil
	}

	s.metrics.RecordToolCall(ctx, "get_stats", observe.StatusOK)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// handleGetVersion handles the get_version tool invocation.
func (s *Server) handleGetVersion(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.metrics.RecordToolCall(ctx, "get_version", observe.StatusOK)
	return mcp.NewToolResultText(s.version), nil
}

// MCPServer returns the underlying MCP server for HTTP mounting.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio runs the MCP server on stdio.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
