package hibikido

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goosc "github.com/hypebeast/go-osc/osc"

	"github.com/hibikido/hibikido/domain/catalog"
	"github.com/hibikido/hibikido/domain/invocation"
	"github.com/hibikido/hibikido/domain/search"
	"github.com/hibikido/hibikido/infrastructure/osc"
	"github.com/hibikido/hibikido/internal/observe"
)

// segmentParams is the parameters field of a segment manifestation. Only
// presets carry real parameters.
const segmentParams = "[]"

// registerHandlers binds every OSC command address. /search is a legacy
// synonym of /invoke kept for older clients.
func (s *Server) registerHandlers() error {
	bindings := []struct {
		address string
		handler osc.HandlerFunc
	}{
		{"/invoke", s.handleInvoke},
		{"/search", s.handleInvoke},
		{"/add_recording", s.handleAddRecording},
		{"/add_effect", s.handleAddEffect},
		{"/add_segment", s.handleAddSegment},
		{"/add_preset", s.handleAddPreset},
		{"/rebuild_index", s.handleRebuildIndex},
		{"/stats", s.handleStats},
		{"/stop", s.handleStop},
	}
	for _, binding := range bindings {
		if err := s.oscServer.Handle(binding.address, binding.handler); err != nil {
			return fmt.Errorf("handle %s: %w", binding.address, err)
		}
	}
	return nil
}

// handleInvoke searches the catalog for the incantation and queues every
// segment hit with the orchestrator, in descending-score order. Presets
// surface in searches but are not orchestrated, so they are dropped here.
// One invocation record lands in the performance log, and one /confirm
// acknowledges the number of queued resonances.
func (s *Server) handleInvoke(msg *goosc.Message) {
	ctx := context.Background()
	started := time.Now()

	incantation, ok := stringArg(msg, 0)
	if !ok || strings.TrimSpace(incantation) == "" {
		s.reject(ctx, msg.Address, "invoke requires incantation text")
		return
	}

	searchStarted := time.Now()
	hits, err := s.Engine.Search(ctx, incantation, s.cfg.Search.TopK, s.cfg.Search.MinScore)
	s.metrics.SearchDuration.Record(ctx, time.Since(searchStarted).Seconds())
	if err != nil {
		s.reject(ctx, msg.Address, fmt.Sprintf("search failed: %v", err))
		return
	}

	queued := 0
	var topSegment int64
	for _, hit := range hits {
		if hit.Collection() != search.CollectionSegments {
			continue
		}
		segment := hit.Segment()
		payload := invocation.NewManifestation(
			hit.Collection(), hit.Score(),
			segment.SourcePath(), segment.Description(),
			segment.Start(), segment.End(),
			segmentParams,
		)
		s.Orchestrator.Enqueue(segment.ID(), payload, segment.FreqLow(), segment.FreqHigh(), segment.Duration())
		if queued == 0 {
			topSegment = segment.ID()
		}
		queued++
	}

	// Every invocation lands in the performance log, matched or not. A zero
	// segment id records a miss.
	offset := time.Since(s.startedAt).Seconds()
	entry := catalog.NewInvocation(incantation, topSegment, 0, offset)
	if err := s.performances.AppendInvocation(ctx, s.performanceID, entry); err != nil {
		s.logger.Error("append invocation failed",
			slog.String("performance_id", s.performanceID),
			slog.Any("error", err),
		)
	}

	s.logger.Info("invocation",
		slog.String("incantation", incantation),
		slog.Int("hits", len(hits)),
		slog.Int("queued", queued),
	)
	s.confirm(ctx, msg.Address, fmt.Sprintf("queued %d resonances", queued))
	s.metrics.InvokeDuration.Record(ctx, time.Since(started).Seconds())
}

// handleAddRecording upserts a recording. The engine auto-ingests a
// full-length segment on first insert, so the sound is invocable at once.
func (s *Server) handleAddRecording(msg *goosc.Message) {
	ctx := context.Background()
	started := time.Now()

	path, okPath := stringArg(msg, 0)
	blob, okBlob := stringArg(msg, 1)
	if !okPath || !okBlob {
		s.reject(ctx, msg.Address, "add_recording requires path and a JSON document")
		return
	}

	var params catalog.AddRecordingParams
	if err := catalog.DecodeParams([]byte(blob), &params); err != nil {
		s.reject(ctx, msg.Address, fmt.Sprintf("add_recording: %v", err))
		return
	}
	params.Path = path

	recording, created, err := s.Engine.IngestRecording(ctx, params)
	if err != nil {
		s.reject(ctx, msg.Address, fmt.Sprintf("add_recording failed: %v", err))
		return
	}

	verb := "updated"
	if created {
		verb = "added"
	}
	s.metrics.RecordIngest(ctx, "recordings", time.Since(started).Seconds())
	s.confirm(ctx, msg.Address, fmt.Sprintf("%s recording: %s", verb, recording.Path()))
}

// handleAddEffect upserts an effect. The engine auto-ingests a default
// preset with empty parameters on first insert.
func (s *Server) handleAddEffect(msg *goosc.Message) {
	ctx := context.Background()
	started := time.Now()

	path, okPath := stringArg(msg, 0)
	blob, okBlob := stringArg(msg, 1)
	if !okPath || !okBlob {
		s.reject(ctx, msg.Address, "add_effect requires path and a JSON document")
		return
	}

	var params catalog.AddEffectParams
	if err := catalog.DecodeParams([]byte(blob), &params); err != nil {
		s.reject(ctx, msg.Address, fmt.Sprintf("add_effect: %v", err))
		return
	}
	params.Path = path

	effect, created, err := s.Engine.IngestEffect(ctx, params)
	if err != nil {
		s.reject(ctx, msg.Address, fmt.Sprintf("add_effect failed: %v", err))
		return
	}

	verb := "updated"
	if created {
		verb = "added"
	}
	s.metrics.RecordIngest(ctx, "effects", time.Since(started).Seconds())
	s.confirm(ctx, msg.Address, fmt.Sprintf("%s effect: %s", verb, effect.Path()))
}

// handleAddSegment ingests one segment of a registered recording.
func (s *Server) handleAddSegment(msg *goosc.Message) {
	ctx := context.Background()
	started := time.Now()

	description, okDesc := stringArg(msg, 0)
	blob, okBlob := stringArg(msg, 1)
	if !okDesc || !okBlob {
		s.reject(ctx, msg.Address, "add_segment requires description and a JSON document")
		return
	}

	var params catalog.AddSegmentParams
	if err := catalog.DecodeParams([]byte(blob), &params); err != nil {
		s.reject(ctx, msg.Address, fmt.Sprintf("add_segment: %v", err))
		return
	}
	params.Description = description

	segment, err := s.Engine.IngestSegment(ctx, params)
	if err != nil {
		s.reject(ctx, msg.Address, fmt.Sprintf("add_segment failed: %v", err))
		return
	}

	s.metrics.RecordIngest(ctx, search.CollectionSegments, time.Since(started).Seconds())
	s.confirm(ctx, msg.Address, fmt.Sprintf("added segment %d: %s", segment.ID(), segment.SourcePath()))
}

// handleAddPreset ingests one preset of a registered effect.
func (s *Server) handleAddPreset(msg *goosc.Message) {
	ctx := context.Background()
	started := time.Now()

	description, okDesc := stringArg(msg, 0)
	blob, okBlob := stringArg(msg, 1)
	if !okDesc || !okBlob {
		s.reject(ctx, msg.Address, "add_preset requires description and a JSON document")
		return
	}

	var params catalog.AddPresetParams
	if err := catalog.DecodeParams([]byte(blob), &params); err != nil {
		s.reject(ctx, msg.Address, fmt.Sprintf("add_preset: %v", err))
		return
	}
	params.Description = description

	preset, err := s.Engine.IngestPreset(ctx, params)
	if err != nil {
		s.reject(ctx, msg.Address, fmt.Sprintf("add_preset failed: %v", err))
		return
	}

	s.metrics.RecordIngest(ctx, search.CollectionPresets, time.Since(started).Seconds())
	s.confirm(ctx, msg.Address, fmt.Sprintf("added preset %d to %s", preset.ID(), preset.EffectPath()))
}

// handleRebuildIndex re-embeds the whole catalog and reassigns index rows.
// Slow; the handler lock holds off other commands until it finishes.
func (s *Server) handleRebuildIndex(msg *goosc.Message) {
	ctx := context.Background()
	started := time.Now()

	report, err := s.Engine.Rebuild(ctx)
	if err != nil {
		s.reject(ctx, msg.Address, fmt.Sprintf("rebuild_index failed: %v", err))
		return
	}

	s.metrics.RebuildDuration.Record(ctx, time.Since(started).Seconds())
	s.confirm(ctx, msg.Address, report.Summary())
}

// handleStats emits one /stats_result with the seven catalog and
// orchestrator counters.
func (s *Server) handleStats(msg *goosc.Message) {
	ctx := context.Background()

	engineStats, err := s.Engine.Stats(ctx)
	if err != nil {
		s.reject(ctx, msg.Address, fmt.Sprintf("stats failed: %v", err))
		return
	}
	nicheStats := s.Orchestrator.Stats()

	result := osc.Stats{
		Recordings:   int(engineStats.Recordings),
		Segments:     int(engineStats.Segments),
		Effects:      int(engineStats.Effects),
		Presets:      int(engineStats.Presets),
		Embeddings:   engineStats.Embeddings,
		ActiveNiches: nicheStats.ActiveNiches,
		Queued:       nicheStats.Queued,
	}
	if err := s.oscClient.StatsResult(result); err != nil {
		s.logger.Error("stats_result send failed", slog.Any("error", err))
		s.metrics.RecordSendFailure(ctx, "/stats_result")
		s.metrics.RecordCommand(ctx, msg.Address, observe.StatusError)
		return
	}
	s.metrics.RecordCommand(ctx, msg.Address, observe.StatusOK)
}

// handleStop confirms and signals Run to return. The confirm goes out first
// so the client hears the acknowledgment before the socket closes.
func (s *Server) handleStop(msg *goosc.Message) {
	ctx := context.Background()
	s.logger.Info("stop requested")
	s.confirm(ctx, msg.Address, "stopping")
	s.requestStop()
}

// confirm acknowledges one handled command on /confirm.
func (s *Server) confirm(ctx context.Context, address, message string) {
	if err := s.oscClient.Confirm(message); err != nil {
		s.logger.Error("confirm send failed", slog.Any("error", err))
		s.metrics.RecordSendFailure(ctx, "/confirm")
	}
	s.metrics.RecordCommand(ctx, address, observe.StatusOK)
}

// reject reports one discarded command on /error.
func (s *Server) reject(ctx context.Context, address, message string) {
	s.logger.Warn("command rejected",
		slog.String("address", address),
		slog.String("reason", message),
	)
	if err := s.oscClient.Error(message); err != nil {
		s.logger.Error("error send failed", slog.Any("error", err))
		s.metrics.RecordSendFailure(ctx, "/error")
	}
	s.metrics.RecordCommand(ctx, address, observe.StatusError)
}

// stringArg extracts OSC argument i as a string.
func stringArg(msg *goosc.Message, i int) (string, bool) {
	if i >= len(msg.Arguments) {
		return "", false
	}
	value, ok := msg.Arguments[i].(string)
	return value, ok
}
