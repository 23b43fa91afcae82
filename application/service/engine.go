// Package service provides the application layer: the retrieval engine
// binding embedder, vector index, and catalog, and the orchestrator
// admitting queued manifestations into free spectral niches.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hibikido/hibikido/domain/catalog"
	"github.com/hibikido/hibikido/domain/search"
	"github.com/hibikido/hibikido/domain/text"
)

// Hit is one search result resolved back to its owning document. Exactly
// one of Segment and Preset is populated, selected by Collection.
type Hit struct {
	collection string
	row        int
	score      float64
	segment    catalog.Segment
	preset     catalog.Preset
}

// Collection returns the owning collection tag.
func (h Hit) Collection() string { return h.collection }

// Row returns the vector index row that produced the hit.
func (h Hit) Row() int { return h.row }

// Score returns the cosine similarity to the query.
func (h Hit) Score() float64 { return h.score }

// Segment returns the resolved segment when Collection is "segments".
func (h Hit) Segment() catalog.Segment { return h.segment }

// Preset returns the resolved preset when Collection is "presets".
func (h Hit) Preset() catalog.Preset { return h.preset }

// EngineStats reports document counts per collection plus the index size.
type EngineStats struct {
	Recordings int64
	Segments   int64
	Effects    int64
	Presets    int64
	Embeddings int
}

// Engine binds the embedder, the vector index, and the catalog stores into
// the ingest and search operations the server exposes. Writes (ingest,
// rebuild) are serialized by a single lock; searches share the read side.
type Engine struct {
	recordings    catalog.RecordingStore
	segmentations catalog.SegmentationStore
	segments      catalog.SegmentStore
	effects       catalog.EffectStore
	presets       catalog.PresetStore
	embedder      search.Embedder
	index         search.Index
	composer      text.Composer
	logger        *slog.Logger
	mu            sync.RWMutex
}

// NewEngine creates a new Engine.
func NewEngine(
	recordings catalog.RecordingStore,
	segmentations catalog.SegmentationStore,
	segments catalog.SegmentStore,
	effects catalog.EffectStore,
	presets catalog.PresetStore,
	embedder search.Embedder,
	index search.Index,
	composer text.Composer,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		recordings:    recordings,
		segmentations: segmentations,
		segments:      segments,
		effects:       effects,
		presets:       presets,
		embedder:      embedder,
		index:         index,
		composer:      composer,
		logger:        logger,
	}
}

// IngestRecording upserts a recording. On first insert it auto-ingests a
// full-length segment reusing the recording's description, so the sound is
// searchable immediately. Re-adding an existing path updates the
// description only. The bool reports whether the recording was created.
func (e *Engine) IngestRecording(ctx context.Context, params catalog.AddRecordingParams) (catalog.Recording, bool, error) {
	if err := catalog.ValidateParams(params); err != nil {
		return catalog.Recording{}, false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	recording, created, err := e.recordings.Upsert(ctx, catalog.NewRecording(params.Path, params.Description))
	if err != nil {
		return catalog.Recording{}, false, err
	}
	if !created {
		e.logger.Info("recording description updated", "path", recording.Path())
		return recording, false, nil
	}

	segment := catalog.NewSegment(recording.Path(), catalog.DefaultSegmentationID, 0, 1, recording.Description(), "")
	if _, err := e.ingestSegmentLocked(ctx, segment); err != nil {
		return catalog.Recording{}, false, fmt.Errorf("auto-ingest whole-file segment: %w", err)
	}

	e.logger.Info("recording added", "path", recording.Path())
	return recording, true, nil
}

// IngestSegment validates, embeds, indexes, and persists one segment.
func (e *Engine) IngestSegment(ctx context.Context, params catalog.AddSegmentParams) (catalog.Segment, error) {
	if err := catalog.ValidateParams(params); err != nil {
		return catalog.Segment{}, err
	}

	segmentationID := params.SegmentationID
	if segmentationID == "" {
		segmentationID = catalog.DefaultSegmentationID
	}

	segment := catalog.NewSegment(params.SourcePath, segmentationID, params.Start, params.End, params.Description, "")
	if params.FreqLow > 0 && params.FreqHigh > 0 {
		segment = segment.WithBand(params.FreqLow, params.FreqHigh)
	}
	if params.Duration > 0 {
		segment = segment.WithDuration(params.Duration)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	saved, err := e.ingestSegmentLocked(ctx, segment)
	if err != nil {
		return catalog.Segment{}, err
	}
	e.logger.Info("segment added", "id", saved.ID(), "path", saved.SourcePath(), "row", saved.Row())
	return saved, nil
}

// IngestEffect upserts an effect. On first insert it auto-ingests a default
// preset with empty parameters. The bool reports whether the effect was
// created.
func (e *Engine) IngestEffect(ctx context.Context, params catalog.AddEffectParams) (catalog.Effect, bool, error) {
	if err := catalog.ValidateParams(params); err != nil {
		return catalog.Effect{}, false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	effect, created, err := e.effects.Upsert(ctx, catalog.NewEffect(params.Path, params.Name, params.Description))
	if err != nil {
		return catalog.Effect{}, false, err
	}
	if !created {
		e.logger.Info("effect description updated", "path", effect.Path())
		return effect, false, nil
	}

	preset := catalog.NewPreset(effect.Path(), nil, effect.Description(), "")
	if _, err := e.ingestPresetLocked(ctx, preset); err != nil {
		return catalog.Effect{}, false, fmt.Errorf("auto-ingest default preset: %w", err)
	}

	e.logger.Info("effect added", "path", effect.Path(), "name", effect.Name())
	return effect, true, nil
}

// IngestPreset validates, embeds, indexes, and persists one preset.
func (e *Engine) IngestPreset(ctx context.Context, params catalog.AddPresetParams) (catalog.Preset, error) {
	if err := catalog.ValidateParams(params); err != nil {
		return catalog.Preset{}, err
	}

	preset := catalog.NewPreset(params.EffectPath, params.Parameters, params.Description, "")

	e.mu.Lock()
	defer e.mu.Unlock()

	saved, err := e.ingestPresetLocked(ctx, preset)
	if err != nil {
		return catalog.Preset{}, err
	}
	e.logger.Info("preset added", "id", saved.ID(), "effect", saved.EffectPath(), "row", saved.Row())
	return saved, nil
}

// ingestSegmentLocked runs the embed-index-persist pipeline for one
// segment. Callers hold the write lock.
func (e *Engine) ingestSegmentLocked(ctx context.Context, segment catalog.Segment) (catalog.Segment, error) {
	recording, err := e.recordings.FindByPath(ctx, segment.SourcePath())
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return catalog.Segment{}, fmt.Errorf("%w: recording %q", catalog.ErrDanglingReference, segment.SourcePath())
		}
		return catalog.Segment{}, err
	}

	segmentation, err := e.ensureSegmentation(ctx, segment.SegmentationID())
	if err != nil {
		return catalog.Segment{}, err
	}

	embeddingText := e.composer.SegmentText(segment.Description(), segmentation.Description(), recording.Description())
	vector, err := e.embedOne(ctx, embeddingText)
	if err != nil {
		return catalog.Segment{}, fmt.Errorf("embed segment text: %w", err)
	}

	row, err := e.index.Add(vector, search.CollectionSegments)
	if err != nil {
		return catalog.Segment{}, fmt.Errorf("index segment: %w", err)
	}

	saved, err := e.segments.Save(ctx, segment.WithEmbedding(embeddingText, row))
	if err != nil {
		// The row stays orphaned until the next rebuild.
		return catalog.Segment{}, err
	}

	if err := e.index.Save(); err != nil {
		return catalog.Segment{}, fmt.Errorf("save index: %w", err)
	}
	return saved, nil
}

// ingestPresetLocked runs the embed-index-persist pipeline for one preset.
// Callers hold the write lock.
func (e *Engine) ingestPresetLocked(ctx context.Context, preset catalog.Preset) (catalog.Preset, error) {
	effect, err := e.effects.FindByPath(ctx, preset.EffectPath())
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return catalog.Preset{}, fmt.Errorf("%w: effect %q", catalog.ErrDanglingReference, preset.EffectPath())
		}
		return catalog.Preset{}, err
	}

	embeddingText := e.composer.PresetText(preset.Description(), effect.Description())
	vector, err := e.embedOne(ctx, embeddingText)
	if err != nil {
		return catalog.Preset{}, fmt.Errorf("embed preset text: %w", err)
	}

	row, err := e.index.Add(vector, search.CollectionPresets)
	if err != nil {
		return catalog.Preset{}, fmt.Errorf("index preset: %w", err)
	}

	saved, err := e.presets.Save(ctx, preset.WithEmbedding(embeddingText, row))
	if err != nil {
		return catalog.Preset{}, err
	}

	if err := e.index.Save(); err != nil {
		return catalog.Preset{}, fmt.Errorf("save index: %w", err)
	}
	return saved, nil
}

// ensureSegmentation resolves a segmentation id, creating the default
// manual segmentation on first use. Unknown non-default ids are dangling.
func (e *Engine) ensureSegmentation(ctx context.Context, id string) (catalog.Segmentation, error) {
	segmentation, err := e.segmentations.FindByID(ctx, id)
	if err == nil {
		return segmentation, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return catalog.Segmentation{}, err
	}
	if id != catalog.DefaultSegmentationID {
		return catalog.Segmentation{}, fmt.Errorf("%w: segmentation %q", catalog.ErrDanglingReference, id)
	}

	manual := catalog.NewSegmentation(catalog.DefaultSegmentationID, "manual", nil, "manually annotated segments")
	if err := e.segmentations.Save(ctx, manual); err != nil {
		return catalog.Segmentation{}, err
	}
	e.logger.Debug("created default segmentation", "id", manual.ID())
	return manual, nil
}

// Search embeds the enhanced query and returns hits resolved to their
// documents, in descending score order, filtered to score >= minScore.
// k <= 0 returns no hits and no error.
func (e *Engine) Search(ctx context.Context, query string, k int, minScore float64) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	enhanced := e.composer.EnhanceQuery(query)
	if enhanced == "" {
		// Cleaning can swallow a query made of stop words; search the raw
		// text rather than nothing.
		enhanced = query
	}

	vector, err := e.embedOne(ctx, enhanced)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := e.index.Search(vector, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	hits := make([]Hit, 0, len(matches))
	for _, match := range matches {
		if match.Score() < minScore {
			continue
		}
		hit, ok, err := e.resolveRow(ctx, match)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Stats returns document counts per collection plus the index size.
func (e *Engine) Stats(ctx context.Context) (EngineStats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var stats EngineStats
	var err error
	if stats.Recordings, err = e.recordings.Count(ctx); err != nil {
		return EngineStats{}, err
	}
	if stats.Segments, err = e.segments.Count(ctx); err != nil {
		return EngineStats{}, err
	}
	if stats.Effects, err = e.effects.Count(ctx); err != nil {
		return EngineStats{}, err
	}
	if stats.Presets, err = e.presets.Count(ctx); err != nil {
		return EngineStats{}, err
	}
	stats.Embeddings = e.index.Size()
	return stats, nil
}

// SaveIndex persists the vector index to its configured path. Ingest and
// rebuild already save after every mutation; this exists for the shutdown
// path.
func (e *Engine) SaveIndex() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.index.Save()
}

// resolveRow looks up the document owning a match's row. Rows without a
// collection tag are probed segments first, then presets. A row no document
// claims is orphaned; it is logged and skipped, not an error.
func (e *Engine) resolveRow(ctx context.Context, match search.Match) (Hit, bool, error) {
	collection, tagged := e.index.CollectionOf(match.Row())
	if tagged && collection == search.CollectionPresets {
		preset, err := e.presets.FindByRow(ctx, match.Row())
		if err != nil {
			return e.skipUnresolved(match, err)
		}
		return NewPresetHit(preset, match.Row(), match.Score()), true, nil
	}

	segment, err := e.segments.FindByRow(ctx, match.Row())
	if err == nil {
		return NewSegmentHit(segment, match.Row(), match.Score()), true, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return Hit{}, false, err
	}
	if tagged {
		return e.skipUnresolved(match, err)
	}

	preset, err := e.presets.FindByRow(ctx, match.Row())
	if err != nil {
		return e.skipUnresolved(match, err)
	}
	return NewPresetHit(preset, match.Row(), match.Score()), true, nil
}

func (e *Engine) skipUnresolved(match search.Match, err error) (Hit, bool, error) {
	if errors.Is(err, catalog.ErrNotFound) {
		e.logger.Warn("skipping orphaned index row", "row", match.Row(), "score", match.Score())
		return Hit{}, false, nil
	}
	return Hit{}, false, err
}

// NewSegmentHit builds a Hit resolved to a segment.
func NewSegmentHit(segment catalog.Segment, row int, score float64) Hit {
	return Hit{
		collection: search.CollectionSegments,
		row:        row,
		score:      score,
		segment:    segment,
	}
}

// NewPresetHit builds a Hit resolved to a preset.
func NewPresetHit(preset catalog.Preset, row int, score float64) Hit {
	return Hit{
		collection: search.CollectionPresets,
		row:        row,
		score:      score,
		preset:     preset,
	}
}

// embedOne embeds a single text.
func (e *Engine) embedOne(ctx context.Context, input string) ([]float64, error) {
	vectors, err := e.embedder.Embed(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one text", len(vectors))
	}
	return vectors[0], nil
}
