package service

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hibikido/hibikido/domain/catalog"
	"github.com/hibikido/hibikido/domain/search"
)

const (
	// rebuildBatchSize is the number of texts per embedding request.
	rebuildBatchSize = 32

	// rebuildEmbedWorkers bounds concurrent embedding requests.
	rebuildEmbedWorkers = 4
)

// RebuildFailure records one document the rebuild could not re-index.
type RebuildFailure struct {
	Collection string
	ID         int64
	Err        error
}

// RebuildReport summarizes one index rebuild.
type RebuildReport struct {
	Segments int
	Presets  int
	Failures []RebuildFailure
}

// Summary renders the report as a single confirmation line.
func (r RebuildReport) Summary() string {
	if len(r.Failures) == 0 {
		return fmt.Sprintf("rebuilt index: %d segments, %d presets", r.Segments, r.Presets)
	}
	return fmt.Sprintf("rebuilt index: %d segments, %d presets, %d failed", r.Segments, r.Presets, len(r.Failures))
}

// Rebuild re-embeds every segment and preset and reassigns index rows in
// iteration order, segments (by id) first, presets (by id) after. Documents
// whose text cannot be recomposed or re-embedded are detached from the
// index and listed in the report; the rebuild completes the rest. All
// embedding happens before the old index is dropped, so an embedding
// provider outage cannot leave the index half empty.
func (e *Engine) Rebuild(ctx context.Context) (RebuildReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	segments, err := e.segments.All(ctx)
	if err != nil {
		return RebuildReport{}, fmt.Errorf("load segments: %w", err)
	}
	presets, err := e.presets.All(ctx)
	if err != nil {
		return RebuildReport{}, fmt.Errorf("load presets: %w", err)
	}
	e.logger.Info("rebuilding vector index", "segments", len(segments), "presets", len(presets))

	segTexts, segErrs := e.composeSegmentTexts(ctx, segments)
	preTexts, preErrs := e.composePresetTexts(ctx, presets)
	segVectors := e.embedSparse(ctx, segTexts, segErrs)
	preVectors := e.embedSparse(ctx, preTexts, preErrs)

	if err := ctx.Err(); err != nil {
		return RebuildReport{}, err
	}

	// Release every assigned row before handing them out again: rows are
	// unique per collection and reassignment may reshuffle them.
	if err := e.segments.ClearRows(ctx); err != nil {
		return RebuildReport{}, err
	}
	if err := e.presets.ClearRows(ctx); err != nil {
		return RebuildReport{}, err
	}
	e.index.Reset()

	var report RebuildReport
	for i, segment := range segments {
		fail := func(err error) {
			e.logger.Warn("rebuild skipped segment", "id", segment.ID(), "error", err)
			report.Failures = append(report.Failures, RebuildFailure{
				Collection: search.CollectionSegments,
				ID:         segment.ID(),
				Err:        err,
			})
		}
		if segErrs[i] != nil {
			fail(segErrs[i])
			continue
		}
		row, err := e.index.Add(segVectors[i], search.CollectionSegments)
		if err != nil {
			fail(fmt.Errorf("index add: %w", err))
			continue
		}
		if err := e.segments.Update(ctx, segment.WithEmbedding(segTexts[i], row)); err != nil {
			fail(err)
			continue
		}
		report.Segments++
	}
	for i, preset := range presets {
		fail := func(err error) {
			e.logger.Warn("rebuild skipped preset", "id", preset.ID(), "error", err)
			report.Failures = append(report.Failures, RebuildFailure{
				Collection: search.CollectionPresets,
				ID:         preset.ID(),
				Err:        err,
			})
		}
		if preErrs[i] != nil {
			fail(preErrs[i])
			continue
		}
		row, err := e.index.Add(preVectors[i], search.CollectionPresets)
		if err != nil {
			fail(fmt.Errorf("index add: %w", err))
			continue
		}
		if err := e.presets.Update(ctx, preset.WithEmbedding(preTexts[i], row)); err != nil {
			fail(err)
			continue
		}
		report.Presets++
	}

	if err := e.index.Save(); err != nil {
		return report, fmt.Errorf("save index: %w", err)
	}

	e.logger.Info("rebuilt vector index", "rows", e.index.Size(), "failed", len(report.Failures))
	return report, nil
}

// composeSegmentTexts recomputes embedding texts for all segments. Parent
// lookups are memoized per path and id.
func (e *Engine) composeSegmentTexts(ctx context.Context, segments []catalog.Segment) ([]string, []error) {
	texts := make([]string, len(segments))
	errs := make([]error, len(segments))
	recordings := make(map[string]catalog.Recording)
	segmentations := make(map[string]catalog.Segmentation)

	for i, segment := range segments {
		recording, ok := recordings[segment.SourcePath()]
		if !ok {
			var err error
			recording, err = e.recordings.FindByPath(ctx, segment.SourcePath())
			if err != nil {
				errs[i] = fmt.Errorf("resolve recording %q: %w", segment.SourcePath(), err)
				continue
			}
			recordings[segment.SourcePath()] = recording
		}

		segmentation, ok := segmentations[segment.SegmentationID()]
		if !ok {
			var err error
			segmentation, err = e.segmentations.FindByID(ctx, segment.SegmentationID())
			if err != nil {
				errs[i] = fmt.Errorf("resolve segmentation %q: %w", segment.SegmentationID(), err)
				continue
			}
			segmentations[segment.SegmentationID()] = segmentation
		}

		texts[i] = e.composer.SegmentText(segment.Description(), segmentation.Description(), recording.Description())
	}
	return texts, errs
}

// composePresetTexts recomputes embedding texts for all presets.
func (e *Engine) composePresetTexts(ctx context.Context, presets []catalog.Preset) ([]string, []error) {
	texts := make([]string, len(presets))
	errs := make([]error, len(presets))
	effects := make(map[string]catalog.Effect)

	for i, preset := range presets {
		effect, ok := effects[preset.EffectPath()]
		if !ok {
			var err error
			effect, err = e.effects.FindByPath(ctx, preset.EffectPath())
			if err != nil {
				errs[i] = fmt.Errorf("resolve effect %q: %w", preset.EffectPath(), err)
				continue
			}
			effects[preset.EffectPath()] = effect
		}

		texts[i] = e.composer.PresetText(preset.Description(), effect.Description())
	}
	return texts, errs
}

// embedSparse embeds the texts whose slot carries no error yet, in fixed
// batches with bounded parallelism. A failed batch marks every slot it
// covers and the remaining batches still run. The returned vectors align
// with texts.
func (e *Engine) embedSparse(ctx context.Context, texts []string, errs []error) [][]float64 {
	todo := make([]int, 0, len(texts))
	for i := range texts {
		if errs[i] == nil {
			todo = append(todo, i)
		}
	}

	vectors := make([][]float64, len(texts))
	var group errgroup.Group
	group.SetLimit(rebuildEmbedWorkers)

	for start := 0; start < len(todo); start += rebuildBatchSize {
		window := todo[start:min(start+rebuildBatchSize, len(todo))]
		group.Go(func() error {
			batch := make([]string, len(window))
			for j, pos := range window {
				batch[j] = texts[pos]
			}
			out, err := e.embedder.Embed(ctx, batch)
			if err == nil && len(out) != len(batch) {
				err = fmt.Errorf("embedder returned %d vectors for %d texts", len(out), len(batch))
			}
			if err != nil {
				for _, pos := range window {
					errs[pos] = fmt.Errorf("embed: %w", err)
				}
				return nil
			}
			for j, pos := range window {
				vectors[pos] = out[j]
			}
			return nil
		})
	}
	// Batches record their own failures per slot and never return an error.
	_ = group.Wait()
	return vectors
}
