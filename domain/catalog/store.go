package catalog

import "context"

// RecordingStore persists recordings keyed by unique file path.
type RecordingStore interface {
	// Upsert inserts the recording or, when the path is already registered,
	// updates its description. The bool reports whether a new row was
	// created.
	Upsert(ctx context.Context, recording Recording) (Recording, bool, error)

	// FindByPath returns the recording registered under path.
	FindByPath(ctx context.Context, path string) (Recording, error)

	// Count returns the number of recordings.
	Count(ctx context.Context) (int64, error)
}

// SegmentationStore persists segmentation runs keyed by natural id.
type SegmentationStore interface {
	// Save inserts a segmentation. A taken id is a conflict.
	Save(ctx context.Context, segmentation Segmentation) error

	// FindByID returns the segmentation with the given natural id.
	FindByID(ctx context.Context, id string) (Segmentation, error)

	// Count returns the number of segmentations.
	Count(ctx context.Context) (int64, error)
}

// SegmentStore persists segments. Saves enforce referential integrity
// against recordings and segmentations.
type SegmentStore interface {
	// Save inserts a segment and returns it with its assigned id. An
	// unknown source path or segmentation id is a dangling reference.
	Save(ctx context.Context, segment Segment) (Segment, error)

	// Update rewrites an existing segment by id.
	Update(ctx context.Context, segment Segment) error

	// FindByID returns the segment with the given id.
	FindByID(ctx context.Context, id int64) (Segment, error)

	// FindByRow returns the segment owning the given vector-index row.
	FindByRow(ctx context.Context, row int) (Segment, error)

	// ByRecording returns the segments of one recording ordered by start.
	ByRecording(ctx context.Context, sourcePath string) ([]Segment, error)

	// All returns every segment ordered by id.
	All(ctx context.Context) ([]Segment, error)

	// ClearRows detaches every segment from the vector index by clearing
	// its row assignment. Embedding texts are kept.
	ClearRows(ctx context.Context) error

	// Count returns the number of segments.
	Count(ctx context.Context) (int64, error)
}

// EffectStore persists effects keyed by unique path.
type EffectStore interface {
	// Upsert inserts the effect or, when the path is already registered,
	// updates its description. The bool reports whether a new row was
	// created.
	Upsert(ctx context.Context, effect Effect) (Effect, bool, error)

	// FindByPath returns the effect registered under path.
	FindByPath(ctx context.Context, path string) (Effect, error)

	// Count returns the number of effects.
	Count(ctx context.Context) (int64, error)
}

// PresetStore persists presets. Saves enforce referential integrity
// against effects.
type PresetStore interface {
	// Save inserts a preset and returns it with its assigned id. An
	// unknown effect path is a dangling reference.
	Save(ctx context.Context, preset Preset) (Preset, error)

	// Update rewrites an existing preset by id.
	Update(ctx context.Context, preset Preset) error

	// FindByID returns the preset with the given id.
	FindByID(ctx context.Context, id int64) (Preset, error)

	// FindByRow returns the preset owning the given vector-index row.
	FindByRow(ctx context.Context, row int) (Preset, error)

	// ByEffect returns the presets of one effect ordered by id.
	ByEffect(ctx context.Context, effectPath string) ([]Preset, error)

	// All returns every preset ordered by id.
	All(ctx context.Context) ([]Preset, error)

	// ClearRows detaches every preset from the vector index by clearing
	// its row assignment. Embedding texts are kept.
	ClearRows(ctx context.Context) error

	// Count returns the number of presets.
	Count(ctx context.Context) (int64, error)
}

// PerformanceStore persists performance sessions and their invocation logs.
type PerformanceStore interface {
	// Save inserts a performance.
	Save(ctx context.Context, performance Performance) error

	// AppendInvocation appends one invocation to a performance's log.
	AppendInvocation(ctx context.Context, performanceID string, invocation Invocation) error

	// FindByID returns the performance with the given id.
	FindByID(ctx context.Context, id string) (Performance, error)

	// Count returns the number of performances.
	Count(ctx context.Context) (int64, error)
}
