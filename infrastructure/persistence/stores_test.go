package persistence

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/hibikido/hibikido/domain/catalog"
	"github.com/hibikido/hibikido/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDate(t *testing.T) time.Time {
	t.Helper()
	date, err := time.Parse(time.RFC3339, "2025-03-01T20:30:00Z")
	require.NoError(t, err)
	return date
}

// newTestDB creates a migrated in-memory SQLite database for testing.
// Cannot use testdb package here due to import cycle (testdb imports persistence).
func newTestDB(t *testing.T) database.Database {
	t.Helper()
	ctx := context.Background()
	db, err := database.New(ctx, "sqlite:///:memory:", slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRecordingStore_Upsert(t *testing.T) {
	ctx := context.Background()
	store := NewRecordingStore(newTestDB(t))

	saved, created, err := store.Upsert(ctx, catalog.NewRecording("/sounds/ocean.wav", "deep ocean waves"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, saved.ID())
	assert.Equal(t, "/sounds/ocean.wav", saved.Path())

	updated, created, err := store.Upsert(ctx, catalog.NewRecording("/sounds/ocean.wav", "stormy ocean waves"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, saved.ID(), updated.ID())
	assert.Equal(t, "stormy ocean waves", updated.Description())

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRecordingStore_FindByPath(t *testing.T) {
	ctx := context.Background()
	store := NewRecordingStore(newTestDB(t))

	_, _, err := store.Upsert(ctx, catalog.NewRecording("/sounds/bell.wav", "temple bell"))
	require.NoError(t, err)

	found, err := store.FindByPath(ctx, "/sounds/bell.wav")
	require.NoError(t, err)
	assert.Equal(t, "temple bell", found.Description())

	_, err = store.FindByPath(ctx, "/sounds/missing.wav")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestSegmentationStore_SaveAndConflict(t *testing.T) {
	ctx := context.Background()
	store := NewSegmentationStore(newTestDB(t))

	seg := catalog.NewSegmentation("onset-v1", "onset detection", map[string]any{"threshold": 0.4}, "onset pass")
	require.NoError(t, store.Save(ctx, seg))

	err := store.Save(ctx, catalog.NewSegmentation("onset-v1", "other", nil, ""))
	assert.ErrorIs(t, err, catalog.ErrConflict)

	found, err := store.FindByID(ctx, "onset-v1")
	require.NoError(t, err)
	assert.Equal(t, "onset detection", found.Method())
	assert.Equal(t, 0.4, found.Parameters()["threshold"])

	_, err = store.FindByID(ctx, "unknown")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestSegmentStore_DanglingReferences(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	recordings := NewRecordingStore(db)
	segmentations := NewSegmentationStore(db)
	segments := NewSegmentStore(db)

	segment := catalog.NewSegment("/sounds/ocean.wav", catalog.DefaultSegmentationID, 0, 1, "whole file", "ocean waves")

	_, err := segments.Save(ctx, segment)
	assert.ErrorIs(t, err, catalog.ErrDanglingReference)

	_, _, err = recordings.Upsert(ctx, catalog.NewRecording("/sounds/ocean.wav", "ocean"))
	require.NoError(t, err)

	_, err = segments.Save(ctx, segment)
	assert.ErrorIs(t, err, catalog.ErrDanglingReference)

	require.NoError(t, segmentations.Save(ctx, catalog.NewSegmentation(catalog.DefaultSegmentationID, "manual", nil, "")))

	saved, err := segments.Save(ctx, segment)
	require.NoError(t, err)
	assert.NotZero(t, saved.ID())
	assert.Equal(t, catalog.UnassignedRow, saved.Row())
}

func TestSegmentStore_RowLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	recordings := NewRecordingStore(db)
	segmentations := NewSegmentationStore(db)
	segments := NewSegmentStore(db)

	_, _, err := recordings.Upsert(ctx, catalog.NewRecording("/sounds/ocean.wav", "ocean"))
	require.NoError(t, err)
	require.NoError(t, segmentations.Save(ctx, catalog.NewSegmentation(catalog.DefaultSegmentationID, "manual", nil, "")))

	saved, err := segments.Save(ctx, catalog.NewSegment("/sounds/ocean.wav", catalog.DefaultSegmentationID, 0, 1, "whole file", "ocean waves"))
	require.NoError(t, err)

	_, err = segments.FindByRow(ctx, 0)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	require.NoError(t, segments.Update(ctx, saved.WithEmbedding("ocean waves crashing", 0)))

	byRow, err := segments.FindByRow(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, saved.ID(), byRow.ID())
	assert.Equal(t, "ocean waves crashing", byRow.EmbeddingText())
	assert.Equal(t, 0, byRow.Row())
}

func TestSegmentStore_ClearRows(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	recordings := NewRecordingStore(db)
	segmentations := NewSegmentationStore(db)
	segments := NewSegmentStore(db)

	_, _, err := recordings.Upsert(ctx, catalog.NewRecording("/sounds/ocean.wav", "ocean"))
	require.NoError(t, err)
	require.NoError(t, segmentations.Save(ctx, catalog.NewSegmentation(catalog.DefaultSegmentationID, "manual", nil, "")))

	first, err := segments.Save(ctx, catalog.NewSegment("/sounds/ocean.wav", catalog.DefaultSegmentationID, 0, 0.5, "first half", "waves building"))
	require.NoError(t, err)
	second, err := segments.Save(ctx, catalog.NewSegment("/sounds/ocean.wav", catalog.DefaultSegmentationID, 0.5, 1, "second half", "waves receding"))
	require.NoError(t, err)
	require.NoError(t, segments.Update(ctx, first.WithEmbedding("waves building", 0)))
	require.NoError(t, segments.Update(ctx, second.WithEmbedding("waves receding", 1)))

	require.NoError(t, segments.ClearRows(ctx))

	_, err = segments.FindByRow(ctx, 0)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	cleared, err := segments.FindByID(ctx, first.ID())
	require.NoError(t, err)
	assert.Equal(t, catalog.UnassignedRow, cleared.Row())
	assert.Equal(t, "waves building", cleared.EmbeddingText())

	// Rows freed by the clear can be handed out in any order.
	require.NoError(t, segments.Update(ctx, second.WithEmbedding("waves receding", 0)))
	require.NoError(t, segments.Update(ctx, first.WithEmbedding("waves building", 1)))
}

func TestSegmentStore_ByRecordingOrderedByStart(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	recordings := NewRecordingStore(db)
	segmentations := NewSegmentationStore(db)
	segments := NewSegmentStore(db)

	_, _, err := recordings.Upsert(ctx, catalog.NewRecording("/sounds/ocean.wav", "ocean"))
	require.NoError(t, err)
	_, _, err = recordings.Upsert(ctx, catalog.NewRecording("/sounds/wind.wav", "wind"))
	require.NoError(t, err)
	require.NoError(t, segmentations.Save(ctx, catalog.NewSegmentation(catalog.DefaultSegmentationID, "manual", nil, "")))

	for _, span := range [][2]float64{{0.6, 0.9}, {0.0, 0.3}, {0.3, 0.6}} {
		_, err = segments.Save(ctx, catalog.NewSegment("/sounds/ocean.wav", catalog.DefaultSegmentationID, span[0], span[1], "part", "ocean part"))
		require.NoError(t, err)
	}
	_, err = segments.Save(ctx, catalog.NewSegment("/sounds/wind.wav", catalog.DefaultSegmentationID, 0, 1, "whole", "wind"))
	require.NoError(t, err)

	ordered, err := segments.ByRecording(ctx, "/sounds/ocean.wav")
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	assert.Equal(t, 0.0, ordered[0].Start())
	assert.Equal(t, 0.3, ordered[1].Start())
	assert.Equal(t, 0.6, ordered[2].Start())

	all, err := segments.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	count, err := segments.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestSegmentStore_BandAndDurationPersist(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	recordings := NewRecordingStore(db)
	segmentations := NewSegmentationStore(db)
	segments := NewSegmentStore(db)

	_, _, err := recordings.Upsert(ctx, catalog.NewRecording("/sounds/bell.wav", "bell"))
	require.NoError(t, err)
	require.NoError(t, segmentations.Save(ctx, catalog.NewSegmentation(catalog.DefaultSegmentationID, "manual", nil, "")))

	segment := catalog.NewSegment("/sounds/bell.wav", catalog.DefaultSegmentationID, 0.1, 0.4, "strike", "bell strike").
		WithBand(500, 1000).
		WithDuration(2.5)
	saved, err := segments.Save(ctx, segment)
	require.NoError(t, err)

	found, err := segments.FindByID(ctx, saved.ID())
	require.NoError(t, err)
	assert.True(t, found.HasBand())
	assert.Equal(t, 500.0, found.FreqLow())
	assert.Equal(t, 1000.0, found.FreqHigh())
	assert.True(t, found.HasDuration())
	assert.Equal(t, 2.5, found.Duration())
}

func TestEffectStore_Upsert(t *testing.T) {
	ctx := context.Background()
	store := NewEffectStore(newTestDB(t))

	saved, created, err := store.Upsert(ctx, catalog.NewEffect("/effects/reverb", "Cathedral", "long shimmering reverb"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, saved.ID())

	updated, created, err := store.Upsert(ctx, catalog.NewEffect("/effects/reverb", "Cathedral II", "longer reverb"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, saved.ID(), updated.ID())
	assert.Equal(t, "Cathedral II", updated.Name())

	found, err := store.FindByPath(ctx, "/effects/reverb")
	require.NoError(t, err)
	assert.Equal(t, "longer reverb", found.Description())
}

func TestPresetStore_SaveAndParameters(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	effects := NewEffectStore(db)
	presets := NewPresetStore(db)

	preset := catalog.NewPreset("/effects/reverb", []catalog.Parameter{
		{Name: "mix", Value: 0.7},
		{Name: "decay", Value: 3.2},
	}, "wet cathedral", "wet cathedral reverb")

	_, err := presets.Save(ctx, preset)
	assert.ErrorIs(t, err, catalog.ErrDanglingReference)

	_, _, err = effects.Upsert(ctx, catalog.NewEffect("/effects/reverb", "Cathedral", "reverb"))
	require.NoError(t, err)

	saved, err := presets.Save(ctx, preset)
	require.NoError(t, err)
	assert.NotZero(t, saved.ID())
	assert.Equal(t, catalog.UnassignedRow, saved.Row())

	found, err := presets.FindByID(ctx, saved.ID())
	require.NoError(t, err)
	params := found.Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, "mix", params[0].Name)
	assert.Equal(t, 0.7, params[0].Value)
	assert.Equal(t, `[{"name":"mix","value":0.7},{"name":"decay","value":3.2}]`, found.ParametersJSON())
}

func TestPresetStore_EmptyParameters(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	effects := NewEffectStore(db)
	presets := NewPresetStore(db)

	_, _, err := effects.Upsert(ctx, catalog.NewEffect("/effects/delay", "Delay", "tape delay"))
	require.NoError(t, err)

	saved, err := presets.Save(ctx, catalog.NewPreset("/effects/delay", nil, "default", "default tape delay"))
	require.NoError(t, err)

	found, err := presets.FindByID(ctx, saved.ID())
	require.NoError(t, err)
	assert.Equal(t, "[]", found.ParametersJSON())
}

func TestPresetStore_RowAndByEffect(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	effects := NewEffectStore(db)
	presets := NewPresetStore(db)

	_, _, err := effects.Upsert(ctx, catalog.NewEffect("/effects/reverb", "Cathedral", "reverb"))
	require.NoError(t, err)
	_, _, err = effects.Upsert(ctx, catalog.NewEffect("/effects/delay", "Delay", "delay"))
	require.NoError(t, err)

	first, err := presets.Save(ctx, catalog.NewPreset("/effects/reverb", nil, "wet", "wet reverb"))
	require.NoError(t, err)
	second, err := presets.Save(ctx, catalog.NewPreset("/effects/reverb", nil, "dry", "dry reverb"))
	require.NoError(t, err)
	_, err = presets.Save(ctx, catalog.NewPreset("/effects/delay", nil, "slap", "slapback delay"))
	require.NoError(t, err)

	require.NoError(t, presets.Update(ctx, first.WithRow(3)))

	byRow, err := presets.FindByRow(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), byRow.ID())

	reverbPresets, err := presets.ByEffect(ctx, "/effects/reverb")
	require.NoError(t, err)
	require.Len(t, reverbPresets, 2)
	assert.Equal(t, first.ID(), reverbPresets[0].ID())
	assert.Equal(t, second.ID(), reverbPresets[1].ID())

	count, err := presets.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestPresetStore_ClearRows(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	effects := NewEffectStore(db)
	presets := NewPresetStore(db)

	_, _, err := effects.Upsert(ctx, catalog.NewEffect("/effects/reverb", "Cathedral", "reverb"))
	require.NoError(t, err)

	saved, err := presets.Save(ctx, catalog.NewPreset("/effects/reverb", nil, "wet", "wet reverb"))
	require.NoError(t, err)
	require.NoError(t, presets.Update(ctx, saved.WithEmbedding("wet reverb", 5)))

	require.NoError(t, presets.ClearRows(ctx))

	_, err = presets.FindByRow(ctx, 5)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	cleared, err := presets.FindByID(ctx, saved.ID())
	require.NoError(t, err)
	assert.Equal(t, catalog.UnassignedRow, cleared.Row())
	assert.Equal(t, "wet reverb", cleared.EmbeddingText())
}

func TestPerformanceStore_InvocationLog(t *testing.T) {
	ctx := context.Background()
	store := NewPerformanceStore(newTestDB(t))

	performance := catalog.NewPerformance(testDate(t))
	require.NoError(t, store.Save(ctx, performance))

	err := store.Save(ctx, performance)
	assert.ErrorIs(t, err, catalog.ErrConflict)

	require.NoError(t, store.AppendInvocation(ctx, performance.ID(), catalog.NewInvocation("deep ocean drone", 4, 0, 1.5)))
	require.NoError(t, store.AppendInvocation(ctx, performance.ID(), catalog.NewInvocation("shimmering bell", 0, 2, 0.0)))

	found, err := store.FindByID(ctx, performance.ID())
	require.NoError(t, err)
	invocations := found.Invocations()
	require.Len(t, invocations, 2)
	assert.Equal(t, "deep ocean drone", invocations[0].Text())
	assert.Equal(t, int64(4), invocations[0].SegmentID())
	assert.Equal(t, 1.5, invocations[0].Offset())
	assert.Equal(t, "shimmering bell", invocations[1].Text())
	assert.Equal(t, int64(2), invocations[1].EffectID())

	err = store.AppendInvocation(ctx, "performance_unknown", catalog.NewInvocation("x", 0, 0, 0))
	assert.ErrorIs(t, err, catalog.ErrDanglingReference)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
