package service

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hibikido/hibikido/domain/invocation"
	"github.com/hibikido/hibikido/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 20, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testOrchestratorConfig() config.OrchestratorConfig {
	return config.OrchestratorConfig{
		OverlapThreshold: 0.2,
		TimePrecision:    0.1,
		MaxAdmitsPerTick: 5,
		DefaultDuration:  1.0,
		DefaultFreqLow:   200,
		DefaultFreqHigh:  2000,
	}
}

func newTestOrchestrator(cfg config.OrchestratorConfig) (*Orchestrator, *fakeClock) {
	clock := newFakeClock()
	orch := NewOrchestrator(cfg, slog.New(slog.DiscardHandler)).WithClock(clock)
	return orch, clock
}

func payload(soundID int64) invocation.Manifestation {
	path := fmt.Sprintf("/sounds/%d.wav", soundID)
	return invocation.NewManifestation("segments", 0.9, path, "test sound", 0, 1, "[]")
}

func soundIDs(admitted []invocation.Candidate) []int64 {
	ids := make([]int64, len(admitted))
	for i, candidate := range admitted {
		ids[i] = candidate.SoundID()
	}
	return ids
}

func TestOrchestratorAdmitsDisjointBandsInOrder(t *testing.T) {
	orch, _ := newTestOrchestrator(testOrchestratorConfig())

	orch.Enqueue(1, payload(1), 100, 200, 1.0)
	orch.Enqueue(2, payload(2), 10000, 20000, 1.0)
	orch.Enqueue(3, payload(3), 40, 80, 1.0)

	admitted := orch.Tick()
	assert.Equal(t, []int64{1, 2, 3}, soundIDs(admitted))

	stats := orch.Stats()
	assert.Equal(t, 3, stats.ActiveNiches)
	assert.Equal(t, 0, stats.Queued)
}

func TestOrchestratorMaxAdmitsPerTick(t *testing.T) {
	cfg := testOrchestratorConfig()
	cfg.MaxAdmitsPerTick = 2
	orch, _ := newTestOrchestrator(cfg)

	orch.Enqueue(1, payload(1), 100, 200, 1.0)
	orch.Enqueue(2, payload(2), 10000, 20000, 1.0)
	orch.Enqueue(3, payload(3), 40, 80, 1.0)

	assert.Equal(t, []int64{1, 2}, soundIDs(orch.Tick()))
	assert.Equal(t, []int64{3}, soundIDs(orch.Tick()))
	assert.Empty(t, orch.Tick())
}

func TestOrchestratorConflictBlocksUntilExpiry(t *testing.T) {
	orch, clock := newTestOrchestrator(testOrchestratorConfig())

	// log2 overlap of [500,1000] and [600,900] is about 0.585, over the
	// 0.2 threshold.
	orch.Enqueue(1, payload(1), 500, 1000, 1.0)
	orch.Enqueue(2, payload(2), 600, 900, 1.0)

	require.Equal(t, []int64{1}, soundIDs(orch.Tick()))
	assert.Empty(t, orch.Tick())

	stats := orch.Stats()
	assert.Equal(t, 1, stats.ActiveNiches)
	assert.Equal(t, 1, stats.Queued)

	clock.Advance(999 * time.Millisecond)
	assert.Empty(t, orch.Tick(), "niche must hold until its full duration elapses")

	clock.Advance(1 * time.Millisecond)
	assert.Equal(t, []int64{2}, soundIDs(orch.Tick()))

	stats = orch.Stats()
	assert.Equal(t, 1, stats.ActiveNiches)
	assert.Equal(t, 0, stats.Queued)
}

func TestOrchestratorHeadBlocking(t *testing.T) {
	orch, clock := newTestOrchestrator(testOrchestratorConfig())

	orch.Enqueue(1, payload(1), 500, 1000, 1.0)
	require.Equal(t, []int64{1}, soundIDs(orch.Tick()))

	// Sound 2 conflicts with the active niche; sound 3 would fit but must
	// wait behind it.
	orch.Enqueue(2, payload(2), 600, 900, 1.0)
	orch.Enqueue(3, payload(3), 10000, 20000, 1.0)

	assert.Empty(t, orch.Tick())
	assert.Equal(t, 2, orch.Stats().Queued)

	clock.Advance(time.Second)
	assert.Equal(t, []int64{2, 3}, soundIDs(orch.Tick()))
}

func TestOrchestratorDuplicateSoundDroppedWithoutCostingASlot(t *testing.T) {
	cfg := testOrchestratorConfig()
	cfg.MaxAdmitsPerTick = 1
	orch, _ := newTestOrchestrator(cfg)

	orch.Enqueue(7, payload(7), 500, 1000, 10.0)
	require.Equal(t, []int64{7}, soundIDs(orch.Tick()))

	// A duplicate of the live sound sits at the head; it is discarded and
	// the single admission slot still goes to sound 8.
	orch.Enqueue(7, payload(7), 500, 1000, 10.0)
	orch.Enqueue(8, payload(8), 10000, 20000, 1.0)

	admitted := orch.Tick()
	assert.Equal(t, []int64{8}, soundIDs(admitted))

	stats := orch.Stats()
	assert.Equal(t, 2, stats.ActiveNiches)
	assert.Equal(t, 0, stats.Queued)
}

func TestOrchestratorZeroWidthBandsNeverConflict(t *testing.T) {
	orch, _ := newTestOrchestrator(testOrchestratorConfig())

	orch.Enqueue(1, payload(1), 440, 440, 1.0)
	orch.Enqueue(2, payload(2), 440, 440, 1.0)

	// Zero-width bands have zero union, which counts as no overlap.
	assert.Equal(t, []int64{1, 2}, soundIDs(orch.Tick()))
}

func TestOrchestratorEnqueueFillsDefaults(t *testing.T) {
	orch, _ := newTestOrchestrator(testOrchestratorConfig())

	orch.Enqueue(1, payload(1), 0, 0, 0)

	admitted := orch.Tick()
	require.Len(t, admitted, 1)
	assert.Equal(t, 200.0, admitted[0].Band().Low())
	assert.Equal(t, 2000.0, admitted[0].Band().High())
	assert.Equal(t, 1.0, admitted[0].Duration())
}

func TestOrchestratorIdenticalBandsBackToBack(t *testing.T) {
	orch, clock := newTestOrchestrator(testOrchestratorConfig())

	orch.Enqueue(1, payload(1), 300, 600, 1.0)
	orch.Enqueue(2, payload(2), 300, 600, 1.0)

	require.Equal(t, []int64{1}, soundIDs(orch.Tick()))
	assert.Empty(t, orch.Tick())

	clock.Advance(time.Second)
	assert.Equal(t, []int64{2}, soundIDs(orch.Tick()))
}
