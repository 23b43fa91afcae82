package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hibikido/hibikido/domain/invocation"
	"github.com/hibikido/hibikido/internal/config"
)

// Clock supplies the current time. Injectable so tests can drive niche
// expiry deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// OrchestratorStats reports live niche and queue sizes.
type OrchestratorStats struct {
	ActiveNiches int
	Queued       int
}

// Orchestrator admits queued manifestations into free spectral niches.
//
// Admission is strictly FIFO with head blocking: a head whose band
// conflicts with an active niche stays queued and nothing behind it is
// considered until the conflict clears. A head whose sound already holds a
// niche is dropped silently and admission continues.
type Orchestrator struct {
	cfg    config.OrchestratorConfig
	logger *slog.Logger
	clock  Clock

	mu     sync.Mutex
	queue  []invocation.Candidate
	niches map[int64]invocation.Niche
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(cfg config.OrchestratorConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:    cfg,
		logger: logger,
		clock:  systemClock{},
		niches: make(map[int64]invocation.Niche),
	}
}

// WithClock replaces the wall clock, for tests.
func (o *Orchestrator) WithClock(clock Clock) *Orchestrator {
	o.clock = clock
	return o
}

// Enqueue appends a candidate to the queue, stamping it with the current
// time. A missing band or duration is filled from the configured defaults.
// Enqueue never rejects.
func (o *Orchestrator) Enqueue(soundID int64, payload invocation.Manifestation, freqLow, freqHigh, duration float64) {
	if freqLow <= 0 || freqHigh <= 0 {
		freqLow, freqHigh = o.cfg.DefaultFreqLow, o.cfg.DefaultFreqHigh
	}
	if duration <= 0 {
		duration = o.cfg.DefaultDuration
	}
	band := invocation.NewBand(freqLow, freqHigh)
	candidate := invocation.NewCandidate(soundID, payload, band, duration, o.clock.Now())

	o.mu.Lock()
	o.queue = append(o.queue, candidate)
	queued := len(o.queue)
	o.mu.Unlock()

	o.logger.Debug("manifestation queued",
		"sound_id", soundID,
		"freq_low", freqLow,
		"freq_high", freqHigh,
		"duration", duration,
		"queued", queued,
	)
}

// Tick expires finished niches, then admits from the head of the queue, in
// order, up to the per-tick admission cap. Admitted candidates are returned
// for dispatch.
func (o *Orchestrator) Tick() []invocation.Candidate {
	now := o.clock.Now()

	o.mu.Lock()
	defer o.mu.Unlock()

	for id, niche := range o.niches {
		if niche.Expired(now) {
			delete(o.niches, id)
			o.logger.Debug("niche expired", "sound_id", id)
		}
	}

	var admitted []invocation.Candidate
	for len(o.queue) > 0 && len(admitted) < o.cfg.MaxAdmitsPerTick {
		head := o.queue[0]

		// The same sound manifesting twice at once makes no sense; the
		// duplicate is discarded without costing an admission slot.
		if _, live := o.niches[head.SoundID()]; live {
			o.queue = o.queue[1:]
			o.logger.Debug("duplicate sound dropped", "sound_id", head.SoundID())
			continue
		}

		if o.conflictsLocked(head.Band()) {
			break
		}

		o.queue = o.queue[1:]
		end := now.Add(time.Duration(head.Duration() * float64(time.Second)))
		o.niches[head.SoundID()] = invocation.NewNiche(head.SoundID(), now, end, head.Band())
		admitted = append(admitted, head)

		o.logger.Debug("niche opened",
			"sound_id", head.SoundID(),
			"freq_low", head.Band().Low(),
			"freq_high", head.Band().High(),
			"until", end,
		)
	}
	if len(o.queue) == 0 {
		o.queue = nil
	}
	return admitted
}

// Stats returns the live niche count and queue length.
func (o *Orchestrator) Stats() OrchestratorStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return OrchestratorStats{ActiveNiches: len(o.niches), Queued: len(o.queue)}
}

func (o *Orchestrator) conflictsLocked(band invocation.Band) bool {
	for _, niche := range o.niches {
		if niche.Conflicts(band, o.cfg.OverlapThreshold) {
			return true
		}
	}
	return false
}
