package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hibikido/hibikido/domain/invocation"
)

// EmitFunc receives one admitted candidate for dispatch.
type EmitFunc func(invocation.Candidate)

// Worker drives the orchestrator clock: every tick interval it runs one
// tick and hands each admission to the emit callback, in admission order.
type Worker struct {
	orchestrator *Orchestrator
	emit         EmitFunc
	tickInterval time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewWorker creates a new tick worker. emit must not be nil.
func NewWorker(orchestrator *Orchestrator, emit EmitFunc, tickInterval time.Duration, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		orchestrator: orchestrator,
		emit:         emit,
		tickInterval: tickInterval,
		logger:       logger,
	}
}

// Start begins ticking.
// The worker runs in a goroutine and can be stopped with Stop().
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()

	w.logger.Info("tick worker started", "interval", w.tickInterval)
}

// Stop gracefully shuts down the worker.
// It waits for an in-flight tick to finish dispatching before returning.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
	w.logger.Info("tick worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.DispatchOnce()
		}
	}
}

// DispatchOnce runs a single tick synchronously and returns the number of
// admissions dispatched (exposed for testing).
func (w *Worker) DispatchOnce() int {
	admitted := w.orchestrator.Tick()
	for _, candidate := range admitted {
		w.emit(candidate)
	}
	return len(admitted)
}
