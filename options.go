package hibikido

import (
	"io"
	"log/slog"

	"github.com/hibikido/hibikido/application/service"
	"github.com/hibikido/hibikido/domain/search"
)

// Option configures a Server beyond what the config tree carries.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	embedder search.Embedder
	clock    service.Clock
	closers  []io.Closer
}

// WithLogger sets the logger for the server and every subsystem.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEmbedder injects an embedder directly, bypassing provider selection
// from config. Tests use this with the deterministic fake embedder; the
// server does not close an injected embedder.
func WithEmbedder(embedder search.Embedder) Option {
	return func(o *options) {
		o.embedder = embedder
	}
}

// WithClock injects the orchestrator's time source. Tests use this to step
// niche expiry without sleeping.
func WithClock(clock service.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithCloser registers an extra resource to close when the server closes.
func WithCloser(closer io.Closer) Option {
	return func(o *options) {
		o.closers = append(o.closers, closer)
	}
}
