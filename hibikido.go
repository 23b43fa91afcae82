// Package hibikido implements the hibikidō sound invocation server.
//
// Sounds are described, not addressed: clients send natural-language
// incantations over OSC, the server searches a catalog of recording
// segments and effect presets by embedding similarity, and every segment
// hit is queued with the Chōwasha orchestrator, which admits each sound
// into a free spectral niche and emits it as a /manifest event when the
// cosmos permits.
//
// Basic usage:
//
//	cfg, err := config.Load("hibikido.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv, err := hibikido.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Close()
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package hibikido

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/hibikido/hibikido/application/service"
	"github.com/hibikido/hibikido/domain/catalog"
	"github.com/hibikido/hibikido/domain/invocation"
	"github.com/hibikido/hibikido/domain/search"
	"github.com/hibikido/hibikido/domain/text"
	"github.com/hibikido/hibikido/infrastructure/osc"
	"github.com/hibikido/hibikido/infrastructure/persistence"
	"github.com/hibikido/hibikido/infrastructure/provider"
	infrasearch "github.com/hibikido/hibikido/infrastructure/search"
	"github.com/hibikido/hibikido/internal/config"
	"github.com/hibikido/hibikido/internal/database"
	"github.com/hibikido/hibikido/internal/observe"
)

// ErrServerClosed is returned by Close when the server is already closed.
var ErrServerClosed = errors.New("hibikido: server closed")

// Server is the main entry point. New wires the catalog stores, the vector
// index, the retrieval engine, the orchestrator, and the OSC transport; Run
// serves until stopped; Close releases everything.
//
// The retrieval engine and the orchestrator are exposed for embedding the
// server in other programs (and for the ops API):
//
//	srv.Engine.Search(ctx, "wind through pines", 10, 0.3)
//	srv.Orchestrator.Stats()
type Server struct {
	// Engine is the retrieval engine: ingest, search, rebuild, stats.
	Engine *service.Engine

	// Orchestrator is the Chōwasha, scheduling queued manifestations into
	// free spectral niches.
	Orchestrator *service.Orchestrator

	cfg    config.Config
	logger *slog.Logger

	db           database.Database
	performances catalog.PerformanceStore
	index        *infrasearch.FlatIndex

	worker    *service.Worker
	oscServer *osc.Server
	oscClient *osc.Client

	// performanceID names the session log opened at startup; every /invoke
	// appends to it. startedAt anchors invocation offsets.
	performanceID string
	startedAt     time.Time

	seq     atomic.Int64
	metrics *observe.Metrics
	gauges  metric.Registration
	closers []io.Closer

	stop     chan struct{}
	stopOnce sync.Once
	closed   atomic.Bool
	mu       sync.Mutex
}

// New creates a Server from the configuration. Subsystems come up in
// dependency order: store, index, engine, orchestrator, transport. The
// performance session for this process is opened here, so a New that
// returns nil error always has a session to log invocations into.
func New(cfg config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.Database.URL, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := persistence.AutoMigrate(db); err != nil {
		return nil, errors.Join(fmt.Errorf("auto migrate: %w", err), db.Close())
	}
	if err := persistence.ValidateSchema(db); err != nil {
		return nil, errors.Join(fmt.Errorf("validate schema: %w", err), db.Close())
	}

	recordings := persistence.NewRecordingStore(db)
	segmentations := persistence.NewSegmentationStore(db)
	segments := persistence.NewSegmentStore(db)
	effects := persistence.NewEffectStore(db)
	presets := persistence.NewPresetStore(db)
	performances := persistence.NewPerformanceStore(db)

	index := infrasearch.NewFlatIndex(cfg.Embedding.IndexFile, search.Dimension)
	if err := index.Load(); err != nil {
		return nil, errors.Join(fmt.Errorf("load vector index: %w", err), db.Close())
	}

	closers := o.closers
	embedder := o.embedder
	if embedder == nil {
		built, embedderClosers, err := buildEmbedder(cfg.Embedding, logger)
		if err != nil {
			return nil, errors.Join(err, db.Close())
		}
		embedder = built
		closers = append(closers, embedderClosers...)
	}

	engine := service.NewEngine(
		recordings, segmentations, segments, effects, presets,
		embedder, index, text.NewComposer(nil), logger,
	)

	orchestrator := service.NewOrchestrator(cfg.Orchestrator, logger)
	if o.clock != nil {
		orchestrator = orchestrator.WithClock(o.clock)
	}

	trace := osc.NewTraceLogger(cfg.OSC.Trace)

	// One performance session per process. Invocation offsets count from
	// its date.
	session := catalog.NewPerformance(time.Now())
	if err := performances.Save(ctx, session); err != nil {
		return nil, errors.Join(fmt.Errorf("open performance session: %w", err), closeAll(closers), db.Close())
	}

	s := &Server{
		Engine:        engine,
		Orchestrator:  orchestrator,
		cfg:           cfg,
		logger:        logger,
		db:            db,
		performances:  performances,
		index:         index,
		oscServer:     osc.NewServer(cfg.OSC.ListenAddr(), logger, trace),
		oscClient:     osc.NewClient(cfg.OSC.SendIP, cfg.OSC.SendPort, trace),
		performanceID: session.ID(),
		startedAt:     session.Date(),
		metrics:       observe.DefaultMetrics(),
		closers:       closers,
		stop:          make(chan struct{}),
	}
	s.worker = service.NewWorker(orchestrator, s.emitManifestation, cfg.Orchestrator.TickInterval(), logger)

	gauges, err := observe.RegisterOrchestratorGauges(otel.GetMeterProvider(), func() (int, int) {
		stats := orchestrator.Stats()
		return stats.ActiveNiches, stats.Queued
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("register gauges: %w", err), closeAll(closers), db.Close())
	}
	s.gauges = gauges

	if err := s.registerHandlers(); err != nil {
		return nil, errors.Join(fmt.Errorf("register handlers: %w", err), closeAll(closers), db.Close())
	}

	logger.Info("hibikidō server initialized",
		slog.String("performance_id", s.performanceID),
		slog.Int("embeddings", index.Size()),
	)
	return s, nil
}

// Run binds the OSC socket, starts the tick worker, announces readiness to
// the client, and serves until ctx is canceled, a /stop command arrives, or
// the transport fails. Resources stay open for Close.
func (s *Server) Run(ctx context.Context) error {
	if err := s.oscServer.Listen(); err != nil {
		return err
	}

	s.worker.Start(ctx)

	serveErr := make(chan error, 1)
	go func() { serveErr <- s.oscServer.Serve() }()

	s.logger.Info("hibikidō server ready",
		slog.String("listening", s.oscServer.Addr()),
		slog.String("sending", s.cfg.OSC.SendAddr()),
		slog.Int("embeddings", s.index.Size()),
		slog.String("performance_id", s.performanceID),
	)

	if err := s.oscClient.Ready(); err != nil {
		s.logger.Warn("ready signal failed", slog.Any("error", err))
		s.metrics.RecordSendFailure(ctx, "/confirm")
	}

	select {
	case <-ctx.Done():
		return nil
	case <-s.stop:
		return nil
	case err := <-serveErr:
		return err
	}
}

// Close stops the tick worker, saves the vector index, and releases the
// transport, the embedding provider, and the database. Queued un-manifested
// candidates are dropped. The database closes last.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrServerClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.worker.Stop()

	var errs []error
	if err := s.oscServer.Close(); err != nil {
		errs = append(errs, err)
	}

	if s.gauges != nil {
		if err := s.gauges.Unregister(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := s.Engine.SaveIndex(); err != nil {
		errs = append(errs, fmt.Errorf("save vector index: %w", err))
	}

	if err := closeAll(s.closers); err != nil {
		errs = append(errs, err)
	}

	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	s.logger.Info("hibikidō server closed")
	return errors.Join(errs...)
}

// Addr returns the OSC listen address, the bound one once Run is serving.
func (s *Server) Addr() string {
	return s.oscServer.Addr()
}

// PerformanceID returns the id of this process's performance session.
func (s *Server) PerformanceID() string {
	return s.performanceID
}

// Config returns the configuration the server was built from.
func (s *Server) Config() config.Config {
	return s.cfg
}

// Logger returns the server's logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// requestStop signals Run to return. Safe to call more than once.
func (s *Server) requestStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// emitManifestation sends one admitted candidate as a /manifest event.
// Sequence numbers are process-global, starting at 0.
func (s *Server) emitManifestation(candidate invocation.Candidate) {
	ctx := context.Background()
	seq := int(s.seq.Add(1) - 1)
	payload := candidate.Payload()

	if err := s.oscClient.Manifest(seq, payload); err != nil {
		s.logger.Error("manifest send failed",
			slog.Int("seq", seq),
			slog.Int64("sound_id", candidate.SoundID()),
			slog.Any("error", err),
		)
		s.metrics.RecordSendFailure(ctx, "/manifest")
		return
	}

	s.metrics.RecordManifestation(ctx, payload.Collection())
	s.logger.Debug("manifested",
		slog.Int("seq", seq),
		slog.String("collection", payload.Collection()),
		slog.String("path", payload.Path()),
		slog.Float64("score", payload.Score()),
	)
}

// buildEmbedder selects the embedding provider from config and adapts it to
// the domain contract. The returned closers release provider resources, such
// as the on-disk response cache of the remote provider.
func buildEmbedder(cfg config.EmbeddingConfig, logger *slog.Logger) (search.Embedder, []io.Closer, error) {
	switch cfg.Provider {
	case config.ProviderLocal:
		local := provider.NewHugotEmbedding(cfg.ModelDir, cfg.ModelName)
		if !local.Available() {
			return nil, nil, fmt.Errorf("no embedding model found in %s: run 'hibikido download-model' or configure the openai provider", cfg.ModelDir)
		}
		logger.Info("local embedding provider enabled",
			slog.String("model_dir", cfg.ModelDir),
			slog.String("model", cfg.ModelName),
		)
		return &embeddingAdapter{inner: local}, []io.Closer{local}, nil

	case config.ProviderOpenAI:
		providerCfg := provider.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
		}
		var closers []io.Closer
		if cfg.OpenAI.CacheDir != "" {
			transport, err := provider.NewCachingTransport(cfg.OpenAI.CacheDir, nil)
			if err != nil {
				return nil, nil, fmt.Errorf("embedding cache: %w", err)
			}
			providerCfg.HTTPClient = &http.Client{Transport: transport}
			closers = append(closers, transport)
		}
		remote := provider.NewOpenAIEmbedding(providerCfg)
		logger.Info("openai embedding provider enabled", slog.String("model", providerCfg.Model))
		return &embeddingAdapter{inner: remote}, append(closers, remote), nil

	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// closeAll closes every closer and joins the errors.
func closeAll(closers []io.Closer) error {
	var errs []error
	for _, closer := range closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// embeddingAdapter exposes an infrastructure embedding provider as the
// domain search.Embedder, splitting oversized requests into capacity-sized
// batches.
type embeddingAdapter struct {
	inner provider.Embedder
}

func (a *embeddingAdapter) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := a.inner.Capacity()
	if batch <= 0 {
		batch = len(texts)
	}

	vectors := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += batch {
		end := min(start+batch, len(texts))
		resp, err := a.inner.Embed(ctx, provider.NewEmbeddingRequest(texts[start:end]))
		if err != nil {
			return nil, err
		}
		got := resp.Embeddings()
		if len(got) != end-start {
			return nil, fmt.Errorf("embedding provider returned %d vectors for %d texts", len(got), end-start)
		}
		vectors = append(vectors, got...)
	}
	return vectors, nil
}
