// Package observe provides the server's observability primitives: an
// OpenTelemetry metric provider bridged to Prometheus and the instrument set
// covering invocation search, ingest, the orchestrator, and the ops API.
//
// Metrics are recorded through the OpenTelemetry Metrics API. [InitProvider]
// installs a Prometheus exporter so everything is scrapeable through the
// standard /metrics endpoint. A package-level default [Metrics] instance
// ([DefaultMetrics]) is provided for convenience; tests should use
// [NewMetrics] with a custom [metric.MeterProvider] to avoid cross-test
// pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all hibikidō metrics.
const meterName = "github.com/hibikido/hibikido"

// Command outcome values for the status attribute.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the OpenTelemetry metric instruments for the server. All
// fields are safe for concurrent use; the underlying OTel types handle their
// own synchronisation.
type Metrics struct {
	// InvokeDuration tracks end-to-end /invoke handling latency: search,
	// enqueue, and the invocation-log append.
	InvokeDuration metric.Float64Histogram

	// SearchDuration tracks retrieval engine search latency (query
	// enhancement, embedding, index scan, document resolution).
	SearchDuration metric.Float64Histogram

	// IngestDuration tracks document ingest latency. Use with attribute:
	//   attribute.String("collection", ...)
	IngestDuration metric.Float64Histogram

	// RebuildDuration tracks full index rebuild latency.
	RebuildDuration metric.Float64Histogram

	// Commands counts handled OSC commands. Use with attributes:
	//   attribute.String("address", ...), attribute.String("status", ...)
	Commands metric.Int64Counter

	// Manifestations counts emitted /manifest events. Use with attribute:
	//   attribute.String("collection", ...)
	Manifestations metric.Int64Counter

	// DocumentsIngested counts successfully ingested documents. Use with
	// attribute: attribute.String("collection", ...)
	DocumentsIngested metric.Int64Counter

	// ToolCalls counts MCP tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// SendFailures counts outgoing OSC messages that could not be sent.
	// Use with attribute: attribute.String("address", ...)
	SendFailures metric.Int64Counter

	// HTTPRequestDuration tracks ops API request time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// embedding and search latencies.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// rebuildBuckets covers full re-embeds, which run for seconds to minutes.
var rebuildBuckets = []float64{
	0.1, 0.5, 1, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.InvokeDuration, err = m.Float64Histogram("hibikido.invoke.duration",
		metric.WithDescription("End-to-end latency of one /invoke command."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SearchDuration, err = m.Float64Histogram("hibikido.search.duration",
		metric.WithDescription("Latency of one semantic search."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.IngestDuration, err = m.Float64Histogram("hibikido.ingest.duration",
		metric.WithDescription("Latency of one document ingest by collection."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RebuildDuration, err = m.Float64Histogram("hibikido.rebuild.duration",
		metric.WithDescription("Latency of one full index rebuild."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(rebuildBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Commands, err = m.Int64Counter("hibikido.osc.commands",
		metric.WithDescription("Total handled OSC commands by address and status."),
	); err != nil {
		return nil, err
	}
	if met.Manifestations, err = m.Int64Counter("hibikido.manifestations",
		metric.WithDescription("Total emitted /manifest events by collection."),
	); err != nil {
		return nil, err
	}
	if met.DocumentsIngested, err = m.Int64Counter("hibikido.documents.ingested",
		metric.WithDescription("Total successfully ingested documents by collection."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("hibikido.tool.calls",
		metric.WithDescription("Total MCP tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.SendFailures, err = m.Int64Counter("hibikido.osc.send_failures",
		metric.WithDescription("Total outgoing OSC messages that failed to send, by address."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("hibikido.http.request.duration",
		metric.WithDescription("Ops API request latency by method and route."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// RegisterOrchestratorGauges exposes the orchestrator's niche and queue
// occupancy as observable gauges. The stats callback runs at collection time,
// so scrapes always see the current state rather than the last tick's.
// Unregister the returned registration on shutdown.
func RegisterOrchestratorGauges(mp metric.MeterProvider, stats func() (activeNiches, queued int)) (metric.Registration, error) {
	m := mp.Meter(meterName)

	niches, err := m.Int64ObservableGauge("hibikido.niches.active",
		metric.WithDescription("Number of currently occupied spectral niches."),
	)
	if err != nil {
		return nil, err
	}
	queue, err := m.Int64ObservableGauge("hibikido.queue.depth",
		metric.WithDescription("Number of queued candidate manifestations."),
	)
	if err != nil {
		return nil, err
	}

	return m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		active, queued := stats()
		o.ObserveInt64(niches, int64(active))
		o.ObserveInt64(queue, int64(queued))
		return nil
	}, niches, queue)
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call from [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordCommand records one handled OSC command.
func (m *Metrics) RecordCommand(ctx context.Context, address, status string) {
	m.Commands.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("address", address),
			attribute.String("status", status),
		),
	)
}

// RecordManifestation records one emitted /manifest event.
func (m *Metrics) RecordManifestation(ctx context.Context, collection string) {
	m.Manifestations.Add(ctx, 1,
		metric.WithAttributes(attribute.String("collection", collection)),
	)
}

// RecordIngest records one successfully ingested document and its latency.
func (m *Metrics) RecordIngest(ctx context.Context, collection string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("collection", collection))
	m.DocumentsIngested.Add(ctx, 1, attrs)
	m.IngestDuration.Record(ctx, seconds, attrs)
}

// RecordToolCall records one MCP tool invocation.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordSendFailure records one outgoing OSC message that failed to send.
func (m *Metrics) RecordSendFailure(ctx context.Context, address string) {
	m.SendFailures.Add(ctx, 1,
		metric.WithAttributes(attribute.String("address", address)),
	)
}

// RecordHTTPRequest records one completed ops API request and its latency.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, seconds float64) {
	m.HTTPRequestDuration.Record(ctx, seconds,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("route", route),
		),
	)
}
