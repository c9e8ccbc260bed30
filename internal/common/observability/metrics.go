package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"
)

// Observability bundles the otel meter and tracer used by the exam workers.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerShutdown func(context.Context) error
	tracer         trace.Tracer
	jobCounter     otelmetric.Int64Counter
	jobDuration    otelmetric.Float64Histogram
}

// Config selects the service name and the optional jaeger collector.
type Config struct {
	ServiceName    string
	JaegerEndpoint string
	SampleRatio    float64
}

// New wires the prometheus-backed meter and, when a jaeger endpoint is configured, a batching
// tracer provider. Without an endpoint spans go to the global no-op tracer.
func New(cfg Config) (*Observability, error) {
	o := &Observability{}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}
	o.meterProvider = metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(o.meterProvider)

	meter := o.meterProvider.Meter(cfg.ServiceName)
	o.jobCounter, _ = meter.Int64Counter(
		"exam.jobs.processed",
		otelmetric.WithDescription("Number of exam jobs that reached a terminal state"),
	)
	o.jobDuration, _ = meter.Float64Histogram(
		"exam.jobs.duration",
		otelmetric.WithDescription("Exam job processing duration"),
		otelmetric.WithUnit("ms"),
	)

	if cfg.JaegerEndpoint != "" {
		tp, err := newTracerProvider(cfg)
		if err != nil {
			_ = o.meterProvider.Shutdown(context.Background())
			return nil, err
		}
		otel.SetTracerProvider(tp)
		o.tracerShutdown = tp.Shutdown
	}
	o.tracer = otel.Tracer(cfg.ServiceName)

	return o, nil
}

// NewNoop returns an Observability whose instruments discard everything.
func NewNoop() *Observability {
	return &Observability{tracer: otel.Tracer("noop")}
}

// Tracer returns the tracer spans should be started from.
func (o *Observability) Tracer() trace.Tracer {
	if o == nil || o.tracer == nil {
		return otel.Tracer("exam-workers")
	}
	return o.tracer
}

func (o *Observability) RecordJobProcessed(ctx context.Context, status string) {
	if o != nil && o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, duration time.Duration, status string) {
	if o != nil && o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.tracerShutdown != nil {
		_ = o.tracerShutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
