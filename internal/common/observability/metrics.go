// Package observability wires OpenTelemetry metrics and traces for design jobs.
package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/trace"
)

// Observability is safe to use through a nil pointer; every method is then a no-op.
type Observability struct {
	meterProvider  *metric.MeterProvider
	tracer         trace.Tracer
	jobCounter     otelmetric.Int64Counter
	jobDuration    otelmetric.Float64Histogram
	cacheDecisions otelmetric.Int64Counter
}

func New(serviceName, version string) *Observability {
	tracer := otel.Tracer(serviceName)

	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{tracer: tracer}
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	)
	provider := metric.NewMeterProvider(
		metric.WithReader(exporter),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"designgen.jobs.processed",
		otelmetric.WithDescription("Design jobs by terminal state"),
	)
	jobDuration, _ := meter.Float64Histogram(
		"designgen.jobs.duration",
		otelmetric.WithDescription("Time from activation to terminal state"),
		otelmetric.WithUnit("ms"),
	)
	cacheDecisions, _ := meter.Int64Counter(
		"designgen.cache.decisions",
		otelmetric.WithDescription("Activation outcomes of the artifact cache check"),
	)

	return &Observability{
		meterProvider:  provider,
		tracer:         tracer,
		jobCounter:     jobCounter,
		jobDuration:    jobDuration,
		cacheDecisions: cacheDecisions,
	}
}

// StartJobSpan opens a span covering one job run. The returned end func records the outcome.
func (o *Observability) StartJobSpan(ctx context.Context, key, templateID string) (context.Context, func(outcome string)) {
	if o == nil || o.tracer == nil {
		return ctx, func(string) {}
	}
	ctx, span := o.tracer.Start(ctx, "designgen.job",
		trace.WithAttributes(
			attribute.String("job.key", key),
			attribute.String("template.id", templateID),
		),
	)
	return ctx, func(outcome string) {
		span.SetAttributes(attribute.String("job.outcome", outcome))
		span.End()
	}
}

func (o *Observability) RecordJobProcessed(ctx context.Context, status string) {
	if o != nil && o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("status", status)))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, duration time.Duration, status string) {
	if o != nil && o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(attribute.String("status", status)))
	}
}

// RecordCacheDecision counts "hit", "miss", "refresh" and "invalidated" activations.
func (o *Observability) RecordCacheDecision(ctx context.Context, decision string) {
	if o != nil && o.cacheDecisions != nil {
		o.cacheDecisions.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("decision", decision)))
	}
}

func (o *Observability) Shutdown() {
	if o != nil && o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
