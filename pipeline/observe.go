package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName is the scope name for pipeline metrics and spans
const instrumentationName = "github.com/RyanBlaney/sonido-canto/pipeline"

// Metrics holds the pipeline's OpenTelemetry instruments
type Metrics struct {
	// StageDuration tracks the time spent in each stage. Use with
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// Analyses counts finished analyses. Use with
	//   attribute.String("status", "ok"|"error"|"canceled")
	Analyses metric.Int64Counter

	// Notes counts emitted notes
	Notes metric.Int64Counter

	// VoicedFrames counts voiced frames in the final contour
	VoicedFrames metric.Int64Counter

	// CollaboratorErrors counts collaborator failures. Use with
	//   attribute.String("collaborator", ...)
	CollaboratorErrors metric.Int64Counter
}

// stageBuckets are histogram bounds in seconds; stages are array passes so
// most land well under a second
var stageBuckets = []float64{
	0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120,
}

// NewMetrics creates the instruments from mp
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(instrumentationName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("sonido_canto.stage.duration",
		metric.WithDescription("Time spent in one analysis stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(stageBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Analyses, err = m.Int64Counter("sonido_canto.analyses",
		metric.WithDescription("Number of finished analyses."),
	); err != nil {
		return nil, err
	}
	if met.Notes, err = m.Int64Counter("sonido_canto.notes",
		metric.WithDescription("Number of notes emitted."),
	); err != nil {
		return nil, err
	}
	if met.VoicedFrames, err = m.Int64Counter("sonido_canto.voiced_frames",
		metric.WithDescription("Number of voiced frames in final contours."),
	); err != nil {
		return nil, err
	}
	if met.CollaboratorErrors, err = m.Int64Counter("sonido_canto.collaborator.errors",
		metric.WithDescription("Number of external collaborator failures."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// DefaultMetrics creates instruments on the global meter provider
func DefaultMetrics() *Metrics {
	met, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		panic("pipeline: failed to create default metrics: " + err.Error())
	}
	return met
}

// observer bundles a tracer with metrics for stage timing
type observer struct {
	tracer  trace.Tracer
	metrics *Metrics
}

func newObserver(tp trace.TracerProvider, met *Metrics) *observer {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if met == nil {
		met = DefaultMetrics()
	}
	return &observer{tracer: tp.Tracer(instrumentationName), metrics: met}
}

// stage starts a span for name and returns a func that ends it and records
// the stage duration
func (o *observer) stage(ctx context.Context, name string) (context.Context, func()) {
	ctx, span := o.tracer.Start(ctx, "stage."+name)
	start := time.Now()
	return ctx, func() {
		o.metrics.StageDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.String("stage", name)))
		span.End()
	}
}

func (o *observer) analysisDone(ctx context.Context, status string) {
	o.metrics.Analyses.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (o *observer) collaboratorFailed(ctx context.Context, name string, err error) {
	o.metrics.CollaboratorErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("collaborator", name)))
	trace.SpanFromContext(ctx).RecordError(err)
}
