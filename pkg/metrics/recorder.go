package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/clustercore/lrmbridge/pkg/op"
)

// Recorder holds the bridge's fixed set of metric instruments,
// registered once at construction against the supplied meter provider
// (production wiring passes the global provider; tests pass one backed
// by an sdk/metric manual reader).
type Recorder struct {
	completions     metric.Int64Counter
	pendingOps      metric.Int64UpDownCounter
	dispatchLatency metric.Float64Histogram
}

// NewRecorder creates every instrument the bridge emits to. meterName
// identifies the instrumentation scope (the teacher's convention of one
// meter per subsystem, e.g. "gomind-telemetry").
func NewRecorder(provider metric.MeterProvider, meterName string) (*Recorder, error) {
	meter := provider.Meter(meterName)

	completions, err := meter.Int64Counter("lrmbridge.completions",
		metric.WithDescription("completed operations, by normalised status"))
	if err != nil {
		return nil, err
	}

	pendingOps, err := meter.Int64UpDownCounter("lrmbridge.pending_ops",
		metric.WithDescription("in-flight operations currently registered in the pending-op registry"))
	if err != nil {
		return nil, err
	}

	dispatchLatency, err := meter.Float64Histogram("lrmbridge.dispatch_latency",
		metric.WithDescription("time from submission to completion event"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Recorder{
		completions:     completions,
		pendingOps:      pendingOps,
		dispatchLatency: dispatchLatency,
	}, nil
}

// RecordDispatch increments the pending-op gauge for resource rscID.
// Call once per successful submission (§4.6 step 6).
func (r *Recorder) RecordDispatch(ctx context.Context, rscID string) {
	if r == nil {
		return
	}
	r.pendingOps.Add(ctx, 1, metric.WithAttributes(attribute.String("resource", rscID)))
}

// RecordCompletion decrements the pending-op gauge, records the
// dispatch-to-completion latency, and increments the completion
// counter under o's normalised status (§4.7).
func (r *Recorder) RecordCompletion(ctx context.Context, desc op.ResourceDescriptor, o op.Operation, latency time.Duration) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("resource", desc.ID),
		attribute.String("verb", string(o.Verb)),
		attribute.String("status", string(o.Result.Status)),
	)
	r.pendingOps.Add(ctx, -1, metric.WithAttributes(attribute.String("resource", desc.ID)))
	r.completions.Add(ctx, 1, attrs)
	r.dispatchLatency.Record(ctx, latency.Seconds(), attrs)
}
