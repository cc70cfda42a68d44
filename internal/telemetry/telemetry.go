// Package telemetry provides the OpenTelemetry instruments the frame
// scheduler records into.
//
// Instruments come from the globally registered providers unless others
// are passed in, so without an SDK configured everything is a no-op.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ScopeName is the instrumentation scope of every instrument.
const ScopeName = "github.com/vk/framegrid/internal/scheduler"

// Instruments groups the scheduler's meters and tracer.
type Instruments struct {
	tracer trace.Tracer

	frames       metric.Int64Counter
	nodeDuration metric.Float64Histogram
	releases     metric.Int64Counter
	failures     metric.Int64Counter
	running      metric.Int64UpDownCounter
}

// New creates the instruments. Nil providers fall back to the global ones.
func New(mp metric.MeterProvider, tp trace.TracerProvider) (*Instruments, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	meter := mp.Meter(ScopeName)
	ins := &Instruments{tracer: tp.Tracer(ScopeName)}

	var err error
	if ins.frames, err = meter.Int64Counter("framegrid.frames",
		metric.WithDescription("Frames completed per chain."),
		metric.WithUnit("{frame}")); err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}
	if ins.nodeDuration, err = meter.Float64Histogram("framegrid.node.duration",
		metric.WithDescription("Per-frame processing time of a node."),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("creating node duration histogram: %w", err)
	}
	if ins.releases, err = meter.Int64Counter("framegrid.branch.releases",
		metric.WithDescription("Frames handed to a branch."),
		metric.WithUnit("{frame}")); err != nil {
		return nil, fmt.Errorf("creating releases counter: %w", err)
	}
	if ins.failures, err = meter.Int64Counter("framegrid.failures",
		metric.WithDescription("Fatal node failures.")); err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}
	if ins.running, err = meter.Int64UpDownCounter("framegrid.runs.active",
		metric.WithDescription("Pipelines currently running.")); err != nil {
		return nil, fmt.Errorf("creating running counter: %w", err)
	}
	return ins, nil
}

// StartRun opens the span covering one scheduler run.
func (i *Instruments) StartRun(ctx context.Context, runID, root string) (context.Context, trace.Span) {
	i.running.Add(ctx, 1)
	return i.tracer.Start(ctx, "pipeline.run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("root", root),
	))
}

// EndRun closes the run span, recording err when the run failed.
func (i *Instruments) EndRun(ctx context.Context, span trace.Span, err error) {
	i.running.Add(ctx, -1)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Frame records one completed frame of chain.
func (i *Instruments) Frame(ctx context.Context, chain string) {
	i.frames.Add(ctx, 1, metric.WithAttributes(attribute.String("chain", chain)))
}

// NodeDuration records one Process call.
func (i *Instruments) NodeDuration(ctx context.Context, node string, d time.Duration) {
	i.nodeDuration.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(attribute.String("node", node)))
}

// Release records a frame handed over the edge src->dst.
func (i *Instruments) Release(ctx context.Context, src, dst string) {
	i.releases.Add(ctx, 1, metric.WithAttributes(attribute.String("edge", src+"->"+dst)))
}

// Failure records a fatal failure of node.
func (i *Instruments) Failure(ctx context.Context, node string) {
	i.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("node", node)))
}
