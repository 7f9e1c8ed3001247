package trace

import (
	"context"
	"sync"

	"continuous/internal/loop"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Observer implements loop.Observer by recording spans.
type Observer struct {
	loop.NoopObserver
	tracer oteltrace.Tracer

	mu       sync.Mutex
	loopCtx  context.Context
	loopSpan oteltrace.Span
	iterSpan oteltrace.Span
}

var _ loop.Observer = (*Observer)(nil)

// NewObserver creates an Observer that records through p.
func NewObserver(p *Provider) *Observer {
	return &Observer{tracer: p.Tracer()}
}

// OnLoopStart opens the run span.
func (o *Observer) OnLoopStart(task string, limits loop.Limits) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.loopCtx, o.loopSpan = o.tracer.Start(context.Background(), "continuous-loop",
		oteltrace.WithAttributes(
			attribute.String("continuous.task", task),
			attribute.Int("continuous.limits.max_runs", limits.MaxRuns),
			attribute.Float64("continuous.limits.max_cost_usd", limits.MaxCost),
			attribute.String("continuous.limits.max_duration", limits.MaxDuration.String()),
			attribute.Int("continuous.limits.completion_threshold", limits.CompletionThreshold),
		),
	)
}

// OnIterationStart opens an iteration span under the run span.
func (o *Observer) OnIterationStart(ordinal int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	parent := o.loopCtx
	if parent == nil {
		parent = context.Background()
	}
	if o.iterSpan != nil {
		o.iterSpan.End()
	}
	_, o.iterSpan = o.tracer.Start(parent, "iteration",
		oteltrace.WithAttributes(attribute.Int("continuous.iteration", ordinal)),
	)
}

// OnPhase records the phase as a span event.
func (o *Observer) OnPhase(ordinal int, phase loop.Phase, detail string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.iterSpan == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("continuous.phase", phase.String())}
	if detail != "" {
		attrs = append(attrs, attribute.String("continuous.phase.detail", detail))
	}
	o.iterSpan.AddEvent(phase.String(), oteltrace.WithAttributes(attrs...))
}

// OnIterationEnd closes the iteration span with its outcome.
func (o *Observer) OnIterationEnd(res loop.IterationResult) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.iterSpan == nil {
		return
	}
	o.iterSpan.SetAttributes(
		attribute.String("continuous.branch", res.Branch),
		attribute.Int("continuous.pull_request", res.PullRequest),
		attribute.Float64("continuous.cost_usd", res.Cost),
		attribute.Bool("continuous.completion_seen", res.CompletionSeen),
		attribute.String("continuous.outcome", res.Outcome.String()),
		attribute.String("continuous.phase", res.Phase.String()),
	)
	if res.Err != nil {
		o.iterSpan.RecordError(res.Err)
		o.iterSpan.SetStatus(codes.Error, res.Err.Error())
	} else {
		o.iterSpan.SetStatus(codes.Ok, "")
	}
	o.iterSpan.End()
	o.iterSpan = nil
}

// OnLoopEnd closes the run span with the summary.
func (o *Observer) OnLoopEnd(summary *loop.Summary) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.iterSpan != nil {
		o.iterSpan.End()
		o.iterSpan = nil
	}
	if o.loopSpan == nil {
		return
	}
	o.loopSpan.SetAttributes(
		attribute.Int("continuous.attempts", summary.Attempts),
		attribute.Int("continuous.succeeded", summary.Succeeded),
		attribute.Int("continuous.failed", summary.Failed),
		attribute.Float64("continuous.total_cost_usd", summary.TotalCost),
		attribute.String("continuous.stop_reason", summary.StopReason.String()),
	)
	if summary.StopReason.ExitCode() != 0 {
		o.loopSpan.SetStatus(codes.Error, summary.StopReason.String())
	}
	o.loopSpan.End()
	o.loopSpan = nil
}
