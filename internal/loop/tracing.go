// Tracing instrumentation for the execution loop.
package loop

import (
	"context"
	"strconv"

	"github.com/vinayprograms/agentkit/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vinayprograms/taskforge/internal/work"
)

// startRunSpan starts a span covering one item run.
func (l *Loop) startRunSpan(ctx context.Context, item *work.Item) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "item.run")
	span.SetAttributes(
		attribute.String("item.id", item.ID),
		attribute.String("item.title", item.Title),
	)
	return ctx, span
}

// endRunSpan ends the run span with step count and outcome.
func (l *Loop) endRunSpan(span trace.Span, steps int, err error) {
	span.SetAttributes(attribute.String("item.steps", strconv.Itoa(steps)))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}

// startToolSpan starts a span for one tool invocation.
func (l *Loop) startToolSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "tool."+name)
	span.SetAttributes(attribute.String("tool.name", name))
	return ctx, span
}

// endToolSpan ends the tool span.
func (l *Loop) endToolSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
