// Tracing instrumentation for the agent traversal.
package agent

import (
	"context"
	"strconv"

	"github.com/vinayprograms/agentkit/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vinayprograms/taskforge/internal/work"
)

// startItemSpan starts a span covering one item traversal.
func (a *Agent) startItemSpan(ctx context.Context, item *work.Item, depth int) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "item.work")
	span.SetAttributes(
		attribute.String("item.id", item.ID),
		attribute.String("item.title", item.Title),
		attribute.String("item.depth", strconv.Itoa(depth)),
	)
	return ctx, span
}

// endItemSpan ends the traversal span with the chosen path and outcome.
func (a *Agent) endItemSpan(span trace.Span, path string, err error) {
	span.SetAttributes(attribute.String("item.path", path))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
