package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ingenimax/agent-harness-go/pkg/poll"
)

// TraceFetch wraps fetch so that every status fetch is recorded as a span
func TraceFetch(tracer trace.Tracer, fetch poll.FetchFunc) poll.FetchFunc {
	if tracer == nil {
		return fetch
	}
	return func(ctx context.Context, h poll.Handle) (poll.Status, error) {
		ctx, span := tracer.Start(ctx, "poll.fetch", trace.WithAttributes(
			attribute.String("poll.container", h.Container),
			attribute.String("poll.id", h.ID),
		))
		defer span.End()

		status, err := fetch(ctx, h)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return status, err
		}

		span.SetAttributes(
			attribute.String("poll.status", status.Value),
			attribute.String("poll.class", status.Class.String()),
		)
		if status.Detail != "" {
			span.SetAttributes(attribute.String("poll.detail", status.Detail))
		}
		return status, nil
	}
}
