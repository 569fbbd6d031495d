package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "taskdesk"

// StartFetchSpan starts a span for a query cache load.
func StartFetchSpan(ctx context.Context, key string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "querycache.fetch",
		trace.WithAttributes(attribute.String("query.key", key)),
	)
}

// StartMutationSpan starts a span for a mutation run.
func StartMutationSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "mutation."+name,
		trace.WithAttributes(attribute.String("mutation.name", name)),
	)
}

// StartJobSpan starts a span for a spreadsheet job submission.
func StartJobSpan(ctx context.Context, filename string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "job.process",
		trace.WithAttributes(attribute.String("job.file", filename)),
	)
}
