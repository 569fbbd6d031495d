package otel

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HTTPMiddleware traces UI requests. Spans are named after the matched
// route pattern once the router has set it, so /tasks/{id}/edit is one
// series rather than one per task. Paths in skip (websocket upgrades) are
// not traced.
func HTTPMiddleware(serviceName string, skip ...string) func(http.Handler) http.Handler {
	filter := otelhttp.WithFilter(func(r *http.Request) bool {
		for _, p := range skip {
			if r.URL.Path == p {
				return false
			}
		}
		return true
	})

	return func(next http.Handler) http.Handler {
		routed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if r.Pattern != "" {
				trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("http.route", r.Pattern))
			}
		})
		return otelhttp.NewHandler(routed, serviceName, filter, otelhttp.WithSpanNameFormatter(spanName))
	}
}

// spanName is asked once when the span starts and again after routing.
func spanName(_ string, r *http.Request) string {
	if r.Pattern != "" {
		return r.Method + " " + r.Pattern
	}
	return r.Method + " " + r.URL.Path
}
