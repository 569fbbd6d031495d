// Package middleware provides HTTP middleware shared by the TaskDesk web UI
// and the stub backend.
package middleware

import (
	"net/http"

	"github.com/Strob0t/TaskDesk/internal/logger"
)

const (
	headerRequestID = "X-Request-ID"
	maxRequestIDLen = 128
)

// RequestID carries the caller's X-Request-ID into the request context, so
// a CLI call and the backend log lines it caused share one id. Missing or
// malformed ids are replaced with a fresh one. The id is echoed back.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get(headerRequestID); validRequestID(id) {
			ctx = logger.WithRequestID(ctx, id)
		}
		ctx, id := logger.EnsureRequestID(ctx)

		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validRequestID accepts short printable ASCII ids; anything else could
// forge or break log lines.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}
