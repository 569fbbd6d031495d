// Package logger provides structured logging setup for TaskDesk.
package logger

import (
	"io"
	"log/slog"
	"strings"

	"github.com/Strob0t/TaskDesk/internal/config"
)

// Async handler sizing.
const (
	asyncBuffer  = 1024
	asyncWorkers = 1
)

// New creates a *slog.Logger from the given Logging config writing JSON to w
// with a "service" attribute on every record. The CLI passes stderr so that
// stdout stays reserved for command output. The returned Closer flushes the
// async handler and must be called before exit.
func New(cfg config.Logging, w io.Writer) (*slog.Logger, Closer) {
	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})

	var closer Closer = nopCloser{}
	if cfg.Async {
		ah := NewAsyncHandler(handler, asyncBuffer, asyncWorkers)
		handler, closer = ah, ah
	}

	return slog.New(handler).With("service", cfg.Service), closer
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
