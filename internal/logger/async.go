package logger

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Closer allows flushing and stopping the async handler.
type Closer interface {
	Close()
}

type nopCloser struct{}

func (nopCloser) Close() {}

// pending is one queued record together with the handler that must write it,
// so records logged through WithAttrs/WithGroup children keep their attributes.
type pending struct {
	h   slog.Handler
	rec slog.Record
}

// asyncCore is shared between an AsyncHandler and its derived handlers.
type asyncCore struct {
	mu      sync.RWMutex // guards closed against concurrent sends
	closed  bool
	ch      chan pending
	wg      sync.WaitGroup
	dropped atomic.Int64
	root    slog.Handler
}

// AsyncHandler queues records for a worker pool so that logging never
// blocks an interactive command. When the queue is full records are
// dropped and counted. After Close, records are written synchronously:
// the handler usually stays installed as slog's default past shutdown.
type AsyncHandler struct {
	inner slog.Handler
	core  *asyncCore
}

// NewAsyncHandler creates an AsyncHandler with the given queue capacity and worker count.
func NewAsyncHandler(inner slog.Handler, queueSize, workers int) *AsyncHandler {
	core := &asyncCore{ch: make(chan pending, queueSize), root: inner}
	for range max(workers, 1) {
		core.wg.Add(1)
		go core.drain()
	}
	return &AsyncHandler{inner: inner, core: core}
}

func (c *asyncCore) drain() {
	defer c.wg.Done()
	for p := range c.ch {
		_ = p.h.Handle(context.Background(), p.rec)
	}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	h.core.mu.RLock()
	defer h.core.mu.RUnlock()

	if h.core.closed {
		return h.inner.Handle(ctx, rec)
	}
	select {
	case h.core.ch <- pending{h: h.inner, rec: rec.Clone()}:
	default:
		h.core.dropped.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithAttrs(attrs), core: h.core}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{inner: h.inner.WithGroup(name), core: h.core}
}

// DroppedCount returns the number of dropped records.
func (h *AsyncHandler) DroppedCount() int64 {
	return h.core.dropped.Load()
}

// Close drains the queue and, if anything was dropped, writes one warning
// with the count. Safe to call more than once.
func (h *AsyncHandler) Close() {
	h.core.mu.Lock()
	if h.core.closed {
		h.core.mu.Unlock()
		return
	}
	h.core.closed = true
	close(h.core.ch)
	h.core.mu.Unlock()

	h.core.wg.Wait()

	if n := h.core.dropped.Load(); n > 0 {
		rec := slog.NewRecord(time.Now(), slog.LevelWarn, "log records dropped", 0)
		rec.AddAttrs(slog.Int64("dropped", n))
		_ = h.core.root.Handle(context.Background(), rec)
	}
}
