// Package ws pushes UI updates to connected browsers over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	// writeTimeout bounds a single write to a slow browser.
	writeTimeout = 5 * time.Second
	// defaultReplay covers the gap between a form POST, which fires its
	// toast, and the redirected page opening its own socket.
	defaultReplay = 5 * time.Second
	maxBacklog    = 16
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type conn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
}

type sent struct {
	at   time.Time
	data []byte
}

// Hub fans messages out to every open browser tab. Toasts broadcast within
// the replay window are also delivered to tabs that connect afterwards.
type Hub struct {
	mu      sync.RWMutex
	conns   map[*conn]struct{}
	backlog []sent
	replay  time.Duration
	now     func() time.Time
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithReplay sets how long toasts stay available to late connections.
// Zero disables replay.
func WithReplay(d time.Duration) HubOption {
	return func(h *Hub) { h.replay = d }
}

// NewHub creates a new WebSocket hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		conns:  make(map[*conn]struct{}),
		replay: defaultReplay,
		now:    time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// HandleWS upgrades the request, replays recent toasts and keeps the
// connection registered until the browser goes away.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{ws: ws, cancel: cancel}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	pending := h.recentLocked()
	h.mu.Unlock()

	slog.Debug("websocket connected", "remote", r.RemoteAddr, "replayed", len(pending))

	defer func() {
		h.remove(c)
		_ = ws.Close(websocket.StatusNormalClosure, "")
	}()

	for _, data := range pending {
		if !h.write(ctx, c, data) {
			return
		}
	}

	// The read loop only detects disconnects; browsers never send data.
	for {
		if _, _, err := ws.Read(ctx); err != nil {
			return
		}
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	h.mu.Lock()
	if msg.Type == EventToast && h.replay > 0 {
		h.backlog = append(h.recentEntriesLocked(), sent{at: h.now(), data: data})
		if len(h.backlog) > maxBacklog {
			h.backlog = h.backlog[len(h.backlog)-maxBacklog:]
		}
	}
	targets := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		h.write(ctx, c, data)
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) write(ctx context.Context, c *conn, data []byte) bool {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := c.ws.Write(wctx, websocket.MessageText, data); err != nil {
		slog.Debug("websocket write failed", "error", err)
		h.remove(c)
		return false
	}
	return true
}

// recentEntriesLocked drops backlog entries older than the replay window.
func (h *Hub) recentEntriesLocked() []sent {
	cutoff := h.now().Add(-h.replay)
	i := 0
	for i < len(h.backlog) && h.backlog[i].at.Before(cutoff) {
		i++
	}
	return h.backlog[i:]
}

func (h *Hub) recentLocked() [][]byte {
	if h.replay <= 0 {
		return nil
	}
	entries := h.recentEntriesLocked()
	out := make([][]byte, len(entries))
	for i, e := range entries {
		out[i] = e.data
	}
	return out
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		slog.Debug("websocket disconnected")
	}
}
