package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventToast      = "toast"
	EventInvalidate = "invalidate"
)

// ToastEvent asks the browser to show a notification.
type ToastEvent struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Level   string `json:"level"`
	Link    string `json:"link,omitempty"`
}

// InvalidateEvent tells views of a resource to re-render.
type InvalidateEvent struct {
	Resource string `json:"resource"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
