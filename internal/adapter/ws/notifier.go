package ws

import (
	"context"

	"github.com/Strob0t/TaskDesk/internal/port/notifier"
)

// Notifier shows notifications as browser toasts.
type Notifier struct {
	hub *Hub
}

// NewNotifier creates a notifier broadcasting through hub.
func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

func (n *Notifier) Name() string { return "browser" }

func (n *Notifier) Capabilities() notifier.Capabilities {
	return notifier.Capabilities{Interactive: true}
}

func (n *Notifier) Send(ctx context.Context, nt notifier.Notification) error {
	n.hub.BroadcastEvent(ctx, EventToast, ToastEvent{
		Title:   nt.Title,
		Message: nt.Message,
		Level:   nt.Level,
		Link:    nt.Link,
	})
	return nil
}
