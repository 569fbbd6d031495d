package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/TaskDesk/internal/port/notifier"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestHubBroadcastNoConnections(t *testing.T) {
	hub := NewHub()

	// Broadcast with no connections should not panic.
	hub.Broadcast(context.Background(), Message{
		Type:    "test",
		Payload: []byte(`{"key":"value"}`),
	})
}

func TestHubBroadcastEventMarshalError(t *testing.T) {
	hub := NewHub()

	// A channel cannot be marshaled to JSON; should log, not panic.
	hub.BroadcastEvent(context.Background(), "bad", make(chan int))
}

func TestHubRemoveNonexistent(t *testing.T) {
	hub := NewHub()
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.remove(&conn{cancel: cancel})
}

func dial(t *testing.T, hub *Hub) (*websocket.Conn, context.Context) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.CloseNow() })
	return c, ctx
}

func readToast(t *testing.T, ctx context.Context, c *websocket.Conn) ToastEvent {
	t.Helper()
	_, data, err := c.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != EventToast {
		t.Fatalf("expected toast, got %q", msg.Type)
	}
	var toast ToastEvent
	if err := json.Unmarshal(msg.Payload, &toast); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return toast
}

func TestNotifierDeliversToast(t *testing.T) {
	hub := NewHub(WithReplay(0))
	c, ctx := dial(t, hub)

	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectionCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ConnectionCount() != 1 {
		t.Fatal("expected the connection to be registered")
	}

	err := NewNotifier(hub).Send(ctx, notifier.Success("task.create", "Success!", "Task created successfully."))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	toast := readToast(t, ctx, c)
	if toast.Message != "Task created successfully." || toast.Level != notifier.LevelSuccess {
		t.Fatalf("unexpected toast %+v", toast)
	}
}

func TestHubReplaysRecentToastsToLateConnections(t *testing.T) {
	hub := NewHub()
	ctx := context.Background()

	// Sent while the browser is between the POST and the redirected page.
	hub.BroadcastEvent(ctx, EventInvalidate, InvalidateEvent{Resource: "tasks"})
	_ = NewNotifier(hub).Send(ctx, notifier.Success("task.create", "Success!", "Task created successfully."))

	c, rctx := dial(t, hub)
	if toast := readToast(t, rctx, c); toast.Message != "Task created successfully." {
		t.Fatalf("unexpected replayed toast %+v", toast)
	}
}

func TestHubDropsToastsOutsideReplayWindow(t *testing.T) {
	now := time.Now()
	hub := NewHub(WithReplay(time.Second))
	hub.now = func() time.Time { return now }

	_ = NewNotifier(hub).Send(context.Background(), notifier.Success("", "Old", "stale"))
	now = now.Add(2 * time.Second)
	_ = NewNotifier(hub).Send(context.Background(), notifier.Success("", "New", "fresh"))

	hub.mu.Lock()
	got := hub.recentLocked()
	hub.mu.Unlock()
	if len(got) != 1 || !strings.Contains(string(got[0]), "fresh") {
		t.Fatalf("expected only the fresh toast, got %d entries", len(got))
	}
}
