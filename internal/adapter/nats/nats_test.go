package nats

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/Strob0t/TaskDesk/internal/port/invalidation"
)

var _ invalidation.Broadcaster = (*Bus)(nil)

func TestDecodeFiltersOwnMessages(t *testing.T) {
	b := &Bus{origin: "self"}

	if _, ok := b.decode([]byte(`{"origin":"self","resource":"tasks"}`)); ok {
		t.Fatal("expected own message to be ignored")
	}
	res, ok := b.decode([]byte(`{"origin":"other","resource":"tasks"}`))
	if !ok || res != "tasks" {
		t.Fatalf("expected tasks from other origin, got %q ok=%v", res, ok)
	}
	if _, ok := b.decode([]byte(`not json`)); ok {
		t.Fatal("expected malformed message to be ignored")
	}
	if _, ok := b.decode([]byte(`{"origin":"other"}`)); ok {
		t.Fatal("expected empty resource to be ignored")
	}
}

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T, subject string) *Bus {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	b, err := Connect(url, subject)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBus_CrossProcessInvalidation(t *testing.T) {
	subject := "taskdesk.test." + t.Name()
	a := testConnect(t, subject)
	b := testConnect(t, subject)

	got := make(chan string, 2)
	cancel, err := b.Subscribe(func(resource string) { got <- resource })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancel()

	selfGot := make(chan string, 1)
	cancelSelf, err := a.Subscribe(func(resource string) { selfGot <- resource })
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer cancelSelf()

	if err := a.Publish(context.Background(), "tasks"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case res := <-got:
		if res != "tasks" {
			t.Fatalf("expected tasks, got %q", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for invalidation")
	}

	select {
	case res := <-selfGot:
		t.Fatalf("publisher should not receive its own invalidation, got %q", res)
	case <-time.After(200 * time.Millisecond):
	}
}
