package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Strob0t/TaskDesk/internal/port/notifier"
)

// mockNotifier implements notifier.Notifier for testing.
type mockNotifier struct {
	name    string
	mu      sync.Mutex
	sent    []notifier.Notification
	sendErr error
}

func (m *mockNotifier) Name() string                        { return m.name }
func (m *mockNotifier) Capabilities() notifier.Capabilities { return notifier.Capabilities{} }
func (m *mockNotifier) Send(_ context.Context, n notifier.Notification) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
	return nil
}

func (m *mockNotifier) all() []notifier.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notifier.Notification(nil), m.sent...)
}

func TestNotificationService_Notify(t *testing.T) {
	m1 := &mockNotifier{name: "mock1"}
	m2 := &mockNotifier{name: "mock2"}
	svc := NewNotificationService(m1, m2)

	svc.Notify(context.Background(), notifier.Success("task.create", "Success!", "Task created successfully."))

	if len(m1.all()) != 1 {
		t.Fatalf("expected 1 notification on mock1, got %d", len(m1.all()))
	}
	if len(m2.all()) != 1 {
		t.Fatalf("expected 1 notification on mock2, got %d", len(m2.all()))
	}
	if svc.NotifierCount() != 2 {
		t.Fatalf("expected 2 notifiers, got %d", svc.NotifierCount())
	}
}

func TestNotificationService_FilterEventsAndLevels(t *testing.T) {
	m := &mockNotifier{name: "slack"}
	svc := NewNotificationService()
	svc.Add(m, []string{JobMutationName}, []string{notifier.LevelSuccess})

	svc.Notify(context.Background(), notifier.Success("task.create", "Success!", "filtered by source"))
	svc.Notify(context.Background(), notifier.Error(JobMutationName, "Something went wrong!", "filtered by level"))
	if len(m.all()) != 0 {
		t.Fatalf("expected 0 notifications (filtered), got %d", len(m.all()))
	}

	svc.Notify(context.Background(), notifier.Success(JobMutationName, "Success!", "passes"))
	if len(m.all()) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(m.all()))
	}
}

func TestNotificationService_ErrorContinues(t *testing.T) {
	failer := &mockNotifier{name: "fail", sendErr: errors.New("connection refused")}
	success := &mockNotifier{name: "ok"}
	svc := NewNotificationService(failer, success)

	svc.Notify(context.Background(), notifier.Notification{Title: "Test", Source: "task.update"})

	if len(success.all()) != 1 {
		t.Fatalf("expected delivery to continue after a failing notifier, got %d", len(success.all()))
	}
}
