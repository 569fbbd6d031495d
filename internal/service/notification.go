// Package service contains the application services behind the CLI and the
// browser UI.
package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Strob0t/TaskDesk/internal/port/notifier"
)

// route sends notifications to one notifier, optionally filtered.
type route struct {
	notifier notifier.Notifier
	events   map[string]bool // Source filter; empty means all
	levels   map[string]bool // Level filter; empty means all
}

func (r route) accepts(n notifier.Notification) bool {
	if len(r.events) > 0 && !r.events[n.Source] {
		return false
	}
	if len(r.levels) > 0 && !r.levels[n.Level] {
		return false
	}
	return true
}

// NotificationService dispatches notifications to all registered notifiers.
type NotificationService struct {
	mu     sync.RWMutex
	routes []route
}

// NewNotificationService creates a NotificationService delivering every
// notification to each of notifiers.
func NewNotificationService(notifiers ...notifier.Notifier) *NotificationService {
	s := &NotificationService{}
	for _, n := range notifiers {
		s.Add(n, nil, nil)
	}
	return s
}

// Add registers n for notifications whose Source is in events and whose
// Level is in levels. Nil or empty filters accept everything.
func (s *NotificationService) Add(n notifier.Notifier, events, levels []string) {
	r := route{notifier: n, events: toSet(events), levels: toSet(levels)}
	s.mu.Lock()
	s.routes = append(s.routes, r)
	s.mu.Unlock()
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// Notify sends a notification to all matching notifiers.
// Errors are logged but do not interrupt delivery to other notifiers.
func (s *NotificationService) Notify(ctx context.Context, n notifier.Notification) {
	s.mu.RLock()
	routes := append([]route(nil), s.routes...)
	s.mu.RUnlock()

	for _, r := range routes {
		if !r.accepts(n) {
			continue
		}
		if err := r.notifier.Send(ctx, n); err != nil {
			slog.Warn("notification send failed",
				"provider", r.notifier.Name(),
				"title", n.Title,
				"error", err,
			)
			continue
		}
		slog.Debug("notification sent", "provider", r.notifier.Name(), "title", n.Title)
	}
}

// NotifierCount returns the number of registered notifiers.
func (s *NotificationService) NotifierCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.routes)
}
