// Package notifier defines the user notification port. A notification is the
// toast-style message shown after a mutation or job settles.
package notifier

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a notifier is not properly configured.
var ErrNotConfigured = errors.New("notifier: not configured")

// Levels.
const (
	LevelSuccess = "success"
	LevelError   = "error"
	LevelInfo    = "info"
)

// Notification is the payload sent through a Notifier.
type Notification struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Level   string `json:"level"`          // "success", "error", "info"
	Source  string `json:"source"`         // e.g. "task.created", "job.completed"
	Link    string `json:"link,omitempty"` // external result, if any
}

// Success builds a success notification.
func Success(source, title, message string) Notification {
	return Notification{Title: title, Message: message, Level: LevelSuccess, Source: source}
}

// Error builds an error notification.
func Error(source, title, message string) Notification {
	return Notification{Title: title, Message: message, Level: LevelError, Source: source}
}

// Capabilities declares which features a notifier supports.
type Capabilities struct {
	RichFormatting bool `json:"rich_formatting"`
	Interactive    bool `json:"interactive"` // shown to the operator in the current session
}

// Notifier is the port interface for sending notifications.
type Notifier interface {
	// Name returns the unique identifier for this notifier (e.g. "slack", "terminal").
	Name() string

	// Capabilities returns what this notifier supports.
	Capabilities() Capabilities

	// Send delivers a notification.
	Send(ctx context.Context, notification Notification) error
}
