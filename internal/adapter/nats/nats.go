// Package nats connects TaskDesk clients through NATS: core pub/sub carries
// cache invalidations between processes, JetStream backs the shared snapshot bucket.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Strob0t/TaskDesk/internal/port/invalidation"
)

// DefaultSubject is the subject invalidations are published on.
const DefaultSubject = "taskdesk.invalidate"

// invalidationMsg is the wire payload of one invalidation.
type invalidationMsg struct {
	Origin   string `json:"origin"`
	Resource string `json:"resource"`
}

// Bus implements invalidation.Broadcaster over a NATS connection.
type Bus struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	subject string
	origin  string
}

// Connect establishes a connection to NATS. Invalidations published by this
// Bus are ignored by its own subscriptions.
func Connect(url, subject string) (*Bus, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	nc, err := nats.Connect(url, nats.Name("taskdesk"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	slog.Info("nats connected", "url", url, "subject", subject)
	return &Bus{nc: nc, js: js, subject: subject, origin: uuid.NewString()}, nil
}

// JetStream exposes the JetStream context for the snapshot bucket.
func (b *Bus) JetStream() jetstream.JetStream { return b.js }

// Publish announces an invalidation of resource.
func (b *Bus) Publish(_ context.Context, resource string) error {
	data, err := json.Marshal(invalidationMsg{Origin: b.origin, Resource: resource})
	if err != nil {
		return fmt.Errorf("marshal invalidation: %w", err)
	}
	if err := b.nc.Publish(b.subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", b.subject, err)
	}
	return nil
}

// Subscribe registers h for invalidations from other processes.
func (b *Bus) Subscribe(h invalidation.Handler) (func(), error) {
	sub, err := b.nc.Subscribe(b.subject, func(msg *nats.Msg) {
		resource, ok := b.decode(msg.Data)
		if !ok {
			return
		}
		h(resource)
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe %s: %w", b.subject, err)
	}
	return func() {
		if err := sub.Unsubscribe(); err != nil {
			slog.Debug("nats unsubscribe failed", "error", err)
		}
	}, nil
}

// decode parses an invalidation and filters out our own messages.
func (b *Bus) decode(data []byte) (string, bool) {
	var m invalidationMsg
	if err := json.Unmarshal(data, &m); err != nil {
		slog.Warn("invalid invalidation message", "error", err)
		return "", false
	}
	if m.Origin == b.origin || m.Resource == "" {
		return "", false
	}
	return m.Resource, true
}

// Close drains subscriptions and closes the connection.
func (b *Bus) Close() error {
	return b.nc.Drain()
}
