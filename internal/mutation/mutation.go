// Package mutation runs server-changing operations with a uniform lifecycle:
// one submission at a time, user notification, and cache re-sync on every
// settlement.
package mutation

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	tdotel "github.com/Strob0t/TaskDesk/internal/adapter/otel"
	"github.com/Strob0t/TaskDesk/internal/domain"
	"github.com/Strob0t/TaskDesk/internal/port/invalidation"
	"github.com/Strob0t/TaskDesk/internal/port/notifier"
)

// State is the lifecycle position of a Mutation.
type State int

const (
	StateIdle State = iota
	StatePending
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Default notification titles.
const (
	SuccessTitle = "Success!"
	ErrorTitle   = "Something went wrong!"
)

// Invalidator marks cached queries of a resource stale.
type Invalidator interface {
	Invalidate(ctx context.Context, resource string)
}

// Notifier delivers user-visible notifications.
type Notifier interface {
	Notify(ctx context.Context, n notifier.Notification)
}

// Config describes one mutation.
type Config[V, R any] struct {
	// Name identifies the mutation in spans, metrics and notification sources.
	Name string
	// Do performs the network call.
	Do func(ctx context.Context, v V) (R, error)
	// Invalidates lists the resources re-synced after every settlement.
	Invalidates []string
	// SuccessMessage is the description of the success notification.
	// Empty disables it.
	SuccessMessage func(R) string
	// SuccessLink attaches an external link to the success notification.
	SuccessLink func(R) string
	// OnSuccess runs after a successful settlement, e.g. to reset a form.
	OnSuccess func(R)
	// OnError runs after a failed settlement, e.g. to merge field errors.
	OnError func(error)
}

// Option wires optional collaborators.
type Option func(*deps)

type deps struct {
	invalidators []Invalidator
	broadcaster  invalidation.Broadcaster
	notifier     Notifier
	metrics      *tdotel.Metrics
}

// WithInvalidator adds a local cache to invalidate on settlement.
func WithInvalidator(inv Invalidator) Option {
	return func(d *deps) { d.invalidators = append(d.invalidators, inv) }
}

// WithBroadcaster publishes invalidations to other processes.
func WithBroadcaster(b invalidation.Broadcaster) Option {
	return func(d *deps) { d.broadcaster = b }
}

// WithNotifier delivers success and error notifications.
func WithNotifier(n Notifier) Option {
	return func(d *deps) { d.notifier = n }
}

// WithMetrics counts settlements.
func WithMetrics(m *tdotel.Metrics) Option {
	return func(d *deps) { d.metrics = m }
}

// Mutation wraps one operation. It is safe for concurrent use; a Run while
// another is pending is rejected with domain.ErrBusy.
type Mutation[V, R any] struct {
	cfg  Config[V, R]
	deps deps

	mu      sync.Mutex
	state   State
	lastErr error
}

// New creates a mutation in StateIdle.
func New[V, R any](cfg Config[V, R], opts ...Option) *Mutation[V, R] {
	m := &Mutation[V, R]{cfg: cfg}
	for _, o := range opts {
		o(&m.deps)
	}
	return m
}

// State returns the current lifecycle state.
func (m *Mutation[V, R]) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsPending reports whether a Run is in flight.
func (m *Mutation[V, R]) IsPending() bool {
	return m.State() == StatePending
}

// Err returns the error of the last failed Run.
func (m *Mutation[V, R]) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Reset returns a settled mutation to StateIdle.
func (m *Mutation[V, R]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePending {
		m.state = StateIdle
		m.lastErr = nil
	}
}

// Run performs the operation once. Whatever the outcome, the configured
// resources are invalidated exactly once before Run returns.
func (m *Mutation[V, R]) Run(ctx context.Context, v V) (R, error) {
	var zero R

	m.mu.Lock()
	if m.state == StatePending {
		m.mu.Unlock()
		return zero, domain.ErrBusy
	}
	m.state = StatePending
	m.lastErr = nil
	m.mu.Unlock()

	ctx, span := tdotel.StartMutationSpan(ctx, m.cfg.Name)
	defer span.End()

	r, err := m.cfg.Do(ctx, v)

	m.invalidate(context.WithoutCancel(ctx))

	m.mu.Lock()
	if err != nil {
		m.state = StateFailed
		m.lastErr = err
	} else {
		m.state = StateSucceeded
	}
	m.mu.Unlock()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.count(ctx, false)
		slog.Warn("mutation failed", "mutation", m.cfg.Name, "error", err)
		m.notify(ctx, notifier.Error(m.cfg.Name, ErrorTitle, domain.UserMessage(err)))
		if m.cfg.OnError != nil {
			m.cfg.OnError(err)
		}
		return zero, err
	}

	m.count(ctx, true)
	slog.Info("mutation succeeded", "mutation", m.cfg.Name)
	if m.cfg.SuccessMessage != nil {
		if msg := m.cfg.SuccessMessage(r); msg != "" {
			n := notifier.Success(m.cfg.Name, SuccessTitle, msg)
			if m.cfg.SuccessLink != nil {
				n.Link = m.cfg.SuccessLink(r)
			}
			m.notify(ctx, n)
		}
	}
	if m.cfg.OnSuccess != nil {
		m.cfg.OnSuccess(r)
	}
	return r, nil
}

func (m *Mutation[V, R]) invalidate(ctx context.Context) {
	for _, resource := range m.cfg.Invalidates {
		for _, inv := range m.deps.invalidators {
			inv.Invalidate(ctx, resource)
		}
		if m.deps.broadcaster != nil {
			if err := m.deps.broadcaster.Publish(ctx, resource); err != nil {
				slog.Warn("invalidation broadcast failed", "resource", resource, "error", err)
			}
		}
	}
}

func (m *Mutation[V, R]) notify(ctx context.Context, n notifier.Notification) {
	if m.deps.notifier != nil {
		m.deps.notifier.Notify(ctx, n)
	}
}

func (m *Mutation[V, R]) count(ctx context.Context, ok bool) {
	if m.deps.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("mutation.name", m.cfg.Name))
	if ok {
		m.deps.metrics.MutationsSucceeded.Add(ctx, 1, attrs)
		return
	}
	m.deps.metrics.MutationsFailed.Add(ctx, 1, attrs)
}
