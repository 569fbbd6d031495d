// Package resilience provides reliability patterns for backend calls.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open and rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the breaker's position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker guards the backend client. After maxFailures consecutive
// failures it rejects calls for timeout, then lets exactly one trial call
// through; the trial's outcome closes or reopens the circuit. Calls that
// arrive while the trial is in flight are rejected, so a page load, its
// prefetch and a form submit do not all hit a recovering backend at once.
//
// Errors for which the trip predicate returns false (a rejected form
// payload, an unknown id) pass through without counting: the backend
// answered, so it is healthy.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	maxFailures int
	timeout     time.Duration
	openedAt    time.Time
	probing     bool
	trips       func(error) bool
	onChange    func(from, to State)
	now         func() time.Time // for testing
}

// NewBreaker creates a circuit breaker that opens after maxFailures consecutive
// failures and stays open for the given timeout before admitting a trial call.
func NewBreaker(maxFailures int, timeout time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		timeout:     timeout,
		trips:       func(error) bool { return true },
		now:         time.Now,
	}
}

// TripOn sets the predicate deciding which errors count as failures.
func (b *Breaker) TripOn(pred func(error) bool) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trips = pred
	return b
}

// OnStateChange registers fn to be called, outside the lock, on every
// transition.
func (b *Breaker) OnStateChange(fn func(from, to State)) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
	return b
}

// Execute runs fn unless the circuit is open or a trial call is already running.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn()

	b.mu.Lock()
	from := b.state
	b.probing = false
	if err != nil && b.trips(err) {
		b.onFailure()
	} else {
		b.onSuccess()
	}
	to, notify := b.state, b.onChange
	b.mu.Unlock()

	if notify != nil && from != to {
		notify(from, to)
	}
	return err
}

// Open reports whether calls are currently being rejected.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == StateOpen && b.now().Sub(b.openedAt) < b.timeout
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	from := b.state
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.timeout {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probing = true
	case StateHalfOpen:
		if b.probing {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.probing = true
	}
	to, notify := b.state, b.onChange
	b.mu.Unlock()

	if notify != nil && from != to {
		notify(from, to)
	}
	return nil
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure() {
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess() {
	b.failures = 0
	b.state = StateClosed
}
