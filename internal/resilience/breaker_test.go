package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var (
	errUnavailable = errors.New("service unavailable")
	errRejected    = errors.New("title is required")
)

func TestClosedStateAllowsCalls(t *testing.T) {
	b := NewBreaker(3, time.Second)
	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !called {
		t.Fatal("expected fn to be called")
	}
}

func TestOpensAfterMaxFailures(t *testing.T) {
	b := NewBreaker(3, time.Second)

	for range 3 {
		_ = b.Execute(func() error { return errUnavailable })
	}

	if !b.Open() {
		t.Fatal("expected breaker to report open")
	}
	err := b.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestTransitionsToHalfOpenAfterTimeout(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.now = func() time.Time { return now }

	for range 2 {
		_ = b.Execute(func() error { return errUnavailable })
	}

	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}

	now = now.Add(2 * time.Second)
	if b.Open() {
		t.Fatal("breaker should not report open after timeout")
	}

	called := false
	err := b.Execute(func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error in half-open, got %v", err)
	}
	if !called {
		t.Fatal("expected fn to be called in half-open")
	}

	b.mu.Lock()
	if b.state != StateClosed {
		t.Fatalf("expected state closed after half-open success, got %d", b.state)
	}
	b.mu.Unlock()
}

func TestHalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := NewBreaker(2, time.Second)
	b.now = func() time.Time { return now }

	for range 2 {
		_ = b.Execute(func() error { return errUnavailable })
	}
	now = now.Add(2 * time.Second)

	_ = b.Execute(func() error { return errUnavailable })

	b.mu.Lock()
	if b.state != StateOpen {
		t.Fatalf("expected state open after half-open failure, got %d", b.state)
	}
	b.mu.Unlock()

	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen after reopen, got %v", err)
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, time.Second)

	_ = b.Execute(func() error { return errUnavailable })
	_ = b.Execute(func() error { return errUnavailable })
	_ = b.Execute(func() error { return nil })
	_ = b.Execute(func() error { return errUnavailable })
	_ = b.Execute(func() error { return errUnavailable })

	called := false
	if err := b.Execute(func() error {
		called = true
		return nil
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !called {
		t.Fatal("expected fn to be called")
	}
}

func TestTripOnIgnoresNonTrippingErrors(t *testing.T) {
	b := NewBreaker(2, time.Second).TripOn(func(err error) bool {
		return !errors.Is(err, errRejected)
	})

	for range 5 {
		err := b.Execute(func() error { return errRejected })
		if !errors.Is(err, errRejected) {
			t.Fatalf("expected the rejection to pass through, got %v", err)
		}
	}

	if b.Open() {
		t.Fatal("rejections must not open the breaker")
	}
}

func TestHalfOpenAdmitsSingleTrial(t *testing.T) {
	now := time.Now()
	b := NewBreaker(1, time.Second)
	b.now = func() time.Time { return now }

	_ = b.Execute(func() error { return errUnavailable })
	now = now.Add(2 * time.Second)

	probing := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = b.Execute(func() error {
			close(probing)
			<-release
			return nil
		})
	}()
	<-probing

	if err := b.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected concurrent call to be rejected during the trial, got %v", err)
	}

	close(release)
	wg.Wait()
	if got := b.State(); got != StateClosed {
		t.Fatalf("expected closed after successful trial, got %s", got)
	}
}

func TestOnStateChange(t *testing.T) {
	now := time.Now()
	var transitions []string
	b := NewBreaker(2, time.Second).OnStateChange(func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})
	b.now = func() time.Time { return now }

	_ = b.Execute(func() error { return errUnavailable })
	_ = b.Execute(func() error { return errUnavailable })
	now = now.Add(2 * time.Second)
	_ = b.Execute(func() error { return nil })

	want := []string{"closed->open", "open->half_open", "half_open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", transitions, want)
		}
	}
}
