package notifier

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// Settings configures an optional notification sink. Zero values leave the
// sink disabled; factories report that with ErrNotConfigured.
type Settings struct {
	WebhookURL string
	Timeout    time.Duration
}

// Factory builds a sink from its settings.
type Factory func(Settings) (Notifier, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a sink available by name. Adapters call it from init.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("notifier: duplicate registration for %q", name))
	}
	factories[name] = factory
}

// New builds the named sink.
func New(name string, s Settings) (Notifier, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("notifier: unknown provider %q", name)
	}
	return factory(s)
}

// Open is New for sinks that may legitimately be switched off: an
// unconfigured sink yields ok=false and no error.
func Open(name string, s Settings) (n Notifier, ok bool, err error) {
	n, err = New(name, s)
	switch {
	case errors.Is(err, ErrNotConfigured):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return n, true, nil
}

// Available returns the sorted names of all registered sinks.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
