// Package secrets holds credentials that may be rotated while the client
// runs, such as the backend bearer token.
package secrets

import (
	"fmt"
	"slices"
	"sync"
)

// BackendToken is the key of the backend bearer token.
const BackendToken = "backend_token"

// Loader retrieves secrets from a source.
type Loader func() (map[string]string, error)

// Vault holds secret values in memory and supports atomic reloading.
type Vault struct {
	mu     sync.RWMutex
	values map[string]string
	loader Loader
}

// NewVault creates a Vault, calling the loader once to populate initial values.
func NewVault(loader Loader) (*Vault, error) {
	vals, err := loader()
	if err != nil {
		return nil, fmt.Errorf("initial secret load: %w", err)
	}
	return &Vault{
		values: vals,
		loader: loader,
	}, nil
}

// Get returns the secret for key, or an empty string if not found.
func (v *Vault) Get(key string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[key]
}

// Source returns a function reading key on every call. Clients holding it
// see reloaded values.
func (v *Vault) Source(key string) func() string {
	return func() string { return v.Get(key) }
}

// Reload calls the loader and swaps in the new values atomically, returning
// the sorted keys whose value changed. A key that comes back empty keeps its
// previous value: a token file caught mid-rewrite must not drop the token.
// If the loader fails, existing values are preserved.
func (v *Vault) Reload() ([]string, error) {
	newVals, err := v.loader()
	if err != nil {
		return nil, fmt.Errorf("reload secrets: %w", err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	var changed []string
	for k, old := range v.values {
		if newVals[k] == "" {
			newVals[k] = old
		}
	}
	for k, val := range newVals {
		if v.values[k] != val {
			changed = append(changed, k)
		}
	}
	slices.Sort(changed)
	v.values = newVals
	return changed, nil
}

// Redacted returns the secret for key masked for logging: the first two
// characters followed by ****, or just **** for short values.
func (v *Vault) Redacted(key string) string {
	val := v.Get(key)
	switch {
	case val == "":
		return ""
	case len(val) <= 4:
		return "****"
	default:
		return val[:2] + "****"
	}
}
