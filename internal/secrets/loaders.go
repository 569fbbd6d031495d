package secrets

import (
	"fmt"
	"os"
	"strings"
)

// Static returns a Loader serving fixed values. Empty values are omitted.
func Static(vals map[string]string) Loader {
	return func() (map[string]string, error) {
		out := make(map[string]string, len(vals))
		for k, v := range vals {
			if v != "" {
				out[k] = v
			}
		}
		return out, nil
	}
}

// FileLoader reads each key from its file, trimming surrounding whitespace.
// Mounted secret files are re-read on every load.
func FileLoader(files map[string]string) Loader {
	return func() (map[string]string, error) {
		out := make(map[string]string, len(files))
		for k, path := range files {
			data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", k, err)
			}
			out[k] = strings.TrimSpace(string(data))
		}
		return out, nil
	}
}

// Chain merges the results of loaders. Later loaders win.
func Chain(loaders ...Loader) Loader {
	return func() (map[string]string, error) {
		out := make(map[string]string)
		for _, l := range loaders {
			vals, err := l()
			if err != nil {
				return nil, err
			}
			for k, v := range vals {
				out[k] = v
			}
		}
		return out, nil
	}
}
