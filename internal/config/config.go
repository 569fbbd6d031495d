// Package config provides hierarchical configuration loading for TaskDesk.
// Precedence: defaults < YAML file < environment variables < CLI flags.
package config

import "time"

// Config holds all runtime configuration for the TaskDesk client.
type Config struct {
	Backend    Backend    `yaml:"backend"`
	Pagination Pagination `yaml:"pagination"`
	Cache      Cache      `yaml:"cache"`
	NATS       NATS       `yaml:"nats"`
	Logging    Logging    `yaml:"logging"`
	Breaker    Breaker    `yaml:"breaker"`
	UI         UI         `yaml:"ui"`
	OTEL       OTEL       `yaml:"otel"`
	Notify     Notify     `yaml:"notify"`
	Job        Job        `yaml:"job"`
}

// Backend holds the task/job API connection settings.
type Backend struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"` // forwarded as a bearer token when set
	// TokenFile holds the bearer token instead of Token. It is re-read when
	// the UI server receives SIGHUP.
	TokenFile string        `yaml:"token_file"`
	Timeout   time.Duration `yaml:"timeout"` // per request
	// JobTimeout bounds spreadsheet uploads, which carry the whole file.
	JobTimeout time.Duration `yaml:"job_timeout"`
}

// Pagination holds the task list paging settings.
type Pagination struct {
	PageSize int  `yaml:"page_size"`
	Prefetch bool `yaml:"prefetch"` // prefetch the following page after each load
}

// Cache holds query cache and snapshot store configuration.
type Cache struct {
	L1MaxSizeMB int64         `yaml:"l1_max_size_mb"`
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
	L2Bucket    string        `yaml:"l2_bucket"` // NATS KV bucket; empty disables L2
}

// NATS holds the optional NATS connection used for shared snapshots and
// cross-process invalidation. Empty URL disables both.
type NATS struct {
	URL                 string `yaml:"url"`
	InvalidationSubject string `yaml:"invalidation_subject"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Async   bool   `yaml:"async"`
}

// Breaker holds circuit breaker configuration for backend calls.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// UI holds the local browser UI server configuration.
type UI struct {
	Addr string `yaml:"addr"`
}

// OTEL holds OpenTelemetry exporter configuration. Empty endpoint disables export.
type OTEL struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
	Insecure    bool   `yaml:"insecure"`
}

// Notify holds optional notification sinks besides the terminal/browser.
type Notify struct {
	SlackWebhookURL string `yaml:"slack_webhook_url"`
}

// Job holds defaults for spreadsheet processing jobs. Nil values defer to the server.
type Job struct {
	SpreadsheetKey       string `yaml:"spreadsheet_key"`
	ColumnIndex          *int   `yaml:"column_index"`
	ApplyDefaultPatterns *bool  `yaml:"apply_default_patterns"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Backend: Backend{
			BaseURL:    "http://localhost:8000",
			Timeout:    10 * time.Second,
			JobTimeout: 2 * time.Minute,
		},
		Pagination: Pagination{
			PageSize: 5,
			Prefetch: true,
		},
		Cache: Cache{
			L1MaxSizeMB: 16,
			SnapshotTTL: 10 * time.Minute,
		},
		NATS: NATS{
			InvalidationSubject: "taskdesk.invalidate",
		},
		Logging: Logging{
			Level:   "info",
			Service: "taskdesk",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
		UI: UI{
			Addr: "127.0.0.1:5173",
		},
		OTEL: OTEL{
			ServiceName: "taskdesk",
			Insecure:    true,
		},
	}
}
