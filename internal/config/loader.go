package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "taskdesk.yaml"

// Overrides carries values set on the command line. Nil fields are not applied.
type Overrides struct {
	ConfigPath *string
	BaseURL    *string
	Token      *string
	LogLevel   *string
	PageSize   *int
	UIAddr     *string
}

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	return load(yamlPath, Overrides{})
}

// LoadWithOverrides applies CLI overrides on top of LoadFrom. A ConfigPath
// override replaces DefaultConfigFile.
func LoadWithOverrides(o Overrides) (*Config, error) {
	path := DefaultConfigFile
	if o.ConfigPath != nil && *o.ConfigPath != "" {
		path = *o.ConfigPath
	}
	return load(path, o)
}

func load(yamlPath string, o Overrides) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)
	applyOverrides(&cfg, o)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Backend.BaseURL, "TASKDESK_BACKEND_URL")
	setString(&cfg.Backend.Token, "TASKDESK_BACKEND_TOKEN")
	setString(&cfg.Backend.TokenFile, "TASKDESK_BACKEND_TOKEN_FILE")
	setDuration(&cfg.Backend.Timeout, "TASKDESK_BACKEND_TIMEOUT")
	setDuration(&cfg.Backend.JobTimeout, "TASKDESK_JOB_TIMEOUT")
	setInt(&cfg.Pagination.PageSize, "TASKDESK_PAGE_SIZE")
	setBool(&cfg.Pagination.Prefetch, "TASKDESK_PREFETCH")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "TASKDESK_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.SnapshotTTL, "TASKDESK_CACHE_SNAPSHOT_TTL")
	setString(&cfg.Cache.L2Bucket, "TASKDESK_CACHE_L2_BUCKET")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.InvalidationSubject, "TASKDESK_INVALIDATION_SUBJECT")

	setString(&cfg.Logging.Level, "TASKDESK_LOG_LEVEL")
	setString(&cfg.Logging.Service, "TASKDESK_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "TASKDESK_LOG_ASYNC")
	setInt(&cfg.Breaker.MaxFailures, "TASKDESK_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "TASKDESK_BREAKER_TIMEOUT")
	setString(&cfg.UI.Addr, "TASKDESK_UI_ADDR")

	// OpenTelemetry
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "TASKDESK_OTEL_INSECURE")

	setString(&cfg.Notify.SlackWebhookURL, "TASKDESK_SLACK_WEBHOOK_URL")
	setString(&cfg.Job.SpreadsheetKey, "TASKDESK_JOB_SPREADSHEET_KEY")
}

func applyOverrides(cfg *Config, o Overrides) {
	if o.BaseURL != nil {
		cfg.Backend.BaseURL = *o.BaseURL
	}
	if o.Token != nil {
		cfg.Backend.Token = *o.Token
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.PageSize != nil {
		cfg.Pagination.PageSize = *o.PageSize
	}
	if o.UIAddr != nil {
		cfg.UI.Addr = *o.UIAddr
	}
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Backend.BaseURL == "" {
		return errors.New("backend.base_url is required")
	}
	if cfg.Backend.Timeout <= 0 {
		return errors.New("backend.timeout must be > 0")
	}
	if cfg.Pagination.PageSize < 1 {
		return errors.New("pagination.page_size must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Cache.L2Bucket != "" && cfg.NATS.URL == "" {
		return errors.New("cache.l2_bucket requires nats.url")
	}
	if cfg.Job.ColumnIndex != nil && *cfg.Job.ColumnIndex < 0 {
		return errors.New("job.column_index must be >= 0")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
