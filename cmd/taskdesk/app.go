package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Strob0t/TaskDesk/internal/adapter/backend"
	tdnats "github.com/Strob0t/TaskDesk/internal/adapter/nats"
	"github.com/Strob0t/TaskDesk/internal/adapter/natskv"
	tdotel "github.com/Strob0t/TaskDesk/internal/adapter/otel"
	"github.com/Strob0t/TaskDesk/internal/adapter/ristretto"
	"github.com/Strob0t/TaskDesk/internal/adapter/terminal"
	"github.com/Strob0t/TaskDesk/internal/adapter/tiered"
	"github.com/Strob0t/TaskDesk/internal/adapter/ws"
	"github.com/Strob0t/TaskDesk/internal/config"
	"github.com/Strob0t/TaskDesk/internal/domain/job"
	"github.com/Strob0t/TaskDesk/internal/domain/task"
	"github.com/Strob0t/TaskDesk/internal/logger"
	"github.com/Strob0t/TaskDesk/internal/port/cache"
	"github.com/Strob0t/TaskDesk/internal/port/notifier"
	"github.com/Strob0t/TaskDesk/internal/querycache"
	"github.com/Strob0t/TaskDesk/internal/resilience"
	"github.com/Strob0t/TaskDesk/internal/secrets"
	"github.com/Strob0t/TaskDesk/internal/service"
)

// app holds the services shared by all commands.
type app struct {
	cfg     *config.Config
	vault   *secrets.Vault
	tasks   *service.TaskService
	jobs    *service.JobFlow
	hub     *ws.Hub
	closers []func()
}

// newApp wires the client stack from cfg. Logs and notifications go to
// stderr; stdout is left to command output.
func newApp(ctx context.Context, cfg *config.Config, stderr io.Writer) (*app, error) {
	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// --- Logging & telemetry ---
	log, closeLog := logger.New(cfg.Logging, stderr)
	slog.SetDefault(log)
	a.closers = append(a.closers, closeLog.Close)

	shutdown, err := tdotel.Init(ctx, cfg.OTEL)
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}
	a.closers = append(a.closers, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	})
	metrics, err := tdotel.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("otel metrics: %w", err)
	}

	// --- Backend ---
	loaders := []secrets.Loader{secrets.Static(map[string]string{secrets.BackendToken: cfg.Backend.Token})}
	if cfg.Backend.TokenFile != "" {
		loaders = append(loaders, secrets.FileLoader(map[string]string{secrets.BackendToken: cfg.Backend.TokenFile}))
	}
	a.vault, err = secrets.NewVault(secrets.Chain(loaders...))
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}
	client := backend.NewClient(cfg.Backend.BaseURL,
		backend.WithTokenSource(a.vault.Source(secrets.BackendToken)),
		backend.WithTimeouts(cfg.Backend.Timeout, cfg.Backend.JobTimeout),
	)
	client.SetBreaker(resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout).
		OnStateChange(func(from, to resilience.State) {
			log.Warn("backend circuit", "from", from.String(), "to", to.String())
		}))

	// --- Snapshot store & invalidation bus ---
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return nil, fmt.Errorf("ristretto: %w", err)
	}
	a.closers = append(a.closers, l1.Close)
	var store cache.Cache = l1

	var bus *tdnats.Bus
	if cfg.NATS.URL != "" {
		bus, err = tdnats.Connect(cfg.NATS.URL, cfg.NATS.InvalidationSubject)
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		a.closers = append(a.closers, func() { _ = bus.Close() })

		if cfg.Cache.L2Bucket != "" {
			l2, err := natskv.Open(ctx, bus.JetStream(), cfg.Cache.L2Bucket, cfg.Cache.SnapshotTTL)
			if err != nil {
				return nil, fmt.Errorf("nats kv: %w", err)
			}
			store = tiered.New(l1, l2, cfg.Cache.SnapshotTTL)
		}
	}

	pages := querycache.New[task.Page](
		querycache.WithSnapshotStore(store, cfg.Cache.SnapshotTTL),
		querycache.WithMetrics(metrics),
	)

	// --- Notifications ---
	a.hub = ws.NewHub()
	notify := service.NewNotificationService(terminal.NewNotifier(stderr), ws.NewNotifier(a.hub))
	slack, enabled, err := notifier.Open("slack", notifier.Settings{
		WebhookURL: cfg.Notify.SlackWebhookURL,
		Timeout:    cfg.Backend.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("slack notifier: %w", err)
	}
	if enabled {
		notify.Add(slack, []string{service.JobMutationName}, []string{notifier.LevelSuccess})
	}

	// --- Services ---
	taskOpts := []service.TaskServiceOption{
		service.WithPageSize(cfg.Pagination.PageSize),
		service.WithNotifier(notify),
		service.WithMetrics(metrics),
	}
	if cfg.Pagination.Prefetch {
		taskOpts = append(taskOpts, service.WithPrefetch(1))
	}
	if bus != nil {
		taskOpts = append(taskOpts, service.WithBroadcaster(bus))
	}
	a.tasks = service.NewTaskService(client, pages, taskOpts...)

	if bus != nil {
		cancel, err := a.tasks.ListenRemote(ctx, bus)
		if err != nil {
			return nil, fmt.Errorf("invalidation subscriber: %w", err)
		}
		a.closers = append(a.closers, cancel)
	}

	a.jobs = service.NewJobFlow(client,
		service.WithJobNotifier(notify),
		service.WithJobMetrics(metrics),
		service.WithJobDefaults(jobDefaults(cfg.Job)),
	)

	slog.Debug("client ready",
		"base_url", cfg.Backend.BaseURL,
		"token", a.vault.Redacted(secrets.BackendToken),
		"page_size", cfg.Pagination.PageSize,
		"nats", cfg.NATS.URL != "",
		"l2", cfg.Cache.L2Bucket,
	)
	ok = true
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func jobDefaults(cfg config.Job) job.Params {
	p := job.Params{ColumnIndex: cfg.ColumnIndex, ApplyDefaultPatterns: cfg.ApplyDefaultPatterns}
	if cfg.SpreadsheetKey != "" {
		key := cfg.SpreadsheetKey
		p.SpreadsheetKey = &key
	}
	return p
}
