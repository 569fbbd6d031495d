package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Strob0t/TaskDesk/internal/adapter/web"
	"github.com/Strob0t/TaskDesk/internal/secrets"
)

func newUICmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Serve the browser UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			h, err := web.NewHandler(a.tasks, a.jobs, a.hub)
			if err != nil {
				return err
			}
			defer h.Close()

			stopReload := reloadOnHangup(a)
			defer stopReload()

			srv := &http.Server{
				Addr:              a.cfg.UI.Addr,
				Handler:           h.Routes(a.cfg.OTEL.ServiceName),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       2 * time.Minute,
				IdleTimeout:       120 * time.Second,
			}
			return serve(cmd.Context(), srv)
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides ui.addr)")
	return cmd
}

// reloadOnHangup re-reads rotated secrets whenever the process gets SIGHUP.
func reloadOnHangup(a *app) (stop func()) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sig:
				changed, err := a.vault.Reload()
				if err != nil {
					slog.Error("secret reload failed", "error", err)
					continue
				}
				if slices.Contains(changed, secrets.BackendToken) {
					slog.Info("backend token rotated", "token", a.vault.Redacted(secrets.BackendToken))
				} else {
					slog.Info("secrets reloaded, nothing changed")
				}
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sig)
		close(done)
	}
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
