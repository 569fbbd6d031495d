package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Strob0t/TaskDesk/internal/logger"
	"github.com/Strob0t/TaskDesk/internal/testbackend"
)

func newStubBackendCmd(c *cli) *cobra.Command {
	var (
		addr  string
		seed  int
		token string
		delay time.Duration
	)
	cmd := &cobra.Command{
		Use:   "stub-backend",
		Short: "Serve an in-memory backend for local development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, closeLog := logger.New(c.cfg.Logging, cmd.ErrOrStderr())
			defer closeLog.Close()
			slog.SetDefault(log)

			stub := testbackend.New(
				testbackend.WithToken(token),
				testbackend.WithDelay(delay),
				testbackend.WithLogger(log),
			)
			stub.Seed(seed)

			srv := &http.Server{
				Addr:              addr,
				Handler:           stub.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return serve(cmd.Context(), srv)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&addr, "addr", "127.0.0.1:8000", "listen address")
	fl.IntVar(&seed, "seed", 12, "number of generated tasks")
	fl.StringVar(&token, "bearer", "", "require this bearer token")
	fl.DurationVar(&delay, "delay", 0, "artificial latency per request")
	return cmd
}
