// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/reelpass/reelpass/internal/observability"
	"github.com/reelpass/reelpass/internal/web"
)

// shutdownTimeout bounds each shutdown step.
const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the ReelPass HTTP API under /api/v1, plus the metrics and health
endpoints when metrics.addr is set.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd)
		},
	}

	cmd.Flags().String("http-addr", ":5000", "API listen address")
	cmd.Flags().String("metrics-addr", "127.0.0.1:9100", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("storage-driver", "postgres", "credential store (postgres or memory)")
	cmd.Flags().Bool("database-auto-migrate", false, "apply pending migrations on startup")
	cmd.Flags().String("mail-mode", "log", "reset mail delivery (log, smtp or queue)")

	return cmd
}

func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err //nolint:wrapcheck // coded by config
	}
	logger := setupLogging("reelpass", cfg)
	stopTracing := setupTracing(logger)
	defer stopTracing()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		obsServer *observability.Server
		rec       recorder
		a         *app
	)
	if cfg.Metrics.Addr != "" {
		obsServer = observability.NewServer(cfg.Metrics.Addr, func(ctx context.Context) error {
			if a == nil {
				return oops.Errorf("starting")
			}
			return a.store.Ping(ctx)
		}, logger)
		rec = obsServer.Metrics()
	}

	a, err = buildApp(ctx, cfg, logger, rec)
	if err != nil {
		return err
	}
	defer a.Close()

	webOpts := web.Options{
		SecureCookies:  cfg.Auth.SecureCookies,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Logger:         logger,
	}
	if rec != nil {
		webOpts.Recorder = rec
	}
	api, err := web.NewServer(a.service, a.gate, webOpts)
	if err != nil {
		return err //nolint:wrapcheck // constructor errors are descriptive
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}
	httpErr := make(chan error, 1)
	go func() {
		defer close(httpErr)
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			httpErr <- serveErr
		}
	}()

	var obsErr <-chan error
	if obsServer != nil {
		obsErr, err = obsServer.Start()
		if err != nil {
			shutdown(logger, httpServer, a, nil)
			return err //nolint:wrapcheck // coded by observability
		}
	}

	cmd.Println("ReelPass API started")
	logger.Info("reelpass ready",
		"http_addr", cfg.HTTP.Addr,
		"storage", cfg.Storage.Driver,
		"mail_mode", cfg.Mail.Mode,
	)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-httpErr:
		runErr = oops.Code("HTTP_SERVER_FAILED").Wrap(err)
	case err := <-obsErr:
		if err != nil {
			runErr = oops.Code("OBSERVABILITY_SERVER_FAILED").Wrap(err)
		}
	}

	shutdown(logger, httpServer, a, obsServer)
	return runErr
}

// shutdown stops intake first, then drains pending reset mail, then the
// metrics listener.
func shutdown(logger *slog.Logger, httpServer *http.Server, a *app, obsServer *observability.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("error stopping HTTP server", "error", err)
	}
	if err := a.dispatcher.Close(ctx); err != nil {
		logger.Warn("error draining reset mail", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(ctx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}
	logger.Info("shutdown complete")
}
