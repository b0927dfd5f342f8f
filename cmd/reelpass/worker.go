// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/reelpass/reelpass/internal/notify"
	"github.com/reelpass/reelpass/internal/observability"
)

// NewWorkerCmd creates the worker subcommand.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Deliver queued reset mail",
		Long: `Drain the Redis mail outbox filled by "serve" in mail.mode=queue and
deliver each message over SMTP. Failed messages are retried, then moved to
a dead-letter list.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd)
		},
	}

	cmd.Flags().String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().Int("max-attempts", notify.DefaultMaxAttempts, "deliveries per message before dead-lettering")

	return cmd
}

func runWorker(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateWorker(); err != nil {
		return err //nolint:wrapcheck // coded by config
	}
	logger := setupLogging("reelpass-worker", cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := connectRedis(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	sender, err := notify.NewSMTPSender(smtpConfig(cfg))
	if err != nil {
		return err //nolint:wrapcheck // coded by notify
	}

	maxAttempts, err := cmd.Flags().GetInt("max-attempts")
	if err != nil {
		return err //nolint:wrapcheck // flag is registered above
	}
	opts := []notify.WorkerOption{
		notify.WithMaxAttempts(maxAttempts),
		notify.WithWorkerSendTimeout(cfg.Mail.SendTimeout),
		notify.WithWorkerLogger(logger),
	}

	if cfg.Metrics.Addr != "" {
		obsServer := observability.NewServer(cfg.Metrics.Addr, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}, logger)
		if _, err := obsServer.Start(); err != nil {
			return err //nolint:wrapcheck // coded by observability
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := obsServer.Stop(stopCtx); err != nil {
				logger.Warn("error stopping observability server", "error", err)
			}
		}()
		opts = append(opts, notify.WithWorkerRecorder(obsServer.Metrics()))
	}

	worker, err := notify.NewWorker(rdb, cfg.Redis.Queue, sender, opts...)
	if err != nil {
		return err //nolint:wrapcheck // constructor errors are descriptive
	}

	cmd.Println("ReelPass worker started")
	return worker.Run(ctx) //nolint:wrapcheck // Run returns nil on shutdown
}
