// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/reelpass/reelpass/internal/config"
	"github.com/reelpass/reelpass/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the ReelPass CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reelpass",
		Short: "ReelPass - accounts and sessions for the movie catalog",
		Long: `ReelPass manages movie-catalog accounts: signup, login with session
tokens, password reset by email, profiles and role-gated admin access.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML, default: $XDG_CONFIG_HOME/reelpass/config.yaml)")
	cmd.PersistentFlags().String("log-format", "json", "log format (json or text)")
	cmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL (default: $DATABASE_URL)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewWorkerCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewAccountCmd())

	return cmd
}

// loadConfig reads configuration with cmd's flags as the top layer. Without
// --config, a config.yaml in the user config directory is picked up.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		path = config.DiscoverFile()
	}
	return config.Load(path, cmd.Flags()) //nolint:wrapcheck // already coded by config
}

// setupLogging builds the process logger and makes it the slog default.
func setupLogging(service string, cfg *config.Config) *slog.Logger {
	logger := logging.Setup(service, version, cfg.Log.Format, cfg.Log.Level, os.Stderr)
	slog.SetDefault(logger)
	return logger
}

// setupTracing installs an SDK tracer provider so service spans carry real
// trace and span ids into the logs. No exporter is attached. The returned
// func flushes and shuts the provider down.
func setupTracing(logger *slog.Logger) func() {
	provider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(provider)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn("error stopping tracer provider", "error", err)
		}
	}
}
