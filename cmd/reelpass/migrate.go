// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/reelpass/reelpass/internal/store"
)

// NewMigrateCmd creates the migrate command and its subcommands.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back or inspect the embedded PostgreSQL schema migrations.`,
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *store.Migrator) error {
				if err := m.Up(); err != nil {
					return err //nolint:wrapcheck // coded by store
				}
				version, _, err := m.Version()
				if err != nil {
					return err //nolint:wrapcheck // coded by store
				}
				cmd.Printf("Database at version %d\n", version)
				return nil
			})
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Long:  `Roll back the given number of migrations (default 1). --all drops every table.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")     //nolint:errcheck // flag is registered below
			steps, _ := cmd.Flags().GetInt("steps") //nolint:errcheck // flag is registered below
			return withMigrator(cmd, func(m *store.Migrator) error {
				if all {
					return m.Down() //nolint:wrapcheck // coded by store
				}
				if steps < 1 {
					return oops.Code("INVALID_STEPS").Errorf("steps must be at least 1, got %d", steps)
				}
				return m.Steps(-steps) //nolint:wrapcheck // coded by store
			})
		},
	}
	down.Flags().Int("steps", 1, "number of migrations to roll back")
	down.Flags().Bool("all", false, "roll back every migration")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m *store.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err //nolint:wrapcheck // coded by store
				}
				name, err := store.MigrationName(version)
				if err != nil {
					return err //nolint:wrapcheck // coded by store
				}
				cmd.Printf("Current version: %d %s\n", version, name)
				if dirty {
					cmd.Println("State: dirty (fix the schema, then run \"migrate force\")")
				}
				pending, err := m.Pending()
				if err != nil {
					return err //nolint:wrapcheck // coded by store
				}
				if len(pending) == 0 {
					cmd.Println("No pending migrations")
					return nil
				}
				for _, v := range pending {
					pendingName, err := store.MigrationName(v)
					if err != nil {
						return err //nolint:wrapcheck // coded by store
					}
					cmd.Printf("Pending: %s\n", pendingName)
				}
				return nil
			})
		},
	}

	force := &cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_VERSION").With("version", args[0]).Wrap(err)
			}
			return withMigrator(cmd, func(m *store.Migrator) error {
				return m.Force(version) //nolint:wrapcheck // coded by store
			})
		},
	}

	cmd.AddCommand(up, down, status, force)
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(*store.Migrator) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err //nolint:wrapcheck // coded by config
	}

	migrator, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err //nolint:wrapcheck // coded by store
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			cmd.PrintErrf("closing migrator: %v\n", closeErr)
		}
	}()
	return fn(migrator)
}
