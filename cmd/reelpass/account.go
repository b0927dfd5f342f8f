// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package main

import (
	"context"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/reelpass/reelpass/internal/auth"
	"github.com/reelpass/reelpass/internal/config"
)

// NewAccountCmd creates the account administration commands.
func NewAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Administer accounts",
	}

	promote := &cobra.Command{
		Use:   "promote EMAIL",
		Short: "Change the role of an account",
		Long: `Change the role of the account registered under EMAIL. This is the only
way to grant Admin unless auth.allow_admin_signup is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roleName, _ := cmd.Flags().GetString("role") //nolint:errcheck // flag is registered below
			role, err := auth.ParseRole(roleName)
			if err != nil {
				return err //nolint:wrapcheck // coded by auth
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				account, err := a.service.AssignRole(ctx, args[0], role)
				if err != nil {
					return err //nolint:wrapcheck // coded by auth
				}
				cmd.Printf("%s is now %s\n", account.Email, account.Role)
				return nil
			})
		},
	}
	promote.Flags().String("role", string(auth.RoleAdmin), "role to assign (Admin or User)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				accounts, err := a.service.ListAccounts(ctx)
				if err != nil {
					return err //nolint:wrapcheck // coded by auth
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				_, _ = w.Write([]byte("ID\tEMAIL\tNAME\tROLE\tCREATED\n"))
				for _, acc := range accounts {
					_, _ = w.Write([]byte(acc.ID.String() + "\t" + acc.Email + "\t" + acc.Name + "\t" +
						string(acc.Role) + "\t" + acc.CreatedAt.Format("2006-01-02") + "\n"))
				}
				return w.Flush() //nolint:wrapcheck // terminal write
			})
		},
	}

	cmd.AddCommand(promote, list)
	return cmd
}

// withApp runs fn against the configured store. Mail is never sent from
// these commands, so the log sender is forced.
func withApp(cmd *cobra.Command, fn func(context.Context, *app) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Mail.Mode = config.MailLog
	if err := cfg.Validate(); err != nil {
		return err //nolint:wrapcheck // coded by config
	}
	logger := setupLogging("reelpass", cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := buildApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
