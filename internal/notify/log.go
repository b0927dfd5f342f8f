// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package notify

import (
	"context"
	"log/slog"
)

// LogSender records that a reset link was issued without delivering it.
// The link is never logged.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Name implements Sender.
func (s *LogSender) Name() string { return "log" }

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, m Message) error {
	s.logger.InfoContext(ctx, "reset link issued",
		"account_id", m.AccountID,
		"expires_in", m.ExpiresIn.String(),
	)
	return nil
}
