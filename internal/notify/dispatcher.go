// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sourcegraph/conc"

	"github.com/reelpass/reelpass/internal/auth"
	"github.com/reelpass/reelpass/pkg/errutil"
)

// DefaultSendTimeout bounds one delivery attempt.
const DefaultSendTimeout = 15 * time.Second

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSendTimeout sets the per-message delivery deadline.
func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithRecorder sets the delivery metrics recorder.
func WithRecorder(r Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// Dispatcher implements auth.ResetNotifier. Each notice is delivered on its
// own goroutine, detached from the request context, and its outcome is only
// logged and counted.
type Dispatcher struct {
	sender   Sender
	resetURL string
	timeout  time.Duration
	recorder Recorder
	logger   *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     conc.WaitGroup
}

// NewDispatcher creates a Dispatcher that links to resetURL.
func NewDispatcher(sender Sender, resetURL string, opts ...DispatcherOption) (*Dispatcher, error) {
	if sender == nil {
		return nil, oops.Errorf("sender is required")
	}
	if _, err := ResetLink(resetURL, "probe"); err != nil {
		return nil, err
	}
	d := &Dispatcher{
		sender:   sender,
		resetURL: resetURL,
		timeout:  DefaultSendTimeout,
		recorder: nopRecorder{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// NotifyReset queues delivery of notice and returns immediately.
func (d *Dispatcher) NotifyReset(ctx context.Context, notice auth.ResetNotice) {
	msg, err := NewResetMessage(notice, d.resetURL)
	if err != nil {
		d.recorder.NotificationSent(d.sender.Name(), "failed")
		errutil.LogErrorContext(ctx, d.logger, "build reset message", err)
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.recorder.NotificationSent(d.sender.Name(), "dropped")
		d.logger.WarnContext(ctx, "dispatcher closed, reset message dropped", "account_id", msg.AccountID)
		return
	}

	sendCtx := context.WithoutCancel(ctx)
	d.wg.Go(func() {
		d.deliver(sendCtx, msg)
	})
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.sender.Send(ctx, msg); err != nil {
		d.recorder.NotificationSent(d.sender.Name(), "failed")
		errutil.LogErrorContext(ctx, d.logger, "reset message delivery failed",
			oops.Code(auth.CodeNotificationFailure).
				With("sender", d.sender.Name()).
				With("account_id", msg.AccountID).
				Wrap(err))
		return
	}
	d.recorder.NotificationSent(d.sender.Name(), "sent")
	d.logger.InfoContext(ctx, "reset message delivered", "sender", d.sender.Name(), "account_id", msg.AccountID)
}

// Close stops accepting notices and waits for in-flight deliveries until ctx
// is done. A panicking sender is recovered and reported as an error.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		if recovered := d.wg.WaitAndRecover(); recovered != nil {
			done <- oops.Code("NOTIFY_SENDER_PANIC").Wrap(recovered.AsError())
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return oops.Code("NOTIFY_CLOSE_TIMEOUT").Wrap(ctx.Err())
	}
}

var _ auth.ResetNotifier = (*Dispatcher)(nil)
