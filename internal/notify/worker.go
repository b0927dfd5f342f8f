// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/reelpass/reelpass/pkg/errutil"
)

// Worker defaults.
const (
	DefaultMaxAttempts     = 5
	DefaultPollInterval    = time.Second
	DefaultDeadLetterLimit = 1000
	DefaultDeadLetterTTL   = 7 * 24 * time.Hour
	errorBackoff           = time.Second
)

// Dead-letter reasons.
const (
	ReasonAttemptsExhausted = "attempts_exhausted"
	ReasonMalformed         = "malformed"
)

// deadJob is what the dead-letter list keeps. The reset link is dropped;
// the entry only identifies the recipient and why delivery stopped.
type deadJob struct {
	AccountID string    `json:"account_id,omitempty"`
	To        string    `json:"to,omitempty"`
	Attempts  int       `json:"attempts"`
	Reason    string    `json:"reason"`
	FailedAt  time.Time `json:"failed_at"`
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithMaxAttempts sets how many deliveries a job gets before it is moved to
// the dead-letter list.
func WithMaxAttempts(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.maxAttempts = n
		}
	}
}

// WithPollInterval sets the BRPOP timeout. Redis rounds it up to whole seconds.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.poll = d
		}
	}
}

// WithWorkerSendTimeout bounds one delivery attempt.
func WithWorkerSendTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithWorkerRecorder sets the delivery metrics recorder.
func WithWorkerRecorder(r Recorder) WorkerOption {
	return func(w *Worker) {
		if r != nil {
			w.recorder = r
		}
	}
}

// WithDeadLetterLimit caps the dead-letter list; older entries are trimmed.
func WithDeadLetterLimit(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.deadLimit = n
		}
	}
}

// WithDeadLetterTTL sets how long the dead-letter list lives after its last
// entry.
func WithDeadLetterTTL(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.deadTTL = d
		}
	}
}

// WithWorkerLogger sets the worker logger.
func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// Worker drains the Redis outbox and hands each message to a Sender.
// Failed jobs go back on the queue until they run out of attempts.
type Worker struct {
	rdb         redis.Cmdable
	queue       string
	sender      Sender
	maxAttempts int
	poll        time.Duration
	timeout     time.Duration
	deadLimit   int
	deadTTL     time.Duration
	recorder    Recorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewWorker creates a Worker reading queue.
func NewWorker(rdb redis.Cmdable, queue string, sender Sender, opts ...WorkerOption) (*Worker, error) {
	if rdb == nil {
		return nil, oops.Errorf("redis client is required")
	}
	if sender == nil {
		return nil, oops.Errorf("sender is required")
	}
	if queue == "" {
		queue = DefaultQueue
	}
	w := &Worker{
		rdb:         rdb,
		queue:       queue,
		sender:      sender,
		maxAttempts: DefaultMaxAttempts,
		poll:        DefaultPollInterval,
		timeout:     DefaultSendTimeout,
		deadLimit:   DefaultDeadLetterLimit,
		deadTTL:     DefaultDeadLetterTTL,
		recorder:    nopRecorder{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// DeadLetterQueue returns the list that holds jobs out of attempts.
func (w *Worker) DeadLetterQueue() string {
	return w.queue + ":dead"
}

// Run processes jobs until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "outbox worker started", "queue", w.queue, "sender", w.sender.Name())
	defer w.logger.Info("outbox worker stopped", "queue", w.queue)

	for {
		if ctx.Err() != nil {
			return nil
		}

		result, err := w.rdb.BRPop(ctx, w.poll, w.queue).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case ctx.Err() != nil:
			return nil
		case err != nil:
			errutil.LogErrorContext(ctx, w.logger, "outbox pop failed",
				oops.Code("QUEUE_POP_FAILED").With("queue", w.queue).Wrap(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(errorBackoff):
			}
			continue
		}

		// BRPOP replies with [queue, value].
		if len(result) < 2 {
			continue
		}
		w.handle(ctx, result[1])
	}
}

func (w *Worker) handle(ctx context.Context, payload string) {
	var j job
	if err := json.Unmarshal([]byte(payload), &j); err != nil {
		errutil.LogErrorContext(ctx, w.logger, "discarding malformed outbox job",
			oops.Code("QUEUE_DECODE_FAILED").With("bytes", len(payload)).Wrap(err))
		w.deadLetter(ctx, deadJob{Reason: ReasonMalformed})
		return
	}

	if j.expired(w.now()) {
		w.recorder.NotificationSent(w.sender.Name(), "expired")
		w.logger.WarnContext(ctx, "dropping expired reset message",
			"account_id", j.Message.AccountID, "attempts", j.Attempts)
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	err := w.sender.Send(sendCtx, j.Message)
	cancel()
	if err == nil {
		w.recorder.NotificationSent(w.sender.Name(), "sent")
		w.logger.InfoContext(ctx, "reset message delivered", "account_id", j.Message.AccountID, "attempt", j.Attempts+1)
		return
	}

	j.Attempts++
	w.recorder.NotificationSent(w.sender.Name(), "failed")
	errutil.LogErrorContext(ctx, w.logger, "reset message delivery failed",
		oops.With("account_id", j.Message.AccountID).With("attempt", j.Attempts).Wrap(err))

	if j.Attempts >= w.maxAttempts {
		w.deadLetter(ctx, deadJob{
			AccountID: j.Message.AccountID,
			To:        j.Message.To,
			Attempts:  j.Attempts,
			Reason:    ReasonAttemptsExhausted,
		})
		return
	}
	if err := push(context.WithoutCancel(ctx), w.rdb, w.queue, j); err != nil {
		errutil.LogErrorContext(ctx, w.logger, "requeue failed", err)
	}
}

// deadLetter records d on the capped, expiring dead-letter list.
func (w *Worker) deadLetter(ctx context.Context, d deadJob) {
	w.recorder.NotificationSent(w.sender.Name(), "dead")
	d.FailedAt = w.now().UTC()
	payload, err := json.Marshal(d)
	if err != nil {
		errutil.LogErrorContext(ctx, w.logger, "dead-letter encode failed", oops.Code("QUEUE_ENCODE_FAILED").Wrap(err))
		return
	}

	ctx = context.WithoutCancel(ctx)
	key := w.DeadLetterQueue()
	_, err = w.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, payload)
		pipe.LTrim(ctx, key, 0, int64(w.deadLimit-1))
		pipe.Expire(ctx, key, w.deadTTL)
		return nil
	})
	if err != nil {
		errutil.LogErrorContext(ctx, w.logger, "dead-letter push failed",
			oops.Code("QUEUE_PUSH_FAILED").With("queue", key).Wrap(err))
	}
}
