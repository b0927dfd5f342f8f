// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// DefaultQueue is the Redis list used as the mail outbox.
const DefaultQueue = "reelpass:mail:outbox"

// job is one outbox entry. The link inside Message carries a live reset
// token, so a job is only kept until ExpiresAt.
type job struct {
	Message   Message   `json:"message"`
	Attempts  int       `json:"attempts"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

func (j job) expired(now time.Time) bool {
	return !j.ExpiresAt.IsZero() && !now.Before(j.ExpiresAt)
}

// QueueSender pushes messages onto a Redis list for a Worker to deliver.
type QueueSender struct {
	rdb   redis.Cmdable
	queue string
	now   func() time.Time
}

// NewQueueSender creates a QueueSender writing to queue.
func NewQueueSender(rdb redis.Cmdable, queue string) (*QueueSender, error) {
	if rdb == nil {
		return nil, oops.Errorf("redis client is required")
	}
	if queue == "" {
		queue = DefaultQueue
	}
	return &QueueSender{rdb: rdb, queue: queue, now: time.Now}, nil
}

// Name implements Sender.
func (q *QueueSender) Name() string { return "queue" }

// Send implements Sender. When the message has a lifetime, the job carries
// its expiry and the outbox key expires with the newest job.
func (q *QueueSender) Send(ctx context.Context, m Message) error {
	j := job{Message: m}
	if m.ExpiresIn <= 0 {
		return push(ctx, q.rdb, q.queue, j)
	}
	j.ExpiresAt = q.now().Add(m.ExpiresIn).UTC()

	payload, err := json.Marshal(j)
	if err != nil {
		return oops.Code("QUEUE_ENCODE_FAILED").Wrap(err)
	}
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, q.queue, payload)
		pipe.Expire(ctx, q.queue, m.ExpiresIn)
		return nil
	})
	if err != nil {
		return oops.Code("QUEUE_PUSH_FAILED").With("queue", q.queue).Wrap(err)
	}
	return nil
}

func push(ctx context.Context, rdb redis.Cmdable, queue string, j job) error {
	payload, err := json.Marshal(j)
	if err != nil {
		return oops.Code("QUEUE_ENCODE_FAILED").Wrap(err)
	}
	if err := rdb.LPush(ctx, queue, payload).Err(); err != nil {
		return oops.Code("QUEUE_PUSH_FAILED").With("queue", queue).Wrap(err)
	}
	return nil
}
