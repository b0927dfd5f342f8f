// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func queuedJobs(t *testing.T, mr *miniredis.Miniredis, key string) []job {
	t.Helper()
	if !mr.Exists(key) {
		return nil
	}
	raw, err := mr.List(key)
	require.NoError(t, err)
	jobs := make([]job, 0, len(raw))
	for _, r := range raw {
		var j job
		require.NoError(t, json.Unmarshal([]byte(r), &j))
		jobs = append(jobs, j)
	}
	return jobs
}

func deadJobs(t *testing.T, mr *miniredis.Miniredis, key string) []deadJob {
	t.Helper()
	if !mr.Exists(key) {
		return nil
	}
	raw, err := mr.List(key)
	require.NoError(t, err)
	out := make([]deadJob, 0, len(raw))
	for _, r := range raw {
		assert.NotContains(t, r, "token=", "dead letters must not keep reset links")
		var d deadJob
		require.NoError(t, json.Unmarshal([]byte(r), &d))
		out = append(out, d)
	}
	return out
}

func TestQueueSender_PushesJob(t *testing.T) {
	mr, rdb := newTestRedis(t)
	sender, err := NewQueueSender(rdb, "")
	require.NoError(t, err)
	assert.Equal(t, "queue", sender.Name())

	msg, err := NewResetMessage(testNotice(), testResetURL)
	require.NoError(t, err)
	require.NoError(t, sender.Send(context.Background(), msg))

	jobs := queuedJobs(t, mr, DefaultQueue)
	require.Len(t, jobs, 1)
	assert.Equal(t, msg, jobs[0].Message)
	assert.Zero(t, jobs[0].Attempts)
	assert.WithinDuration(t, time.Now().Add(msg.ExpiresIn), jobs[0].ExpiresAt, 5*time.Second)
	assert.Equal(t, msg.ExpiresIn, mr.TTL(DefaultQueue), "outbox expires with its newest job")
}

func TestQueueSender_WithoutLifetimeDoesNotExpire(t *testing.T) {
	mr, rdb := newTestRedis(t)
	sender, err := NewQueueSender(rdb, "q")
	require.NoError(t, err)

	require.NoError(t, sender.Send(context.Background(), Message{To: "a@example.com"}))

	jobs := queuedJobs(t, mr, "q")
	require.Len(t, jobs, 1)
	assert.True(t, jobs[0].ExpiresAt.IsZero())
	assert.Zero(t, mr.TTL("q"))
}

func TestQueueSender_RedisDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	sender, err := NewQueueSender(rdb, "q")
	require.NoError(t, err)
	mr.Close()

	err = sender.Send(context.Background(), Message{To: "a@example.com"})
	require.Error(t, err)
}

func TestWorker_DeliversQueuedMessages(t *testing.T) {
	_, rdb := newTestRedis(t)
	queue, err := NewQueueSender(rdb, "outbox")
	require.NoError(t, err)

	delivery := &fakeSender{delivered: make(chan Message, 2)}
	recorder := newCountingRecorder()
	worker, err := NewWorker(rdb, "outbox", delivery, WithWorkerRecorder(recorder))
	require.NoError(t, err)

	msg, err := NewResetMessage(testNotice(), testResetURL)
	require.NoError(t, err)
	require.NoError(t, queue.Send(context.Background(), msg))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	select {
	case got := <-delivery.delivered:
		assert.Equal(t, msg, got)
	case <-time.After(5 * time.Second):
		t.Fatal("queued message was not delivered")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, 1, recorder.count("fake/sent"))
}

func TestWorker_RetriesThenDeadLetters(t *testing.T) {
	mr, rdb := newTestRedis(t)
	delivery := &fakeSender{alwaysFail: true}
	recorder := newCountingRecorder()
	worker, err := NewWorker(rdb, "outbox", delivery, WithMaxAttempts(3), WithWorkerRecorder(recorder))
	require.NoError(t, err)

	expiresAt := time.Now().Add(time.Hour).UTC()
	payload, err := json.Marshal(job{
		Message:   Message{AccountID: "01J", To: "a@example.com", Link: testResetURL + "?token=tok3n"},
		ExpiresAt: expiresAt,
	})
	require.NoError(t, err)

	ctx := context.Background()
	worker.handle(ctx, string(payload))
	requeued := queuedJobs(t, mr, "outbox")
	require.Len(t, requeued, 1)
	assert.Equal(t, 1, requeued[0].Attempts)
	assert.True(t, expiresAt.Equal(requeued[0].ExpiresAt), "requeue keeps the original expiry")

	for range 2 {
		popped, err := rdb.RPop(ctx, "outbox").Result()
		require.NoError(t, err)
		worker.handle(ctx, popped)
	}

	assert.Empty(t, queuedJobs(t, mr, "outbox"))
	dead := deadJobs(t, mr, worker.DeadLetterQueue())
	require.Len(t, dead, 1)
	assert.Equal(t, 3, dead[0].Attempts)
	assert.Equal(t, "01J", dead[0].AccountID)
	assert.Equal(t, "a@example.com", dead[0].To)
	assert.Equal(t, ReasonAttemptsExhausted, dead[0].Reason)
	assert.False(t, dead[0].FailedAt.IsZero())
	assert.Equal(t, DefaultDeadLetterTTL, mr.TTL(worker.DeadLetterQueue()))
	assert.Equal(t, 3, delivery.callCount())
	assert.Equal(t, 3, recorder.count("fake/failed"))
	assert.Equal(t, 1, recorder.count("fake/dead"))
}

func TestWorker_RetrySucceeds(t *testing.T) {
	mr, rdb := newTestRedis(t)
	delivery := &fakeSender{failures: 1}
	worker, err := NewWorker(rdb, "outbox", delivery)
	require.NoError(t, err)

	payload, err := json.Marshal(job{Message: Message{To: "a@example.com"}})
	require.NoError(t, err)

	ctx := context.Background()
	worker.handle(ctx, string(payload))
	popped, err := rdb.RPop(ctx, "outbox").Result()
	require.NoError(t, err)
	worker.handle(ctx, popped)

	assert.Len(t, delivery.messages(), 1)
	assert.False(t, mr.Exists("outbox"))
	assert.False(t, mr.Exists(worker.DeadLetterQueue()))
}

func TestWorker_MalformedJobIsDeadLettered(t *testing.T) {
	mr, rdb := newTestRedis(t)
	delivery := &fakeSender{}
	worker, err := NewWorker(rdb, "outbox", delivery)
	require.NoError(t, err)

	worker.handle(context.Background(), `{"message":{"link":"https://x.test/r?token=tok3n"`)

	dead := deadJobs(t, mr, worker.DeadLetterQueue())
	require.Len(t, dead, 1)
	assert.Equal(t, ReasonMalformed, dead[0].Reason)
	assert.Zero(t, delivery.callCount())
}

func TestWorker_DropsExpiredJobs(t *testing.T) {
	mr, rdb := newTestRedis(t)
	delivery := &fakeSender{}
	recorder := newCountingRecorder()
	worker, err := NewWorker(rdb, "outbox", delivery, WithWorkerRecorder(recorder))
	require.NoError(t, err)

	payload, err := json.Marshal(job{
		Message:   Message{AccountID: "01J", To: "a@example.com", Link: testResetURL + "?token=tok3n"},
		Attempts:  2,
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)

	worker.handle(context.Background(), string(payload))

	assert.Zero(t, delivery.callCount())
	assert.False(t, mr.Exists("outbox"))
	assert.False(t, mr.Exists(worker.DeadLetterQueue()))
	assert.Equal(t, 1, recorder.count("fake/expired"))
}

func TestWorker_DeadLetterListIsCapped(t *testing.T) {
	mr, rdb := newTestRedis(t)
	worker, err := NewWorker(rdb, "outbox", &fakeSender{alwaysFail: true},
		WithMaxAttempts(1), WithDeadLetterLimit(2), WithDeadLetterTTL(time.Hour))
	require.NoError(t, err)

	for _, to := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		payload, err := json.Marshal(job{Message: Message{To: to}})
		require.NoError(t, err)
		worker.handle(context.Background(), string(payload))
	}

	dead := deadJobs(t, mr, worker.DeadLetterQueue())
	require.Len(t, dead, 2)
	assert.Equal(t, "c@example.com", dead[0].To, "newest first")
	assert.Equal(t, "b@example.com", dead[1].To)
	assert.Equal(t, time.Hour, mr.TTL(worker.DeadLetterQueue()))
}

func TestNewWorker_Validates(t *testing.T) {
	_, rdb := newTestRedis(t)
	_, err := NewWorker(nil, "q", &fakeSender{})
	require.Error(t, err)
	_, err = NewWorker(rdb, "q", nil)
	require.Error(t, err)

	w, err := NewWorker(rdb, "", &fakeSender{})
	require.NoError(t, err)
	assert.Equal(t, DefaultQueue+":dead", w.DeadLetterQueue())
}
