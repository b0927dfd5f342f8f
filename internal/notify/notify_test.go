// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/reelpass/reelpass/internal/auth"
)

const testResetURL = "https://reelpass.example/reset-password"

func testNotice() auth.ResetNotice {
	return auth.ResetNotice{
		AccountID: ulid.Make(),
		Name:      "Agnes",
		Email:     "agnes@example.com",
		Token:     "tok3n",
		ExpiresAt: time.Now().Add(time.Hour),
		TTL:       time.Hour,
	}
}

// countingRecorder counts outcomes by sender and status.
type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{counts: map[string]int{}}
}

func (r *countingRecorder) NotificationSent(sender, status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[sender+"/"+status]++
}

func (r *countingRecorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key]
}

var errDelivery = errors.New("mailbox unavailable")

// fakeSender records messages. It fails the first failures calls (every call
// when alwaysFail is set), can block until released, or panic.
type fakeSender struct {
	mu         sync.Mutex
	sent       []Message
	calls      int
	failures   int
	alwaysFail bool
	block      chan struct{}
	panicMsg   string
	delivered  chan Message
}

func (s *fakeSender) Name() string { return "fake" }

func (s *fakeSender) Send(ctx context.Context, m Message) error {
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	s.calls++
	if s.alwaysFail || s.calls <= s.failures {
		s.mu.Unlock()
		return errDelivery
	}
	s.sent = append(s.sent, m)
	s.mu.Unlock()

	if s.delivered != nil {
		s.delivered <- m
	}
	return nil
}

func (s *fakeSender) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

func (s *fakeSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
