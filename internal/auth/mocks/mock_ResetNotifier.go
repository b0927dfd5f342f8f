// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/reelpass/reelpass/internal/auth"
)

// MockResetNotifier is a mock of auth.ResetNotifier.
type MockResetNotifier struct {
	mock.Mock
}

// NewMockResetNotifier creates a mock whose expectations are asserted at test cleanup.
func NewMockResetNotifier(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockResetNotifier {
	m := &MockResetNotifier{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockResetNotifier) NotifyReset(ctx context.Context, notice auth.ResetNotice) {
	m.Called(ctx, notice)
}

var _ auth.ResetNotifier = (*MockResetNotifier)(nil)
