// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

// Package mocks holds testify mocks of the auth interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/reelpass/reelpass/internal/auth"
)

// MockAccountRepository is a mock of auth.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

// NewMockAccountRepository creates a mock whose expectations are asserted at test cleanup.
func NewMockAccountRepository(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockAccountRepository {
	m := &MockAccountRepository{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAccountRepository) Create(ctx context.Context, account *auth.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	ret := m.Called(ctx, id)
	return account(ret, 0), ret.Error(1)
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	ret := m.Called(ctx, email)
	return account(ret, 0), ret.Error(1)
}

func (m *MockAccountRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*auth.Account, error) {
	ret := m.Called(ctx, tokenHash, now)
	return account(ret, 0), ret.Error(1)
}

func (m *MockAccountRepository) List(ctx context.Context) ([]*auth.Account, error) {
	ret := m.Called(ctx)
	accounts, _ := ret.Get(0).([]*auth.Account) //nolint:errcheck // type assertion
	return accounts, ret.Error(1)
}

func (m *MockAccountRepository) UpdateName(ctx context.Context, id ulid.ULID, name string) (*auth.Account, error) {
	ret := m.Called(ctx, id, name)
	return account(ret, 0), ret.Error(1)
}

func (m *MockAccountRepository) UpdateRole(ctx context.Context, id ulid.ULID, role auth.Role) (*auth.Account, error) {
	ret := m.Called(ctx, id, role)
	return account(ret, 0), ret.Error(1)
}

func (m *MockAccountRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *MockAccountRepository) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	return m.Called(ctx, id, tokenHash, expiresAt).Error(0)
}

func (m *MockAccountRepository) UpdatePasswordAndClearToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*auth.Account, error) {
	ret := m.Called(ctx, tokenHash, passwordHash, now)
	return account(ret, 0), ret.Error(1)
}

func account(args mock.Arguments, i int) *auth.Account {
	a, _ := args.Get(i).(*auth.Account) //nolint:errcheck // type assertion
	return a
}

var _ auth.AccountRepository = (*MockAccountRepository)(nil)
