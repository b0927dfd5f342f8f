// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package mocks

import (
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/reelpass/reelpass/internal/auth"
)

// MockTokenIssuer is a mock of auth.TokenIssuer.
type MockTokenIssuer struct {
	mock.Mock
}

// NewMockTokenIssuer creates a mock whose expectations are asserted at test cleanup.
func NewMockTokenIssuer(t interface {
	mock.TestingT
	Cleanup(func())
},
) *MockTokenIssuer {
	m := &MockTokenIssuer{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockTokenIssuer) Issue(id ulid.ULID, email string, role auth.Role) (string, error) {
	ret := m.Called(id, email, role)
	return ret.String(0), ret.Error(1)
}

func (m *MockTokenIssuer) Verify(token string) (*auth.Claims, error) {
	ret := m.Called(token)
	claims, _ := ret.Get(0).(*auth.Claims) //nolint:errcheck // type assertion
	return claims, ret.Error(1)
}

var _ auth.TokenIssuer = (*MockTokenIssuer)(nil)
