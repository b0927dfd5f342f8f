// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

// Package memstore provides an in-process implementation of
// auth.AccountRepository. Each method holds the store lock for its whole
// read-modify-write, giving the same atomicity as the PostgreSQL store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/reelpass/reelpass/internal/auth"
)

// Store is a mutex-guarded account store.
type Store struct {
	mu       sync.RWMutex
	accounts map[ulid.ULID]*auth.Account
	byEmail  map[string]ulid.ULID
	byToken  map[string]ulid.ULID
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		accounts: make(map[ulid.ULID]*auth.Account),
		byEmail:  make(map[string]ulid.ULID),
		byToken:  make(map[string]ulid.ULID),
	}
}

// Create stores a new account, failing with auth.ErrDuplicateEmail when the
// normalized email is taken.
func (s *Store) Create(_ context.Context, account *auth.Account) error {
	email := auth.NormalizeEmail(account.Email)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[email]; taken {
		return oops.Code("ACCOUNT_EMAIL_TAKEN").
			With("email", email).
			Wrap(auth.ErrDuplicateEmail)
	}
	if _, exists := s.accounts[account.ID]; exists {
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("id", account.ID.String()).
			Errorf("account id already exists")
	}

	stored := clone(account)
	stored.Email = email
	s.accounts[stored.ID] = stored
	s.byEmail[email] = stored.ID
	if stored.ResetTokenHash != "" {
		s.byToken[stored.ResetTokenHash] = stored.ID
	}
	return nil
}

// GetByID retrieves an account by ID.
func (s *Store) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, notFound("id", id.String())
	}
	return clone(account), nil
}

// GetByEmail retrieves an account by email (case-insensitive).
func (s *Store) GetByEmail(_ context.Context, email string) (*auth.Account, error) {
	email = auth.NormalizeEmail(email)

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, notFound("email", email)
	}
	return clone(s.accounts[id]), nil
}

// GetByResetToken retrieves the account holding an unexpired token hash.
func (s *Store) GetByResetToken(_ context.Context, tokenHash string, now time.Time) (*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.activeToken(tokenHash, now)
	if !ok {
		return nil, notFound("token", "redacted")
	}
	return clone(account), nil
}

// List returns every account ordered by creation time.
func (s *Store) List(_ context.Context) ([]*auth.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*auth.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		out = append(out, clone(account))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Compare(out[j].ID) < 0
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateName sets the display name.
func (s *Store) UpdateName(_ context.Context, id ulid.ULID, name string) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, notFound("id", id.String())
	}
	account.Name = name
	return clone(account), nil
}

// UpdateRole sets the role.
func (s *Store) UpdateRole(_ context.Context, id ulid.ULID, role auth.Role) (*auth.Account, error) {
	if !role.Valid() {
		return nil, oops.Code("ACCOUNT_INVALID_ROLE").With("role", string(role)).Errorf("unknown role")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, notFound("id", id.String())
	}
	account.Role = role
	return clone(account), nil
}

// UpdatePasswordHash replaces the password hash.
func (s *Store) UpdatePasswordHash(_ context.Context, id ulid.ULID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return notFound("id", id.String())
	}
	account.PasswordHash = passwordHash
	return nil
}

// SetResetToken stores a token hash, dropping any previous token of the account.
func (s *Store) SetResetToken(_ context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return notFound("id", id.String())
	}
	if account.ResetTokenHash != "" {
		delete(s.byToken, account.ResetTokenHash)
	}
	expires := expiresAt
	account.ResetTokenHash = tokenHash
	account.ResetTokenExpiresAt = &expires
	s.byToken[tokenHash] = id
	return nil
}

// UpdatePasswordAndClearToken sets the password and clears the token under a
// single lock acquisition.
func (s *Store) UpdatePasswordAndClearToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (*auth.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.activeToken(tokenHash, now)
	if !ok {
		return nil, notFound("token", "redacted")
	}
	delete(s.byToken, tokenHash)
	account.PasswordHash = passwordHash
	account.ResetTokenHash = ""
	account.ResetTokenExpiresAt = nil
	return clone(account), nil
}

// activeToken must be called with s.mu held.
func (s *Store) activeToken(tokenHash string, now time.Time) (*auth.Account, bool) {
	if tokenHash == "" {
		return nil, false
	}
	id, ok := s.byToken[tokenHash]
	if !ok {
		return nil, false
	}
	account := s.accounts[id]
	if account.ResetTokenExpiresAt != nil && !now.Before(*account.ResetTokenExpiresAt) {
		return nil, false
	}
	return account, true
}

// Ping satisfies readiness probes.
func (s *Store) Ping(context.Context) error {
	return nil
}

func clone(a *auth.Account) *auth.Account {
	c := *a
	c.Watchlist = make([]ulid.ULID, len(a.Watchlist))
	copy(c.Watchlist, a.Watchlist)
	if a.ResetTokenExpiresAt != nil {
		t := *a.ResetTokenExpiresAt
		c.ResetTokenExpiresAt = &t
	}
	return &c
}

func notFound(key, value string) error {
	return oops.Code("ACCOUNT_NOT_FOUND").With(key, value).Wrap(auth.ErrNotFound)
}

// Compile-time interface check.
var _ auth.AccountRepository = (*Store)(nil)
