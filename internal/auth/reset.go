// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-password/password"
)

// Reset token configuration.
const (
	ResetTokenLength = 64 // alphanumeric characters, ~370 bits
	ResetTokenExpiry = time.Hour
	resetTokenDigits = 16
)

// GenerateResetToken creates a cryptographically random alphanumeric token.
func GenerateResetToken() (string, error) {
	token, err := password.Generate(ResetTokenLength, resetTokenDigits, 0, false, true)
	if err != nil {
		return "", oops.Code("RESET_TOKEN_GENERATE_FAILED").Wrap(err)
	}
	return token, nil
}

// HashResetToken computes the SHA256 digest under which a token is stored.
// Only the digest is persisted; the plaintext goes to the account holder.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ResetTokens manages single-use password reset tokens stored on the account
// record. Only the most recently attached token of an account is honored.
type ResetTokens struct {
	accounts AccountRepository
	ttl      time.Duration
	now      func() time.Time
}

// ResetTokensOption configures ResetTokens.
type ResetTokensOption func(*ResetTokens)

// WithResetTTL overrides ResetTokenExpiry.
func WithResetTTL(ttl time.Duration) ResetTokensOption {
	return func(r *ResetTokens) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithResetClock replaces the time source.
func WithResetClock(now func() time.Time) ResetTokensOption {
	return func(r *ResetTokens) {
		if now != nil {
			r.now = now
		}
	}
}

// NewResetTokens creates a ResetTokens manager.
func NewResetTokens(accounts AccountRepository, opts ...ResetTokensOption) (*ResetTokens, error) {
	if accounts == nil {
		return nil, oops.Errorf("account repository is required")
	}
	r := &ResetTokens{
		accounts: accounts,
		ttl:      ResetTokenExpiry,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// TTL returns how long an attached token stays valid.
func (r *ResetTokens) TTL() time.Duration {
	return r.ttl
}

// Generate returns a fresh token.
func (r *ResetTokens) Generate() (string, error) {
	return GenerateResetToken()
}

// Attach stores token on the account, overwriting any unconsumed token.
func (r *ResetTokens) Attach(ctx context.Context, accountID ulid.ULID, token string) (time.Time, error) {
	expiresAt := r.now().Add(r.ttl).UTC()
	if err := r.accounts.SetResetToken(ctx, accountID, HashResetToken(token), expiresAt); err != nil {
		return time.Time{}, oops.Code("RESET_ATTACH_FAILED").
			With("account_id", accountID.String()).
			Wrap(err)
	}
	return expiresAt, nil
}

// Lookup resolves the account holding token without consuming it.
func (r *ResetTokens) Lookup(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, invalidResetToken()
	}
	account, err := r.accounts.GetByResetToken(ctx, HashResetToken(token), r.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalidResetToken()
		}
		return nil, oops.Code("RESET_LOOKUP_FAILED").Wrap(err)
	}
	return account, nil
}

// Consume sets passwordHash and clears token in one store operation. Of any
// number of concurrent calls with the same token at most one succeeds.
func (r *ResetTokens) Consume(ctx context.Context, token, passwordHash string) (*Account, error) {
	if token == "" {
		return nil, invalidResetToken()
	}
	account, err := r.accounts.UpdatePasswordAndClearToken(ctx, HashResetToken(token), passwordHash, r.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalidResetToken()
		}
		return nil, oops.Code("RESET_CONSUME_FAILED").Wrap(err)
	}
	return account, nil
}

func invalidResetToken() error {
	return oops.Code(CodeInvalidResetToken).Errorf("invalid or expired reset link")
}
