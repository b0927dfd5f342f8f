// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package auth

import (
	"context"
	"errors"
	"slices"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Gate admits requests carrying a valid session token for an account that
// still exists, and enforces role and ownership rules on the admitted account.
type Gate struct {
	tokens   TokenIssuer
	accounts AccountRepository
}

// NewGate creates a Gate.
func NewGate(tokens TokenIssuer, accounts AccountRepository) (*Gate, error) {
	if tokens == nil {
		return nil, oops.Errorf("token issuer is required")
	}
	if accounts == nil {
		return nil, oops.Errorf("account repository is required")
	}
	return &Gate{tokens: tokens, accounts: accounts}, nil
}

// Authenticate verifies token and re-reads the account it names. The role
// used for later checks is the stored one, not the one in the token.
// The returned account has its secret fields cleared.
func (g *Gate) Authenticate(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, oops.Code(CodeMissingHeader).Errorf("authorization header missing or malformed")
	}

	claims, err := g.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	account, err := g.accounts.GetByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeAccountNotFound).Errorf("account no longer exists")
		}
		return nil, persistenceFailed("get account by id", err)
	}

	account.PasswordHash = ""
	account.ResetTokenHash = ""
	account.ResetTokenExpiresAt = nil
	return account, nil
}

// Authorize fails with CodeForbidden unless account holds one of roles.
func Authorize(account *Account, roles ...Role) error {
	if account == nil || !slices.Contains(roles, account.Role) {
		return forbidden()
	}
	return nil
}

// AuthorizeOwner admits the owner of a resource, or any Admin.
func AuthorizeOwner(account *Account, ownerID ulid.ULID) error {
	if account == nil {
		return forbidden()
	}
	if account.Role == RoleAdmin || account.ID == ownerID {
		return nil
	}
	return forbidden()
}

func forbidden() error {
	return oops.Code(CodeForbidden).Errorf("you do not have permission to perform this action")
}

type accountKey struct{}

// WithAccount returns a context carrying the authenticated account.
func WithAccount(ctx context.Context, account *Account) context.Context {
	return context.WithValue(ctx, accountKey{}, account)
}

// AccountFromContext returns the account stored by WithAccount.
func AccountFromContext(ctx context.Context) (*Account, bool) {
	account, ok := ctx.Value(accountKey{}).(*Account)
	return account, ok && account != nil
}
