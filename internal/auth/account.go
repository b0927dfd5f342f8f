// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Password constraints.
const (
	MinPasswordLength = 6
	// bcrypt ignores input past 72 bytes; longer secrets are refused rather than truncated.
	MaxPasswordBytes = 72
)

// emailRegex accepts local@domain.tld with no whitespace and a single @.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Role is the authorization tier of an account.
type Role string

// Defined roles.
const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

// ParseRole converts input into a Role. Empty input yields RoleUser; any other
// value outside the defined set is rejected.
func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(s)) {
	case "", RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", oops.Code(CodeValidation).
			With("role", s).
			Errorf("role must be %q or %q", RoleUser, RoleAdmin)
	}
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account is the stored credential record. PasswordHash and ResetTokenHash never
// leave the auth core; callers receive a PublicAccount instead.
type Account struct {
	ID                  ulid.ULID
	Name                string
	Email               string
	PasswordHash        string
	Role                Role
	ResetTokenHash      string
	ResetTokenExpiresAt *time.Time
	Watchlist           []ulid.ULID
	CreatedAt           time.Time
}

// NewAccount creates a validated Account ready for insertion.
// The email is normalized; the name is trimmed.
func NewAccount(name, email, passwordHash string, role Role) (*Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, oops.Code(CodeValidation).Errorf("name cannot be empty")
	}
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if passwordHash == "" {
		return nil, oops.Code(CodeValidation).Errorf("password hash cannot be empty")
	}
	if !role.Valid() {
		return nil, oops.Code(CodeValidation).With("role", string(role)).Errorf("unknown role")
	}
	return &Account{
		ID:           ulid.Make(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Watchlist:    []ulid.ULID{},
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email has the local@domain.tld shape.
func ValidateEmail(email string) error {
	if email == "" {
		return oops.Code(CodeValidation).Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return oops.Code(CodeValidation).
			With("email", email).
			Errorf("please provide a valid email address")
	}
	return nil
}

// ValidatePassword enforces the password length policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return oops.Code(CodeWeakPassword).
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	if len(password) > MaxPasswordBytes {
		return oops.Code(CodeValidation).
			With("max", MaxPasswordBytes).
			Errorf("password must be at most %d bytes long", MaxPasswordBytes)
	}
	return nil
}

// PublicAccount is an account with secret fields removed.
type PublicAccount struct {
	ID        ulid.ULID   `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      Role        `json:"role"`
	Watchlist []ulid.ULID `json:"watchlist"`
	CreatedAt time.Time   `json:"created_at"`
}

// Public returns the sanitized view of the account.
func (a *Account) Public() *PublicAccount {
	watchlist := make([]ulid.ULID, len(a.Watchlist))
	copy(watchlist, a.Watchlist)
	return &PublicAccount{
		ID:        a.ID,
		Name:      a.Name,
		Email:     a.Email,
		Role:      a.Role,
		Watchlist: watchlist,
		CreatedAt: a.CreatedAt,
	}
}

// AccountRepository manages account persistence. Every operation that must be
// atomic is a single repository call.
type AccountRepository interface {
	// Create stores a new account. Returns ErrDuplicateEmail when the email is
	// already registered; uniqueness is enforced by the store, not by a pre-check.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByEmail retrieves an account by email (case-insensitive).
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByResetToken retrieves the account holding tokenHash, provided the
	// token has not expired at now.
	GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*Account, error)

	// List returns all accounts ordered by creation time.
	List(ctx context.Context) ([]*Account, error)

	// UpdateName sets the display name and returns the updated account.
	UpdateName(ctx context.Context, id ulid.ULID, name string) (*Account, error)

	// UpdateRole sets the role and returns the updated account.
	UpdateRole(ctx context.Context, id ulid.ULID, role Role) (*Account, error)

	// UpdatePasswordHash replaces the password hash of an account.
	UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error

	// SetResetToken stores tokenHash on the account, replacing any previous one.
	SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error

	// UpdatePasswordAndClearToken sets a new password hash and clears the reset
	// token in one conditional update keyed by the token hash. Returns
	// ErrNotFound when no account holds an unexpired token equal to tokenHash.
	UpdatePasswordAndClearToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*Account, error)
}
