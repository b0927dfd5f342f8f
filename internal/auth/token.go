// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenExpiry = 24 * time.Hour
	MinSigningKeyBytes = 32
)

// Claims is the identity carried by a session token.
type Claims struct {
	ID    ulid.ULID `json:"id"`
	Email string    `json:"email"`
	Role  Role      `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies session tokens.
type TokenIssuer interface {
	// Issue signs a token for the given identity.
	Issue(id ulid.ULID, email string, role Role) (string, error)

	// Verify parses and validates a token. Every failure is CodeInvalidToken.
	Verify(token string) (*Claims, error)
}

// JWTIssuer implements TokenIssuer with HS256 JSON Web Tokens.
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// JWTIssuerOption configures a JWTIssuer.
type JWTIssuerOption func(*JWTIssuer)

// WithTokenTTL overrides SessionTokenExpiry.
func WithTokenTTL(ttl time.Duration) JWTIssuerOption {
	return func(i *JWTIssuer) {
		if ttl > 0 {
			i.ttl = ttl
		}
	}
}

// WithClock replaces the time source used for issuing and validating.
func WithClock(now func() time.Time) JWTIssuerOption {
	return func(i *JWTIssuer) {
		if now != nil {
			i.now = now
		}
	}
}

// NewJWTIssuer creates a JWTIssuer. The secret must be present and at least
// MinSigningKeyBytes long before the issuer is used.
func NewJWTIssuer(secret []byte, opts ...JWTIssuerOption) (*JWTIssuer, error) {
	if len(secret) == 0 {
		return nil, oops.Code("TOKEN_SECRET_MISSING").Errorf("signing secret is required")
	}
	if len(secret) < MinSigningKeyBytes {
		return nil, oops.Code("TOKEN_SECRET_TOO_SHORT").
			With("min_bytes", MinSigningKeyBytes).
			Errorf("signing secret must be at least %d bytes", MinSigningKeyBytes)
	}
	key := make([]byte, len(secret))
	copy(key, secret)

	i := &JWTIssuer{
		secret: key,
		ttl:    SessionTokenExpiry,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// TTL returns the lifetime of issued tokens.
func (i *JWTIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token carrying id, email and role that expires after the TTL.
func (i *JWTIssuer) Issue(id ulid.ULID, email string, role Role) (string, error) {
	now := i.now()
	claims := Claims{
		ID:    id,
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").
			With("account_id", id.String()).
			Wrap(err)
	}
	return signed, nil
}

// Verify validates signature, structure and expiry. The returned error never
// says which check failed.
func (i *JWTIssuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(_ *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return nil, invalidToken()
	}
	if claims.ID.Compare(ulid.ULID{}) == 0 || !claims.Role.Valid() {
		return nil, invalidToken()
	}
	return claims, nil
}

func invalidToken() error {
	return oops.Code(CodeInvalidToken).Errorf("invalid or expired token")
}

// Compile-time interface check.
var _ TokenIssuer = (*JWTIssuer)(nil)
