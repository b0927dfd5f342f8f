// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/reelpass/reelpass/internal/catalog"
	"github.com/reelpass/reelpass/pkg/errutil"
)

var tracer = otel.Tracer("reelpass/auth")

// endSpan records err on span, then ends it.
func endSpan(span trace.Span, err error) {
	if err != nil {
		if code := ErrorCode(err); code != "" {
			span.SetAttributes(attribute.String("error.code", code))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// ResetNotice is what the notification collaborator needs to tell an account
// holder about a freshly issued reset token.
type ResetNotice struct {
	AccountID ulid.ULID
	Name      string
	Email     string
	Token     string
	ExpiresAt time.Time
	TTL       time.Duration
}

// ResetNotifier delivers reset notices. NotifyReset must return promptly;
// delivery outcome is observed by the implementation, never by the caller.
type ResetNotifier interface {
	NotifyReset(ctx context.Context, notice ResetNotice)
}

// SignupInput is the signup request.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// LoginInput is the login request.
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult carries the issued session token and the signed-in account.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   *PublicAccount
}

// Profile is an account with its watchlist resolved into catalog entries.
type Profile struct {
	PublicAccount
	Watchlist []catalog.Movie `json:"watchlist"`
}

// ServiceDeps groups the collaborators of Service.
type ServiceDeps struct {
	Accounts AccountRepository
	Hasher   PasswordHasher
	Tokens   TokenIssuer
	Resets   *ResetTokens
	Notifier ResetNotifier
	Catalog  catalog.Resolver
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithAdminSignup allows the Admin role to be requested at signup.
func WithAdminSignup(allow bool) ServiceOption {
	return func(s *Service) {
		s.allowAdminSignup = allow
	}
}

// WithServiceClock replaces the time source used for login results.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service orchestrates signup, login, logout, profile and password reset flows.
type Service struct {
	accounts AccountRepository
	hasher   PasswordHasher
	tokens   TokenIssuer
	resets   *ResetTokens
	notifier ResetNotifier
	catalog  catalog.Resolver
	logger   *slog.Logger
	now      func() time.Time

	allowAdminSignup bool

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a Service that discards its logs.
func NewAuthService(deps ServiceDeps, opts ...ServiceOption) (*Service, error) {
	return NewAuthServiceWithLogger(deps, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

// NewAuthServiceWithLogger creates a Service. Every dependency is required.
func NewAuthServiceWithLogger(deps ServiceDeps, logger *slog.Logger, opts ...ServiceOption) (*Service, error) {
	switch {
	case deps.Accounts == nil:
		return nil, oops.Errorf("account repository is required")
	case deps.Hasher == nil:
		return nil, oops.Errorf("password hasher is required")
	case deps.Tokens == nil:
		return nil, oops.Errorf("token issuer is required")
	case deps.Resets == nil:
		return nil, oops.Errorf("reset token manager is required")
	case deps.Notifier == nil:
		return nil, oops.Errorf("reset notifier is required")
	case deps.Catalog == nil:
		return nil, oops.Errorf("catalog resolver is required")
	case logger == nil:
		return nil, oops.Errorf("logger is required")
	}

	s := &Service{
		accounts: deps.Accounts,
		hasher:   deps.Hasher,
		tokens:   deps.Tokens,
		resets:   deps.Resets,
		notifier: deps.Notifier,
		catalog:  deps.Catalog,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Signup validates the input, hashes the password and creates the account.
// Email uniqueness is decided by the store's insert.
func (s *Service) Signup(ctx context.Context, in SignupInput) (_ *PublicAccount, err error) {
	ctx, span := tracer.Start(ctx, "auth.signup")
	defer func() { endSpan(span, err) }()

	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return nil, oops.Code(CodeValidation).Errorf("name, email and password are required")
	}
	if err = ValidateEmail(email); err != nil {
		return nil, err
	}
	if err = ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	role, err := ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	if role == RoleAdmin && !s.allowAdminSignup {
		return nil, oops.Code(CodeValidation).With("role", string(role)).Errorf("role not permitted")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "signup: hashing password", err)
		return nil, err
	}

	account, err := NewAccount(name, email, hash, role)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("account.id", account.ID.String()))
	if err = s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			return nil, oops.Code(CodeDuplicateEmail).Errorf("an account with this email already exists")
		}
		wrapped := persistenceFailed("create account", err)
		errutil.LogErrorContext(ctx, s.logger, "signup: persisting account", wrapped)
		return nil, wrapped
	}

	s.logger.InfoContext(ctx, "account created",
		"account_id", account.ID.String(),
		"role", string(account.Role))
	return account.Public(), nil
}

// Login verifies credentials and issues a session token. Unknown email and wrong
// password produce the same error, and both run one hash comparison.
func (s *Service) Login(ctx context.Context, in LoginInput) (_ *LoginResult, err error) {
	ctx, span := tracer.Start(ctx, "auth.login")
	defer func() { endSpan(span, err) }()

	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, oops.Code(CodeValidation).Errorf("email and password are required")
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.hasher.Verify(in.Password, s.dummy())
			return nil, invalidCredentials()
		}
		wrapped := persistenceFailed("get account by email", err)
		errutil.LogErrorContext(ctx, s.logger, "login: looking up account", wrapped)
		return nil, wrapped
	}

	span.SetAttributes(attribute.String("account.id", account.ID.String()))
	if !s.hasher.Verify(in.Password, account.PasswordHash) {
		return nil, invalidCredentials()
	}

	if s.hasher.NeedsUpgrade(account.PasswordHash) {
		s.upgradeHash(ctx, account, in.Password)
	}

	token, err := s.tokens.Issue(account.ID, account.Email, account.Role)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "login: issuing token", err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "login succeeded", "account_id", account.ID.String())
	return &LoginResult{
		Token:     token,
		ExpiresAt: s.now().Add(s.sessionTTL()),
		Account:   account.Public(),
	}, nil
}

// sessionTTL is the issuer's token lifetime when it reports one.
func (s *Service) sessionTTL() time.Duration {
	if ttl, ok := s.tokens.(interface{ TTL() time.Duration }); ok && ttl.TTL() > 0 {
		return ttl.TTL()
	}
	return SessionTokenExpiry
}

// upgradeHash re-hashes the password at the current cost. Failure is logged
// and never fails the login.
func (s *Service) upgradeHash(ctx context.Context, account *Account, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "login: rehashing password", err)
		return
	}
	if err := s.accounts.UpdatePasswordHash(ctx, account.ID, newHash); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "login: storing upgraded hash",
			persistenceFailed("update password hash", err))
		return
	}
	account.PasswordHash = newHash
	s.logger.DebugContext(ctx, "password hash upgraded", "account_id", account.ID.String())
}

// dummy returns a hash that no password matches, computed once at the
// hasher's cost so unknown-email logins take as long as real ones.
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		secret, err := GenerateResetToken()
		if err != nil {
			secret = "reelpass-login-equalizer"
		}
		hash, err := s.hasher.Hash(secret)
		if err != nil {
			errutil.LogError(s.logger, "login: computing timing hash", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// Logout is stateless. Session tokens stay valid until they expire; the
// transport tells the client to discard its copy.
func (s *Service) Logout(ctx context.Context, account *Account) error {
	if account == nil {
		return nil
	}
	s.logger.InfoContext(ctx, "logout", "account_id", account.ID.String())
	return nil
}

// ForgotPassword attaches a fresh reset token to the account and hands it to
// the notifier. The request succeeds once the token is stored, whatever
// happens to delivery.
func (s *Service) ForgotPassword(ctx context.Context, email string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.forgot_password")
	defer func() { endSpan(span, err) }()

	email = NormalizeEmail(email)
	if email == "" {
		return oops.Code(CodeValidation).Errorf("email is required")
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeNotFound).Errorf("no account found with that email")
		}
		wrapped := persistenceFailed("get account by email", err)
		errutil.LogErrorContext(ctx, s.logger, "forgot password: looking up account", wrapped)
		return wrapped
	}

	span.SetAttributes(attribute.String("account.id", account.ID.String()))
	token, err := s.resets.Generate()
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "forgot password: generating token", err)
		return err
	}
	expiresAt, err := s.resets.Attach(ctx, account.ID, token)
	if err != nil {
		wrapped := persistenceFailed("attach reset token", err)
		errutil.LogErrorContext(ctx, s.logger, "forgot password: storing token", wrapped)
		return wrapped
	}

	s.notifier.NotifyReset(ctx, ResetNotice{
		AccountID: account.ID,
		Name:      account.Name,
		Email:     account.Email,
		Token:     token,
		ExpiresAt: expiresAt,
		TTL:       s.resets.TTL(),
	})

	s.logger.InfoContext(ctx, "reset token issued",
		"account_id", account.ID.String(),
		"expires_at", expiresAt)
	return nil
}

// ResetPassword sets a new password for the holder of token and clears the
// token in the same store update.
func (s *Service) ResetPassword(ctx context.Context, token, password string) (err error) {
	ctx, span := tracer.Start(ctx, "auth.reset_password")
	defer func() { endSpan(span, err) }()

	if token == "" || password == "" {
		return oops.Code(CodeValidation).Errorf("token and new password are required")
	}
	if err = ValidatePassword(password); err != nil {
		return err
	}

	// Reject unknown tokens before paying for a hash.
	if _, err = s.resets.Lookup(ctx, token); err != nil {
		if ErrorCode(err) != CodeInvalidResetToken {
			errutil.LogErrorContext(ctx, s.logger, "reset password: looking up token", err)
		}
		return err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "reset password: hashing password", err)
		return err
	}

	account, err := s.resets.Consume(ctx, token, hash)
	if err != nil {
		if ErrorCode(err) != CodeInvalidResetToken {
			errutil.LogErrorContext(ctx, s.logger, "reset password: consuming token", err)
		}
		return err
	}

	span.SetAttributes(attribute.String("account.id", account.ID.String()))
	s.logger.InfoContext(ctx, "password reset", "account_id", account.ID.String())
	return nil
}

// GetProfile returns the account with its watchlist resolved.
func (s *Service) GetProfile(ctx context.Context, id ulid.ULID) (_ *Profile, err error) {
	ctx, span := tracer.Start(ctx, "auth.get_profile",
		trace.WithAttributes(attribute.String("account.id", id.String())))
	defer func() { endSpan(span, err) }()

	account, err := s.lookup(ctx, id, "get profile")
	if err != nil {
		return nil, err
	}

	movies, err := s.catalog.Resolve(ctx, account.Watchlist)
	if err != nil {
		wrapped := oops.Code("AUTH_CATALOG_FAILED").
			With("account_id", id.String()).
			Wrap(err)
		errutil.LogErrorContext(ctx, s.logger, "get profile: resolving watchlist", wrapped)
		return nil, wrapped
	}
	if movies == nil {
		movies = []catalog.Movie{}
	}
	return &Profile{PublicAccount: *account.Public(), Watchlist: movies}, nil
}

// UpdateProfile changes the display name. No other field is writable here.
func (s *Service) UpdateProfile(ctx context.Context, id ulid.ULID, name string) (_ *PublicAccount, err error) {
	ctx, span := tracer.Start(ctx, "auth.update_profile",
		trace.WithAttributes(attribute.String("account.id", id.String())))
	defer func() { endSpan(span, err) }()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, oops.Code(CodeValidation).Errorf("name is required")
	}

	account, err := s.accounts.UpdateName(ctx, id, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeNotFound).Errorf("account not found")
		}
		wrapped := persistenceFailed("update name", err)
		errutil.LogErrorContext(ctx, s.logger, "update profile", wrapped)
		return nil, wrapped
	}
	return account.Public(), nil
}

// GetAccount returns the sanitized account with the given id.
func (s *Service) GetAccount(ctx context.Context, id ulid.ULID) (*PublicAccount, error) {
	account, err := s.lookup(ctx, id, "get account")
	if err != nil {
		return nil, err
	}
	return account.Public(), nil
}

// ListAccounts returns every account, sanitized.
func (s *Service) ListAccounts(ctx context.Context) ([]*PublicAccount, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		wrapped := persistenceFailed("list accounts", err)
		errutil.LogErrorContext(ctx, s.logger, "list accounts", wrapped)
		return nil, wrapped
	}
	out := make([]*PublicAccount, 0, len(accounts))
	for _, account := range accounts {
		out = append(out, account.Public())
	}
	return out, nil
}

// AssignRole changes the role of the account registered under email. It backs
// operator tooling; no request path reaches it.
func (s *Service) AssignRole(ctx context.Context, email string, role Role) (*PublicAccount, error) {
	if !role.Valid() {
		return nil, oops.Code(CodeValidation).With("role", string(role)).Errorf("unknown role")
	}
	account, err := s.accounts.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeNotFound).With("email", email).Errorf("account not found")
		}
		return nil, persistenceFailed("get account by email", err)
	}
	updated, err := s.accounts.UpdateRole(ctx, account.ID, role)
	if err != nil {
		return nil, persistenceFailed("update role", err)
	}
	s.logger.InfoContext(ctx, "role assigned",
		"account_id", updated.ID.String(),
		"role", string(updated.Role))
	return updated.Public(), nil
}

func (s *Service) lookup(ctx context.Context, id ulid.ULID, operation string) (*Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code(CodeNotFound).With("account_id", id.String()).Errorf("account not found")
		}
		wrapped := persistenceFailed(operation, err)
		errutil.LogErrorContext(ctx, s.logger, operation, wrapped)
		return nil, wrapped
	}
	return account, nil
}
