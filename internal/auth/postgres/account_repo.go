// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

// Package postgres implements auth.AccountRepository on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/reelpass/reelpass/internal/auth"
)

// EmailConstraint is the unique index on LOWER(email).
const EmailConstraint = "accounts_email_key"

// Querier is the subset of pgxpool.Pool used by the repository.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// accountColumns selects an account row aliased as a, with its watchlist in
// list order.
const accountColumns = `
	a.id, a.name, a.email, a.password_hash, a.role,
	a.reset_token, a.reset_token_expires_at, a.created_at,
	COALESCE((
		SELECT array_agg(w.movie_id ORDER BY w.position)
		FROM account_watchlist w
		WHERE w.account_id = a.id
	), '{}')`

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db Querier
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db Querier) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts the account and its watchlist in one statement. The unique
// index on LOWER(email) decides duplicates.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	watchlist := make([]string, len(account.Watchlist))
	for i, id := range account.Watchlist {
		watchlist[i] = id.String()
	}

	_, err := r.db.Exec(ctx, `
		WITH inserted AS (
			INSERT INTO accounts (id, name, email, password_hash, role, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		)
		INSERT INTO account_watchlist (account_id, movie_id, position)
		SELECT inserted.id, m.movie_id, m.position
		FROM inserted, unnest($7::text[]) WITH ORDINALITY AS m(movie_id, position)
	`,
		account.ID.String(),
		account.Name,
		auth.NormalizeEmail(account.Email),
		account.PasswordHash,
		string(account.Role),
		account.CreatedAt,
		watchlist,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation && pgErr.ConstraintName == EmailConstraint {
			return oops.Code("ACCOUNT_EMAIL_TAKEN").
				With("email", account.Email).
				Wrap(auth.ErrDuplicateEmail)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("id", account.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.id = $1`, id.String())
	return r.one(row, "get account by id", "id", id.String())
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.Account, error) {
	email = auth.NormalizeEmail(email)
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE LOWER(a.email) = $1`, email)
	return r.one(row, "get account by email", "email", email)
}

// GetByResetToken retrieves the account holding an unexpired token hash.
func (r *AccountRepository) GetByResetToken(ctx context.Context, tokenHash string, now time.Time) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts a
		WHERE a.reset_token = $1 AND a.reset_token_expires_at > $2
	`, tokenHash, now)
	return r.one(row, "get account by reset token", "token", "redacted")
}

// List returns every account ordered by creation time.
func (r *AccountRepository) List(ctx context.Context) ([]*auth.Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts a ORDER BY a.created_at, a.id`)
	if err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "query accounts").
			Wrap(err)
	}
	defer rows.Close()

	accounts := []*auth.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, oops.Code("ACCOUNT_LIST_FAILED").
				With("operation", "scan account").
				Wrap(err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "iterate accounts").
			Wrap(err)
	}
	return accounts, nil
}

// UpdateName sets the display name.
func (r *AccountRepository) UpdateName(ctx context.Context, id ulid.ULID, name string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE accounts AS a SET name = $2
		WHERE a.id = $1
		RETURNING `+accountColumns, id.String(), name)
	return r.one(row, "update name", "id", id.String())
}

// UpdateRole sets the role.
func (r *AccountRepository) UpdateRole(ctx context.Context, id ulid.ULID, role auth.Role) (*auth.Account, error) {
	if !role.Valid() {
		return nil, oops.Code("ACCOUNT_INVALID_ROLE").With("role", string(role)).Errorf("unknown role")
	}
	row := r.db.QueryRow(ctx, `
		UPDATE accounts AS a SET role = $2
		WHERE a.id = $1
		RETURNING `+accountColumns, id.String(), string(role))
	return r.one(row, "update role", "id", id.String())
}

// UpdatePasswordHash replaces the password hash.
func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id ulid.ULID, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET password_hash = $2 WHERE id = $1`, id.String(), passwordHash)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "update password hash").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// SetResetToken stores a token hash with its expiry, replacing any previous one.
func (r *AccountRepository) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET reset_token = $2, reset_token_expires_at = $3
		WHERE id = $1
	`, id.String(), tokenHash, expiresAt)
	if err != nil {
		return oops.Code("ACCOUNT_UPDATE_FAILED").
			With("operation", "set reset token").
			With("id", id.String()).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").With("id", id.String()).Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePasswordAndClearToken is a single conditional UPDATE keyed by the
// token hash. Concurrent callers race on the row lock; once the first commits
// the predicate no longer matches for the rest.
func (r *AccountRepository) UpdatePasswordAndClearToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE accounts AS a
		SET password_hash = $2, reset_token = NULL, reset_token_expires_at = NULL
		WHERE a.reset_token = $1 AND a.reset_token_expires_at > $3
		RETURNING `+accountColumns, tokenHash, passwordHash, now)
	return r.one(row, "consume reset token", "token", "redacted")
}

func (r *AccountRepository) one(row pgx.Row, operation, key, value string) (*auth.Account, error) {
	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").With(key, value).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_QUERY_FAILED").
			With("operation", operation).
			With(key, value).
			Wrap(err)
	}
	return account, nil
}

func scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		account   auth.Account
		idStr     string
		role      string
		token     *string
		expiresAt *time.Time
		watchlist []string
	)
	if err := row.Scan(
		&idStr, &account.Name, &account.Email, &account.PasswordHash, &role,
		&token, &expiresAt, &account.CreatedAt, &watchlist,
	); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").With("id", idStr).Wrap(err)
	}
	account.ID = id
	account.Role = auth.Role(role)
	if token != nil {
		account.ResetTokenHash = *token
	}
	account.ResetTokenExpiresAt = expiresAt

	account.Watchlist = make([]ulid.ULID, 0, len(watchlist))
	for _, raw := range watchlist {
		movieID, err := ulid.Parse(raw)
		if err != nil {
			return nil, oops.Code("ACCOUNT_INVALID_WATCHLIST").With("movie_id", raw).Wrap(err)
		}
		account.Watchlist = append(account.Watchlist, movieID)
	}
	return &account, nil
}

// Ping checks database connectivity for readiness probes.
func (r *AccountRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return oops.Code("ACCOUNT_STORE_UNAVAILABLE").Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
