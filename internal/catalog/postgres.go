// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package catalog

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Querier is the subset of pgxpool.Pool used by the repository.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRepository reads movies from PostgreSQL.
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Resolve implements Resolver.
func (r *PostgresRepository) Resolve(ctx context.Context, ids []ulid.ULID) ([]Movie, error) {
	if len(ids) == 0 {
		return []Movie{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, title, link, genre, year, rating, description, created_at
		FROM movies
		WHERE id = ANY($1)
	`, keys)
	if err != nil {
		return nil, oops.Code("CATALOG_RESOLVE_FAILED").
			With("operation", "query movies").
			With("count", len(ids)).
			Wrap(err)
	}
	defer rows.Close()

	var movies []Movie
	for rows.Next() {
		var (
			idStr       string
			m           Movie
			link        *string
			genre       *string
			year        *int
			rating      *float64
			description *string
			createdAt   time.Time
		)
		if err := rows.Scan(&idStr, &m.Title, &link, &genre, &year, &rating, &description, &createdAt); err != nil {
			return nil, oops.Code("CATALOG_SCAN_FAILED").Wrap(err)
		}
		m.ID, err = ulid.Parse(idStr)
		if err != nil {
			return nil, oops.Code("CATALOG_INVALID_ID").With("id", idStr).Wrap(err)
		}
		m.Link = deref(link)
		m.Genre = deref(genre)
		m.Description = deref(description)
		if year != nil {
			m.Year = *year
		}
		if rating != nil {
			m.Rating = *rating
		}
		m.CreatedAt = createdAt
		movies = append(movies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("CATALOG_RESOLVE_FAILED").
			With("operation", "iterate movies").
			Wrap(err)
	}

	return order(ids, movies), nil
}

// Create inserts a movie.
func (r *PostgresRepository) Create(ctx context.Context, m Movie) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO movies (id, title, link, genre, year, rating, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, m.ID.String(), m.Title, m.Link, m.Genre, m.Year, m.Rating, m.Description, m.CreatedAt)
	if err != nil {
		return oops.Code("CATALOG_CREATE_FAILED").
			With("id", m.ID.String()).
			With("title", m.Title).
			Wrap(err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Compile-time interface check.
var _ Resolver = (*PostgresRepository)(nil)
