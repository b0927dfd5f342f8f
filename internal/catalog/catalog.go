// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

// Package catalog resolves watchlist references into movie records.
// The catalog owns movie data; accounts only hold ordered references to it.
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Movie is a catalog entry as shown on a watchlist.
type Movie struct {
	ID          ulid.ULID `json:"id"`
	Title       string    `json:"title"`
	Link        string    `json:"link,omitempty"`
	Genre       string    `json:"genre,omitempty"`
	Year        int       `json:"year,omitempty"`
	Rating      float64   `json:"rating,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Resolver turns movie references into movie records.
type Resolver interface {
	// Resolve returns the movies for ids in the order given. References to
	// movies that no longer exist are skipped.
	Resolve(ctx context.Context, ids []ulid.ULID) ([]Movie, error)
}

// order arranges movies to follow ids, dropping ids with no matching movie.
func order(ids []ulid.ULID, movies []Movie) []Movie {
	byID := make(map[ulid.ULID]Movie, len(movies))
	for _, m := range movies {
		byID[m.ID] = m
	}
	out := make([]Movie, 0, len(ids))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Static is an in-memory Resolver.
type Static struct {
	mu     sync.RWMutex
	movies []Movie
}

// NewStatic creates a Static resolver over movies.
func NewStatic(movies ...Movie) *Static {
	return &Static{movies: movies}
}

// Add appends movies to the resolver.
func (s *Static) Add(movies ...Movie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movies = append(s.movies, movies...)
}

// Resolve implements Resolver.
func (s *Static) Resolve(_ context.Context, ids []ulid.ULID) ([]Movie, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return order(ids, s.movies), nil
}

// Compile-time interface check.
var _ Resolver = (*Static)(nil)
