// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package memstore_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelpass/reelpass/internal/auth"
	"github.com/reelpass/reelpass/internal/auth/memstore"
)

func newAccount(t *testing.T, email string) *auth.Account {
	t.Helper()
	account, err := auth.NewAccount("Tester", email, "hash", auth.RoleUser)
	require.NoError(t, err)
	return account
}

func TestStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	account := newAccount(t, "Film.Fan@Example.com")
	require.NoError(t, store.Create(ctx, account))

	byID, err := store.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "film.fan@example.com", byID.Email)

	byEmail, err := store.GetByEmail(ctx, "FILM.FAN@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, byEmail.ID)

	// returned values are copies
	byID.Name = "mutated"
	again, err := store.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tester", again.Name)

	_, err = store.GetByID(ctx, ulid.Make())
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestStore_ConcurrentCreateSameEmail(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	const workers = 16
	var (
		wg         sync.WaitGroup
		successes  atomic.Int32
		duplicates atomic.Int32
	)
	accounts := make([]*auth.Account, workers)
	for i := range accounts {
		accounts[i] = newAccount(t, "race@example.com")
	}
	start := make(chan struct{})
	for _, account := range accounts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := store.Create(ctx, account)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, auth.ErrDuplicateEmail):
				duplicates.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(workers-1), duplicates.Load())
}

func TestStore_ResetTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	now := time.Now()

	account := newAccount(t, "reset@example.com")
	require.NoError(t, store.Create(ctx, account))

	require.NoError(t, store.SetResetToken(ctx, account.ID, "first", now.Add(time.Hour)))
	require.NoError(t, store.SetResetToken(ctx, account.ID, "second", now.Add(time.Hour)))

	_, err := store.GetByResetToken(ctx, "first", now)
	require.ErrorIs(t, err, auth.ErrNotFound, "older token is overwritten")

	found, err := store.GetByResetToken(ctx, "second", now)
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)

	_, err = store.GetByResetToken(ctx, "second", now.Add(2*time.Hour))
	require.ErrorIs(t, err, auth.ErrNotFound, "expired token")

	updated, err := store.UpdatePasswordAndClearToken(ctx, "second", "new-hash", now)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", updated.PasswordHash)
	assert.Empty(t, updated.ResetTokenHash)
	assert.Nil(t, updated.ResetTokenExpiresAt)

	_, err = store.UpdatePasswordAndClearToken(ctx, "second", "again", now)
	assert.ErrorIs(t, err, auth.ErrNotFound)
}

func TestStore_ConcurrentTokenConsume(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	now := time.Now()

	account := newAccount(t, "consume@example.com")
	require.NoError(t, store.Create(ctx, account))
	require.NoError(t, store.SetResetToken(ctx, account.ID, "token-hash", now.Add(time.Hour)))

	const workers = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		misses    atomic.Int32
	)
	start := make(chan struct{})
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := store.UpdatePasswordAndClearToken(ctx, "token-hash", "h", now)
			if err == nil {
				successes.Add(1)
			} else if errors.Is(err, auth.ErrNotFound) {
				misses.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(workers-1), misses.Load())
}

func TestStore_UpdatesAndList(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	first := newAccount(t, "first@example.com")
	require.NoError(t, store.Create(ctx, first))
	second := newAccount(t, "second@example.com")
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, store.Create(ctx, second))

	renamed, err := store.UpdateName(ctx, first.ID, "Renamed")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", renamed.Name)

	promoted, err := store.UpdateRole(ctx, second.ID, auth.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, promoted.Role)

	_, err = store.UpdateRole(ctx, second.ID, auth.Role("Root"))
	require.Error(t, err)

	require.NoError(t, store.UpdatePasswordHash(ctx, first.ID, "rehashed"))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, "rehashed", list[0].PasswordHash)
	assert.Equal(t, second.ID, list[1].ID)

	_, err = store.UpdateName(ctx, ulid.Make(), "ghost")
	assert.ErrorIs(t, err, auth.ErrNotFound)
	assert.ErrorIs(t, store.UpdatePasswordHash(ctx, ulid.Make(), "x"), auth.ErrNotFound)
	assert.ErrorIs(t, store.SetResetToken(ctx, ulid.Make(), "x", time.Now()), auth.ErrNotFound)
}
