// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/reelpass/reelpass/internal/auth"
	"github.com/reelpass/reelpass/internal/auth/postgres"
	"github.com/reelpass/reelpass/internal/catalog"
)

func newAccount(email string) *auth.Account {
	account, err := auth.NewAccount("Tester", email, "hash", auth.RoleUser)
	Expect(err).NotTo(HaveOccurred())
	account.CreatedAt = account.CreatedAt.Truncate(time.Microsecond)
	return account
}

var _ = Describe("AccountRepository", func() {
	var (
		ctx  context.Context
		repo *postgres.AccountRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = postgres.NewAccountRepository(testPool)
	})

	It("round-trips an account with its watchlist", func() {
		movies := catalog.NewPostgresRepository(testPool)
		first := catalog.Movie{ID: ulid.Make(), Title: "Heat", CreatedAt: time.Now().UTC()}
		second := catalog.Movie{ID: ulid.Make(), Title: "Ran", CreatedAt: time.Now().UTC()}
		Expect(movies.Create(ctx, first)).To(Succeed())
		Expect(movies.Create(ctx, second)).To(Succeed())

		account := newAccount("Film@Example.com")
		account.Watchlist = []ulid.ULID{second.ID, first.ID}
		Expect(repo.Create(ctx, account)).To(Succeed())

		stored, err := repo.GetByEmail(ctx, "FILM@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.ID).To(Equal(account.ID))
		Expect(stored.Email).To(Equal("film@example.com"))
		Expect(stored.Watchlist).To(Equal([]ulid.ULID{second.ID, first.ID}))
		Expect(stored.CreatedAt).To(BeTemporally("==", account.CreatedAt))

		resolved, err := movies.Resolve(ctx, stored.Watchlist)
		Expect(err).NotTo(HaveOccurred())
		Expect(resolved).To(HaveLen(2))
		Expect(resolved[0].Title).To(Equal("Ran"))
	})

	It("reports missing accounts as not found", func() {
		_, err := repo.GetByID(ctx, ulid.Make())
		Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
	})

	It("lets exactly one concurrent signup claim an email", func() {
		const workers = 12
		accounts := make([]*auth.Account, workers)
		for i := range accounts {
			accounts[i] = newAccount("Race@Example.com")
		}

		var (
			wg         sync.WaitGroup
			created    atomic.Int32
			duplicates atomic.Int32
		)
		start := make(chan struct{})
		for _, account := range accounts {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				<-start
				err := repo.Create(ctx, account)
				switch {
				case err == nil:
					created.Add(1)
				case errors.Is(err, auth.ErrDuplicateEmail):
					duplicates.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		Expect(created.Load()).To(Equal(int32(1)))
		Expect(duplicates.Load()).To(Equal(int32(workers - 1)))
	})

	It("consumes a reset token at most once under concurrency", func() {
		account := newAccount("reset@example.com")
		Expect(repo.Create(ctx, account)).To(Succeed())
		now := time.Now()
		Expect(repo.SetResetToken(ctx, account.ID, "digest", now.Add(time.Hour))).To(Succeed())

		const workers = 12
		var (
			wg        sync.WaitGroup
			successes atomic.Int32
			misses    atomic.Int32
		)
		start := make(chan struct{})
		for range workers {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				<-start
				_, err := repo.UpdatePasswordAndClearToken(ctx, "digest", "new-hash", now)
				switch {
				case err == nil:
					successes.Add(1)
				case errors.Is(err, auth.ErrNotFound):
					misses.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		Expect(successes.Load()).To(Equal(int32(1)))
		Expect(misses.Load()).To(Equal(int32(workers - 1)))

		stored, err := repo.GetByID(ctx, account.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.PasswordHash).To(Equal("new-hash"))
		Expect(stored.ResetTokenHash).To(BeEmpty())
		Expect(stored.ResetTokenExpiresAt).To(BeNil())
	})

	It("ignores expired and superseded tokens", func() {
		account := newAccount("expiry@example.com")
		Expect(repo.Create(ctx, account)).To(Succeed())
		now := time.Now()

		Expect(repo.SetResetToken(ctx, account.ID, "old", now.Add(time.Hour))).To(Succeed())
		Expect(repo.SetResetToken(ctx, account.ID, "new", now.Add(time.Hour))).To(Succeed())

		_, err := repo.GetByResetToken(ctx, "old", now)
		Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())

		_, err = repo.GetByResetToken(ctx, "new", now.Add(2*time.Hour))
		Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())

		found, err := repo.GetByResetToken(ctx, "new", now)
		Expect(err).NotTo(HaveOccurred())
		Expect(found.ID).To(Equal(account.ID))
	})

	It("updates name and role and lists by creation", func() {
		first := newAccount("first@example.com")
		second := newAccount("second@example.com")
		second.CreatedAt = first.CreatedAt.Add(time.Second)
		Expect(repo.Create(ctx, first)).To(Succeed())
		Expect(repo.Create(ctx, second)).To(Succeed())

		renamed, err := repo.UpdateName(ctx, first.ID, "Renamed")
		Expect(err).NotTo(HaveOccurred())
		Expect(renamed.Name).To(Equal("Renamed"))
		Expect(renamed.Email).To(Equal("first@example.com"))

		promoted, err := repo.UpdateRole(ctx, second.ID, auth.RoleAdmin)
		Expect(err).NotTo(HaveOccurred())
		Expect(promoted.Role).To(Equal(auth.RoleAdmin))

		Expect(repo.UpdatePasswordHash(ctx, first.ID, "rehash")).To(Succeed())

		all, err := repo.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(all).To(HaveLen(2))
		Expect(all[0].ID).To(Equal(first.ID))
		Expect(all[0].PasswordHash).To(Equal("rehash"))

		Expect(repo.Ping(ctx)).To(Succeed())
	})
})
