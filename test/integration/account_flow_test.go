// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/reelpass/reelpass/internal/auth"
	"github.com/reelpass/reelpass/internal/catalog"
	"github.com/reelpass/reelpass/internal/notify"
)

var _ = Describe("Account lifecycle", func() {
	var s *stack

	BeforeEach(func() {
		s = newStack()
	})

	signup := func(name, email, password string) reply {
		status, body := s.call(http.MethodPost, "/api/v1/signup", "", map[string]string{
			"name": name, "email": email, "password": password,
		})
		Expect(status).To(Equal(http.StatusCreated), body.Message)
		return body
	}

	login := func(email, password string) (int, reply) {
		return s.call(http.MethodPost, "/api/v1/login", "", map[string]string{
			"email": email, "password": password,
		})
	}

	It("signs up, logs in and reads the profile", func() {
		signup("Ada", "Ada@Example.com", "Str0ng!Passw0rd")

		status, body := login("ada@example.com", "Str0ng!Passw0rd")
		Expect(status).To(Equal(http.StatusOK))
		Expect(body.Token).NotTo(BeEmpty())
		Expect(body.User.Email).To(Equal("ada@example.com"))
		Expect(body.User.Role).To(Equal(string(auth.RoleUser)))

		status, profile := s.call(http.MethodGet, "/api/v1/profile", body.Token, nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(string(profile.Data)).To(ContainSubstring(`"watchlist":[]`))
	})

	It("resolves watchlist entries from the catalog", func() {
		ctx := context.Background()
		movies := catalog.NewPostgresRepository(pool)
		movie := catalog.Movie{ID: ulid.Make(), Title: "Stalker", CreatedAt: time.Now().UTC()}
		Expect(movies.Create(ctx, movie)).To(Succeed())

		created := signup("Ada", "ada@example.com", "Str0ng!Passw0rd")
		var account struct {
			ID string `json:"id"`
		}
		Expect(json.Unmarshal(created.Data, &account)).To(Succeed())
		_, err := pool.Exec(ctx, `INSERT INTO account_watchlist (account_id, movie_id, position) VALUES ($1, $2, 0)`,
			account.ID, movie.ID.String())
		Expect(err).NotTo(HaveOccurred())

		_, body := login("ada@example.com", "Str0ng!Passw0rd")
		status, profile := s.call(http.MethodGet, "/api/v1/profile", body.Token, nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(string(profile.Data)).To(ContainSubstring("Stalker"))
	})

	It("accepts exactly one of two concurrent signups for the same email", func() {
		var wg sync.WaitGroup
		statuses := make([]int, 2)
		for i := range statuses {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				statuses[i], _ = s.call(http.MethodPost, "/api/v1/signup", "", map[string]string{
					"name": "Racer", "email": "race@example.com", "password": "Str0ng!Passw0rd",
				})
			}()
		}
		wg.Wait()
		Expect(statuses).To(ConsistOf(http.StatusCreated, http.StatusConflict))
	})

	It("resets a forgotten password through the mail outbox", func() {
		signup("Ada", "ada@example.com", "Str0ng!Passw0rd")

		status, body := s.call(http.MethodPost, "/api/v1/forget-password", "", map[string]string{
			"email": "ada@example.com",
		})
		Expect(status).To(Equal(http.StatusOK), body.Message)

		var delivered []notify.Message
		Eventually(func() []notify.Message {
			delivered = s.mail.received()
			return delivered
		}, 10*time.Second, 100*time.Millisecond).Should(HaveLen(1))
		Expect(delivered[0].To).To(Equal("ada@example.com"))
		Expect(delivered[0].Link).To(HavePrefix(resetURL + "?token="))

		token := resetToken(delivered[0].Link)
		status, body = s.call(http.MethodPost, "/api/v1/reset-password?token="+token, "", map[string]string{
			"password": "N3w!Passw0rdXyz",
		})
		Expect(status).To(Equal(http.StatusOK), body.Message)

		status, _ = login("ada@example.com", "Str0ng!Passw0rd")
		Expect(status).To(Equal(http.StatusUnauthorized))
		status, _ = login("ada@example.com", "N3w!Passw0rdXyz")
		Expect(status).To(Equal(http.StatusOK))

		status, _ = s.call(http.MethodPost, "/api/v1/reset-password?token="+token, "", map[string]string{
			"password": "An0ther!Passw0rd",
		})
		Expect(status).To(Equal(http.StatusBadRequest))
	})

	It("restricts the account listing to admins", func() {
		signup("Ada", "ada@example.com", "Str0ng!Passw0rd")
		_, user := login("ada@example.com", "Str0ng!Passw0rd")

		status, _ := s.call(http.MethodGet, "/api/v1/admin/users", user.Token, nil)
		Expect(status).To(Equal(http.StatusForbidden))

		_, err := s.service.AssignRole(context.Background(), "ada@example.com", auth.RoleAdmin)
		Expect(err).NotTo(HaveOccurred())

		status, body := s.call(http.MethodGet, "/api/v1/admin/users", user.Token, nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(string(body.Data)).To(ContainSubstring("ada@example.com"))
		Expect(string(body.Data)).NotTo(ContainSubstring("password"))
	})
})
