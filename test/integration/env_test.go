// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/reelpass/reelpass/internal/auth"
	authpg "github.com/reelpass/reelpass/internal/auth/postgres"
	"github.com/reelpass/reelpass/internal/catalog"
	"github.com/reelpass/reelpass/internal/logging"
	"github.com/reelpass/reelpass/internal/notify"
	"github.com/reelpass/reelpass/internal/store"
	"github.com/reelpass/reelpass/internal/web"
)

const (
	testSecret = "integration-secret-that-is-long-enough"
	resetURL   = "https://reelpass.test/reset-password"
	outbox     = "reelpass:test:outbox"
)

var (
	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool
)

var _ = BeforeSuite(func() {
	ctx := context.Background()
	var err error
	container, err = tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("reelpass_test"),
		tcpostgres.WithUsername("reelpass"),
		tcpostgres.WithPassword("reelpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	Expect(migrator.Up()).To(Succeed())
	Expect(migrator.Close()).To(Succeed())

	pool, err = store.Connect(ctx, connStr, 10*time.Second, logging.Discard())
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if pool != nil {
		pool.Close()
	}
	if container != nil {
		_ = container.Terminate(context.Background())
	}
})

// mailbox is the SMTP stand-in the outbox worker delivers to.
type mailbox struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (m *mailbox) Name() string { return "mailbox" }

func (m *mailbox) Send(_ context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mailbox) received() []notify.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notify.Message(nil), m.messages...)
}

// stack is one fully wired ReelPass deployment: Postgres-backed service,
// queued reset mail and a running outbox worker.
type stack struct {
	server     *httptest.Server
	service    *auth.Service
	dispatcher *notify.Dispatcher
	mail       *mailbox
	stopWorker context.CancelFunc
	workerDone chan error
}

func newStack() *stack {
	_, err := pool.Exec(context.Background(), `TRUNCATE account_watchlist, movies, accounts CASCADE`)
	Expect(err).NotTo(HaveOccurred())

	mr := miniredis.RunT(GinkgoT())
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	DeferCleanup(rdb.Close)

	logger := logging.Discard()
	accounts := authpg.NewAccountRepository(pool)

	queue, err := notify.NewQueueSender(rdb, outbox)
	Expect(err).NotTo(HaveOccurred())
	dispatcher, err := notify.NewDispatcher(queue, resetURL, notify.WithLogger(logger))
	Expect(err).NotTo(HaveOccurred())

	issuer, err := auth.NewJWTIssuer([]byte(testSecret))
	Expect(err).NotTo(HaveOccurred())
	resets, err := auth.NewResetTokens(accounts)
	Expect(err).NotTo(HaveOccurred())

	service, err := auth.NewAuthServiceWithLogger(auth.ServiceDeps{
		Accounts: accounts,
		Hasher:   auth.NewBcryptHasherWithCost(4),
		Tokens:   issuer,
		Resets:   resets,
		Notifier: dispatcher,
		Catalog:  catalog.NewPostgresRepository(pool),
	}, logger)
	Expect(err).NotTo(HaveOccurred())
	gate, err := auth.NewGate(issuer, accounts)
	Expect(err).NotTo(HaveOccurred())

	srv, err := web.NewServer(service, gate, web.Options{Logger: logger})
	Expect(err).NotTo(HaveOccurred())

	s := &stack{
		server:     httptest.NewServer(srv.Handler()),
		service:    service,
		dispatcher: dispatcher,
		mail:       &mailbox{},
		workerDone: make(chan error, 1),
	}

	worker, err := notify.NewWorker(rdb, outbox, s.mail, notify.WithWorkerLogger(logger))
	Expect(err).NotTo(HaveOccurred())
	var ctx context.Context
	ctx, s.stopWorker = context.WithCancel(context.Background())
	go func() { s.workerDone <- worker.Run(ctx) }()

	DeferCleanup(s.close)
	return s
}

func (s *stack) close() {
	s.server.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	Expect(s.dispatcher.Close(ctx)).To(Succeed())
	s.stopWorker()
	Eventually(s.workerDone, 5*time.Second).Should(Receive(BeNil()))
}

type reply struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Token   string          `json:"token"`
	User    struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
}

// call sends a JSON request and decodes the envelope.
func (s *stack) call(method, path, token string, body any) (int, reply) {
	var buf bytes.Buffer
	if body != nil {
		Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.server.Client().Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	var out reply
	Expect(json.NewDecoder(resp.Body).Decode(&out)).To(Succeed())
	return resp.StatusCode, out
}

// resetToken extracts the token query parameter from a delivered link.
func resetToken(link string) string {
	u, err := url.Parse(link)
	Expect(err).NotTo(HaveOccurred())
	return u.Query().Get("token")
}
