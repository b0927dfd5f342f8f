// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

// Package web is the HTTP transport of the authentication service.
package web

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/oops"

	"github.com/reelpass/reelpass/internal/auth"
)

// DefaultRequestTimeout bounds request handling.
const DefaultRequestTimeout = 30 * time.Second

// Recorder observes HTTP traffic and authentication outcomes.
type Recorder interface {
	HTTPRequest(route string, status int)
	AuthEvent(event, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) HTTPRequest(string, int)   {}
func (nopRecorder) AuthEvent(string, string) {}

// Options configures the HTTP surface.
type Options struct {
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
	// RequestTimeout bounds each request; zero uses DefaultRequestTimeout.
	RequestTimeout time.Duration
	Recorder       Recorder
	Logger         *slog.Logger
}

// Server holds the handlers of the API.
type Server struct {
	service       *auth.Service
	gate          *auth.Gate
	logger        *slog.Logger
	recorder      Recorder
	secureCookies bool
	timeout       time.Duration
}

// NewServer creates the API handlers.
func NewServer(service *auth.Service, gate *auth.Gate, opts Options) (*Server, error) {
	if service == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if gate == nil {
		return nil, oops.Errorf("access gate is required")
	}
	s := &Server{
		service:       service,
		gate:          gate,
		logger:        opts.Logger,
		recorder:      opts.Recorder,
		secureCookies: opts.SecureCookies,
		timeout:       opts.RequestTimeout,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.recorder == nil {
		s.recorder = nopRecorder{}
	}
	if s.timeout <= 0 {
		s.timeout = DefaultRequestTimeout
	}
	return s, nil
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.logger, s.recorder))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Message: "method not allowed"})
	})

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Post("/signup", s.signup)
		v1.Post("/login", s.login)
		v1.Post("/forget-password", s.forgotPassword)
		v1.Post("/reset-password", s.resetPassword)

		v1.Group(func(authed chi.Router) {
			authed.Use(s.authenticate)

			authed.Post("/logout", s.logout)
			authed.Get("/profile", s.getProfile)
			authed.Put("/profile", s.updateProfile)
			authed.Get("/accounts/{id}", s.getAccount)

			authed.With(s.requireRole(auth.RoleAdmin)).Get("/admin/users", s.listAccounts)
		})
	})

	return r
}
