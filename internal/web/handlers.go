// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/reelpass/reelpass/internal/auth"
)

// SessionCookie is the cookie that carries the session token.
const SessionCookie = "token"

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

// profileRequest lists the only writable profile field.
type profileRequest struct {
	Name string `json:"name"`
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, r, s.logger, err)
		return
	}

	account, err := s.service.Signup(r.Context(), auth.SignupInput(req))
	s.recorder.AuthEvent("signup", outcome(err))
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respond(w, http.StatusCreated, "account created", account)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, r, s.logger, err)
		return
	}

	result, err := s.service.Login(r.Context(), auth.LoginInput(req))
	s.recorder.AuthEvent("login", outcome(err))
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    result.Token,
		Path:     "/",
		Expires:  result.ExpiresAt,
		MaxAge:   int(time.Until(result.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "login successful",
		Token:   result.Token,
		User:    result.Account,
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFromContext(r.Context())
	if err := s.service.Logout(r.Context(), account); err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	s.recorder.AuthEvent("logout", "success")

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	respond(w, http.StatusOK, "logged out", nil)
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, r, s.logger, err)
		return
	}

	err := s.service.ForgotPassword(r.Context(), req.Email)
	s.recorder.AuthEvent("forgot_password", outcome(err))
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respond(w, http.StatusOK, "password reset link sent to your email", nil)
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req passwordRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, r, s.logger, err)
		return
	}

	err := s.service.ResetPassword(r.Context(), r.URL.Query().Get("token"), req.Password)
	s.recorder.AuthEvent("reset_password", outcome(err))
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respond(w, http.StatusOK, "password has been reset", nil)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	account, _ := auth.AccountFromContext(r.Context())
	profile, err := s.service.GetProfile(r.Context(), account.ID)
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respond(w, http.StatusOK, "profile", profile)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decode(w, r, &req); err != nil {
		respondError(w, r, s.logger, err)
		return
	}

	account, _ := auth.AccountFromContext(r.Context())
	updated, err := s.service.UpdateProfile(r.Context(), account.ID, req.Name)
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respond(w, http.StatusOK, "profile updated", updated)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := ulid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, s.logger, oops.Code(auth.CodeValidation).Errorf("invalid account id"))
		return
	}

	account, _ := auth.AccountFromContext(r.Context())
	if err := auth.AuthorizeOwner(account, id); err != nil {
		respondError(w, r, s.logger, err)
		return
	}

	found, err := s.service.GetAccount(r.Context(), id)
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respond(w, http.StatusOK, "account", found)
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.service.ListAccounts(r.Context())
	if err != nil {
		respondError(w, r, s.logger, err)
		return
	}
	respond(w, http.StatusOK, "accounts", accounts)
}
