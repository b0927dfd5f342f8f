// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/samber/oops"

	"github.com/reelpass/reelpass/internal/auth"
	"github.com/reelpass/reelpass/pkg/errutil"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

const genericFailure = "something went wrong, please try again later"

// envelope is the body of every API response.
type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    any                 `json:"data,omitempty"`
	Token   string              `json:"token,omitempty"`
	User    *auth.PublicAccount `json:"user,omitempty"`
}

// statusByCode maps client-facing error codes to HTTP statuses. Anything
// missing here is a 500.
var statusByCode = map[string]int{
	auth.CodeValidation:         http.StatusBadRequest,
	auth.CodeWeakPassword:       http.StatusBadRequest,
	auth.CodeInvalidResetToken:  http.StatusBadRequest,
	auth.CodeInvalidCredentials: http.StatusUnauthorized,
	auth.CodeMissingHeader:      http.StatusUnauthorized,
	auth.CodeInvalidToken:       http.StatusUnauthorized,
	auth.CodeAccountNotFound:    http.StatusUnauthorized,
	auth.CodeForbidden:          http.StatusForbidden,
	auth.CodeNotFound:           http.StatusNotFound,
	auth.CodeDuplicateEmail:     http.StatusConflict,
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	if status, ok := statusByCode[auth.ErrorCode(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // client may disconnect
	json.NewEncoder(w).Encode(body)
}

func respond(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

// respondError writes the uniform failure body. Internal errors are logged
// and replaced by a generic message.
func respondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := StatusFor(err)
	message := genericFailure
	if status < http.StatusInternalServerError {
		if oopsErr, ok := oops.AsOops(err); ok {
			message = oopsErr.Error()
		}
	} else {
		errutil.LogErrorContext(r.Context(), logger, "request failed", err)
	}
	writeJSON(w, status, envelope{Success: false, Message: message})
}

// decode reads a JSON body into dst. Unknown fields are ignored.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return oops.Code(auth.CodeValidation).Errorf("request body is required")
		}
		return oops.Code(auth.CodeValidation).Errorf("invalid request body")
	}
	return nil
}
