// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package auth

import (
	"errors"

	"github.com/samber/oops"

	"github.com/reelpass/reelpass/pkg/errutil"
)

// ErrNotFound is returned by repositories when a requested account does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned by repositories when an insert violates email uniqueness.
var ErrDuplicateEmail = errors.New("email already registered")

// Error codes surfaced by the authentication core.
const (
	CodeValidation          = "AUTH_VALIDATION"
	CodeWeakPassword        = "AUTH_WEAK_PASSWORD"
	CodeDuplicateEmail      = "AUTH_DUPLICATE_EMAIL"
	CodeInvalidCredentials  = "AUTH_INVALID_CREDENTIALS"
	CodeNotFound            = "AUTH_NOT_FOUND"
	CodeInvalidResetToken   = "AUTH_INVALID_OR_EXPIRED_TOKEN"
	CodeMissingHeader       = "AUTH_MISSING_OR_MALFORMED_HEADER"
	CodeInvalidToken        = "AUTH_INVALID_TOKEN"
	CodeAccountNotFound     = "AUTH_ACCOUNT_NOT_FOUND"
	CodeForbidden           = "AUTH_FORBIDDEN"
	CodeHashingFailed       = "AUTH_HASHING_FAILED"
	CodePersistenceFailed   = "AUTH_PERSISTENCE_FAILED"
	CodeNotificationFailure = "AUTH_NOTIFICATION_FAILED"
)

// ErrorCode returns the oops code carried by err, or "" when err has none.
func ErrorCode(err error) string {
	return errutil.Code(err)
}

// invalidCredentials is shared by every login failure path so unknown email and
// wrong password are indistinguishable to the caller.
func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
}

func persistenceFailed(operation string, err error) error {
	return oops.Code(CodePersistenceFailed).
		With("operation", operation).
		Wrap(err)
}
