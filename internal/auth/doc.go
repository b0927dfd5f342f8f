// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

// Package auth provides the ReelPass credential core.
//
// # Domain Types
//
// Account is the only entity. Create it with NewAccount, which trims the name,
// normalizes the email and rejects unknown roles. Callers outside this package
// receive PublicAccount, which has no secret fields.
//
// # Components
//
//   - BcryptHasher - salted adaptive password hashing (cost 12)
//   - JWTIssuer - HS256 session tokens with a 24h lifetime
//   - ResetTokens - single-use reset tokens stored as SHA256 digests
//   - Service - signup, login, logout, profile and password reset flows
//   - Gate - bearer token admission plus role and ownership checks
//
// Persistence goes through AccountRepository. Operations that must be atomic
// (unique email on insert, consuming a reset token) are single repository
// calls; implementations must not split them into read-then-write.
//
// Services are created with New* constructors that validate dependencies.
package auth
