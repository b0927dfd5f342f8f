// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package config

import (
	"net/url"
	"slices"
	"strings"

	"github.com/samber/oops"
)

func invalid(field, format string, args ...any) error {
	return oops.Code("CONFIG_INVALID").With("field", field).Errorf(format, args...)
}

// Validate checks the settings the server needs before any component is
// built: the signing secret, the store and the credentials of the mail mode.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < MinJWTSecretBytes {
		return invalid("auth.jwt_secret", "auth.jwt_secret must be at least %d bytes", MinJWTSecretBytes)
	}
	if c.Auth.TokenTTL <= 0 {
		return invalid("auth.token_ttl", "auth.token_ttl must be positive")
	}
	if c.Auth.ResetTokenTTL <= 0 {
		return invalid("auth.reset_token_ttl", "auth.reset_token_ttl must be positive")
	}

	if !slices.Contains([]string{"json", "text"}, c.Log.Format) {
		return invalid("log.format", "log.format must be json or text, got %q", c.Log.Format)
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		return invalid("http.addr", "http.addr is required")
	}

	switch c.Storage.Driver {
	case DriverPostgres:
		if err := c.ValidateDatabase(); err != nil {
			return err
		}
	case DriverMemory:
	default:
		return invalid("storage.driver", "storage.driver must be postgres or memory, got %q", c.Storage.Driver)
	}

	return c.validateMail()
}

// ValidateDatabase checks the settings needed to reach PostgreSQL.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL == "" {
		return invalid("database.url", "database.url (or DATABASE_URL) is required")
	}
	return nil
}

// ValidateWorker checks the settings the outbox worker needs.
func (c *Config) ValidateWorker() error {
	if c.Redis.Addr == "" {
		return invalid("redis.addr", "redis.addr is required")
	}
	return c.validateSMTP()
}

func (c *Config) validateMail() error {
	u, err := url.Parse(c.Mail.ResetURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("mail.reset_url", "mail.reset_url must be an absolute URL")
	}

	switch c.Mail.Mode {
	case MailLog:
		return nil
	case MailSMTP:
		return c.validateSMTP()
	case MailQueue:
		if c.Redis.Addr == "" {
			return invalid("redis.addr", "redis.addr is required for mail.mode=queue")
		}
		return nil
	default:
		return invalid("mail.mode", "mail.mode must be log, smtp or queue, got %q", c.Mail.Mode)
	}
}

func (c *Config) validateSMTP() error {
	if c.SMTP.Host == "" {
		return invalid("smtp.host", "smtp.host is required")
	}
	if strings.TrimSpace(c.Mail.From) == "" {
		return invalid("mail.from", "mail.from is required")
	}
	if c.SMTP.Username != "" && c.SMTP.Password == "" {
		return invalid("smtp.password", "smtp.password is required when smtp.username is set")
	}
	return nil
}
