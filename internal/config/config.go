// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

// Package config loads ReelPass settings from defaults, an optional YAML
// file, REELPASS_* environment variables and command-line flags, in that
// order of precedence.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override. A double underscore
// separates nesting levels: REELPASS_AUTH__JWT_SECRET sets auth.jwt_secret.
const EnvPrefix = "REELPASS_"

// MinJWTSecretBytes is the shortest accepted signing secret.
const MinJWTSecretBytes = 32

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Mail modes.
const (
	MailLog   = "log"
	MailSMTP  = "smtp"
	MailQueue = "queue"
)

// Config is the full service configuration.
type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Metrics  Metrics  `koanf:"metrics"`
	Log      Log      `koanf:"log"`
	Storage  Storage  `koanf:"storage"`
	Database Database `koanf:"database"`
	Auth     Auth     `koanf:"auth"`
	Mail     Mail     `koanf:"mail"`
	SMTP     SMTP     `koanf:"smtp"`
	Redis    Redis    `koanf:"redis"`
}

// HTTP configures the API listener.
type HTTP struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
}

// Metrics configures the observability listener. An empty Addr disables it.
type Metrics struct {
	Addr string `koanf:"addr"`
}

// Log configures logging.
type Log struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Storage selects the credential store.
type Storage struct {
	Driver string `koanf:"driver"`
}

// Database configures PostgreSQL.
type Database struct {
	URL            string        `koanf:"url"`
	AutoMigrate    bool          `koanf:"auto_migrate"`
	ConnectTimeout time.Duration `koanf:"connect_timeout"`
}

// Auth configures tokens and signup.
type Auth struct {
	JWTSecret        string        `koanf:"jwt_secret"`
	TokenTTL         time.Duration `koanf:"token_ttl"`
	ResetTokenTTL    time.Duration `koanf:"reset_token_ttl"`
	AllowAdminSignup bool          `koanf:"allow_admin_signup"`
	SecureCookies    bool          `koanf:"secure_cookies"`
}

// Mail configures reset notifications.
type Mail struct {
	Mode        string        `koanf:"mode"`
	From        string        `koanf:"from"`
	ResetURL    string        `koanf:"reset_url"`
	SendTimeout time.Duration `koanf:"send_timeout"`
}

// SMTP configures the mail relay.
type SMTP struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// Redis configures the mail outbox.
type Redis struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Queue    string `koanf:"queue"`
}

var defaults = map[string]any{
	"http.addr":                ":5000",
	"http.read_header_timeout": "10s",
	"http.request_timeout":     "30s",
	"metrics.addr":             "127.0.0.1:9100",
	"log.format":               "json",
	"log.level":                "info",
	"storage.driver":           DriverPostgres,
	"database.auto_migrate":    false,
	"database.connect_timeout": "30s",
	"auth.token_ttl":           "24h",
	"auth.reset_token_ttl":     "1h",
	"auth.allow_admin_signup":  false,
	"auth.secure_cookies":      false,
	"mail.mode":                MailLog,
	"mail.from":                "ReelPass <noreply@reelpass.local>",
	"mail.reset_url":           "http://localhost:5000/api/v1/reset-password",
	"mail.send_timeout":        "15s",
	"smtp.port":                587,
	"redis.db":                 0,
	"redis.queue":              "reelpass:mail:outbox",
}

// Load reads configuration. path may be empty; flags may be nil. Flag names
// map to keys by turning dashes into dots, so --http-addr sets http.addr.
// Flags whose names do not match a known key are ignored.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("key", key).Wrap(err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			return flagKey(flags, f)
		}), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}

	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DATABASE_URL")
	}
	return &cfg, nil
}

func envKey(name string) string {
	name = strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	return strings.ReplaceAll(name, "__", ".")
}

// flagKey maps a flag to its key. The first dash separates the section and
// later dashes become underscores: --database-auto-migrate is
// database.auto_migrate.
func flagKey(flags *pflag.FlagSet, f *pflag.Flag) (string, any) {
	section, rest, found := strings.Cut(f.Name, "-")
	if !found {
		return "", nil
	}
	key := section + "." + strings.ReplaceAll(rest, "-", "_")
	if _, known := knownKeys[key]; !known {
		return "", nil
	}
	return key, posflag.FlagVal(flags, f)
}

var knownKeys = func() map[string]struct{} {
	keys := map[string]struct{}{
		"database.url":    {},
		"auth.jwt_secret": {},
		"smtp.host":       {},
		"smtp.username":   {},
		"smtp.password":   {},
		"redis.addr":      {},
		"redis.password":  {},
	}
	for key := range defaults {
		keys[key] = struct{}{}
	}
	return keys
}()
