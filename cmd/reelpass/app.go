// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/reelpass/reelpass/internal/auth"
	"github.com/reelpass/reelpass/internal/auth/memstore"
	authpg "github.com/reelpass/reelpass/internal/auth/postgres"
	"github.com/reelpass/reelpass/internal/catalog"
	"github.com/reelpass/reelpass/internal/config"
	"github.com/reelpass/reelpass/internal/notify"
	"github.com/reelpass/reelpass/internal/store"
)

// pinger reports store reachability for readiness probes.
type pinger interface {
	Ping(ctx context.Context) error
}

// recorder is what the app feeds with metrics. *observability.Metrics
// satisfies it.
type recorder interface {
	notify.Recorder
	HTTPRequest(route string, status int)
	AuthEvent(event, outcome string)
}

// app is the wired service graph shared by serve and the account commands.
type app struct {
	accounts   auth.AccountRepository
	store      pinger
	service    *auth.Service
	gate       *auth.Gate
	dispatcher *notify.Dispatcher
	closers    []func()
}

// buildApp wires stores, the notifier and the auth service from cfg. cfg
// must already be validated. rec may be nil.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, rec recorder) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	var resolver catalog.Resolver
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		mem := memstore.New()
		a.accounts, a.store = mem, mem
		resolver = catalog.NewStatic()
		logger.Warn("using in-memory storage; accounts are lost on restart")
	default:
		if cfg.Database.AutoMigrate {
			if err := migrateUp(cfg.Database.URL, logger); err != nil {
				return nil, err
			}
		}
		pool, err := store.Connect(ctx, cfg.Database.URL, cfg.Database.ConnectTimeout, logger)
		if err != nil {
			return nil, err //nolint:wrapcheck // coded by store
		}
		a.closers = append(a.closers, pool.Close)
		repo := authpg.NewAccountRepository(pool)
		a.accounts, a.store = repo, repo
		resolver = catalog.NewPostgresRepository(pool)
	}

	sender, err := newSender(ctx, cfg, logger, a)
	if err != nil {
		return nil, err
	}
	dispatcherOpts := []notify.DispatcherOption{
		notify.WithSendTimeout(cfg.Mail.SendTimeout),
		notify.WithLogger(logger),
	}
	if rec != nil {
		dispatcherOpts = append(dispatcherOpts, notify.WithRecorder(rec))
	}
	a.dispatcher, err = notify.NewDispatcher(sender, cfg.Mail.ResetURL, dispatcherOpts...)
	if err != nil {
		return nil, err //nolint:wrapcheck // coded by notify
	}

	issuer, err := auth.NewJWTIssuer([]byte(cfg.Auth.JWTSecret), auth.WithTokenTTL(cfg.Auth.TokenTTL))
	if err != nil {
		return nil, err //nolint:wrapcheck // coded by auth
	}
	resets, err := auth.NewResetTokens(a.accounts, auth.WithResetTTL(cfg.Auth.ResetTokenTTL))
	if err != nil {
		return nil, err //nolint:wrapcheck // coded by auth
	}

	a.service, err = auth.NewAuthServiceWithLogger(auth.ServiceDeps{
		Accounts: a.accounts,
		Hasher:   auth.NewBcryptHasher(),
		Tokens:   issuer,
		Resets:   resets,
		Notifier: a.dispatcher,
		Catalog:  resolver,
	}, logger, auth.WithAdminSignup(cfg.Auth.AllowAdminSignup))
	if err != nil {
		return nil, err //nolint:wrapcheck // constructor errors are descriptive
	}

	a.gate, err = auth.NewGate(issuer, a.accounts)
	if err != nil {
		return nil, err //nolint:wrapcheck // constructor errors are descriptive
	}

	ok = true
	return a, nil
}

// newSender picks the delivery path for mail.mode.
func newSender(ctx context.Context, cfg *config.Config, logger *slog.Logger, a *app) (notify.Sender, error) {
	switch cfg.Mail.Mode {
	case config.MailSMTP:
		return notify.NewSMTPSender(smtpConfig(cfg)) //nolint:wrapcheck // coded by notify
	case config.MailQueue:
		rdb, err := connectRedis(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		return notify.NewQueueSender(rdb, cfg.Redis.Queue) //nolint:wrapcheck // constructor errors are descriptive
	default:
		return notify.NewLogSender(logger), nil
	}
}

func smtpConfig(cfg *config.Config) notify.SMTPConfig {
	return notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.Mail.From,
		Timeout:  cfg.Mail.SendTimeout,
	}
}

func connectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").With("addr", cfg.Redis.Addr).Wrap(err)
	}
	return rdb, nil
}

func migrateUp(databaseURL string, logger *slog.Logger) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err //nolint:wrapcheck // coded by store
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("closing migrator", "error", closeErr)
		}
	}()
	if err := migrator.Up(); err != nil {
		return err //nolint:wrapcheck // coded by store
	}
	version, _, err := migrator.Version()
	if err != nil {
		return err //nolint:wrapcheck // coded by store
	}
	logger.Info("database migrated", "version", version)
	return nil
}

// Close releases pools and clients in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
