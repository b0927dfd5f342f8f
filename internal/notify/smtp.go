// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

package notify

import (
	"context"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the SMTP server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// mailClient is the part of *mail.Client the sender uses.
type mailClient interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPSender delivers messages over SMTP.
type SMTPSender struct {
	client mailClient
	from   string
}

// NewSMTPSender creates an SMTP sender. Port 465 uses implicit TLS; other
// ports require STARTTLS when credentials are set.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, oops.Code("SMTP_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, oops.Code("SMTP_CONFIG_INVALID").Errorf("mail from address is required")
	}

	opts := []mail.Option{}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}
	switch {
	case cfg.Port == 465:
		opts = append(opts, mail.WithSSLPort(false))
	case cfg.Username != "":
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSOpportunistic))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, oops.Code("SMTP_CONFIG_INVALID").With("host", cfg.Host).Wrap(err)
	}
	return newSMTPSender(client, cfg.From), nil
}

func newSMTPSender(client mailClient, from string) *SMTPSender {
	return &SMTPSender{client: client, from: from}
}

// Name implements Sender.
func (s *SMTPSender) Name() string { return "smtp" }

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	msg, err := s.build(m)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return oops.Code("SMTP_SEND_FAILED").With("account_id", m.AccountID).Wrap(err)
	}
	return nil
}

func (s *SMTPSender) build(m Message) (*mail.Msg, error) {
	text, err := m.RenderText()
	if err != nil {
		return nil, err
	}
	html, err := m.RenderHTML()
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, oops.Code("SMTP_INVALID_ADDRESS").With("from", s.from).Wrap(err)
	}
	if err := msg.To(m.To); err != nil {
		return nil, oops.Code("SMTP_INVALID_ADDRESS").With("account_id", m.AccountID).Wrap(err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(mail.TypeTextPlain, text)
	msg.AddAlternativeString(mail.TypeTextHTML, html)
	return msg, nil
}
