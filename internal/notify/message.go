// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ReelPass Contributors

// Package notify delivers password reset messages. A Dispatcher fans
// messages out asynchronously to a Sender: SMTP directly, a Redis outbox
// drained by a Worker, or the log.
package notify

import (
	"bytes"
	"context"
	htmltemplate "html/template"
	"net/url"
	"strconv"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/samber/oops"

	"github.com/reelpass/reelpass/internal/auth"
)

// ResetSubject is the subject line of reset messages.
const ResetSubject = "Reset your ReelPass password"

// Message is a rendered-ready reset notification.
type Message struct {
	AccountID string        `json:"account_id"`
	To        string        `json:"to"`
	Name      string        `json:"name"`
	Subject   string        `json:"subject"`
	Link      string        `json:"link"`
	ExpiresIn time.Duration `json:"expires_in"`
}

// Sender delivers a single message.
type Sender interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// Recorder observes delivery outcomes.
type Recorder interface {
	NotificationSent(sender, status string)
}

type nopRecorder struct{}

func (nopRecorder) NotificationSent(string, string) {}

// ResetLink appends the token to base as the "token" query parameter.
func ResetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", oops.Code("NOTIFY_INVALID_RESET_URL").With("reset_url", base).Errorf("reset url must be absolute")
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// NewResetMessage builds the message for notice.
func NewResetMessage(notice auth.ResetNotice, resetURL string) (Message, error) {
	link, err := ResetLink(resetURL, notice.Token)
	if err != nil {
		return Message{}, err
	}
	return Message{
		AccountID: notice.AccountID.String(),
		To:        notice.Email,
		Name:      notice.Name,
		Subject:   ResetSubject,
		Link:      link,
		ExpiresIn: notice.TTL,
	}, nil
}

const textBody = `Hello {{.Name}},

Someone asked to reset the password for your ReelPass account.
Open the link below to choose a new one:

{{.Link}}

The link expires in {{.Expiry}}. If you did not ask for this, you can ignore this email.
`

const htmlBody = `<p>Hello {{.Name}},</p>
<p>Someone asked to reset the password for your ReelPass account.</p>
<p><a href="{{.Link}}">Choose a new password</a></p>
<p>The link expires in {{.Expiry}}. If you did not ask for this, you can ignore this email.</p>
`

var (
	textTemplate = texttemplate.Must(texttemplate.New("reset.txt").Parse(textBody))
	htmlTemplate = htmltemplate.Must(htmltemplate.New("reset.html").Parse(htmlBody))
)

// templateData is what the body templates see.
type templateData struct {
	Name   string
	Link   string
	Expiry string
}

func (m Message) templateData() templateData {
	name := m.Name
	if strings.TrimSpace(name) == "" {
		name = "there"
	}
	return templateData{Name: name, Link: m.Link, Expiry: humanDuration(m.ExpiresIn)}
}

// RenderText renders the plain-text body.
func (m Message) RenderText() (string, error) {
	var buf bytes.Buffer
	if err := textTemplate.Execute(&buf, m.templateData()); err != nil {
		return "", oops.Code("NOTIFY_RENDER_FAILED").Wrap(err)
	}
	return buf.String(), nil
}

// RenderHTML renders the HTML body.
func (m Message) RenderHTML() (string, error) {
	var buf bytes.Buffer
	if err := htmlTemplate.Execute(&buf, m.templateData()); err != nil {
		return "", oops.Code("NOTIFY_RENDER_FAILED").Wrap(err)
	}
	return buf.String(), nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short while"
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
