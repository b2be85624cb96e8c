// Copyright 2025 The gatewarden authors
// Licensed under the EUPL-1.2

package platform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/wneessen/go-mail"
)

// MailConfig configures the optional operator e-mail channel.
type MailConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// Enabled reports whether the mail channel is configured.
func (c MailConfig) Enabled() bool {
	return c.Host != "" && c.From != "" && c.To != ""
}

// Notifier fans operator alerts out to the mod-log channel and,
// when configured, to e-mail. Delivery is best-effort on both paths;
// failures are logged and swallowed.
type Notifier struct {
	client Client
	mail   MailConfig
}

// NewNotifier creates a notifier over the platform client.
func NewNotifier(client Client, mailCfg MailConfig) *Notifier {
	return &Notifier{client: client, mail: mailCfg}
}

// Alert delivers one operator notification. Each alert carries a
// correlation ID so the mod-log line and the mail can be tied together.
func (n *Notifier) Alert(ctx context.Context, subject, text string) {
	eventID := uuid.NewString()

	if n.client != nil {
		if err := n.client.ModLog(ctx, fmt.Sprintf("%s [%s]", text, eventID[:8])); err != nil {
			slog.Warn("mod-log delivery failed", "event_id", eventID, "error", err)
		}
	}

	if !n.mail.Enabled() {
		return
	}
	if err := n.sendMail(subject, fmt.Sprintf("%s\n\nevent: %s", text, eventID)); err != nil {
		slog.Warn("operator mail delivery failed", "event_id", eventID, "error", err)
	}
}

func (n *Notifier) sendMail(subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(n.mail.From); err != nil {
		return fmt.Errorf("setting from address: %w", err)
	}
	if err := msg.To(n.mail.To); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{mail.WithPort(n.mail.Port)}
	if n.mail.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(n.mail.Username),
			mail.WithPassword(n.mail.Password),
		)
	}
	client, err := mail.NewClient(n.mail.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}
	return client.DialAndSend(msg)
}
