package client

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tees-eng/purchasing-service/internal/apperrors"
)

// SMTPMailer sends workflow email alerts. Email is an observability
// side-channel: callers treat a send failure as a warning, never as a
// reason to roll anything back.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	log      zerolog.Logger
}

// NewSMTPMailer creates a mailer for the given SMTP relay.
func NewSMTPMailer(host string, port int, username, password, from string, log zerolog.Logger) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		log:      log.With().Str("component", "mailer").Logger(),
	}
}

// SendEmail sends one HTML message to all recipients. Returns an
// unavailable-coded error on failure.
func (m *SMTPMailer) SendEmail(ctx context.Context, recipients []string, subject, body string) error {
	if len(recipients) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "email send canceled")
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.from)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	if err := smtp.SendMail(addr, auth, m.from, recipients, []byte(msg.String())); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "email send failed")
	}

	m.log.Debug().Int("recipients", len(recipients)).Str("subject", subject).Msg("Email sent")
	return nil
}
