// Package mail defines the outbound email port and its SMTP implementation.
// Delivery failures for verification and reset mail are logged by callers,
// never surfaced to clients.
package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"matcha/internal/logging"
)

// Message is a plain-text outbound email.
type Message struct {
	To      string
	Subject string
	Text    string
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTP sends through a single SMTP relay.
type SMTP struct {
	addr string
	from string
	auth smtp.Auth
}

var _ Mailer = (*SMTP)(nil)

// NewSMTP configures a mailer for host:port. user/pass are optional; when
// empty the relay is used unauthenticated (local dev catchers like MailHog).
func NewSMTP(host, port, user, pass, from string) *SMTP {
	var auth smtp.Auth
	if user != "" && pass != "" {
		auth = smtp.PlainAuth("", user, pass, host)
	}
	return &SMTP{addr: host + ":" + port, from: from, auth: auth}
}

// Send implements Mailer.
func (s *SMTP) Send(_ context.Context, msg Message) error {
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.from, msg.To, msg.Subject, msg.Text)
	if err := smtp.SendMail(s.addr, s.auth, s.from, []string{msg.To}, []byte(body)); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

// Log is a Mailer that only logs, for development without a relay.
type Log struct {
	log logging.Logger
}

var _ Mailer = (*Log)(nil)

// NewLog creates a log-only mailer.
func NewLog(log logging.Logger) *Log {
	return &Log{log: log}
}

// Send implements Mailer.
func (l *Log) Send(_ context.Context, msg Message) error {
	l.log.Info("mail (not sent)", "to", msg.To, "subject", msg.Subject, "text", msg.Text)
	return nil
}
