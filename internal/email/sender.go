// Package email delivers rendered messages.
package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiva/moveops/config"
)

// Sender delivers a complete message. rawMessage holds headers and body.
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

// NewSender returns an SMTP sender, or a logging sender when no SMTP host is
// configured.
func NewSender(cfg config.EmailConfig, log zerolog.Logger) Sender {
	if cfg.SMTPHost == "" {
		log.Info().Msg("SMTP host not configured, using logging email sender")
		return &LoggingSender{log: log}
	}
	return &SMTPSender{
		addr: cfg.Addr(),
		from: cfg.From,
		auth: smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost),
		log:  log,
	}
}

// ─── SMTP ───────────────────────────────────────────────────

// SMTPSender sends through an SMTP relay with PLAIN auth.
type SMTPSender struct {
	addr string
	from string
	auth smtp.Auth
	log  zerolog.Logger
}

// Send hands the message to the relay.
func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := smtp.SendMail(s.addr, s.auth, envelopeAddress(s.from), to, rawMessage); err != nil {
		return fmt.Errorf("smtp: send to %v: %w", to, err)
	}
	s.log.Info().Strs("to", to).Str("subject", subject).Msg("email sent")
	return nil
}

// envelopeAddress extracts the bare address from "Name <addr>".
func envelopeAddress(from string) string {
	if i := strings.LastIndex(from, "<"); i >= 0 {
		if j := strings.LastIndex(from, ">"); j > i {
			return from[i+1 : j]
		}
	}
	return from
}

// ─── Logging ────────────────────────────────────────────────

// LoggingSender logs messages instead of sending them.
type LoggingSender struct {
	log zerolog.Logger
}

// NewLoggingSender creates a logging sender.
func NewLoggingSender(log zerolog.Logger) *LoggingSender {
	return &LoggingSender{log: log}
}

func (s *LoggingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	s.log.Info().
		Strs("to", to).
		Str("subject", subject).
		Int("bytes", len(rawMessage)).
		Msg("email logged, not sent")
	s.log.Debug().Msg(string(rawMessage))
	return nil
}

// ─── Message ────────────────────────────────────────────────

// BuildMessage assembles a plain-text RFC 5322 message.
func BuildMessage(from, to, subject, body string, date time.Time) []byte {
	var sb strings.Builder
	sb.WriteString("To: " + to + "\r\n")
	sb.WriteString("From: " + from + "\r\n")
	sb.WriteString("Subject: " + subject + "\r\n")
	sb.WriteString("Date: " + date.Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	if !strings.HasSuffix(body, "\n") {
		sb.WriteString("\r\n")
	}
	return []byte(sb.String())
}
