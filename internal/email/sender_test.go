package email

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiva/moveops/config"
)

func TestBuildMessage(t *testing.T) {
	date := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	msg := string(BuildMessage("MoveOps <no-reply@moveops.local>", "a@b.co", "Hello", "line one\nline two", date))

	assert.True(t, strings.HasPrefix(msg, "To: a@b.co\r\nFrom: MoveOps <no-reply@moveops.local>\r\nSubject: Hello\r\n"))
	assert.Contains(t, msg, "Date: Sun, 01 Mar 2026 09:30:00 +0000\r\n")
	assert.Contains(t, msg, "\r\n\r\nline one\r\nline two\r\n")
}

func TestEnvelopeAddress(t *testing.T) {
	assert.Equal(t, "no-reply@moveops.local", envelopeAddress("MoveOps <no-reply@moveops.local>"))
	assert.Equal(t, "plain@moveops.local", envelopeAddress("plain@moveops.local"))
}

func TestNewSender_LoggingWithoutHost(t *testing.T) {
	var buf bytes.Buffer
	s := NewSender(config.EmailConfig{}, zerolog.New(&buf))
	require.IsType(t, &LoggingSender{}, s)

	require.NoError(t, s.Send(context.Background(), []string{"a@b.co"}, "Subj", []byte("body")))
	assert.Contains(t, buf.String(), `"subject":"Subj"`)
}

func TestNewSender_SMTPWithHost(t *testing.T) {
	s := NewSender(config.EmailConfig{SMTPHost: "smtp.example.com", SMTPPort: 587}, zerolog.Nop())
	smtpSender, ok := s.(*SMTPSender)
	require.True(t, ok)
	assert.Equal(t, "smtp.example.com:587", smtpSender.addr)
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	s := NewSender(config.EmailConfig{SMTPHost: "127.0.0.1", SMTPPort: 1}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, []string{"a@b.co"}, "x", []byte("x")), context.Canceled)
}
