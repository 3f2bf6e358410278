package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/shiva/moveops/internal/email"
	"github.com/shiva/moveops/internal/model"
)

// Processor renders and sends notification emails.
type Processor struct {
	sender email.Sender
	from   string
	log    zerolog.Logger
	now    func() time.Time
}

// NewProcessor creates a task processor.
func NewProcessor(sender email.Sender, from string, log zerolog.Logger) *Processor {
	return &Processor{sender: sender, from: from, log: log, now: time.Now}
}

// HandleEmailDeliveryTask renders the named template and sends it. Malformed
// payloads and unknown templates are not retried.
func (p *Processor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.To == "" {
		return fmt.Errorf("email task without recipient: %w", asynq.SkipRetry)
	}

	subject, body, err := render(payload.Template, payload.Data)
	if err != nil {
		return fmt.Errorf("render %s: %v: %w", payload.Template, err, asynq.SkipRetry)
	}

	msg := email.BuildMessage(p.from, payload.To, subject, body, p.now())
	if err := p.sender.Send(ctx, []string{payload.To}, subject, msg); err != nil {
		return fmt.Errorf("send %s: %w", payload.Template, err)
	}

	p.log.Info().Str("template", payload.Template).Str("to", payload.To).Msg("email delivered")
	return nil
}

// render decodes data for the template and executes it.
func render(template string, data json.RawMessage) (string, string, error) {
	switch template {
	case TemplateBookingConfirmation:
		var v model.BookingConfirmation
		if err := json.Unmarshal(data, &v); err != nil {
			return "", "", err
		}
		return execute(bookingConfirmationTmpl, v)
	case TemplateInvoiceReady:
		var v model.InvoiceReady
		if err := json.Unmarshal(data, &v); err != nil {
			return "", "", err
		}
		return execute(invoiceReadyTmpl, v)
	}
	return "", "", fmt.Errorf("unknown template %q", template)
}
