package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/shiva/moveops/internal/model"
)

// maxWebhookBytes matches the payload cap Stripe recommends.
const maxWebhookBytes = 65536

// PaymentService creates payment intents.
type PaymentService interface {
	CreateIntent(ctx context.Context, actor model.Actor, jobID string, paymentType model.PaymentType) (*model.Intent, error)
}

// WebhookService applies provider webhook deliveries.
type WebhookService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// CreateIntentBody is the JSON body for POST /api/v1/payments/intents.
type CreateIntentBody struct {
	JobID       string            `json:"job_id"`
	PaymentType model.PaymentType `json:"payment_type"`
}

// PaymentHandler handles payment intents and provider webhooks.
type PaymentHandler struct {
	payments PaymentService
	webhooks WebhookService
	log      zerolog.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(payments PaymentService, webhooks WebhookService, log zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, webhooks: webhooks, log: log}
}

// CreateIntent handles POST /api/v1/payments/intents
//
//	Request body:
//	{ "job_id": "…", "payment_type": "deposit" }
//
// Response codes:
//
//	201  intent created (client_secret + payment_intent_id)
//	409  the requested half is already paid
//	422  job not in a payable state or amount out of range
//	502  payment provider failure
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var body CreateIntentBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.JobID == "" {
		writeError(w, h.log, missingField("job_id"))
		return
	}
	intent, err := h.payments.CreateIntent(r.Context(), actor(r.Context()), body.JobID, body.PaymentType)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, intent)
}

// Webhook handles POST /api/v1/payments/webhook
//
// Mounted outside authentication: the Stripe-Signature header is the
// credential. A 200 acknowledges the delivery; any 5xx makes Stripe retry.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		writeBadRequest(w, "could not read body")
		return
	}
	if err := h.webhooks.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
