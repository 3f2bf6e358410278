// Package payments adapts Stripe PaymentIntents and signed webhooks to the
// domain payment types.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/shiva/moveops/config"
	"github.com/shiva/moveops/internal/model"
)

// Stripe creates payment intents and verifies webhook deliveries.
type Stripe struct {
	api           *client.API
	webhookSecret string
}

// NewStripe builds a Stripe adapter. Network retries are disabled: a failed
// intent surfaces to the caller, who may simply try again.
func NewStripe(cfg config.StripeConfig, log zerolog.Logger) *Stripe {
	backendCfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     leveledLogger{log: log},
	}
	if cfg.BaseURL != "" {
		backendCfg.URL = stripe.String(cfg.BaseURL)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	api := &client.API{}
	api.Init(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend})
	return &Stripe{api: api, webhookSecret: cfg.WebhookSecret}
}

// CreateIntent creates a PaymentIntent tagged with the purpose metadata.
func (s *Stripe) CreateIntent(ctx context.Context, req model.IntentRequest) (*model.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(req.ReceiptEmail)
	}
	for k, v := range req.Purpose.Metadata() {
		params.AddMetadata(k, v)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}
	return &model.Intent{ProviderID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// ─── Webhooks ───────────────────────────────────────────────

// ParseEvent verifies the Stripe-Signature header and decodes the event.
//
// Returns model.ErrInvalidSignature when verification fails, and a nil event
// for event types the platform does not handle.
func (s *Stripe) ParseEvent(payload []byte, signature string) (*model.PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		if isSignatureError(err) {
			return nil, fmt.Errorf("%w: %v", model.ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("stripe: construct event: %w", err)
	}
	if event.Data == nil {
		return nil, fmt.Errorf("stripe: event %s has no data", event.ID)
	}

	switch model.PaymentEventKind(event.Type) {
	case model.EventPaymentSucceeded, model.EventPaymentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("stripe: decode payment intent in %s: %w", event.ID, err)
		}
		purpose, err := model.ParsePaymentPurpose(pi.Metadata)
		if err != nil {
			return nil, fmt.Errorf("stripe: event %s: %w", event.ID, err)
		}
		ev := &model.PaymentEvent{
			ID:         event.ID,
			Kind:       model.PaymentEventKind(event.Type),
			ProviderID: pi.ID,
			Purpose:    purpose,
		}
		if pi.LatestCharge != nil {
			ev.ReceiptURL = pi.LatestCharge.ReceiptURL
		}
		if pi.LastPaymentError != nil {
			ev.FailureReason = pi.LastPaymentError.Msg
		}
		return ev, nil

	case model.EventChargeRefunded:
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("stripe: decode charge in %s: %w", event.ID, err)
		}
		if ch.PaymentIntent == nil || ch.PaymentIntent.ID == "" {
			// A charge outside PaymentIntents was never created by us.
			return nil, nil
		}
		return &model.PaymentEvent{
			ID:         event.ID,
			Kind:       model.EventChargeRefunded,
			ProviderID: ch.PaymentIntent.ID,
			ReceiptURL: ch.ReceiptURL,
		}, nil
	}
	return nil, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

// ─── Logging ────────────────────────────────────────────────

// leveledLogger routes stripe-go's internal logging through zerolog.
type leveledLogger struct {
	log zerolog.Logger
}

func (l leveledLogger) Debugf(format string, v ...interface{}) { l.log.Debug().Msgf(format, v...) }
func (l leveledLogger) Infof(format string, v ...interface{})  { l.log.Debug().Msgf(format, v...) }
func (l leveledLogger) Warnf(format string, v ...interface{})  { l.log.Warn().Msgf(format, v...) }
func (l leveledLogger) Errorf(format string, v ...interface{}) { l.log.Error().Msgf(format, v...) }
