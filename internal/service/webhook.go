package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiva/moveops/internal/metrics"
	"github.com/shiva/moveops/internal/model"
	"github.com/shiva/moveops/internal/repository"
)

// WebhookService reconciles payment provider events with payments, jobs and
// invoices.
//
// Idempotency: every event is applied inside PaymentStore.ReconcilePayment
// with the payment row locked. A mutation that finds the event already
// applied returns a nil update and nothing is written, so provider
// redeliveries are acknowledged without side effects.
type WebhookService struct {
	payments  PaymentStore
	verifier  EventVerifier
	publisher StatusPublisher
	metrics   metrics.Sink
	log       zerolog.Logger
	now       func() time.Time
}

// NewWebhookService creates a webhook service. publisher may be nil.
func NewWebhookService(
	payments PaymentStore,
	verifier EventVerifier,
	publisher StatusPublisher,
	sink metrics.Sink,
	log zerolog.Logger,
) *WebhookService {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &WebhookService{
		payments:  payments,
		verifier:  verifier,
		publisher: publisher,
		metrics:   sink,
		log:       log,
		now:       time.Now,
	}
}

// HandleWebhook verifies and applies one provider delivery.
//
// Returns model.ErrInvalidSignature for a bad signature (nothing persisted).
// Events for unknown payments and event types the platform ignores are
// acknowledged with a nil error. Any other error means the transaction was
// rolled back and the provider should retry.
func (s *WebhookService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	ev, err := s.verifier.ParseEvent(payload, signature)
	switch {
	case errors.Is(err, model.ErrInvalidSignature):
		s.metrics.RecordWebhookEvent("unknown", "invalid_signature")
		return err
	case errors.Is(err, model.ErrMissingJobID), errors.Is(err, model.ErrUnknownPaymentType):
		s.metrics.RecordWebhookEvent("unknown", "ignored")
		s.log.Warn().Err(err).Msg("webhook metadata not ours, acknowledging")
		return nil
	case err != nil:
		return fmt.Errorf("webhook: parse: %w", err)
	case ev == nil:
		s.metrics.RecordWebhookEvent("unhandled", "ignored")
		return nil
	}

	logger := s.log.With().Str("event_id", ev.ID).Str("kind", string(ev.Kind)).Str("intent", ev.ProviderID).Logger()

	var mutate model.LedgerMutation
	switch ev.Kind {
	case model.EventPaymentSucceeded:
		mutate = s.applySucceeded(ev, logger)
	case model.EventPaymentFailed:
		mutate = s.applyFailed(ev)
	case model.EventChargeRefunded:
		mutate = s.applyRefunded(logger)
	default:
		s.metrics.RecordWebhookEvent(string(ev.Kind), "ignored")
		return nil
	}

	// The mutation may run at most once per call; capture what it decided.
	var update *model.LedgerUpdate
	ledger, changed, err := s.payments.ReconcilePayment(ctx, ev.ProviderID, func(l *model.Ledger) (*model.LedgerUpdate, error) {
		u, err := mutate(l)
		update = u
		return u, err
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.RecordWebhookEvent(string(ev.Kind), "unknown_payment")
			logger.Warn().Msg("webhook for unknown payment, acknowledging")
			return nil
		}
		s.metrics.RecordWebhookEvent(string(ev.Kind), "error")
		return fmt.Errorf("webhook: reconcile %s: %w", ev.ProviderID, err)
	}
	if !changed {
		s.metrics.RecordWebhookEvent(string(ev.Kind), "duplicate")
		logger.Info().Msg("webhook already applied")
		return nil
	}

	s.metrics.RecordWebhookEvent(string(ev.Kind), "applied")
	logger.Info().
		Str("payment_id", ledger.Payment.ID).
		Str("payment_status", string(ledger.Payment.Status)).
		Str("invoice_status", string(ledger.Invoice.Status)).
		Msg("webhook applied")

	if update != nil && update.Change != nil {
		s.metrics.RecordJobTransition(string(update.Change.From), string(update.Change.To))
		if s.publisher != nil {
			if err := s.publisher.PublishJobStatus(ctx, &ledger.Job); err != nil {
				logger.Warn().Err(err).Msg("status publish failed")
			}
		}
	}
	return nil
}

// ─── Mutations ──────────────────────────────────────────────

// applySucceeded records a successful payment. The payment row's own type
// decides whether it is the deposit or the final balance.
//
// The payment and invoice facts are recorded once per invoice half. A second
// payment for a half that is already paid only completes its own row and is
// logged for refund. The job transition is applied only when the table
// allows it; a deposit landing on a cancelled job is kept on the books and
// logged for manual refund.
func (s *WebhookService) applySucceeded(ev *model.PaymentEvent, logger zerolog.Logger) model.LedgerMutation {
	return func(l *model.Ledger) (*model.LedgerUpdate, error) {
		if l.Payment.Status == model.PaymentCompleted || l.Payment.Status == model.PaymentRefunded {
			return nil, nil
		}
		if ev.Purpose != nil && (ev.Purpose.JobID() != l.Payment.JobID || ev.Purpose.Type() != l.Payment.Type) {
			logger.Warn().
				Str("payment_job", l.Payment.JobID).
				Str("event_job", ev.Purpose.JobID()).
				Msg("event metadata disagrees with payment row, using payment row")
		}

		now := s.now().UTC()
		l.Payment.Status = model.PaymentCompleted
		l.Payment.ReceiptURL = ev.ReceiptURL
		l.Payment.FailureReason = ""
		l.Payment.ProcessedAt = &now

		var trigger Trigger
		var notes string
		inv := &l.Invoice
		paymentID := l.Payment.ID

		if halfAlreadyPaid(inv, l.Payment.Type) {
			logger.Warn().
				Str("job_id", l.Job.ID).
				Str("payment_id", paymentID).
				Str("type", string(l.Payment.Type)).
				Msg("duplicate payment for an already paid half, needs refund")
			return &model.LedgerUpdate{}, nil
		}

		switch l.Payment.Type {
		case model.PaymentDeposit:
			inv.DepositPaid = true
			inv.DepositPaidAt = &now
			inv.DepositPaymentID = &paymentID
			l.Job.DepositPaid = true
			trigger, notes = TriggerDepositPaid, "Deposit payment received"
		case model.PaymentFinal:
			inv.FinalPaid = true
			inv.FinalPaidAt = &now
			inv.FinalPaymentID = &paymentID
			trigger, notes = TriggerFinalPaid, "Final payment received"
		default:
			return nil, fmt.Errorf("%w: %q", model.ErrUnknownPaymentType, l.Payment.Type)
		}
		settleInvoice(inv, now)

		change, err := applyTransition(&l.Job, trigger, "", model.SystemActor, notes)
		if err != nil {
			logger.Warn().
				Str("job_id", l.Job.ID).
				Str("job_status", string(l.Job.Status)).
				Msg("payment recorded without job transition")
			change = nil
		}
		return &model.LedgerUpdate{Change: change}, nil
	}
}

// halfAlreadyPaid reports whether another payment already settled the
// invoice half that a payment of type t pays.
func halfAlreadyPaid(inv *model.Invoice, t model.PaymentType) bool {
	switch t {
	case model.PaymentDeposit:
		return inv.DepositPaid
	case model.PaymentFinal:
		return inv.FinalPaid
	}
	return false
}

// settleInvoice derives the invoice status from its paid flags.
func settleInvoice(inv *model.Invoice, now time.Time) {
	switch {
	case inv.DepositPaid && inv.FinalPaid:
		inv.Status = model.InvoicePaid
		if inv.PaidAt == nil {
			inv.PaidAt = &now
		}
	case inv.DepositPaid || inv.FinalPaid:
		inv.Status = model.InvoicePartial
	}
}

// applyFailed marks a pending payment FAILED. Job status never changes.
func (s *WebhookService) applyFailed(ev *model.PaymentEvent) model.LedgerMutation {
	return func(l *model.Ledger) (*model.LedgerUpdate, error) {
		if l.Payment.Status != model.PaymentPending {
			return nil, nil
		}
		now := s.now().UTC()
		l.Payment.Status = model.PaymentFailed
		l.Payment.FailureReason = ev.FailureReason
		l.Payment.ProcessedAt = &now
		return &model.LedgerUpdate{}, nil
	}
}

// applyRefunded marks a completed payment REFUNDED. Job and invoice are left
// as they are; reversing a move is an operator decision.
func (s *WebhookService) applyRefunded(logger zerolog.Logger) model.LedgerMutation {
	return func(l *model.Ledger) (*model.LedgerUpdate, error) {
		if l.Payment.Status != model.PaymentCompleted {
			return nil, nil
		}
		l.Payment.Status = model.PaymentRefunded
		logger.Warn().
			Str("job_id", l.Job.ID).
			Str("payment_id", l.Payment.ID).
			Str("type", string(l.Payment.Type)).
			Msg("payment refunded, job and invoice left unchanged")
		return &model.LedgerUpdate{}, nil
	}
}
