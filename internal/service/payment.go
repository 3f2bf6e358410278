package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shiva/moveops/internal/metrics"
	"github.com/shiva/moveops/internal/model"
	"github.com/shiva/moveops/internal/repository"
)

// PaymentConfig bounds payment intents.
type PaymentConfig struct {
	Currency  string
	MinAmount float64
	MaxAmount float64
}

// DefaultPaymentConfig returns the production payment limits.
func DefaultPaymentConfig() PaymentConfig {
	return PaymentConfig{Currency: "usd", MinAmount: 0.50, MaxAmount: 10000}
}

// PaymentService creates payment intents for deposits and final balances.
type PaymentService struct {
	jobs     JobStore
	invoices InvoiceStore
	payments PaymentStore
	provider PaymentProvider
	metrics  metrics.Sink
	log      zerolog.Logger
	cfg      PaymentConfig
}

// NewPaymentService creates a payment service.
func NewPaymentService(
	jobs JobStore,
	invoices InvoiceStore,
	payments PaymentStore,
	provider PaymentProvider,
	sink metrics.Sink,
	log zerolog.Logger,
	cfg PaymentConfig,
) *PaymentService {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &PaymentService{
		jobs:     jobs,
		invoices: invoices,
		payments: payments,
		provider: provider,
		metrics:  sink,
		log:      log,
		cfg:      cfg,
	}
}

// CreateIntent opens a provider payment intent for the deposit or the final
// balance of a job and records a PENDING payment for it.
//
// The amount always comes from the invoice. Conflicts are checked twice:
// once before calling the provider, and again under the invoice row lock in
// PaymentStore.CreatePayment.
func (s *PaymentService) CreateIntent(ctx context.Context, actor model.Actor, jobID string, paymentType model.PaymentType) (*model.Intent, error) {
	// ── Step 1: Load and authorize ──────────────────────
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, classifyJobError(err)
	}
	if actor.Role != model.RoleAdmin && !(actor.Role == model.RoleCustomer && job.CustomerID == actor.UserID) {
		return nil, ErrForbidden
	}
	inv, err := s.invoices.GetInvoiceByJob(ctx, jobID)
	if err != nil {
		return nil, classifyInvoiceError(err)
	}

	purpose, err := model.NewPaymentPurpose(paymentType, job)
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"payment_type": "must be deposit or final"}}
	}

	// ── Step 2: Business rules ──────────────────────────
	var amount float64
	var label string
	switch purpose.(type) {
	case model.DepositPayment:
		if job.DepositPaid || inv.DepositPaid {
			s.metrics.RecordPaymentIntent(string(paymentType), "conflict")
			return nil, ErrDepositAlreadyPaid
		}
		if job.Status != model.JobPending {
			return nil, fmt.Errorf("%w: deposit on %s job", ErrIllegalTransition, job.Status)
		}
		amount, label = inv.DepositAmount, "Deposit Payment"
	case model.FinalPayment:
		if inv.FinalPaid {
			s.metrics.RecordPaymentIntent(string(paymentType), "conflict")
			return nil, ErrFinalAlreadyPaid
		}
		if job.Status != model.JobCompleted {
			return nil, ErrJobNotCompleted
		}
		amount, label = inv.FinalAmount, "Final Payment"
	}
	if amount < s.cfg.MinAmount || amount > s.cfg.MaxAmount {
		return nil, fmt.Errorf("%w: %.2f not in [%.2f, %.2f]", ErrAmountOutOfRange, amount, s.cfg.MinAmount, s.cfg.MaxAmount)
	}

	// ── Step 3: Provider intent ─────────────────────────
	intent, err := s.provider.CreateIntent(ctx, model.IntentRequest{
		Purpose:      purpose,
		AmountCents:  int64(math.Round(amount * 100)),
		Currency:     s.cfg.Currency,
		Description:  fmt.Sprintf("%s for Job #%s", label, job.JobNumber),
		ReceiptEmail: job.Contact.Email,
	})
	if err != nil {
		s.metrics.RecordPaymentIntent(string(paymentType), "upstream_error")
		return nil, fmt.Errorf("%w: create intent: %v", ErrUpstream, err)
	}

	// ── Step 4: Record the attempt ──────────────────────
	payment := &model.Payment{
		ID:         uuid.NewString(),
		JobID:      job.ID,
		InvoiceID:  inv.ID,
		CustomerID: job.CustomerID,
		Type:       paymentType,
		Amount:     amount,
		Currency:   s.cfg.Currency,
		Method:     model.PaymentMethodStripe,
		ProviderID: intent.ProviderID,
		Status:     model.PaymentPending,
	}
	if err := s.payments.CreatePayment(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrAlreadyPaid) {
			s.metrics.RecordPaymentIntent(string(paymentType), "conflict")
			s.log.Warn().Str("job_id", job.ID).Str("intent", intent.ProviderID).
				Msg("intent created but invoice was paid concurrently")
			if paymentType == model.PaymentDeposit {
				return nil, ErrDepositAlreadyPaid
			}
			return nil, ErrFinalAlreadyPaid
		}
		return nil, fmt.Errorf("payment: record intent: %w", classifyInvoiceError(err))
	}

	s.metrics.RecordPaymentIntent(string(paymentType), "created")
	s.log.Info().
		Str("job_id", job.ID).
		Str("payment_id", payment.ID).
		Str("type", string(paymentType)).
		Float64("amount", amount).
		Msg("payment intent created")

	return intent, nil
}

func classifyInvoiceError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvoiceNotFound
	}
	return err
}
