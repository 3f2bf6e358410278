package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shiva/moveops/internal/model"
)

// InvoiceService lists, sends and tracks views of invoices.
type InvoiceService struct {
	invoices InvoiceStore
	jobs     JobStore
	notifier Notifier
	baseURL  string
	listMax  int
	log      zerolog.Logger
	now      func() time.Time
}

// NewInvoiceService creates an invoice service. baseURL is the customer
// facing site used to build invoice links.
func NewInvoiceService(invoices InvoiceStore, jobs JobStore, notifier Notifier, baseURL string, log zerolog.Logger) *InvoiceService {
	return &InvoiceService{
		invoices: invoices,
		jobs:     jobs,
		notifier: notifier,
		baseURL:  strings.TrimRight(baseURL, "/"),
		listMax:  200,
		log:      log,
		now:      time.Now,
	}
}

// List returns the caller's invoices; admins see all of them.
func (s *InvoiceService) List(ctx context.Context, actor model.Actor, status model.InvoiceStatus) ([]model.Invoice, error) {
	if status != "" && !status.IsValid() {
		return nil, &ValidationError{Fields: map[string]string{"status": "is not a known invoice status"}}
	}
	filter := model.InvoiceFilter{Status: status, Limit: s.listMax}
	switch actor.Role {
	case model.RoleCustomer:
		filter.CustomerID = actor.UserID
	case model.RoleAdmin:
	default:
		return nil, ErrForbidden
	}

	invoices, err := s.invoices.ListInvoices(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("invoice: list: %w", err)
	}
	return invoices, nil
}

// Get returns an invoice. When the owning customer opens a SENT invoice it
// moves to VIEWED.
func (s *InvoiceService) Get(ctx context.Context, actor model.Actor, id string) (*model.Invoice, error) {
	inv, job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	isOwner := actor.Role == model.RoleCustomer && job.CustomerID == actor.UserID
	if !isOwner && actor.Role != model.RoleAdmin {
		return nil, ErrForbidden
	}
	if !isOwner || inv.Status != model.InvoiceSent {
		return inv, nil
	}

	viewed, err := s.invoices.UpdateInvoice(ctx, id, func(inv *model.Invoice) error {
		if inv.Status == model.InvoiceSent {
			now := s.now().UTC()
			inv.Status = model.InvoiceViewed
			inv.ViewedAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("invoice: mark viewed: %w", classifyInvoiceError(err))
	}
	return viewed, nil
}

// Send enqueues the invoice email and marks the invoice SENT. Admin only.
// A fully paid invoice cannot be sent, and a PARTIAL one stays PARTIAL.
func (s *InvoiceService) Send(ctx context.Context, actor model.Actor, id string) (*model.Invoice, error) {
	if actor.Role != model.RoleAdmin {
		return nil, ErrForbidden
	}
	inv, job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == model.InvoicePaid {
		return nil, ErrInvoiceNotSendable
	}

	// ── Step 1: Notify ──────────────────────────────────
	n := model.InvoiceReady{
		To:             job.Contact.Email,
		CustomerName:   job.Contact.Name,
		JobNumber:      job.JobNumber,
		InvoiceNumber:  inv.InvoiceNumber,
		Total:          inv.Total,
		DepositAmount:  inv.DepositAmount,
		FinalAmount:    inv.FinalAmount,
		InvoiceURL:     s.baseURL + "/invoices/" + inv.ID,
		PickupAddress:  job.Pickup.Address,
		DropoffAddress: job.Dropoff.Address,
	}
	if job.CompletedAt != nil {
		n.CompletedDate = job.CompletedAt.Format("January 2, 2006")
	}
	if err := s.notifier.InvoiceReady(ctx, n); err != nil {
		return nil, fmt.Errorf("invoice: enqueue email: %w", err)
	}

	// ── Step 2: Mark SENT ───────────────────────────────
	sent, err := s.invoices.UpdateInvoice(ctx, id, func(inv *model.Invoice) error {
		if inv.Status == model.InvoicePaid {
			return ErrInvoiceNotSendable
		}
		now := s.now().UTC()
		// A PARTIAL invoice keeps its payment status; only the send is stamped.
		if inv.Status != model.InvoicePartial {
			inv.Status = model.InvoiceSent
		}
		inv.SentAt = &now
		return nil
	})
	if err != nil {
		return nil, classifyInvoiceError(err)
	}

	s.log.Info().Str("invoice_id", id).Str("job_id", job.ID).Msg("invoice sent")
	return sent, nil
}

func (s *InvoiceService) load(ctx context.Context, id string) (*model.Invoice, *model.Job, error) {
	inv, err := s.invoices.GetInvoice(ctx, id)
	if err != nil {
		return nil, nil, classifyInvoiceError(err)
	}
	job, err := s.jobs.GetJob(ctx, inv.JobID)
	if err != nil {
		return nil, nil, classifyJobError(err)
	}
	return inv, job, nil
}
