// Package service holds the business rules for moving jobs: booking,
// dispatch, payments, invoicing and live tracking.
package service

import (
	"context"

	"github.com/shiva/moveops/internal/model"
)

// ─── Storage ────────────────────────────────────────────────
//
// Services receive storage through these interfaces. Implementations must
// apply every mutation under a row lock and commit the job, invoice,
// payment and history writes of a single call together.

// JobStore persists jobs, their invoices and status history.
type JobStore interface {
	// CreateJob inserts a job and its invoice in one transaction.
	CreateJob(ctx context.Context, job *model.Job, inv *model.Invoice) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	GetJobDetail(ctx context.Context, id string, locationLimit int) (*model.JobDetail, error)
	ListJobs(ctx context.Context, filter model.JobFilter) ([]model.Job, error)
	// UpdateJob locks the job, runs mutate and writes the job back. A
	// non-nil StatusChange is appended to the job's history.
	UpdateJob(ctx context.Context, id string, mutate model.JobMutation) (*model.Job, error)
}

// InvoiceStore persists invoices.
type InvoiceStore interface {
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	GetInvoiceByJob(ctx context.Context, jobID string) (*model.Invoice, error)
	ListInvoices(ctx context.Context, filter model.InvoiceFilter) ([]model.Invoice, error)
	UpdateInvoice(ctx context.Context, id string, mutate model.InvoiceMutation) (*model.Invoice, error)
}

// PaymentStore persists payment attempts and reconciles provider events.
type PaymentStore interface {
	// CreatePayment inserts a PENDING payment. It fails with
	// repository.ErrAlreadyPaid when the invoice half it pays is already paid.
	CreatePayment(ctx context.Context, p *model.Payment) error
	// ReconcilePayment locks the payment with providerID together with its
	// job and invoice, runs mutate, and commits all three when mutate
	// returns a non-nil update. It reports whether anything was written.
	ReconcilePayment(ctx context.Context, providerID string, mutate model.LedgerMutation) (*model.Ledger, bool, error)
}

// LocationStore persists driver location fixes.
type LocationStore interface {
	RecordLocation(ctx context.Context, loc model.DriverLocation) error
	LatestLocation(ctx context.Context, jobID string) (*model.DriverLocation, error)
}

// ─── Collaborators ──────────────────────────────────────────

// Geocoder resolves addresses and driving routes.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*model.Place, error)
	Route(ctx context.Context, origin, destination model.Location) (*model.Route, error)
}

// PaymentProvider creates payment intents.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, req model.IntentRequest) (*model.Intent, error)
}

// EventVerifier verifies and decodes provider webhook payloads. It returns
// model.ErrInvalidSignature when verification fails and a nil event for
// event types the platform does not handle.
type EventVerifier interface {
	ParseEvent(payload []byte, signature string) (*model.PaymentEvent, error)
}

// Notifier hands notification template data to the delivery pipeline.
type Notifier interface {
	BookingConfirmed(ctx context.Context, n model.BookingConfirmation) error
	InvoiceReady(ctx context.Context, n model.InvoiceReady) error
}

// StatusPublisher fans job status changes out to realtime subscribers.
type StatusPublisher interface {
	PublishJobStatus(ctx context.Context, job *model.Job) error
}
