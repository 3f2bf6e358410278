// Package repository provides database access for the moving operations
// platform.
//
// Writes that span several rows run in one transaction and lock the rows they
// read with SELECT ... FOR UPDATE. The lock order across repositories is
// payment, then job, then invoice.
package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/shiva/moveops/internal/model"
)

// ─── Repository Errors ──────────────────────────────────────

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("repository: not found")

	// ErrAlreadyPaid is returned when a payment targets an invoice half that
	// is already paid.
	ErrAlreadyPaid = errors.New("repository: invoice already paid")

	// ErrUnrecordedStatusChange is returned when a mutation changed a job's
	// status without describing the change for the history table.
	ErrUnrecordedStatusChange = errors.New("repository: job status changed without history entry")
)

// DefaultTxTimeout bounds a complete write transaction, including lock wait.
const DefaultTxTimeout = 5 * time.Second

// notFound maps pgx.ErrNoRows to ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ─── Jobs ───────────────────────────────────────────────────

const jobColumns = `
	j.id, j.job_number, j.customer_id, j.contact, j.driver_id, j.status, j.move_type,
	j.pickup, j.dropoff, j.distance_miles, j.estimated_duration_min,
	j.scheduled_date, j.scheduled_time, j.notes, j.special_items, j.pricing,
	j.estimated_total, j.deposit_amount, j.deposit_paid, j.completed_at,
	j.created_at, j.updated_at`

func scanJob(row rowScanner) (*model.Job, error) {
	j := &model.Job{}
	err := row.Scan(
		&j.ID, &j.JobNumber, &j.CustomerID, &j.Contact, &j.DriverID, &j.Status, &j.MoveType,
		&j.Pickup, &j.Dropoff, &j.DistanceMiles, &j.EstimatedDurationMin,
		&j.ScheduledDate, &j.ScheduledTime, &j.Notes, &j.SpecialItems, &j.Pricing,
		&j.EstimatedTotal, &j.DepositAmount, &j.DepositPaid, &j.CompletedAt,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return j, nil
}

// ─── Invoices ───────────────────────────────────────────────

const invoiceColumns = `
	i.id, i.job_id, i.invoice_number, i.subtotal, i.tax_amount, i.total,
	i.deposit_amount, i.final_amount, i.status,
	i.deposit_paid, i.deposit_paid_at, i.deposit_payment_id,
	i.final_paid, i.final_paid_at, i.final_payment_id,
	i.sent_at, i.viewed_at, i.paid_at, i.created_at, i.updated_at`

func scanInvoice(row rowScanner) (*model.Invoice, error) {
	inv := &model.Invoice{}
	err := row.Scan(
		&inv.ID, &inv.JobID, &inv.InvoiceNumber, &inv.Subtotal, &inv.TaxAmount, &inv.Total,
		&inv.DepositAmount, &inv.FinalAmount, &inv.Status,
		&inv.DepositPaid, &inv.DepositPaidAt, &inv.DepositPaymentID,
		&inv.FinalPaid, &inv.FinalPaidAt, &inv.FinalPaymentID,
		&inv.SentAt, &inv.ViewedAt, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ─── Payments ───────────────────────────────────────────────

const paymentColumns = `
	p.id, p.job_id, p.invoice_id, p.customer_id, p.type, p.amount, p.currency,
	p.method, p.provider_id, p.status, p.receipt_url, p.failure_reason,
	p.processed_at, p.created_at, p.updated_at`

func scanPayment(row rowScanner) (*model.Payment, error) {
	p := &model.Payment{}
	err := row.Scan(
		&p.ID, &p.JobID, &p.InvoiceID, &p.CustomerID, &p.Type, &p.Amount, &p.Currency,
		&p.Method, &p.ProviderID, &p.Status, &p.ReceiptURL, &p.FailureReason,
		&p.ProcessedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}
