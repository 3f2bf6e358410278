package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiva/moveops/internal/model"
)

// PaymentRepository handles payment attempts and webhook reconciliation.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new payment repository.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// CreatePayment inserts a PENDING payment attempt.
//
// The invoice row is locked first so two concurrent deposit intents cannot
// both observe an unpaid deposit after one of them has been reconciled.
func (r *PaymentRepository) CreatePayment(ctx context.Context, p *model.Payment) error {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTxTimeout)
	defer cancel()

	tx, err := r.pool.BeginTx(txCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("create payment: begin tx: %w", err)
	}
	defer tx.Rollback(txCtx)

	// ── Step 1: LOCK the invoice row ────────────────────
	var depositPaid, finalPaid bool
	err = tx.QueryRow(txCtx, `
		SELECT deposit_paid, final_paid
		FROM invoices
		WHERE id = $1
		FOR UPDATE
	`, p.InvoiceID).Scan(&depositPaid, &finalPaid)
	if err != nil {
		return notFound(err, "create payment: lock invoice "+p.InvoiceID)
	}

	// ── Step 2: Reject a second payment for a paid half ─
	if (p.Type == model.PaymentDeposit && depositPaid) || (p.Type == model.PaymentFinal && finalPaid) {
		return fmt.Errorf("create payment: %s on invoice %s: %w", p.Type, p.InvoiceID, ErrAlreadyPaid)
	}

	// ── Step 3: INSERT ──────────────────────────────────
	err = tx.QueryRow(txCtx, `
		INSERT INTO payments (
			id, job_id, invoice_id, customer_id, type, amount, currency,
			method, provider_id, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`,
		p.ID, p.JobID, p.InvoiceID, p.CustomerID, p.Type, p.Amount, p.Currency,
		p.Method, p.ProviderID, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create payment: insert %s: %w", p.ID, err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return fmt.Errorf("create payment: commit: %w", err)
	}
	return nil
}

// ─── Webhook Reconciliation ─────────────────────────────────

// ReconcilePayment applies a provider event to the payment identified by
// providerID and to its job and invoice, all in one transaction.
//
// Concurrency strategy: PESSIMISTIC LOCKING in payment -> job -> invoice
// order. A provider retrying a webhook while the first delivery is still in
// flight blocks on the payment row, then re-reads it and sees the status the
// first delivery committed, so mutate can treat it as a duplicate.
//
// When mutate returns a nil update nothing is written and the transaction is
// rolled back.
func (r *PaymentRepository) ReconcilePayment(
	ctx context.Context,
	providerID string,
	mutate model.LedgerMutation,
) (*model.Ledger, bool, error) {

	txCtx, cancel := context.WithTimeout(ctx, DefaultTxTimeout)
	defer cancel()

	tx, err := r.pool.BeginTx(txCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, false, fmt.Errorf("reconcile: begin tx: %w", err)
	}
	defer tx.Rollback(txCtx)

	// ── Step 1: LOCK the payment row ────────────────────
	payment, err := scanPayment(tx.QueryRow(txCtx,
		`SELECT `+paymentColumns+` FROM payments p WHERE p.provider_id = $1 FOR UPDATE`, providerID))
	if err != nil {
		return nil, false, notFound(err, "reconcile: lock payment "+providerID)
	}

	// ── Step 2: LOCK the job row ────────────────────────
	job, err := scanJob(tx.QueryRow(txCtx,
		`SELECT `+jobColumns+` FROM jobs j WHERE j.id = $1 FOR UPDATE`, payment.JobID))
	if err != nil {
		return nil, false, notFound(err, "reconcile: lock job "+payment.JobID)
	}

	// ── Step 3: LOCK the invoice row ────────────────────
	inv, err := scanInvoice(tx.QueryRow(txCtx,
		`SELECT `+invoiceColumns+` FROM invoices i WHERE i.id = $1 FOR UPDATE`, payment.InvoiceID))
	if err != nil {
		return nil, false, notFound(err, "reconcile: lock invoice "+payment.InvoiceID)
	}

	ledger := &model.Ledger{Payment: *payment, Job: *job, Invoice: *inv}
	before := ledger.Job.Status

	// ── Step 4: Apply business rules ────────────────────
	update, err := mutate(ledger)
	if err != nil {
		return nil, false, err
	}
	if update == nil {
		return ledger, false, nil
	}
	if ledger.Job.Status != before && update.Change == nil {
		return nil, false, fmt.Errorf("reconcile job %s: %w", ledger.Job.ID, ErrUnrecordedStatusChange)
	}

	// ── Step 5: WRITE all three rows ────────────────────
	err = tx.QueryRow(txCtx, `
		UPDATE payments
		SET status = $2, receipt_url = $3, failure_reason = $4, processed_at = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`,
		ledger.Payment.ID, ledger.Payment.Status, ledger.Payment.ReceiptURL,
		ledger.Payment.FailureReason, ledger.Payment.ProcessedAt,
	).Scan(&ledger.Payment.UpdatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("reconcile: update payment %s: %w", ledger.Payment.ID, err)
	}
	if err := writeJob(txCtx, tx, &ledger.Job); err != nil {
		return nil, false, fmt.Errorf("reconcile: %w", err)
	}
	if err := writeInvoice(txCtx, tx, &ledger.Invoice); err != nil {
		return nil, false, fmt.Errorf("reconcile: %w", err)
	}
	if update.Change != nil {
		if err := insertHistory(txCtx, tx, ledger.Job.ID, update.Change); err != nil {
			return nil, false, fmt.Errorf("reconcile: %w", err)
		}
	}

	// ── Step 6: COMMIT ──────────────────────────────────
	if err := tx.Commit(txCtx); err != nil {
		return nil, false, fmt.Errorf("reconcile: commit: %w", err)
	}
	return ledger, true, nil
}
