package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiva/moveops/internal/model"
)

// InvoiceRepository handles invoice reads and send/view updates.
type InvoiceRepository struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository creates a new invoice repository.
func NewInvoiceRepository(pool *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{pool: pool}
}

// GetInvoice fetches an invoice by id.
func (r *InvoiceRepository) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices i WHERE i.id = $1`, id))
	if err != nil {
		return nil, notFound(err, "get invoice "+id)
	}
	return inv, nil
}

// GetInvoiceByJob fetches the invoice of a job.
func (r *InvoiceRepository) GetInvoiceByJob(ctx context.Context, jobID string) (*model.Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices i WHERE i.job_id = $1`, jobID))
	if err != nil {
		return nil, notFound(err, "get invoice for job "+jobID)
	}
	return inv, nil
}

// ListInvoices returns invoices newest first. A customer filter joins
// through the owning job.
func (r *InvoiceRepository) ListInvoices(ctx context.Context, f model.InvoiceFilter) ([]model.Invoice, error) {
	var (
		where []string
		args  []any
	)
	query := `SELECT ` + invoiceColumns + ` FROM invoices i`
	if f.CustomerID != "" {
		query += ` JOIN jobs j ON j.id = i.job_id`
		args = append(args, f.CustomerID)
		where = append(where, fmt.Sprintf("j.customer_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("i.status = $%d", len(args)))
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY i.created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	invoices := []model.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("list invoices: scan: %w", err)
		}
		invoices = append(invoices, *inv)
	}
	return invoices, rows.Err()
}

// UpdateInvoice locks the invoice row, applies mutate and writes it back.
func (r *InvoiceRepository) UpdateInvoice(ctx context.Context, id string, mutate model.InvoiceMutation) (*model.Invoice, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTxTimeout)
	defer cancel()

	tx, err := r.pool.BeginTx(txCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("update invoice: begin tx: %w", err)
	}
	defer tx.Rollback(txCtx)

	inv, err := scanInvoice(tx.QueryRow(txCtx,
		`SELECT `+invoiceColumns+` FROM invoices i WHERE i.id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "update invoice: lock "+id)
	}

	if err := mutate(inv); err != nil {
		return nil, err
	}

	if err := writeInvoice(txCtx, tx, inv); err != nil {
		return nil, fmt.Errorf("update invoice: %w", err)
	}
	if err := tx.Commit(txCtx); err != nil {
		return nil, fmt.Errorf("update invoice: commit: %w", err)
	}
	return inv, nil
}

// writeInvoice persists the mutable columns of a locked invoice.
func writeInvoice(ctx context.Context, tx pgx.Tx, inv *model.Invoice) error {
	err := tx.QueryRow(ctx, `
		UPDATE invoices
		SET status = $2,
		    deposit_paid = $3, deposit_paid_at = $4, deposit_payment_id = $5,
		    final_paid = $6, final_paid_at = $7, final_payment_id = $8,
		    sent_at = $9, viewed_at = $10, paid_at = $11, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`,
		inv.ID, inv.Status,
		inv.DepositPaid, inv.DepositPaidAt, inv.DepositPaymentID,
		inv.FinalPaid, inv.FinalPaidAt, inv.FinalPaymentID,
		inv.SentAt, inv.ViewedAt, inv.PaidAt,
	).Scan(&inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("write invoice %s: %w", inv.ID, err)
	}
	return nil
}
