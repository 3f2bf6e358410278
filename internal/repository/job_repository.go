package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiva/moveops/internal/model"
)

// JobRepository handles jobs, their invoices and status history.
type JobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository.
func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

// ─── Create ─────────────────────────────────────────────────

// CreateJob inserts the job and its invoice in one transaction. Neither row
// exists unless both were written.
func (r *JobRepository) CreateJob(ctx context.Context, job *model.Job, inv *model.Invoice) error {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTxTimeout)
	defer cancel()

	tx, err := r.pool.BeginTx(txCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("create job: begin tx: %w", err)
	}
	defer tx.Rollback(txCtx)

	// ── Step 1: INSERT the job ──────────────────────────
	err = tx.QueryRow(txCtx, `
		INSERT INTO jobs (
			id, job_number, customer_id, contact, driver_id, status, move_type,
			pickup, dropoff, distance_miles, estimated_duration_min,
			scheduled_date, scheduled_time, notes, special_items, pricing,
			estimated_total, deposit_amount, deposit_paid
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING created_at, updated_at
	`,
		job.ID, job.JobNumber, job.CustomerID, job.Contact, job.DriverID, job.Status, job.MoveType,
		job.Pickup, job.Dropoff, job.DistanceMiles, job.EstimatedDurationMin,
		job.ScheduledDate, job.ScheduledTime, job.Notes, job.SpecialItems, job.Pricing,
		job.EstimatedTotal, job.DepositAmount, job.DepositPaid,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: insert job %s: %w", job.ID, err)
	}

	// ── Step 2: INSERT the invoice ──────────────────────
	err = tx.QueryRow(txCtx, `
		INSERT INTO invoices (
			id, job_id, invoice_number, subtotal, tax_amount, total,
			deposit_amount, final_amount, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`,
		inv.ID, job.ID, inv.InvoiceNumber, inv.Subtotal, inv.TaxAmount, inv.Total,
		inv.DepositAmount, inv.FinalAmount, inv.Status,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create job: insert invoice %s: %w", inv.ID, err)
	}

	// ── Step 3: COMMIT ──────────────────────────────────
	if err := tx.Commit(txCtx); err != nil {
		return fmt.Errorf("create job: commit: %w", err)
	}
	return nil
}

// ─── Read ───────────────────────────────────────────────────

// GetJob fetches a job by id.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*model.Job, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs j WHERE j.id = $1`, id))
	if err != nil {
		return nil, notFound(err, "get job "+id)
	}
	return job, nil
}

// GetJobDetail fetches a job with its invoice, payments, status history
// (newest first) and the most recent locationLimit location fixes.
func (r *JobRepository) GetJobDetail(ctx context.Context, id string, locationLimit int) (*model.JobDetail, error) {
	job, err := r.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &model.JobDetail{
		Job:       *job,
		Payments:  []model.Payment{},
		History:   []model.StatusHistory{},
		Locations: []model.DriverLocation{},
	}

	inv, err := scanInvoice(r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices i WHERE i.job_id = $1`, id))
	switch {
	case err == nil:
		detail.Invoice = inv
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, fmt.Errorf("get job detail %s: invoice: %w", id, err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments p WHERE p.job_id = $1 ORDER BY p.created_at DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("get job detail %s: payments: %w", id, err)
	}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("get job detail %s: scan payment: %w", id, err)
		}
		detail.Payments = append(detail.Payments, *p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get job detail %s: payments: %w", id, err)
	}

	history, err := r.listHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	detail.History = history

	locations, err := listLocations(ctx, r.pool, id, locationLimit)
	if err != nil {
		return nil, err
	}
	detail.Locations = locations

	return detail, nil
}

func (r *JobRepository) listHistory(ctx context.Context, jobID string) ([]model.StatusHistory, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, job_id, from_status, to_status, changed_by, notes, created_at
		FROM job_status_history
		WHERE job_id = $1
		ORDER BY created_at DESC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list history %s: %w", jobID, err)
	}
	defer rows.Close()

	history := []model.StatusHistory{}
	for rows.Next() {
		var h model.StatusHistory
		if err := rows.Scan(&h.ID, &h.JobID, &h.FromStatus, &h.ToStatus, &h.ChangedBy, &h.Notes, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("list history %s: scan: %w", jobID, err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// ListJobs returns jobs matching the filter, newest first unless the filter
// asks for schedule order.
func (r *JobRepository) ListJobs(ctx context.Context, f model.JobFilter) ([]model.Job, error) {
	var (
		where []string
		args  []any
	)
	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		where = append(where, fmt.Sprintf("j.customer_id = $%d", len(args)))
	}
	if f.DriverID != "" {
		args = append(args, f.DriverID)
		where = append(where, fmt.Sprintf("j.driver_id = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("j.status = $%d", len(args)))
	}

	query := `SELECT ` + jobColumns + ` FROM jobs j`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if f.OrderBySchedule {
		query += ` ORDER BY j.scheduled_date ASC, j.scheduled_time ASC`
	} else {
		query += ` ORDER BY j.created_at DESC`
	}
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []model.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list jobs: scan: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// ─── Update ─────────────────────────────────────────────────

// UpdateJob locks the job row, applies mutate and writes the result back.
//
// Concurrency: SELECT ... FOR UPDATE serializes concurrent dispatch actions
// and webhook reconciliation on the same job. mutate always sees the latest
// committed status.
func (r *JobRepository) UpdateJob(ctx context.Context, id string, mutate model.JobMutation) (*model.Job, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTxTimeout)
	defer cancel()

	tx, err := r.pool.BeginTx(txCtx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("update job: begin tx: %w", err)
	}
	defer tx.Rollback(txCtx)

	// ── Step 1: LOCK the job row ────────────────────────
	job, err := scanJob(tx.QueryRow(txCtx,
		`SELECT `+jobColumns+` FROM jobs j WHERE j.id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "update job: lock "+id)
	}
	before := job.Status

	// ── Step 2: Apply business rules ────────────────────
	change, err := mutate(job)
	if err != nil {
		return nil, err
	}
	if job.Status != before && change == nil {
		return nil, fmt.Errorf("update job %s: %w", id, ErrUnrecordedStatusChange)
	}

	// ── Step 3: WRITE the job and history ───────────────
	if err := writeJob(txCtx, tx, job); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	if change != nil {
		if err := insertHistory(txCtx, tx, job.ID, change); err != nil {
			return nil, fmt.Errorf("update job: %w", err)
		}
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, fmt.Errorf("update job: commit: %w", err)
	}
	return job, nil
}

// writeJob persists the mutable columns of a locked job.
func writeJob(ctx context.Context, tx pgx.Tx, job *model.Job) error {
	err := tx.QueryRow(ctx, `
		UPDATE jobs
		SET status = $2, driver_id = $3, notes = $4, deposit_paid = $5,
		    completed_at = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, job.ID, job.Status, job.DriverID, job.Notes, job.DepositPaid, job.CompletedAt).Scan(&job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("write job %s: %w", job.ID, err)
	}
	return nil
}

// insertHistory appends a status history entry.
func insertHistory(ctx context.Context, tx pgx.Tx, jobID string, c *model.StatusChange) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO job_status_history (id, job_id, from_status, to_status, changed_by, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.NewString(), jobID, c.From, c.To, c.ChangedBy, c.Notes, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert history for job %s: %w", jobID, err)
	}
	return nil
}
