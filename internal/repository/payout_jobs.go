package repository

import (
	"context"
	"fmt"
	"time"
)

// PayoutJob is a durable one-shot deferred payout keyed by order. The
// scheduler delivers at-least-once; the handler guards against duplicate
// dispatch via the order's marketplace.payout_dispatched detail.
type PayoutJob struct {
	RunAt     time.Time `db:"run_at"`
	CreatedAt time.Time `db:"created_at"`
	Provider  string    `db:"provider"`
	Status    string    `db:"status"`
	LastError string    `db:"last_error"`
	ID        int64     `db:"id"`
	OrderID   int64     `db:"order_id"`
	Attempts  int       `db:"attempts"`
}

// Payout job statuses
const (
	PayoutJobPending = "pending"
	PayoutJobDone    = "done"
	PayoutJobFailed  = "failed"
)

// PayoutJobRepository defines the interface for the deferred payout queue
type PayoutJobRepository interface {
	// Schedule enqueues a payout for the order. Scheduling the same order
	// twice is a no-op.
	Schedule(ctx context.Context, orderID int64, provider string, runAt time.Time) error
	// Due claims up to limit pending jobs whose run_at has passed, bumping
	// their attempt counter so a crashed worker retries them later.
	Due(ctx context.Context, now time.Time, limit int) ([]*PayoutJob, error)
	MarkDone(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, lastError string, final bool) error
}

type payoutJobRepository struct {
	db Querier
}

// NewPayoutJobRepository creates a new PayoutJobRepository
func NewPayoutJobRepository(q Querier) PayoutJobRepository {
	return &payoutJobRepository{db: q}
}

// Schedule enqueues a payout job, ignoring duplicates per order
func (r *payoutJobRepository) Schedule(ctx context.Context, orderID int64, provider string, runAt time.Time) error {
	query := `
		INSERT INTO payout_jobs (order_id, provider, run_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (order_id) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, orderID, provider, runAt); err != nil {
		return fmt.Errorf("failed to schedule payout job: %w", err)
	}

	return nil
}

// Due claims pending jobs that are ready to run
func (r *payoutJobRepository) Due(ctx context.Context, now time.Time, limit int) ([]*PayoutJob, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		UPDATE payout_jobs
		SET attempts = attempts + 1
		WHERE id IN (
			SELECT id FROM payout_jobs
			WHERE status = $1 AND run_at <= $2
			ORDER BY run_at
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, order_id, provider, run_at, status, attempts, last_error, created_at
	`

	rows, err := r.db.QueryContext(ctx, query, PayoutJobPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim payout jobs: %w", err)
	}
	defer rows.Close() //nolint:errcheck // close error is not actionable

	var jobs []*PayoutJob
	for rows.Next() {
		var job PayoutJob
		err := rows.Scan(
			&job.ID,
			&job.OrderID,
			&job.Provider,
			&job.RunAt,
			&job.Status,
			&job.Attempts,
			&job.LastError,
			&job.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout job: %w", err)
		}
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payout jobs: %w", err)
	}

	return jobs, nil
}

// MarkDone finalizes a successfully dispatched job
func (r *payoutJobRepository) MarkDone(ctx context.Context, id int64) error {
	query := `UPDATE payout_jobs SET status = $2, last_error = '' WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, PayoutJobDone); err != nil {
		return fmt.Errorf("failed to mark payout job done: %w", err)
	}
	return nil
}

// MarkFailed records a failure; final failures leave the pending pool
func (r *payoutJobRepository) MarkFailed(ctx context.Context, id int64, lastError string, final bool) error {
	status := PayoutJobPending
	if final {
		status = PayoutJobFailed
	}

	query := `UPDATE payout_jobs SET status = $2, last_error = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, lastError); err != nil {
		return fmt.Errorf("failed to mark payout job failed: %w", err)
	}
	return nil
}
