package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxelpay/payments/internal/db"
	"github.com/voxelpay/payments/internal/repository"
)

const (
	payoutPollInterval = time.Minute
	payoutBatchSize    = 20
	payoutMaxAttempts  = 5
)

// PayoutWorker drains due payout jobs. Delivery is at-least-once: the
// dispatch itself is guarded by the order's payout_dispatched detail and
// the provider's batch id idempotency.
type PayoutWorker struct {
	db          *db.DB
	marketplace *MarketplaceService
	logger      *slog.Logger
}

// NewPayoutWorker creates a new PayoutWorker
func NewPayoutWorker(database *db.DB, marketplace *MarketplaceService, logger *slog.Logger) *PayoutWorker {
	return &PayoutWorker{
		db:          database,
		marketplace: marketplace,
		logger:      logger,
	}
}

// Run polls for due jobs until the context is canceled.
func (w *PayoutWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(payoutPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce claims and dispatches one batch of due jobs.
func (w *PayoutWorker) RunOnce(ctx context.Context) {
	repo := repository.NewPayoutJobRepository(w.db)
	jobs, err := repo.Due(ctx, time.Now(), payoutBatchSize)
	if err != nil {
		w.logger.Error("failed to claim payout jobs", slog.String("error", err.Error()))
		return
	}

	for _, job := range jobs {
		err := w.marketplace.DispatchPayout(ctx, job.OrderID, job.Provider)
		if err == nil {
			if err := repo.MarkDone(ctx, job.ID); err != nil {
				w.logger.Error("failed to mark payout job done",
					slog.Int64("job_id", job.ID),
					slog.String("error", err.Error()))
			}
			continue
		}

		final := job.Attempts >= payoutMaxAttempts
		w.logger.Error("payout dispatch failed",
			slog.Int64("job_id", job.ID),
			slog.Int64("order_id", job.OrderID),
			slog.Int("attempts", job.Attempts),
			slog.Bool("final", final),
			slog.String("error", err.Error()))

		if err := repo.MarkFailed(ctx, job.ID, err.Error(), final); err != nil {
			w.logger.Error("failed to mark payout job failed",
				slog.Int64("job_id", job.ID),
				slog.String("error", err.Error()))
		}
	}
}
