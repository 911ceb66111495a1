package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/db"
	"github.com/voxelpay/payments/internal/events"
	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
	"github.com/voxelpay/payments/internal/repository"
)

// Marketplace detail keys on the order
const (
	detailPlatformFee      = "marketplace.platform_fee_cents"
	detailVendorEarnings   = "marketplace.vendor_earnings_cents"
	detailPayoutDispatched = "marketplace.payout_dispatched"
	detailPayoutBatchID    = "marketplace.payout_batch_id"
	detailPayoutError      = "marketplace.payout_error"
)

// tokenRefreshWindow triggers an opportunistic OAuth refresh when a vendor
// connection is read this close to expiry.
const tokenRefreshWindow = 10 * time.Minute

// MarketplaceService derives fee splits, manages vendor payout connections
// and dispatches vendor earnings after completed orders.
type MarketplaceService struct {
	db        *db.DB
	cfg       config.MarketplaceConfig
	registry  *gateway.Registry
	publisher events.Publisher
	logger    *slog.Logger
}

// NewMarketplaceService creates a new MarketplaceService
func NewMarketplaceService(database *db.DB, cfg config.MarketplaceConfig, registry *gateway.Registry, publisher events.Publisher, logger *slog.Logger) *MarketplaceService {
	return &MarketplaceService{
		db:        database,
		cfg:       cfg,
		registry:  registry,
		publisher: publisher,
		logger:    logger,
	}
}

// IsMarketplaceOrder reports whether the order carries a vendor to split
// with. Self-purchases never split.
func (s *MarketplaceService) IsMarketplaceOrder(order *models.Order) bool {
	return s.cfg.Enabled && order.VendorID() > 0 && order.VendorID() != order.CustomerID
}

// CalculateVendorEarnings derives the split of the order total between the
// platform and the vendor. The fee is clamped to [0, total] so earnings are
// never negative and fee plus earnings always equals the total.
func (s *MarketplaceService) CalculateVendorEarnings(order *models.Order) models.FeeSplit {
	total := order.Total()
	if !s.cfg.Enabled {
		return models.FeeSplit{Type: models.FeeTypeNone, VendorEarningsCents: total}
	}
	split := models.FeeSplit{Type: models.FeeType(s.cfg.FeeType)}

	var fee int64
	switch models.FeeType(s.cfg.FeeType) {
	case models.FeeTypeFixed:
		fee = s.cfg.FeeFixedCents
	case models.FeeTypePercentage:
		fee = percentageOf(total, s.cfg.FeePercentage)
	case models.FeeTypeConditional:
		fee = percentageOf(total, s.tierPercentage(total))
	default:
		split.Type = models.FeeTypeNone
	}

	if fee < 0 {
		fee = 0
	}
	if fee > total {
		fee = total
	}

	split.PlatformFeeCents = fee
	split.VendorEarningsCents = total - fee
	return split
}

// tierPercentage picks the percentage of the highest tier the total clears.
func (s *MarketplaceService) tierPercentage(total int64) float64 {
	tiers := make([]config.FeeTier, len(s.cfg.ConditionalTiers))
	copy(tiers, s.cfg.ConditionalTiers)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].OverCents < tiers[j].OverCents })

	var pct float64
	for _, tier := range tiers {
		if total >= tier.OverCents {
			pct = tier.Percentage
		}
	}
	return pct
}

// SplitFor derives the split and, for providers that split at charge time,
// attaches the vendor's subaccount. Returns nil for non-marketplace orders
// and for vendors with no payout destination: a missing connection falls
// back to a direct non-split payment instead of failing checkout.
func (s *MarketplaceService) SplitFor(ctx context.Context, order *models.Order, provider string) (*models.FeeSplit, error) {
	if !s.IsMarketplaceOrder(order) {
		return nil, nil
	}

	p, ok := s.registry.Get(provider)
	if !ok {
		return nil, nil
	}

	conn, err := s.Connection(ctx, order.VendorID(), provider)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if conn == nil || !p.Connect().Connected(conn) {
		s.logger.Info("vendor not connected, falling back to direct payment",
			slog.Int64("vendor_id", order.VendorID()),
			slog.String("provider", provider))
		return nil, nil
	}

	split := s.CalculateVendorEarnings(order)
	split.SubaccountCode = conn.SubaccountCode
	order.SetDetail(detailPlatformFee, split.PlatformFeeCents)
	order.SetDetail(detailVendorEarnings, split.VendorEarningsCents)

	return &split, nil
}

// Connection loads a vendor's connection, opportunistically refreshing a
// near-expiry OAuth token. A failed refresh returns the stale connection.
func (s *MarketplaceService) Connection(ctx context.Context, vendorID int64, provider string) (*models.VendorConnection, error) {
	repo := repository.NewVendorRepository(s.db)
	conn, err := repo.Find(ctx, vendorID, provider)
	if err != nil {
		return nil, err
	}

	if !conn.TokenNearExpiry(tokenRefreshWindow) {
		return conn, nil
	}

	p, ok := s.registry.Get(provider)
	if !ok {
		return conn, nil
	}

	refreshed, err := p.Connect().RefreshToken(ctx, conn)
	if err != nil {
		s.logger.Warn("vendor token refresh failed",
			slog.Int64("vendor_id", vendorID),
			slog.String("provider", provider),
			slog.String("error", err.Error()))
		return conn, nil
	}

	if err := repo.Upsert(ctx, refreshed); err != nil {
		return conn, internalError("failed to store refreshed vendor connection: %v", err)
	}
	return refreshed, nil
}

// SaveConnection persists a vendor connection.
func (s *MarketplaceService) SaveConnection(ctx context.Context, conn *models.VendorConnection) error {
	repo := repository.NewVendorRepository(s.db)
	if err := repo.Upsert(ctx, conn); err != nil {
		return internalError("failed to store vendor connection: %v", err)
	}
	return nil
}

// Disconnect removes a vendor connection.
func (s *MarketplaceService) Disconnect(ctx context.Context, vendorID int64, provider string) error {
	repo := repository.NewVendorRepository(s.db)
	if err := repo.Delete(ctx, vendorID, provider); err != nil {
		return internalError("failed to delete vendor connection: %v", err)
	}
	return nil
}

// SchedulePayout enqueues the vendor payout for a completed order,
// respecting the configured delay. Re-scheduling the same order is a no-op.
// Providers with no payout API are skipped.
func (s *MarketplaceService) SchedulePayout(ctx context.Context, order *models.Order, provider string) error {
	if !s.IsMarketplaceOrder(order) {
		return nil
	}
	if provider != gateway.KeyPayPal {
		// Mercado Pago and Paystack split at charge time; Square has no
		// payout API.
		return nil
	}
	if order.GetDetailString(detailPayoutDispatched) != "" {
		return nil
	}

	split := s.CalculateVendorEarnings(order)
	if split.VendorEarningsCents <= 0 {
		return nil
	}

	runAt := time.Now().Add(time.Duration(s.cfg.PayoutDelayDays) * 24 * time.Hour)
	repo := repository.NewPayoutJobRepository(s.db)
	if err := repo.Schedule(ctx, order.ID, provider, runAt); err != nil {
		return internalError("failed to schedule payout: %v", err)
	}
	return nil
}

// DispatchPayout sends the vendor's earnings for one completed order. The
// "marketplace.payout_dispatched" detail guards against double dispatch;
// failures are recorded on the order and returned for retry.
func (s *MarketplaceService) DispatchPayout(ctx context.Context, orderID int64, provider string) error {
	p, ok := s.registry.Get(provider)
	if !ok {
		return &ServiceError{
			Code:    ErrCodeUnknownGateway,
			Message: "unknown payment gateway: " + provider,
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return internalError("failed to start transaction: %v", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback error is not critical in defer
	}()

	txOrderRepo := repository.NewOrderRepository(tx)
	order, err := txOrderRepo.FindByIDForUpdate(ctx, orderID)
	if err != nil {
		return &ServiceError{
			Code:    ErrCodeNotFound,
			Message: "order not found",
			Err:     err,
		}
	}

	if order.GetDetailString(detailPayoutDispatched) != "" {
		return tx.Commit()
	}
	if order.Status != models.OrderStatusCompleted {
		return &ServiceError{
			Code:    ErrCodeInvalidTransition,
			Message: "payouts only dispatch for completed orders",
		}
	}

	conn, err := s.Connection(ctx, order.VendorID(), provider)
	if err != nil {
		return &ServiceError{
			Code:    ErrCodeNotConnected,
			Message: "vendor has no payout connection",
			Err:     err,
		}
	}

	split := s.CalculateVendorEarnings(order)
	batchID, err := p.Connect().DispatchPayout(ctx, order, conn, split)
	if err != nil {
		order.SetDetail(detailPayoutError, err.Error())
		if saveErr := txOrderRepo.Save(ctx, order); saveErr == nil {
			_ = tx.Commit() //nolint:errcheck // the dispatch error is the one to surface
		}
		return &ServiceError{
			Code:    ErrCodeProviderAPI,
			Message: "payout dispatch failed",
			Err:     err,
		}
	}

	order.SetDetail(detailPayoutDispatched, time.Now().UTC().Format(time.RFC3339))
	order.SetDetail(detailPayoutBatchID, batchID)
	order.DeleteDetail(detailPayoutError)

	if err := txOrderRepo.Save(ctx, order); err != nil {
		return internalError("failed to save order: %v", err)
	}
	if err := tx.Commit(); err != nil {
		return internalError("failed to commit transaction: %v", err)
	}

	s.publisher.Publish(events.EventPayoutDispatched, map[string]any{
		"order_id":        order.ID,
		"vendor_id":       order.VendorID(),
		"provider":        provider,
		"amount_cents":    split.VendorEarningsCents,
		"payout_batch_id": batchID,
	})
	return nil
}

// percentageOf computes pct% of total in cents, rounded half away from
// zero.
func percentageOf(total int64, pct float64) int64 {
	return decimal.NewFromInt(total).
		Mul(decimal.NewFromFloat(pct)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}
