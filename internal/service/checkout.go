package service

import (
	"context"
	"log/slog"

	"github.com/voxelpay/payments/internal/db"
	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
	"github.com/voxelpay/payments/internal/money"
	"github.com/voxelpay/payments/internal/repository"
)

// Pricing details persisted on the order at checkout
const (
	detailPricingTotal = "pricing.total"
	detailGatewayKey   = "pricing.gateway"
	detailRecurring    = "pricing.recurring"
)

// CheckoutResult is the outcome of starting a payment attempt.
type CheckoutResult struct {
	RedirectURL string
	OrderID     int64
}

// CheckoutService starts payment attempts: it derives the marketplace
// split, builds the provider checkout and persists the provider session
// state written into the order's details. The order status never moves
// until a provider response is obtained.
type CheckoutService struct {
	db          *db.DB
	registry    *gateway.Registry
	marketplace *MarketplaceService
	logger      *slog.Logger
}

// NewCheckoutService creates a new CheckoutService
func NewCheckoutService(database *db.DB, registry *gateway.Registry, marketplace *MarketplaceService, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		db:          database,
		registry:    registry,
		marketplace: marketplace,
		logger:      logger,
	}
}

// CreateOrder validates and persists a new order in pending_payment.
func (s *CheckoutService) CreateOrder(ctx context.Context, order *models.Order) error {
	if len(order.Items) == 0 {
		return &ServiceError{
			Code:    ErrCodeValidation,
			Message: "order must have at least one item",
		}
	}
	for _, item := range order.Items {
		if item.AmountCents <= 0 || item.Quantity <= 0 {
			return &ServiceError{
				Code:    ErrCodeInvalidAmount,
				Message: "item amounts and quantities must be greater than 0",
			}
		}
	}
	if order.Currency == "" {
		return &ServiceError{
			Code:    ErrCodeValidation,
			Message: "order currency is required",
		}
	}

	order.Status = models.OrderStatusPendingPayment
	repo := repository.NewOrderRepository(s.db)
	if err := repo.Create(ctx, order); err != nil {
		return internalError("failed to create order: %v", err)
	}
	return nil
}

// GetOrder retrieves an order by id.
func (s *CheckoutService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	repo := repository.NewOrderRepository(s.db)
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, &ServiceError{
			Code:    ErrCodeNotFound,
			Message: "order not found",
			Err:     err,
		}
	}
	return order, nil
}

// ProcessPayment builds the provider checkout for an order and returns the
// redirect the customer is sent to. Recurring orders route through the
// provider's subscription method.
func (s *CheckoutService) ProcessPayment(ctx context.Context, orderID int64, provider string, recurring bool) (*CheckoutResult, error) {
	p, ok := s.registry.Get(provider)
	if !ok {
		return nil, &ServiceError{
			Code:    ErrCodeUnknownGateway,
			Message: "unknown payment gateway: " + provider,
		}
	}
	if recurring && p.SubscriptionMethod() == nil {
		return nil, &ServiceError{
			Code:    ErrCodeUnsupported,
			Message: provider + " does not support subscriptions",
		}
	}

	repo := repository.NewOrderRepository(s.db)
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, &ServiceError{
			Code:    ErrCodeNotFound,
			Message: "order not found",
			Err:     err,
		}
	}
	if order.Status.IsTerminal() {
		return nil, &ServiceError{
			Code:    ErrCodeInvalidTransition,
			Message: "order is already " + string(order.Status),
		}
	}

	order.SetDetail(detailPricingTotal, money.ToDecimalString(order.Total()))
	order.SetDetail(detailGatewayKey, provider)
	order.SetDetail(detailRecurring, recurring)

	var checkout *gateway.Checkout
	if recurring {
		checkout, err = p.SubscriptionMethod().Checkout(ctx, order)
	} else {
		var split *models.FeeSplit
		split, err = s.marketplace.SplitFor(ctx, order, provider)
		if err == nil {
			checkout, err = p.PaymentMethod().Checkout(ctx, order, split)
		}
	}
	if err != nil {
		s.logger.Error("checkout failed",
			slog.Int64("order_id", order.ID),
			slog.String("provider", provider),
			slog.String("error", err.Error()))
		return nil, &ServiceError{
			Code:    ErrCodeProviderAPI,
			Message: "failed to create provider checkout",
			Err:     err,
		}
	}

	if err := repo.Save(ctx, order); err != nil {
		return nil, internalError("failed to save order: %v", err)
	}

	return &CheckoutResult{OrderID: order.ID, RedirectURL: checkout.RedirectURL}, nil
}
