package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/voxelpay/payments/internal/db"
	"github.com/voxelpay/payments/internal/events"
	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
	"github.com/voxelpay/payments/internal/repository"
)

// detailWalletCredited guards deposit crediting on the order itself, in
// addition to the ledger's dedup constraint.
const detailWalletCredited = "wallet.credited"

// detailDeclineError records a refund failure during vendor decline.
const detailDeclineError = "decline.refund_error"

// WebhookOutcome reports what a webhook delivery did, for logging and the
// HTTP response.
type WebhookOutcome string

const (
	WebhookProcessed    WebhookOutcome = "processed"
	WebhookIgnored      WebhookOutcome = "ignored"
	WebhookUnknownOrder WebhookOutcome = "unknown_order"
)

// FlowService reconciles provider state onto orders. Webhooks, customer
// returns, vendor actions and manual syncs all funnel through the same
// locked apply-and-save path, so racing deliveries stay idempotent.
type FlowService struct {
	db          *db.DB
	registry    *gateway.Registry
	marketplace *MarketplaceService
	deposits    *DepositService
	publisher   events.Publisher
	logger      *slog.Logger
}

// NewFlowService creates a new FlowService
func NewFlowService(database *db.DB, registry *gateway.Registry, marketplace *MarketplaceService, deposits *DepositService, publisher events.Publisher, logger *slog.Logger) *FlowService {
	return &FlowService{
		db:          database,
		registry:    registry,
		marketplace: marketplace,
		deposits:    deposits,
		publisher:   publisher,
		logger:      logger,
	}
}

// HandleWebhook verifies, parses and applies one webhook delivery. The body
// must be the exact raw bytes read from the request. Signature and parse
// failures return an error (the controller answers 4xx so the provider
// retries); business no-ops return an outcome with no error.
func (s *FlowService) HandleWebhook(ctx context.Context, provider string, r *http.Request, body []byte) (WebhookOutcome, error) {
	p, ok := s.registry.Get(provider)
	if !ok || p.Webhook() == nil {
		return "", &ServiceError{
			Code:    ErrCodeUnknownGateway,
			Message: "unknown payment gateway: " + provider,
		}
	}
	hook := p.Webhook()

	if err := hook.Verify(ctx, r, body); err != nil {
		return "", &ServiceError{
			Code:    ErrCodeSignatureInvalid,
			Message: "webhook signature verification failed",
			Err:     err,
		}
	}

	event, err := hook.Parse(body)
	if err != nil {
		return "", &ServiceError{
			Code:    ErrCodeValidation,
			Message: "webhook payload could not be parsed",
			Err:     err,
		}
	}
	if event.Kind == gateway.EventIgnored {
		return WebhookIgnored, nil
	}

	if err := hook.Resolve(ctx, event); err != nil {
		s.logger.Warn("webhook resolve failed",
			slog.String("provider", provider),
			slog.String("event_type", event.Type),
			slog.String("error", err.Error()))
		return WebhookIgnored, nil
	}

	order, err := s.locateOrder(ctx, event)
	if errors.Is(err, models.ErrNotFound) {
		s.logger.Info("webhook for unknown order",
			slog.String("provider", provider),
			slog.String("event_type", event.Type),
			slog.String("resource_id", event.ResourceID))
		return WebhookUnknownOrder, nil
	}
	if err != nil {
		return "", err
	}

	if err := s.applyAndSave(ctx, p, order.ID, event.Kind == gateway.EventSubscription, event.Payload); err != nil {
		return "", err
	}

	s.publisher.Publish(events.EventWebhookProcessed, map[string]any{
		"provider":   provider,
		"event_type": event.Type,
		"order_id":   order.ID,
	})
	return WebhookProcessed, nil
}

// Sync re-fetches provider state for an order and applies it.
func (s *FlowService) Sync(ctx context.Context, orderID int64) (*models.Order, error) {
	order, p, err := s.orderProvider(ctx, orderID)
	if err != nil {
		return nil, err
	}

	recurring := s.isRecurring(order)
	if !recurring && !p.PaymentMethod().ShouldSync(order) {
		return order, nil
	}

	if err := s.applyAndSave(ctx, p, order.ID, recurring, nil); err != nil {
		return nil, err
	}

	repo := repository.NewOrderRepository(s.db)
	return repo.FindByID(ctx, orderID)
}

// Approve is the vendor action on a pending_approval order: capture at the
// provider, then apply the fresh payload.
func (s *FlowService) Approve(ctx context.Context, orderID int64) (*models.Order, error) {
	order, p, err := s.orderProvider(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPendingApproval {
		return nil, &ServiceError{
			Code:    ErrCodeInvalidTransition,
			Message: "only pending_approval orders can be approved",
		}
	}

	payload, err := p.PaymentMethod().Capture(ctx, order)
	if errors.Is(err, gateway.ErrUnsupported) {
		// Providers without capture settle at charge time; complete locally.
		return s.transition(ctx, order.ID, []models.OrderStatus{models.OrderStatusPendingApproval}, models.OrderStatusCompleted)
	}
	if err != nil {
		return nil, &ServiceError{
			Code:    ErrCodeProviderAPI,
			Message: "capture failed",
			Err:     err,
		}
	}

	if err := s.applyAndSave(ctx, p, order.ID, false, payload); err != nil {
		return nil, err
	}
	repo := repository.NewOrderRepository(s.db)
	return repo.FindByID(ctx, orderID)
}

// Decline is the vendor action rejecting a pending_approval order: refund
// at the provider, then cancel. A failed refund is logged and stored on the
// order but does not abort the cancel.
func (s *FlowService) Decline(ctx context.Context, orderID int64) (*models.Order, error) {
	order, p, err := s.orderProvider(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPendingApproval {
		return nil, &ServiceError{
			Code:    ErrCodeInvalidTransition,
			Message: "only pending_approval orders can be declined",
		}
	}

	if _, err := p.PaymentMethod().Refund(ctx, order); err != nil && !errors.Is(err, gateway.ErrUnsupported) {
		s.logger.Error("refund during decline failed",
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()))
		order.SetDetail(detailDeclineError, err.Error())
		repo := repository.NewOrderRepository(s.db)
		if saveErr := repo.Save(ctx, order); saveErr != nil {
			s.logger.Error("failed to record decline refund error",
				slog.Int64("order_id", order.ID),
				slog.String("error", saveErr.Error()))
		}
	}

	return s.transition(ctx, order.ID, []models.OrderStatus{models.OrderStatusPendingApproval}, models.OrderStatusCanceled)
}

// CancelSubscription cancels a subscription order at the provider and
// applies the resulting state.
func (s *FlowService) CancelSubscription(ctx context.Context, orderID int64) (*models.Order, error) {
	order, p, err := s.orderProvider(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if p.SubscriptionMethod() == nil {
		return nil, &ServiceError{
			Code:    ErrCodeUnsupported,
			Message: "order's gateway does not support subscriptions",
		}
	}

	if _, err := p.SubscriptionMethod().Cancel(ctx, order); err != nil {
		return nil, &ServiceError{
			Code:    ErrCodeProviderAPI,
			Message: "subscription cancel failed",
			Err:     err,
		}
	}

	if err := s.applyAndSave(ctx, p, order.ID, true, nil); err != nil {
		return nil, err
	}
	repo := repository.NewOrderRepository(s.db)
	return repo.FindByID(ctx, orderID)
}

// locateOrder finds the order an event refers to: by pass-through order id
// first, then by the stored correlation detail.
func (s *FlowService) locateOrder(ctx context.Context, event *gateway.Event) (*models.Order, error) {
	repo := repository.NewOrderRepository(s.db)

	if event.OrderID > 0 {
		return repo.FindByID(ctx, event.OrderID)
	}
	if event.LookupPath != "" && event.LookupValue != "" {
		return repo.FindByDetail(ctx, event.LookupPath, event.LookupValue)
	}
	return nil, models.ErrNotFound
}

// orderProvider loads an order together with its gateway.
func (s *FlowService) orderProvider(ctx context.Context, orderID int64) (*models.Order, gateway.Provider, error) {
	repo := repository.NewOrderRepository(s.db)
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, nil, &ServiceError{
			Code:    ErrCodeNotFound,
			Message: "order not found",
			Err:     err,
		}
	}

	key := order.GetDetailString(detailGatewayKey)
	p, ok := s.registry.Get(key)
	if !ok {
		return nil, nil, &ServiceError{
			Code:    ErrCodeUnknownGateway,
			Message: "order has no known payment gateway",
		}
	}
	return order, p, nil
}

func (s *FlowService) isRecurring(order *models.Order) bool {
	recurring, _ := order.GetDetail(detailRecurring)
	b, _ := recurring.(bool)
	return b
}

// applyAndSave re-reads the order under a row lock, obtains the payload
// (given or freshly fetched), applies it and saves. Post-commit hooks run
// only on the transition into completed, so racing deliveries fire them
// once.
func (s *FlowService) applyAndSave(ctx context.Context, p gateway.Provider, orderID int64, recurring bool, payload []byte) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
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

	wasCompleted := order.Status == models.OrderStatusCompleted

	if payload == nil {
		if recurring {
			payload, err = p.SubscriptionMethod().Fetch(ctx, order)
		} else {
			payload, err = p.PaymentMethod().Fetch(ctx, order)
		}
		if err != nil {
			return &ServiceError{
				Code:    ErrCodeProviderAPI,
				Message: "failed to fetch provider state",
				Err:     err,
			}
		}
	}

	if recurring {
		err = p.SubscriptionMethod().Apply(order, payload)
	} else {
		err = p.PaymentMethod().Apply(order, payload)
	}
	if err != nil {
		return internalError("failed to apply provider payload: %v", err)
	}

	if err := txOrderRepo.Save(ctx, order); err != nil {
		return internalError("failed to save order: %v", err)
	}
	if err := tx.Commit(); err != nil {
		return internalError("failed to commit transaction: %v", err)
	}

	if !wasCompleted && order.Status == models.OrderStatusCompleted {
		s.onCompleted(ctx, order, p.Key())
	}
	return nil
}

// transition performs a guarded local status change with no provider call.
func (s *FlowService) transition(ctx context.Context, orderID int64, from []models.OrderStatus, to models.OrderStatus) (*models.Order, error) {
	repo := repository.NewOrderRepository(s.db)
	moved, err := repo.UpdateStatusIf(ctx, orderID, from, to)
	if err != nil {
		return nil, internalError("failed to update order status: %v", err)
	}

	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, internalError("failed to reload order: %v", err)
	}
	if moved && to == models.OrderStatusCompleted {
		s.onCompleted(ctx, order, order.GetDetailString(detailGatewayKey))
	}
	return order, nil
}

// onCompleted runs the completion side effects: deposit crediting, payout
// scheduling and the domain event. Each is individually guarded, so
// re-running is safe.
func (s *FlowService) onCompleted(ctx context.Context, order *models.Order, provider string) {
	if depositID := order.GetDetailString(detailDepositID); depositID != "" {
		if order.GetDetailString(detailWalletCredited) == "" {
			if err := s.deposits.MaybeCreditDeposit(ctx, depositID, order.TransactionID); err != nil {
				s.logger.Error("deposit credit failed",
					slog.Int64("order_id", order.ID),
					slog.String("deposit_id", depositID),
					slog.String("error", err.Error()))
			} else {
				order.SetDetail(detailWalletCredited, time.Now().UTC().Format(time.RFC3339))
				repo := repository.NewOrderRepository(s.db)
				if err := repo.Save(ctx, order); err != nil {
					s.logger.Error("failed to record wallet credit on order",
						slog.Int64("order_id", order.ID),
						slog.String("error", err.Error()))
				}
			}
		}
	}

	if err := s.marketplace.SchedulePayout(ctx, order, provider); err != nil {
		s.logger.Error("payout scheduling failed",
			slog.Int64("order_id", order.ID),
			slog.String("error", err.Error()))
	}

	s.publisher.Publish(events.EventOrderCompleted, map[string]any{
		"order_id":       order.ID,
		"customer_id":    order.CustomerID,
		"provider":       provider,
		"total_cents":    order.Total(),
		"transaction_id": order.TransactionID,
	})
}
