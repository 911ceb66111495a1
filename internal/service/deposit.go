package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voxelpay/payments/internal/db"
	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
	"github.com/voxelpay/payments/internal/repository"
	"github.com/voxelpay/payments/internal/transient"
)

// detailDepositID links a deposit order back to its pending deposit.
const detailDepositID = "wallet.deposit_id"

// depositKey builds the transient key for a pending deposit.
func depositKey(depositID string) string {
	return "wallet:deposit:" + depositID
}

// DepositService drives wallet top-ups. A deposit is a regular order (one
// "Wallet deposit" line item) driven through the active gateway, plus a
// short-lived pending record in the transient store. Crediting is guarded
// both by the Processed flag and by the ledger's unique
// (gateway, transaction id) constraint.
type DepositService struct {
	db         *db.DB
	wallet     *WalletService
	registry   *gateway.Registry
	transients transient.Store
	logger     *slog.Logger
}

// NewDepositService creates a new DepositService
func NewDepositService(database *db.DB, wallet *WalletService, registry *gateway.Registry, transients transient.Store, logger *slog.Logger) *DepositService {
	return &DepositService{
		db:         database,
		wallet:     wallet,
		registry:   registry,
		transients: transients,
		logger:     logger,
	}
}

// ActiveGateway picks the deposit gateway: the first configured provider in
// priority order.
func (s *DepositService) ActiveGateway() (gateway.Provider, error) {
	for _, key := range gateway.DepositPriority {
		if p, ok := s.registry.Get(key); ok {
			return p, nil
		}
	}
	return nil, &ServiceError{
		Code:    ErrCodeUnknownGateway,
		Message: "no deposit-capable gateway is configured",
	}
}

// Initiate validates the amount, creates the deposit order, stores the
// pending deposit and returns the gateway checkout the customer is
// redirected to.
func (s *DepositService) Initiate(ctx context.Context, userID, amountCents int64, email string) (*models.PendingDeposit, *gateway.Checkout, error) {
	if err := s.wallet.ValidateDepositAmount(amountCents); err != nil {
		return nil, nil, err
	}

	provider, err := s.ActiveGateway()
	if err != nil {
		return nil, nil, err
	}

	deposit := &models.PendingDeposit{
		DepositID:     uuid.NewString(),
		UserID:        userID,
		Gateway:       provider.Key(),
		Currency:      s.wallet.Currency(),
		AmountCents:   amountCents,
		CorrelationID: uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
	}

	order := &models.Order{
		CustomerID:    userID,
		CustomerEmail: email,
		Status:        models.OrderStatusPendingPayment,
		Currency:      deposit.Currency,
		Items: []models.OrderItem{{
			Product:     "Wallet deposit",
			AmountCents: amountCents,
			Quantity:    1,
		}},
	}
	order.SetDetail(detailDepositID, deposit.DepositID)
	order.SetDetail(detailGatewayKey, provider.Key())

	orderRepo := repository.NewOrderRepository(s.db)
	if err := orderRepo.Create(ctx, order); err != nil {
		return nil, nil, internalError("failed to create deposit order: %v", err)
	}
	deposit.OrderID = order.ID

	checkout, err := provider.PaymentMethod().Checkout(ctx, order, nil)
	if err != nil {
		return nil, nil, &ServiceError{
			Code:    ErrCodeProviderAPI,
			Message: "failed to create deposit checkout",
			Err:     err,
		}
	}
	deposit.ReturnURL = checkout.RedirectURL

	if err := orderRepo.Save(ctx, order); err != nil {
		return nil, nil, internalError("failed to save deposit order: %v", err)
	}
	if err := s.save(ctx, deposit); err != nil {
		return nil, nil, err
	}
	return deposit, checkout, nil
}

// Find loads a pending deposit. Expired or unknown ids return
// models.ErrNotFound.
func (s *DepositService) Find(ctx context.Context, depositID string) (*models.PendingDeposit, error) {
	raw, err := s.transients.Get(ctx, depositKey(depositID))
	if errors.Is(err, transient.ErrNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, internalError("failed to load pending deposit: %v", err)
	}

	var deposit models.PendingDeposit
	if err := json.Unmarshal(raw, &deposit); err != nil {
		return nil, internalError("corrupt pending deposit %s: %v", depositID, err)
	}
	return &deposit, nil
}

// MaybeCreditDeposit credits the wallet for a confirmed deposit order. Safe
// to call from both the webhook and the customer return: the Processed flag
// and the ledger's dedup constraint both stop double credits. Unknown or
// expired deposit ids are a no-op.
func (s *DepositService) MaybeCreditDeposit(ctx context.Context, depositID, gatewayTxnID string) error {
	deposit, err := s.Find(ctx, depositID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if deposit.Processed {
		return nil
	}

	_, err = s.wallet.Credit(ctx, deposit.UserID, WalletEntry{
		Type:                 models.WalletTransactionTypeDeposit,
		ReferenceType:        "order",
		ReferenceID:          deposit.OrderID,
		Gateway:              deposit.Gateway,
		GatewayTransactionID: gatewayTxnID,
		AmountCents:          deposit.AmountCents,
	})
	if errors.Is(err, models.ErrDuplicateTransaction) {
		s.logger.Info("deposit already credited",
			slog.String("deposit_id", deposit.DepositID),
			slog.String("gateway_transaction_id", gatewayTxnID))
	} else if err != nil {
		return err
	}

	deposit.Processed = true
	return s.save(ctx, deposit)
}

// Cancel drops a pending deposit. Processed deposits stay.
func (s *DepositService) Cancel(ctx context.Context, depositID string) error {
	deposit, err := s.Find(ctx, depositID)
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if deposit.Processed {
		return nil
	}
	if err := s.transients.Delete(ctx, depositKey(depositID)); err != nil {
		return internalError("failed to delete pending deposit: %v", err)
	}
	return nil
}

func (s *DepositService) save(ctx context.Context, deposit *models.PendingDeposit) error {
	encoded, err := json.Marshal(deposit)
	if err != nil {
		return internalError("failed to encode pending deposit: %v", err)
	}
	if err := s.transients.Set(ctx, depositKey(deposit.DepositID), encoded, models.PendingDepositTTL); err != nil {
		return internalError("failed to store pending deposit: %v", err)
	}
	return nil
}
