package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/db"
	"github.com/voxelpay/payments/internal/events"
	"github.com/voxelpay/payments/internal/models"
	"github.com/voxelpay/payments/internal/repository"
)

// WalletEntry describes one ledger mutation. AmountCents is always
// positive; Credit and Debit decide the sign.
type WalletEntry struct {
	Type                 models.WalletTransactionType
	ReferenceType        string
	ReferenceID          int64
	Gateway              string
	GatewayTransactionID string
	AmountCents          int64
}

// WalletService owns the wallet balance counter and its append-only ledger.
// Every mutation locks the wallet row, appends a ledger entry carrying the
// resulting balance, and updates the counter in the same transaction.
type WalletService struct {
	db        *db.DB
	cfg       config.WalletConfig
	publisher events.Publisher
	logger    *slog.Logger
}

// NewWalletService creates a new WalletService
func NewWalletService(database *db.DB, cfg config.WalletConfig, publisher events.Publisher, logger *slog.Logger) *WalletService {
	return &WalletService{
		db:        database,
		cfg:       cfg,
		publisher: publisher,
		logger:    logger,
	}
}

// Balance returns the user's current balance, zero for users with no wallet.
func (s *WalletService) Balance(ctx context.Context, userID int64) (*models.Wallet, error) {
	repo := repository.NewWalletRepository(s.db)
	wallet, err := repo.FindByUserID(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return &models.Wallet{UserID: userID, Currency: s.cfg.Currency}, nil
	}
	if err != nil {
		return nil, internalError("failed to load wallet: %v", err)
	}
	return wallet, nil
}

// Transactions returns the user's newest ledger entries.
func (s *WalletService) Transactions(ctx context.Context, userID int64, limit int) ([]*models.WalletTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	repo := repository.NewWalletRepository(s.db)
	txns, err := repo.ListTransactions(ctx, userID, limit)
	if err != nil {
		return nil, internalError("failed to list wallet transactions: %v", err)
	}
	return txns, nil
}

// Credit adds funds to the user's wallet. A duplicate gateway transaction id
// returns models.ErrDuplicateTransaction and leaves the wallet untouched.
func (s *WalletService) Credit(ctx context.Context, userID int64, entry WalletEntry) (*models.WalletTransaction, error) {
	if entry.AmountCents <= 0 {
		return nil, &ServiceError{
			Code:    ErrCodeInvalidAmount,
			Message: "credit amount must be greater than 0",
		}
	}

	txn, err := s.mutate(ctx, userID, entry, entry.AmountCents)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(events.EventWalletCredited, map[string]any{
		"user_id":       userID,
		"amount_cents":  entry.AmountCents,
		"balance_cents": txn.BalanceAfterCents,
		"type":          string(entry.Type),
		"gateway":       entry.Gateway,
	})
	return txn, nil
}

// Debit removes funds from the user's wallet. Overdrafts are rejected with
// insufficient_balance and no ledger entry is written.
func (s *WalletService) Debit(ctx context.Context, userID int64, entry WalletEntry) (*models.WalletTransaction, error) {
	if entry.AmountCents <= 0 {
		return nil, &ServiceError{
			Code:    ErrCodeInvalidAmount,
			Message: "debit amount must be greater than 0",
		}
	}

	txn, err := s.mutate(ctx, userID, entry, -entry.AmountCents)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(events.EventWalletDebited, map[string]any{
		"user_id":       userID,
		"amount_cents":  entry.AmountCents,
		"balance_cents": txn.BalanceAfterCents,
		"type":          string(entry.Type),
	})
	return txn, nil
}

// ValidateDepositAmount checks a requested top-up against the configured
// bounds.
func (s *WalletService) ValidateDepositAmount(amountCents int64) error {
	if amountCents <= 0 {
		return &ServiceError{
			Code:    ErrCodeInvalidAmount,
			Message: "deposit amount must be greater than 0",
		}
	}
	if s.cfg.MinDepositCents > 0 && amountCents < s.cfg.MinDepositCents {
		return &ServiceError{
			Code:    ErrCodeInvalidAmount,
			Message: fmt.Sprintf("deposit amount is below the minimum of %d cents", s.cfg.MinDepositCents),
		}
	}
	if s.cfg.MaxDepositCents > 0 && amountCents > s.cfg.MaxDepositCents {
		return &ServiceError{
			Code:    ErrCodeInvalidAmount,
			Message: fmt.Sprintf("deposit amount exceeds the maximum of %d cents", s.cfg.MaxDepositCents),
		}
	}
	return nil
}

// Currency returns the wallet currency.
func (s *WalletService) Currency() string { return s.cfg.Currency }

func (s *WalletService) mutate(ctx context.Context, userID int64, entry WalletEntry, signedAmount int64) (*models.WalletTransaction, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, internalError("failed to start transaction: %v", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback error is not critical in defer
	}()

	txWalletRepo := repository.NewWalletRepository(tx)

	txn, err := s.performMutation(ctx, txWalletRepo, userID, entry, signedAmount)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, internalError("failed to commit transaction: %v", err)
	}

	return txn, nil
}

// performMutation contains the core ledger logic: lock, check, append, set.
func (s *WalletService) performMutation(
	ctx context.Context,
	walletRepo repository.WalletRepository,
	userID int64,
	entry WalletEntry,
	signedAmount int64,
) (*models.WalletTransaction, error) {
	wallet, err := walletRepo.FindForUpdate(ctx, userID, s.cfg.Currency)
	if err != nil {
		return nil, internalError("failed to lock wallet: %v", err)
	}

	newBalance := wallet.BalanceCents + signedAmount
	if newBalance < 0 {
		return nil, &ServiceError{
			Code:    ErrCodeInsufficientBalance,
			Message: "insufficient wallet balance",
		}
	}

	txn := &models.WalletTransaction{
		ID:                   uuid.New(),
		UserID:               userID,
		Type:                 entry.Type,
		Status:               models.WalletTransactionStatusCompleted,
		Currency:             wallet.Currency,
		ReferenceType:        entry.ReferenceType,
		ReferenceID:          entry.ReferenceID,
		Gateway:              entry.Gateway,
		GatewayTransactionID: entry.GatewayTransactionID,
		AmountCents:          signedAmount,
		BalanceAfterCents:    newBalance,
	}

	if err := walletRepo.AppendTransaction(ctx, txn); err != nil {
		if errors.Is(err, models.ErrDuplicateTransaction) {
			return nil, err
		}
		return nil, internalError("failed to append ledger entry: %v", err)
	}

	if err := walletRepo.SetBalance(ctx, userID, newBalance); err != nil {
		return nil, internalError("failed to update wallet balance: %v", err)
	}

	return txn, nil
}
