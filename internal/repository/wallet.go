package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/voxelpay/payments/internal/models"
)

// WalletRepository defines the interface for wallet and ledger data access
type WalletRepository interface {
	// FindForUpdate loads the user's wallet row and locks it for the
	// duration of the surrounding transaction, creating the row with a zero
	// balance when the user has no wallet yet.
	FindForUpdate(ctx context.Context, userID int64, currency string) (*models.Wallet, error)
	FindByUserID(ctx context.Context, userID int64) (*models.Wallet, error)
	SetBalance(ctx context.Context, userID, balanceCents int64) error
	AppendTransaction(ctx context.Context, txn *models.WalletTransaction) error
	ListTransactions(ctx context.Context, userID int64, limit int) ([]*models.WalletTransaction, error)
	// HasGatewayTransaction reports whether a ledger row already references
	// the gateway transaction, the dedup key for deposit crediting.
	HasGatewayTransaction(ctx context.Context, gateway, gatewayTransactionID string) (bool, error)
}

type walletRepository struct {
	db Querier
}

// NewWalletRepository creates a new WalletRepository
func NewWalletRepository(q Querier) WalletRepository {
	return &walletRepository{db: q}
}

// FindForUpdate upserts then locks the wallet row.
func (r *walletRepository) FindForUpdate(ctx context.Context, userID int64, currency string) (*models.Wallet, error) {
	insert := `
		INSERT INTO wallets (user_id, currency)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, insert, userID, currency); err != nil {
		return nil, fmt.Errorf("failed to ensure wallet row: %w", err)
	}

	query := `
		SELECT user_id, balance_cents, currency, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`

	var wallet models.Wallet
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&wallet.UserID,
		&wallet.BalanceCents,
		&wallet.Currency,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}

	return &wallet, nil
}

// FindByUserID retrieves a wallet without locking it
func (r *walletRepository) FindByUserID(ctx context.Context, userID int64) (*models.Wallet, error) {
	query := `
		SELECT user_id, balance_cents, currency, created_at, updated_at
		FROM wallets
		WHERE user_id = $1
	`

	var wallet models.Wallet
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&wallet.UserID,
		&wallet.BalanceCents,
		&wallet.Currency,
		&wallet.CreatedAt,
		&wallet.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find wallet: %w", err)
	}

	return &wallet, nil
}

// SetBalance writes the wallet's balance counter
func (r *walletRepository) SetBalance(ctx context.Context, userID, balanceCents int64) error {
	query := `
		UPDATE wallets
		SET balance_cents = $2, updated_at = NOW()
		WHERE user_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, userID, balanceCents)
	if err != nil {
		return fmt.Errorf("failed to set wallet balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrNotFound
	}

	return nil
}

// AppendTransaction inserts an immutable ledger row
func (r *walletRepository) AppendTransaction(ctx context.Context, txn *models.WalletTransaction) error {
	query := `
		INSERT INTO wallet_transactions (
			id, user_id, type, amount_cents, balance_after_cents, currency,
			reference_type, reference_id, gateway, gateway_transaction_id, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(ctx, query,
		txn.ID,
		txn.UserID,
		txn.Type,
		txn.AmountCents,
		txn.BalanceAfterCents,
		txn.Currency,
		txn.ReferenceType,
		txn.ReferenceID,
		txn.Gateway,
		txn.GatewayTransactionID,
		txn.Status,
	).Scan(&txn.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return models.ErrDuplicateTransaction
	}
	if err != nil {
		return fmt.Errorf("failed to append wallet transaction: %w", err)
	}

	return nil
}

// ListTransactions returns the user's ledger entries, newest first
func (r *walletRepository) ListTransactions(ctx context.Context, userID int64, limit int) ([]*models.WalletTransaction, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, type, amount_cents, balance_after_cents, currency,
		       reference_type, reference_id, gateway, gateway_transaction_id, status, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	defer rows.Close() //nolint:errcheck // close error is not actionable

	var txns []*models.WalletTransaction
	for rows.Next() {
		var txn models.WalletTransaction
		err := rows.Scan(
			&txn.ID,
			&txn.UserID,
			&txn.Type,
			&txn.AmountCents,
			&txn.BalanceAfterCents,
			&txn.Currency,
			&txn.ReferenceType,
			&txn.ReferenceID,
			&txn.Gateway,
			&txn.GatewayTransactionID,
			&txn.Status,
			&txn.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet transaction: %w", err)
		}
		txns = append(txns, &txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wallet transactions: %w", err)
	}

	return txns, nil
}

// HasGatewayTransaction checks for an existing ledger row referencing the
// gateway transaction id
func (r *walletRepository) HasGatewayTransaction(ctx context.Context, gateway, gatewayTransactionID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM wallet_transactions
			WHERE gateway = $1 AND gateway_transaction_id = $2
		)
	`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, gateway, gatewayTransactionID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check gateway transaction: %w", err)
	}

	return exists, nil
}
