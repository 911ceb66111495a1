package models

import (
	"time"

	"github.com/google/uuid"
)

// WalletTransactionType represents the type of wallet ledger entry
type WalletTransactionType string

const (
	WalletTransactionTypeDeposit    WalletTransactionType = "deposit"
	WalletTransactionTypePurchase   WalletTransactionType = "purchase"
	WalletTransactionTypeRefund     WalletTransactionType = "refund"
	WalletTransactionTypeAdjustment WalletTransactionType = "adjustment"
)

// WalletTransactionStatus represents the status of a wallet ledger entry
type WalletTransactionStatus string

const (
	WalletTransactionStatusCompleted WalletTransactionStatus = "completed"
	WalletTransactionStatusReversed  WalletTransactionStatus = "reversed"
)

// Wallet holds a user's balance counter. The counter is redundant with the
// ledger: it must always equal BalanceAfterCents of the user's newest
// WalletTransaction. Credit/debit therefore lock the wallet row for the
// duration of the mutation.
type Wallet struct {
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
	Currency     string    `db:"currency" json:"currency"`
	BalanceCents int64     `db:"balance_cents" json:"balance_cents"`
	UserID       int64     `db:"user_id" json:"user_id"`
}

// WalletTransaction is an immutable, append-only ledger entry. AmountCents is
// signed: positive for credits, negative for debits. BalanceAfterCents is a
// snapshot of the wallet balance immediately after this entry was appended.
type WalletTransaction struct {
	CreatedAt            time.Time               `db:"created_at" json:"created_at"`
	Type                 WalletTransactionType   `db:"type" json:"type"`
	Status               WalletTransactionStatus `db:"status" json:"status"`
	Currency             string                  `db:"currency" json:"currency"`
	ReferenceType        string                  `db:"reference_type" json:"reference_type,omitempty"`
	Gateway              string                  `db:"gateway" json:"gateway,omitempty"`
	GatewayTransactionID string                  `db:"gateway_transaction_id" json:"gateway_transaction_id,omitempty"`
	AmountCents          int64                   `db:"amount_cents" json:"amount_cents"`
	BalanceAfterCents    int64                   `db:"balance_after_cents" json:"balance_after_cents"`
	UserID               int64                   `db:"user_id" json:"user_id"`
	ReferenceID          int64                   `db:"reference_id" json:"reference_id,omitempty"`
	ID                   uuid.UUID               `db:"id" json:"id"`
}

// IdempotencyKey tracks processed requests to prevent duplicate transactions
type IdempotencyKey struct {
	CreatedAt      time.Time `db:"created_at"`
	Key            string    `db:"key"`
	RequestPath    string    `db:"request_path"`
	ResponseBody   string    `db:"response_body"`
	ResponseStatus int       `db:"response_status"`
}
