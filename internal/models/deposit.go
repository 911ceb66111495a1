package models

import "time"

// PendingDepositTTL bounds how long an unfinished wallet deposit may wait
// for the customer to complete the gateway-hosted checkout.
const PendingDepositTTL = time.Hour

// PendingDeposit is a short-lived record correlating a gateway-hosted
// checkout with a wallet top-up. Keyed by a generated UUID carried through
// the gateway's pass-through field; stored in the transient store with
// PendingDepositTTL. The wallet is only credited once the gateway confirms
// the payment and Processed flips to true.
type PendingDeposit struct {
	CreatedAt     time.Time `json:"created_at"`
	DepositID     string    `json:"deposit_id"`
	Gateway       string    `json:"gateway"`
	Currency      string    `json:"currency"`
	CorrelationID string    `json:"correlation_id"`
	ReturnURL     string    `json:"return_url"`
	AmountCents   int64     `json:"amount_cents"`
	UserID        int64     `json:"user_id"`
	OrderID       int64     `json:"order_id"`
	Processed     bool      `json:"processed"`
}
