package models

import "time"

// VendorConnection holds a vendor's payout destination for one provider.
// Which credential field is primary depends on the provider: OAuth access
// token (PayPal, Mercado Pago, Square), subaccount code (Paystack) or a
// plain PayPal email for the Payouts API.
type VendorConnection struct {
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	ExpiresAt      *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	Provider       string     `db:"provider" json:"provider"`
	AccessToken    string     `db:"access_token" json:"-"`
	RefreshToken   string     `db:"refresh_token" json:"-"`
	SubaccountCode string     `db:"subaccount_code" json:"subaccount_code,omitempty"`
	PayoutEmail    string     `db:"payout_email" json:"payout_email,omitempty"`
	MerchantID     string     `db:"merchant_id" json:"merchant_id,omitempty"`
	VendorID       int64      `db:"vendor_id" json:"vendor_id"`
}

// TokenNearExpiry reports whether the OAuth access token expires within the
// given window. Connections without an expiry never report near-expiry.
func (c *VendorConnection) TokenNearExpiry(window time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Until(*c.ExpiresAt) < window
}

// FeeType enumerates how the platform fee is derived from the order total
type FeeType string

const (
	FeeTypeNone        FeeType = "none"
	FeeTypeFixed       FeeType = "fixed"
	FeeTypePercentage  FeeType = "percentage"
	FeeTypeConditional FeeType = "conditional"
)

// FeeSplit is the derived split of an order total between the platform and
// the vendor. Not stored as its own entity; persisted into the order's
// details under "marketplace.*".
type FeeSplit struct {
	Type                FeeType
	PlatformFeeCents    int64
	VendorEarningsCents int64

	// SubaccountCode is set when the vendor's connection carries one, for
	// providers that split at charge time.
	SubaccountCode string
}
