package paystack

import (
	"context"
	"fmt"
	"net/http"

	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
)

// Connect onboards vendors through Paystack subaccounts. Connected vendors
// receive their share at charge time, so no payout dispatch exists.
type Connect struct {
	client *Client
}

// NewConnect creates the Paystack vendor connection handler.
func NewConnect(client *Client) *Connect {
	return &Connect{client: client}
}

// Connected reports whether the vendor holds a subaccount.
func (c *Connect) Connected(conn *models.VendorConnection) bool {
	return conn != nil && conn.SubaccountCode != ""
}

// OnboardingURL is unsupported: subaccounts are created server-side from
// the vendor's bank details.
func (c *Connect) OnboardingURL(string) (string, error) {
	return "", gateway.ErrUnsupported
}

// ExchangeCode is unsupported.
func (c *Connect) ExchangeCode(context.Context, string) (*models.VendorConnection, error) {
	return nil, gateway.ErrUnsupported
}

// RefreshToken is unsupported.
func (c *Connect) RefreshToken(context.Context, *models.VendorConnection) (*models.VendorConnection, error) {
	return nil, gateway.ErrUnsupported
}

// CreateSubaccount registers the vendor's bank account as a split
// destination.
func (c *Connect) CreateSubaccount(ctx context.Context, details gateway.SubaccountDetails) (*models.VendorConnection, error) {
	body := map[string]any{
		"business_name":     details.BusinessName,
		"settlement_bank":   details.SettlementBank,
		"account_number":    details.AccountNumber,
		"percentage_charge": details.PercentageCharge,
	}

	result, err := c.client.Request(ctx, http.MethodPost, "/subaccount", body)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("paystack subaccount creation failed: %s", result.ErrorMessage)
	}

	var envelope struct {
		Data struct {
			SubaccountCode string `json:"subaccount_code"`
		} `json:"data"`
	}
	if err := result.Decode(&envelope); err != nil {
		return nil, err
	}
	if envelope.Data.SubaccountCode == "" {
		return nil, fmt.Errorf("paystack subaccount response without subaccount_code")
	}

	return &models.VendorConnection{
		Provider:       gateway.KeyPaystack,
		SubaccountCode: envelope.Data.SubaccountCode,
	}, nil
}

// DispatchPayout is unsupported: splits are settled at charge time.
func (c *Connect) DispatchPayout(context.Context, *models.Order, *models.VendorConnection, models.FeeSplit) (string, error) {
	return "", gateway.ErrUnsupported
}
