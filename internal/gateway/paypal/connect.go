package paypal

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
	"github.com/voxelpay/payments/internal/money"
)

// Connect dispatches vendor earnings through the PayPal Payouts batch API.
// Vendors onboard by submitting their PayPal email; there is no OAuth
// consent flow for payouts.
type Connect struct {
	client *Client
}

// NewConnect creates the PayPal marketplace client.
func NewConnect(client *Client) *Connect {
	return &Connect{client: client}
}

// Connected reports whether the vendor has a payout email on file.
func (c *Connect) Connected(conn *models.VendorConnection) bool {
	return conn != nil && conn.PayoutEmail != ""
}

// OnboardingURL is unsupported: vendors submit their payout email directly.
func (c *Connect) OnboardingURL(string) (string, error) {
	return "", gateway.ErrUnsupported
}

// ExchangeCode is unsupported for email-based onboarding.
func (c *Connect) ExchangeCode(context.Context, string) (*models.VendorConnection, error) {
	return nil, gateway.ErrUnsupported
}

// RefreshToken is unsupported for email-based onboarding.
func (c *Connect) RefreshToken(context.Context, *models.VendorConnection) (*models.VendorConnection, error) {
	return nil, gateway.ErrUnsupported
}

// CreateSubaccount is unsupported.
func (c *Connect) CreateSubaccount(context.Context, gateway.SubaccountDetails) (*models.VendorConnection, error) {
	return nil, gateway.ErrUnsupported
}

// DispatchPayout sends the vendor's earnings as a single-item payout batch.
// The sender_batch_id makes redelivery of the same order's payout a
// provider-side no-op.
func (c *Connect) DispatchPayout(ctx context.Context, order *models.Order, conn *models.VendorConnection, split models.FeeSplit) (string, error) {
	if !c.Connected(conn) {
		return "", fmt.Errorf("vendor %d has no paypal payout email: %w", order.VendorID(), models.ErrNotFound)
	}
	if split.VendorEarningsCents <= 0 {
		return "", fmt.Errorf("nothing to pay out for order %d", order.ID)
	}

	body := map[string]any{
		"sender_batch_header": map[string]any{
			"sender_batch_id": "payout_" + gateway.OrderRef(order.ID),
			"email_subject":   "You have received a payout",
		},
		"items": []map[string]any{{
			"recipient_type": "EMAIL",
			"receiver":       conn.PayoutEmail,
			"note":           fmt.Sprintf("Earnings for order #%d", order.ID),
			"sender_item_id": uuid.NewString(),
			"amount": map[string]any{
				"currency": order.Currency,
				"value":    money.ToDecimalString(split.VendorEarningsCents),
			},
		}},
	}

	result, err := c.client.Request(ctx, http.MethodPost, "/v1/payments/payouts", body)
	if err != nil {
		return "", err
	}
	if !result.Success {
		return "", fmt.Errorf("paypal payout failed: %s", result.ErrorMessage)
	}

	var created struct {
		BatchHeader struct {
			PayoutBatchID string `json:"payout_batch_id"`
		} `json:"batch_header"`
	}
	if err := result.Decode(&created); err != nil {
		return "", err
	}

	return created.BatchHeader.PayoutBatchID, nil
}
