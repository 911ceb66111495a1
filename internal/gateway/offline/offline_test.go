package offline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
)

func TestCheckout(t *testing.T) {
	provider := New()
	order := &models.Order{Status: models.OrderStatusPendingPayment}

	checkout, err := provider.PaymentMethod().Checkout(context.Background(), order, nil)
	require.NoError(t, err)

	assert.Empty(t, checkout.RedirectURL)
	assert.Equal(t, models.OrderStatusPendingApproval, order.Status)
	assert.NotEmpty(t, order.GetDetailString("offline.requested_at"))
}

func TestFetchApplyRoundTrip(t *testing.T) {
	method := New().PaymentMethod()
	order := &models.Order{Status: models.OrderStatusPendingApproval}
	order.SetDetail(detailNote, "paid in cash")

	payload, err := method.Fetch(context.Background(), order)
	require.NoError(t, err)

	require.NoError(t, method.Apply(order, payload))
	assert.Equal(t, models.OrderStatusPendingApproval, order.Status)
	stored, ok := order.GetDetail("offline.manual")
	require.True(t, ok)
	if doc, ok := stored.(map[string]any); assert.True(t, ok) {
		assert.Equal(t, "paid in cash", doc["note"])
	}
	assert.NotEmpty(t, order.GetDetailString("offline.last_synced_at"))
}

func TestCaptureCompletesOrder(t *testing.T) {
	method := New().PaymentMethod()
	order := &models.Order{Status: models.OrderStatusPendingApproval}

	payload, err := method.Capture(context.Background(), order)
	require.NoError(t, err)

	require.NoError(t, method.Apply(order, payload))
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
}

func TestRefundCancelsOrder(t *testing.T) {
	method := New().PaymentMethod()
	order := &models.Order{Status: models.OrderStatusPendingApproval}

	payload, err := method.Refund(context.Background(), order)
	require.NoError(t, err)

	require.NoError(t, method.Apply(order, payload))
	assert.Equal(t, models.OrderStatusCanceled, order.Status)
}

func TestApply_InvalidPayload(t *testing.T) {
	method := New().PaymentMethod()
	order := &models.Order{Status: models.OrderStatusPendingApproval}

	assert.Error(t, method.Apply(order, json.RawMessage(`{`)))
	assert.Equal(t, models.OrderStatusPendingApproval, order.Status)
}

func TestProviderSurface(t *testing.T) {
	provider := New()

	assert.Equal(t, gateway.KeyOffline, provider.Key())
	assert.False(t, provider.PaymentMethod().ShouldSync(&models.Order{}))
	assert.Nil(t, provider.SubscriptionMethod())
	assert.Nil(t, provider.Webhook())
}

func TestConnectUnsupported(t *testing.T) {
	connect := New().Connect()
	ctx := context.Background()

	assert.False(t, connect.Connected(&models.VendorConnection{}))

	_, err := connect.OnboardingURL("https://example.com/return")
	assert.ErrorIs(t, err, gateway.ErrUnsupported)

	_, err = connect.ExchangeCode(ctx, "code")
	assert.ErrorIs(t, err, gateway.ErrUnsupported)

	_, err = connect.RefreshToken(ctx, &models.VendorConnection{})
	assert.ErrorIs(t, err, gateway.ErrUnsupported)

	_, err = connect.CreateSubaccount(ctx, gateway.SubaccountDetails{})
	assert.ErrorIs(t, err, gateway.ErrUnsupported)

	_, err = connect.DispatchPayout(ctx, &models.Order{}, &models.VendorConnection{}, models.FeeSplit{})
	assert.ErrorIs(t, err, gateway.ErrUnsupported)
}
