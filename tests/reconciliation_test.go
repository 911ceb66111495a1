//nolint:errcheck // unchecked errors are acceptable in test files
package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelpay/payments/internal/events"
	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
)

// noRedirectClient stops at the first redirect so tests can assert on the
// browser-facing return endpoints without following external URLs.
var noRedirectClient = &http.Client{
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// deliverWebhook posts a stub gateway delivery for an order.
func (ts *TestServer) deliverWebhook(t *testing.T, provider string, orderID int64, status models.OrderStatus, transactionID string) *http.Response {
	t.Helper()

	body, _ := json.Marshal(map[string]any{
		"order_id":       orderID,
		"status":         string(status),
		"transaction_id": transactionID,
	})
	resp, err := http.Post(ts.URL("/webhooks/"+provider), "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestWebhook_RepeatDeliveryCompletesOnce(t *testing.T) {
	publisher := &capturePublisher{}
	stub := newStubProvider(gateway.KeyPayPal)
	ts := SetupTestWith(t, publisher, stub)
	defer ts.Close()

	resp := ts.Checkout(t, gateway.KeyPayPal, defaultItems(), "repeat-webhook-key")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := orderID(t, decodeJSON(t, resp))

	first := ts.deliverWebhook(t, gateway.KeyPayPal, id, models.OrderStatusCompleted, "txn_a")
	require.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, "processed", decodeJSON(t, first)["outcome"])

	// The provider retries the delivery; the payload now carries a
	// different transaction reference.
	second := ts.deliverWebhook(t, gateway.KeyPayPal, id, models.OrderStatusCompleted, "txn_b")
	require.Equal(t, http.StatusOK, second.StatusCode)
	assert.Equal(t, "processed", decodeJSON(t, second)["outcome"])

	getResp := ts.GetOrder(t, id)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	order := decodeJSON(t, getResp)["order"].(map[string]any)

	assert.Equal(t, "completed", order["status"])
	assert.Equal(t, "txn_a", order["transaction_id"], "first recorded transaction id must stick")

	assert.Equal(t, 2, publisher.count(events.EventWebhookProcessed))
	assert.Equal(t, 1, publisher.count(events.EventOrderCompleted), "completion side effects must fire once")
}

func TestDeposit_SuccessReturnCreditsOnce(t *testing.T) {
	publisher := &capturePublisher{}
	stub := newStubProvider(gateway.KeyPayPal)
	ts := SetupTestWith(t, publisher, stub)
	defer ts.Close()

	resp := ts.Deposit(t, 9, 5000, "deposit-credit-once-key")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeJSON(t, resp)
	depositID := body["deposit_id"].(string)
	depositOrderID := orderID(t, body)
	require.NotEmpty(t, body["redirect_url"])

	// The customer pays at the provider.
	stub.setRemoteState(models.OrderStatusCompleted, "dep_txn_1")

	successURL := ts.URL("/wallet/deposit/success?deposit_id=" + depositID)

	first, err := noRedirectClient.Get(successURL)
	require.NoError(t, err)
	first.Body.Close()
	require.Equal(t, http.StatusFound, first.StatusCode)

	// Reloading the success page must not credit again.
	second, err := noRedirectClient.Get(successURL)
	require.NoError(t, err)
	second.Body.Close()
	require.Equal(t, http.StatusFound, second.StatusCode)

	// Neither must the provider's own completion webhook arriving late.
	hook := ts.deliverWebhook(t, gateway.KeyPayPal, depositOrderID, models.OrderStatusCompleted, "dep_txn_1")
	require.Equal(t, http.StatusOK, hook.StatusCode)
	hook.Body.Close()

	balanceResp, err := http.Get(ts.URL("/api/v1/wallet/balance?user_id=9"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, balanceResp.StatusCode)
	wallet := decodeJSON(t, balanceResp)["wallet"].(map[string]any)
	assert.EqualValues(t, 5000, wallet["balance_cents"], "deposit must credit exactly once")

	assert.Equal(t, 1, publisher.count(events.EventOrderCompleted))
}
