//nolint:errcheck // unchecked errors are acceptable in test files
package tests

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelpay/payments/internal/models"
)

func defaultItems() []models.OrderItem {
	return []models.OrderItem{
		{Product: "Standing desk", AmountCents: 45000, Quantity: 1},
	}
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	return body
}

func orderID(t *testing.T, body map[string]any) int64 {
	t.Helper()
	id, ok := body["order_id"].(float64)
	require.True(t, ok, "response has no order_id")
	return int64(id)
}

func TestOfflineCheckoutAndApprove(t *testing.T) {
	ts := SetupTest(t)
	defer ts.Close()

	resp := ts.Checkout(t, "offline", defaultItems(), "offline-approve-key")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, true, body["success"])
	id := orderID(t, body)

	// Offline payments have no hosted checkout to redirect to.
	assert.Empty(t, body["redirect_url"])

	getResp := ts.GetOrder(t, id)
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	getBody := decodeJSON(t, getResp)
	order := getBody["order"].(map[string]any)
	assert.Equal(t, "pending_approval", order["status"])

	approveResp := ts.OrderAction(t, id, "approve")
	require.Equal(t, http.StatusOK, approveResp.StatusCode)
	approveBody := decodeJSON(t, approveResp)
	approved := approveBody["order"].(map[string]any)
	assert.Equal(t, "completed", approved["status"])
}

func TestOfflineCheckoutAndDecline(t *testing.T) {
	ts := SetupTest(t)
	defer ts.Close()

	resp := ts.Checkout(t, "offline", defaultItems(), "offline-decline-key")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := orderID(t, decodeJSON(t, resp))

	declineResp := ts.OrderAction(t, id, "decline")
	require.Equal(t, http.StatusOK, declineResp.StatusCode)
	declineBody := decodeJSON(t, declineResp)
	declined := declineBody["order"].(map[string]any)
	assert.Equal(t, "canceled", declined["status"])
}

func TestApprove_AfterDecline(t *testing.T) {
	ts := SetupTest(t)
	defer ts.Close()

	resp := ts.Checkout(t, "offline", defaultItems(), "approve-after-decline-key")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := orderID(t, decodeJSON(t, resp))

	declineResp := ts.OrderAction(t, id, "decline")
	require.Equal(t, http.StatusOK, declineResp.StatusCode)
	declineResp.Body.Close()

	approveResp := ts.OrderAction(t, id, "approve")
	require.Equal(t, http.StatusConflict, approveResp.StatusCode)

	body := decodeJSON(t, approveResp)
	assert.Equal(t, "invalid_transition", body["error"])
}

func TestCheckout_UnknownProvider(t *testing.T) {
	ts := SetupTest(t)
	defer ts.Close()

	resp := ts.Checkout(t, "stripe", defaultItems(), "unknown-provider-key")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, "unknown_gateway", body["error"])
}

func TestCheckout_NoItems(t *testing.T) {
	ts := SetupTest(t)
	defer ts.Close()

	resp := ts.Checkout(t, "offline", nil, "no-items-key")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, "validation_error", body["error"])
}

func TestCheckout_NegativeAmount(t *testing.T) {
	ts := SetupTest(t)
	defer ts.Close()

	items := []models.OrderItem{{Product: "Refund me", AmountCents: -500, Quantity: 1}}
	resp := ts.Checkout(t, "offline", items, "negative-amount-key")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, "validation_error", body["error"])
}

func TestGetOrder_NotFound(t *testing.T) {
	ts := SetupTest(t)
	defer ts.Close()

	resp := ts.GetOrder(t, 999999)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestIdempotency_ReplaysSameResponse(t *testing.T) {
	ts := SetupTest(t)
	defer ts.Close()

	idempotencyKey := "replay-test-key"

	resp1 := ts.Checkout(t, "offline", defaultItems(), idempotencyKey)
	require.Equal(t, http.StatusOK, resp1.StatusCode)
	body1, _ := io.ReadAll(resp1.Body)
	resp1.Body.Close()

	resp2 := ts.Checkout(t, "offline", defaultItems(), idempotencyKey)
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	body2, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()

	assert.Equal(t, string(body1), string(body2))
	assert.Equal(t, "true", resp2.Header.Get("X-Idempotent-Replayed"))
}

func TestIdempotency_DifferentKeysCreateDifferentOrders(t *testing.T) {
	ts := SetupTest(t)
	defer ts.Close()

	resp1 := ts.Checkout(t, "offline", defaultItems(), "distinct-key-1")
	require.Equal(t, http.StatusOK, resp1.StatusCode)
	id1 := orderID(t, decodeJSON(t, resp1))

	resp2 := ts.Checkout(t, "offline", defaultItems(), "distinct-key-2")
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	id2 := orderID(t, decodeJSON(t, resp2))

	assert.NotEqual(t, id1, id2)
}

func TestWalletBalance_NewUser(t *testing.T) {
	ts := SetupTest(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL("/api/v1/wallet/balance?user_id=42"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON(t, resp)
	wallet := body["wallet"].(map[string]any)
	assert.Equal(t, float64(0), wallet["balance_cents"])
}

func TestWalletDeposit_AmountBelowMinimum(t *testing.T) {
	ts := SetupTest(t)
	defer ts.Close()

	resp := ts.Deposit(t, 42, 1, "deposit-too-small-key")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, "invalid_amount", body["error"])
}

func TestWalletDeposit_NoGatewayConfigured(t *testing.T) {
	ts := SetupTest(t)
	defer ts.Close()

	// The offline gateway never takes deposits, and no online gateway has
	// credentials in the test environment.
	resp := ts.Deposit(t, 42, 5000, "deposit-no-gateway-key")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, "unknown_gateway", body["error"])
}

func TestWebhook_UnknownProvider(t *testing.T) {
	ts := SetupTest(t)
	defer ts.Close()

	resp, err := http.Post(ts.URL("/webhooks/stripe"), "application/json", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, "unknown_gateway", body["error"])
}

func TestCancelSubscription_UnsupportedGateway(t *testing.T) {
	ts := SetupTest(t)
	defer ts.Close()

	resp := ts.Checkout(t, "offline", defaultItems(), "cancel-sub-key")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	id := orderID(t, decodeJSON(t, resp))

	cancelResp := ts.OrderAction(t, id, "cancel-subscription")
	require.Equal(t, http.StatusBadRequest, cancelResp.StatusCode)

	body := decodeJSON(t, cancelResp)
	assert.Equal(t, "unsupported_operation", body["error"])
}

func TestHealth(t *testing.T) {
	ts := SetupTest(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL("/health"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON(t, resp)
	assert.Equal(t, "healthy", body["status"])
}
