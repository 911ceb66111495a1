package square

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
)

const notificationURL = "https://pay.example.com/webhooks/square"

func signEvent(key string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(notificationURL))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestWebhookVerify(t *testing.T) {
	hook := NewWebhook(config.SquareConfig{
		WebhookSignatureKey: "sigkey",
		WebhookURL:          notificationURL,
	})
	body := []byte(`{"type":"payment.updated"}`)

	t.Run("valid signature", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/square", nil)
		r.Header.Set("x-square-hmacsha256-signature", signEvent("sigkey", body))

		assert.NoError(t, hook.Verify(context.Background(), r, body))
	})

	t.Run("tampered body", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/square", nil)
		r.Header.Set("x-square-hmacsha256-signature", signEvent("sigkey", body))

		err := hook.Verify(context.Background(), r, []byte(`{"type":"payment.created"}`))
		assert.ErrorIs(t, err, gateway.ErrSignatureInvalid)
	})

	t.Run("missing header", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/square", nil)
		assert.ErrorIs(t, hook.Verify(context.Background(), r, body), gateway.ErrSignatureInvalid)
	})

	t.Run("no key skips verification", func(t *testing.T) {
		hook := NewWebhook(config.SquareConfig{})
		r := httptest.NewRequest("POST", "/webhooks/square", nil)
		assert.NoError(t, hook.Verify(context.Background(), r, body))
	})
}

func TestWebhookParse(t *testing.T) {
	hook := NewWebhook(config.SquareConfig{})

	t.Run("payment event", func(t *testing.T) {
		body := []byte(`{
			"type": "payment.updated",
			"data": {"object": {"payment": {"id": "pay_1", "order_id": "sq_order_1", "status": "COMPLETED"}}}
		}`)
		event, err := hook.Parse(body)
		require.NoError(t, err)

		assert.Equal(t, gateway.EventPayment, event.Kind)
		assert.Equal(t, "pay_1", event.ResourceID)
		assert.Equal(t, detailOrderID, event.LookupPath)
		assert.Equal(t, "sq_order_1", event.LookupValue)
		assert.JSONEq(t, `{"id":"pay_1","order_id":"sq_order_1","status":"COMPLETED"}`, string(event.Payload))
	})

	t.Run("payment event without object is ignored", func(t *testing.T) {
		event, err := hook.Parse([]byte(`{"type":"payment.updated","data":{"object":{}}}`))
		require.NoError(t, err)
		assert.Equal(t, gateway.EventIgnored, event.Kind)
	})

	t.Run("unrelated event is ignored", func(t *testing.T) {
		event, err := hook.Parse([]byte(`{"type":"inventory.count.updated"}`))
		require.NoError(t, err)
		assert.Equal(t, gateway.EventIgnored, event.Kind)
	})

	t.Run("garbage body", func(t *testing.T) {
		_, err := hook.Parse([]byte(`{`))
		assert.Error(t, err)
	})
}

func TestMapPaymentStatus(t *testing.T) {
	cases := []struct {
		status   string
		refunded bool
		want     models.OrderStatus
	}{
		{"COMPLETED", false, models.OrderStatusCompleted},
		{"COMPLETED", true, models.OrderStatusRefunded},
		{"APPROVED", false, models.OrderStatusPendingApproval},
		{"PENDING", false, models.OrderStatusPendingPayment},
		{"CANCELED", false, models.OrderStatusCanceled},
		{"FAILED", false, models.OrderStatusCanceled},
		{"completed", false, models.OrderStatusCompleted},
		{"SOMETHING_NEW", false, models.OrderStatusPendingPayment},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, mapPaymentStatus(tc.status, tc.refunded), "status %s refunded=%v", tc.status, tc.refunded)
	}
}
