package mercadopago

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelpay/payments/internal/config"
	"github.com/voxelpay/payments/internal/gateway"
)

func signManifest(secret, dataID, requestID, ts string) string {
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, requestID, ts)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookVerify(t *testing.T) {
	hook := NewWebhook(nil, config.MercadoPagoConfig{WebhookSecret: "whsec"})
	body := []byte(`{"type":"payment","data":{"id":123}}`)

	t.Run("valid signature with query data id", func(t *testing.T) {
		v1 := signManifest("whsec", "123", "req-1", "1700000000")
		r := httptest.NewRequest("POST", "/webhooks/mercadopago?data.id=123", nil)
		r.Header.Set("x-request-id", "req-1")
		r.Header.Set("x-signature", "ts=1700000000,v1="+v1)

		assert.NoError(t, hook.Verify(context.Background(), r, body))
	})

	t.Run("data id falls back to the body", func(t *testing.T) {
		v1 := signManifest("whsec", "123", "req-1", "1700000000")
		r := httptest.NewRequest("POST", "/webhooks/mercadopago", nil)
		r.Header.Set("x-request-id", "req-1")
		r.Header.Set("x-signature", "ts=1700000000,v1="+v1)

		assert.NoError(t, hook.Verify(context.Background(), r, body))
	})

	t.Run("tampered v1", func(t *testing.T) {
		v1 := signManifest("whsec", "123", "req-1", "1700000000")
		r := httptest.NewRequest("POST", "/webhooks/mercadopago?data.id=124", nil)
		r.Header.Set("x-request-id", "req-1")
		r.Header.Set("x-signature", "ts=1700000000,v1="+v1)

		assert.ErrorIs(t, hook.Verify(context.Background(), r, body), gateway.ErrSignatureInvalid)
	})

	t.Run("malformed header", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/mercadopago", nil)
		r.Header.Set("x-signature", "garbage")

		assert.ErrorIs(t, hook.Verify(context.Background(), r, body), gateway.ErrSignatureInvalid)
	})

	t.Run("missing header", func(t *testing.T) {
		r := httptest.NewRequest("POST", "/webhooks/mercadopago", nil)
		assert.ErrorIs(t, hook.Verify(context.Background(), r, body), gateway.ErrSignatureInvalid)
	})

	t.Run("no secret skips verification", func(t *testing.T) {
		hook := NewWebhook(nil, config.MercadoPagoConfig{})
		r := httptest.NewRequest("POST", "/webhooks/mercadopago", nil)
		assert.NoError(t, hook.Verify(context.Background(), r, body))
	})
}

func TestWebhookParse(t *testing.T) {
	hook := NewWebhook(nil, config.MercadoPagoConfig{})

	t.Run("payment notification", func(t *testing.T) {
		event, err := hook.Parse([]byte(`{"type":"payment","data":{"id":123456}}`))
		require.NoError(t, err)

		assert.Equal(t, gateway.EventPayment, event.Kind)
		assert.Equal(t, "123456", event.ResourceID)
		assert.Empty(t, event.Payload, "payload is fetched in Resolve")
	})

	t.Run("type falls back to action", func(t *testing.T) {
		event, err := hook.Parse([]byte(`{"action":"payment.updated","data":{"id":"123"}}`))
		require.NoError(t, err)

		assert.Equal(t, gateway.EventPayment, event.Kind)
		assert.Equal(t, "payment.updated", event.Type)
	})

	t.Run("preapproval notification", func(t *testing.T) {
		event, err := hook.Parse([]byte(`{"type":"subscription_preapproval","data":{"id":"pre_1"}}`))
		require.NoError(t, err)

		assert.Equal(t, gateway.EventSubscription, event.Kind)
		assert.Equal(t, detailPreapprovalID, event.LookupPath)
		assert.Equal(t, "pre_1", event.LookupValue)
	})

	t.Run("unhandled topics are ignored", func(t *testing.T) {
		event, err := hook.Parse([]byte(`{"type":"plan","data":{"id":"p_1"}}`))
		require.NoError(t, err)
		assert.Equal(t, gateway.EventIgnored, event.Kind)
	})
}

func TestMapPaymentStatus(t *testing.T) {
	auto := config.CaptureAutomatic
	manual := config.CaptureManual

	cases := []struct {
		status  string
		capture config.CaptureMethod
		want    string
	}{
		{"approved", auto, "completed"},
		{"approved", manual, "pending_approval"},
		{"authorized", auto, "pending_approval"},
		{"pending", auto, "pending_payment"},
		{"in_process", auto, "pending_payment"},
		{"in_mediation", auto, "pending_payment"},
		{"rejected", auto, "canceled"},
		{"cancelled", auto, "canceled"},
		{"refunded", auto, "refunded"},
		{"charged_back", auto, "refunded"},
		{"unknown", auto, "pending_payment"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, string(mapPaymentStatus(tc.status, tc.capture)), "status %s/%s", tc.status, tc.capture)
	}
}

func TestNumericID(t *testing.T) {
	assert.Equal(t, "123", numericID("123"))
	assert.Equal(t, "123", numericID(float64(123)))
	assert.Equal(t, "123", numericID(json.Number("123")))
	assert.Equal(t, "", numericID(nil))
}
