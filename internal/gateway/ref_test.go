package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxelpay/payments/internal/models"
)

func TestOrderRef(t *testing.T) {
	assert.Equal(t, "voxel_order_42", OrderRef(42))

	id, ok := ParseOrderRef("voxel_order_42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
}

func TestParseOrderRef_Rejects(t *testing.T) {
	for _, ref := range []string{
		"",
		"voxel_order_",
		"voxel_order_abc",
		"order_42",
		"voxel_order_42_extra",
		"prefix_voxel_order_42",
	} {
		_, ok := ParseOrderRef(ref)
		assert.False(t, ok, "ref %q should not parse", ref)
	}
}

func TestStorePayload(t *testing.T) {
	order := &models.Order{}

	doc, err := StorePayload(order, "paystack", "transaction", []byte(`{"status":"success","amount":45000}`))
	require.NoError(t, err)
	assert.Equal(t, "success", doc["status"])

	stored, ok := order.GetDetail("paystack.transaction")
	require.True(t, ok)
	assert.Equal(t, "success", stored.(map[string]any)["status"])
	assert.NotEmpty(t, order.GetDetailString("paystack.last_synced_at"))
}

func TestStorePayload_InvalidJSON(t *testing.T) {
	order := &models.Order{}
	_, err := StorePayload(order, "paystack", "transaction", []byte(`not json`))
	assert.Error(t, err)
}

func TestSetTransactionID(t *testing.T) {
	t.Run("first write wins", func(t *testing.T) {
		order := &models.Order{}

		SetTransactionID(order, "square", "txn-1")
		assert.Equal(t, "txn-1", order.TransactionID)
		assert.Equal(t, "txn-1", order.GetDetailString("square.transaction_id"))

		SetTransactionID(order, "square", "txn-2")
		assert.Equal(t, "txn-1", order.TransactionID)
		assert.Equal(t, "txn-1", order.GetDetailString("square.transaction_id"))
	})

	t.Run("empty id is ignored", func(t *testing.T) {
		order := &models.Order{}
		SetTransactionID(order, "square", "")
		assert.Empty(t, order.TransactionID)
	})

	t.Run("existing order transaction id is preserved", func(t *testing.T) {
		order := &models.Order{TransactionID: "existing"}
		SetTransactionID(order, "square", "txn-1")
		assert.Equal(t, "existing", order.TransactionID)
		assert.Equal(t, "txn-1", order.GetDetailString("square.transaction_id"))
	})
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	assert.Empty(t, registry.Keys())

	_, ok := registry.Get("paypal")
	assert.False(t, ok)
}

func TestEnvURLs(t *testing.T) {
	env := &Env{BaseURL: "https://pay.example.com"}
	assert.Equal(t, "https://pay.example.com/payments/paypal/return", env.ReturnURL("paypal"))
	assert.Equal(t, "https://pay.example.com/payments/paypal/cancel", env.CancelURL("paypal"))
}
