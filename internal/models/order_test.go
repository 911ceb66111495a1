package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderTotal(t *testing.T) {
	order := &Order{Items: []OrderItem{
		{Product: "Desk", AmountCents: 45000, Quantity: 1},
		{Product: "Chair mat", AmountCents: 2500, Quantity: 2},
	}}
	assert.Equal(t, int64(50000), order.Total())

	assert.Equal(t, int64(0), (&Order{}).Total())
}

func TestOrderVendorID(t *testing.T) {
	order := &Order{Items: []OrderItem{{Product: "Desk", AmountCents: 100, Quantity: 1, VendorID: 9}}}
	assert.Equal(t, int64(9), order.VendorID())
	assert.Equal(t, int64(0), (&Order{}).VendorID())
}

func TestOrderDetails(t *testing.T) {
	t.Run("set and get nested paths", func(t *testing.T) {
		order := &Order{}

		order.SetDetail("paystack.reference", "voxel_order_7")
		order.SetDetail("paystack.subscription_code", "SUB_x")
		order.SetDetail("marketplace.platform_fee_cents", int64(500))

		assert.Equal(t, "voxel_order_7", order.GetDetailString("paystack.reference"))
		assert.Equal(t, "SUB_x", order.GetDetailString("paystack.subscription_code"))

		fee, ok := order.GetDetail("marketplace.platform_fee_cents")
		assert.True(t, ok)
		assert.Equal(t, int64(500), fee)
	})

	t.Run("missing paths", func(t *testing.T) {
		order := &Order{}
		_, ok := order.GetDetail("paypal.order_id")
		assert.False(t, ok)
		assert.Empty(t, order.GetDetailString("paypal.order_id"))

		order.SetDetail("paypal.order_id", "abc")
		_, ok = order.GetDetail("paypal.order_id.deeper")
		assert.False(t, ok)
	})

	t.Run("intermediate non-map values are replaced", func(t *testing.T) {
		order := &Order{}
		order.SetDetail("offline.note", "call back tomorrow")
		order.SetDetail("offline.note.reason", "changed plans")
		assert.Equal(t, "changed plans", order.GetDetailString("offline.note.reason"))
	})

	t.Run("delete", func(t *testing.T) {
		order := &Order{}
		order.SetDetail("marketplace.payout_error", "timeout")
		order.DeleteDetail("marketplace.payout_error")
		_, ok := order.GetDetail("marketplace.payout_error")
		assert.False(t, ok)
	})
}

func TestOrderStatusIsTerminal(t *testing.T) {
	terminal := []OrderStatus{OrderStatusCompleted, OrderStatusCanceled, OrderStatusRefunded, OrderStatusSubCanceled}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
	}

	open := []OrderStatus{OrderStatusPendingPayment, OrderStatusPendingApproval, OrderStatusSubActive, OrderStatusSubPaused}
	for _, s := range open {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}
