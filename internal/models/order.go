package models

import (
	"strings"
	"time"
)

// OrderStatus represents the lifecycle status of an order
type OrderStatus string

const (
	OrderStatusPendingPayment  OrderStatus = "pending_payment"
	OrderStatusPendingApproval OrderStatus = "pending_approval"
	OrderStatusCompleted       OrderStatus = "completed"
	OrderStatusCanceled        OrderStatus = "canceled"
	OrderStatusRefunded        OrderStatus = "refunded"
	OrderStatusSubActive       OrderStatus = "sub_active"
	OrderStatusSubPaused       OrderStatus = "sub_paused"
	OrderStatusSubCanceled     OrderStatus = "sub_canceled"
)

// IsTerminal reports whether the status ends a payment attempt.
// Subscription statuses are cyclical and never terminal except sub_canceled.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCanceled, OrderStatusRefunded, OrderStatusSubCanceled:
		return true
	default:
		return false
	}
}

// OrderItem is a single line item on an order
type OrderItem struct {
	Product     string `json:"product"`
	AmountCents int64  `json:"amount_cents"`
	Quantity    int    `json:"quantity"`
	VendorID    int64  `json:"vendor_id,omitempty"`
}

// Subtotal returns amount * quantity in cents.
func (i OrderItem) Subtotal() int64 {
	return i.AmountCents * int64(i.Quantity)
}

// Order represents a purchase being driven through a payment provider.
//
// Details is a hierarchical bag addressed by dotted paths, e.g.
// "mercadopago.payment_id" or "marketplace.payout_dispatched"; each
// provider namespaces its state under its own key.
type Order struct {
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
	Details       map[string]any `db:"details" json:"details"`
	Status        OrderStatus    `db:"status" json:"status"`
	Currency      string         `db:"currency" json:"currency"`
	CustomerEmail string         `db:"customer_email" json:"customer_email,omitempty"`
	TransactionID string         `db:"transaction_id" json:"transaction_id,omitempty"`
	Items         []OrderItem    `db:"items" json:"items"`
	ID            int64          `db:"id" json:"id"`
	CustomerID    int64          `db:"customer_id" json:"customer_id"`
}

// Total returns the order total in cents.
func (o *Order) Total() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.Subtotal()
	}
	return total
}

// VendorID resolves the vendor of the order's first line item, or 0 when
// the order has no vendor.
func (o *Order) VendorID() int64 {
	if len(o.Items) == 0 {
		return 0
	}
	return o.Items[0].VendorID
}

// GetDetail reads a value from the details bag by dotted path. The second
// return value reports whether the full path exists.
func (o *Order) GetDetail(path string) (any, bool) {
	node := o.Details
	parts := strings.Split(path, ".")
	for i, part := range parts {
		if node == nil {
			return nil, false
		}
		value, ok := node[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return value, true
		}
		child, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		node = child
	}
	return nil, false
}

// GetDetailString reads a string detail, returning "" when absent or not a string.
func (o *Order) GetDetailString(path string) string {
	value, ok := o.GetDetail(path)
	if !ok {
		return ""
	}
	s, _ := value.(string)
	return s
}

// SetDetail writes a value into the details bag by dotted path, creating
// intermediate maps as needed. Intermediate non-map values are replaced.
func (o *Order) SetDetail(path string, value any) {
	if o.Details == nil {
		o.Details = make(map[string]any)
	}
	node := o.Details
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[part] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = value
}

// DeleteDetail removes a leaf from the details bag. Missing paths are a no-op.
func (o *Order) DeleteDetail(path string) {
	node := o.Details
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			return
		}
		node = child
	}
	delete(node, parts[len(parts)-1])
}
