package gateway

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/voxelpay/payments/internal/models"
)

// Orders are correlated through each provider's pass-through field using a
// "voxel_order_{id}" reference.
var orderRefPattern = regexp.MustCompile(`^voxel_order_(\d+)$`)

// OrderRef renders the pass-through reference for an order.
func OrderRef(orderID int64) string {
	return "voxel_order_" + strconv.FormatInt(orderID, 10)
}

// ParseOrderRef extracts the order id from a pass-through reference.
func ParseOrderRef(ref string) (int64, bool) {
	match := orderRefPattern.FindStringSubmatch(ref)
	if match == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// StorePayload records the full raw provider payload under
// "<provider>.<kind>" and stamps "<provider>.last_synced_at". Returns the
// decoded payload for further field extraction.
func StorePayload(order *models.Order, provider, kind string, payload json.RawMessage) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("invalid %s %s payload: %w", provider, kind, err)
	}

	order.SetDetail(provider+"."+kind, doc)
	order.SetDetail(provider+".last_synced_at", time.Now().UTC().Format(time.RFC3339))

	return doc, nil
}

// SetTransactionID records the authoritative provider transaction reference
// exactly once: later payloads never overwrite it.
func SetTransactionID(order *models.Order, provider, txnID string) {
	if txnID == "" {
		return
	}
	key := provider + ".transaction_id"
	if order.GetDetailString(key) != "" {
		return
	}
	order.SetDetail(key, txnID)
	if order.TransactionID == "" {
		order.TransactionID = txnID
	}
}
