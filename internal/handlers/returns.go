package handlers

import (
	"net/http"
	"strconv"

	"github.com/voxelpay/payments/internal/models"
)

// PaymentReturn handles GET /payments/{provider}/return. The customer lands
// here after the provider-hosted checkout; the order is synced against the
// provider and the customer is redirected to the configured success or
// failure page.
func (h *Handler) PaymentReturn(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")
	orderID, err := strconv.ParseInt(r.URL.Query().Get("order_id"), 10, 64)
	if err != nil || orderID <= 0 {
		h.redirectFailure(w, r, 0)
		return
	}

	order, err := h.flow.Sync(r.Context(), orderID)
	if err != nil {
		h.logger.Error("return sync failed",
			"provider", provider,
			"order_id", orderID,
			"error", err)
		h.redirectFailure(w, r, orderID)
		return
	}

	switch order.Status {
	case models.OrderStatusCompleted, models.OrderStatusPendingApproval, models.OrderStatusSubActive:
		h.redirectSuccess(w, r, orderID)
	default:
		h.redirectFailure(w, r, orderID)
	}
}

// PaymentCancel handles GET /payments/{provider}/cancel: the customer
// abandoned the provider checkout. The order stays pending_payment so a
// later attempt can reuse it.
func (h *Handler) PaymentCancel(w http.ResponseWriter, r *http.Request) {
	orderID, _ := strconv.ParseInt(r.URL.Query().Get("order_id"), 10, 64)
	h.redirectFailure(w, r, orderID)
}

func (h *Handler) redirectSuccess(w http.ResponseWriter, r *http.Request, orderID int64) {
	http.Redirect(w, r, withOrderParam(h.app.SuccessRedirectURL, orderID), http.StatusFound)
}

func (h *Handler) redirectFailure(w http.ResponseWriter, r *http.Request, orderID int64) {
	http.Redirect(w, r, withOrderParam(h.app.FailureRedirectURL, orderID), http.StatusFound)
}

func withOrderParam(base string, orderID int64) string {
	if orderID <= 0 {
		return base
	}
	sep := "?"
	for _, c := range base {
		if c == '?' {
			sep = "&"
			break
		}
	}
	return base + sep + "order_id=" + strconv.FormatInt(orderID, 10)
}
