package handlers

import (
	"context"
	"net/http"

	"github.com/voxelpay/payments/internal/models"
	"github.com/voxelpay/payments/internal/service"
)

type checkoutRequest struct {
	Items         []models.OrderItem `json:"items"`
	Provider      string             `json:"provider"`
	Currency      string             `json:"currency"`
	CustomerEmail string             `json:"customer_email"`
	OrderID       int64              `json:"order_id"`
	CustomerID    int64              `json:"customer_id"`
	Recurring     bool               `json:"recurring"`
}

type checkoutResponse struct {
	Success     bool   `json:"success"`
	RedirectURL string `json:"redirect_url,omitempty"`
	OrderID     int64  `json:"order_id"`
}

// CreateCheckout handles POST /api/v1/checkout. With an order_id the
// payment attempt runs against the existing order; otherwise the order is
// created from the submitted items first.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:   service.ErrCodeValidation,
			Message: "invalid request body",
		})
		return
	}
	if req.Provider == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:   service.ErrCodeValidation,
			Message: "provider is required",
		})
		return
	}

	orderID := req.OrderID
	if orderID == 0 {
		order := &models.Order{
			CustomerID:    req.CustomerID,
			CustomerEmail: req.CustomerEmail,
			Currency:      req.Currency,
			Items:         req.Items,
		}
		if err := h.checkout.CreateOrder(r.Context(), order); err != nil {
			respondServiceError(w, err)
			return
		}
		orderID = order.ID
	}

	result, err := h.checkout.ProcessPayment(r.Context(), orderID, req.Provider, req.Recurring)
	if err != nil {
		h.logger.Error("checkout failed", "order_id", orderID, "provider", req.Provider, "error", err)
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, checkoutResponse{
		Success:     true,
		OrderID:     result.OrderID,
		RedirectURL: result.RedirectURL,
	})
}

type orderResponse struct {
	Success bool          `json:"success"`
	Order   *models.Order `json:"order"`
}

// GetOrder handles GET /api/v1/orders/{id}
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:   service.ErrCodeValidation,
			Message: "invalid order id",
		})
		return
	}

	order, err := h.checkout.GetOrder(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderResponse{Success: true, Order: order})
}

// ApproveOrder handles POST /api/v1/orders/{id}/approve
func (h *Handler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	h.vendorAction(w, r, h.flow.Approve)
}

// DeclineOrder handles POST /api/v1/orders/{id}/decline
func (h *Handler) DeclineOrder(w http.ResponseWriter, r *http.Request) {
	h.vendorAction(w, r, h.flow.Decline)
}

// SyncOrder handles POST /api/v1/orders/{id}/sync
func (h *Handler) SyncOrder(w http.ResponseWriter, r *http.Request) {
	h.vendorAction(w, r, h.flow.Sync)
}

// CancelSubscription handles POST /api/v1/orders/{id}/cancel-subscription
func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	h.vendorAction(w, r, h.flow.CancelSubscription)
}

func (h *Handler) vendorAction(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, orderID int64) (*models.Order, error)) {
	id, ok := pathID(r, "id")
	if !ok {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:   service.ErrCodeValidation,
			Message: "invalid order id",
		})
		return
	}

	order, err := action(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderResponse{Success: true, Order: order})
}
