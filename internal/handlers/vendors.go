package handlers

import (
	"net/http"

	"github.com/voxelpay/payments/internal/gateway"
	"github.com/voxelpay/payments/internal/models"
	"github.com/voxelpay/payments/internal/service"
)

type connectURLResponse struct {
	Success       bool   `json:"success"`
	OnboardingURL string `json:"onboarding_url"`
}

// VendorConnect handles GET /api/v1/vendors/{id}/connect/{provider}: starts
// the OAuth consent flow.
func (h *Handler) VendorConnect(w http.ResponseWriter, r *http.Request) {
	vendorID, ok := pathID(r, "id")
	if !ok {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:   service.ErrCodeValidation,
			Message: "invalid vendor id",
		})
		return
	}

	url, err := h.connect.OnboardingURL(r.Context(), vendorID, r.PathValue("provider"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, connectURLResponse{Success: true, OnboardingURL: url})
}

// VendorConnectCallback handles GET /vendors/connect/{provider}/callback:
// completes the OAuth consent flow.
func (h *Handler) VendorConnectCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if code == "" {
		code = r.URL.Query().Get("authorization_code")
	}
	if state == "" || code == "" {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:   service.ErrCodeValidation,
			Message: "state and code are required",
		})
		return
	}

	conn, err := h.connect.HandleCallback(r.Context(), state, code)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, connectionResponse{Success: true, Connection: sanitizeConnection(conn)})
}

type connectDetailsRequest struct {
	PayoutEmail      string  `json:"payout_email"`
	BusinessName     string  `json:"business_name"`
	SettlementBank   string  `json:"settlement_bank"`
	AccountNumber    string  `json:"account_number"`
	PercentageCharge float64 `json:"percentage_charge"`
}

type connectionResponse struct {
	Success    bool                     `json:"success"`
	Connection *models.VendorConnection `json:"connection"`
}

// VendorSubmitDetails handles POST /api/v1/vendors/{id}/connect/{provider}:
// onboarding without OAuth (Paystack bank details, PayPal payout email).
func (h *Handler) VendorSubmitDetails(w http.ResponseWriter, r *http.Request) {
	vendorID, ok := pathID(r, "id")
	if !ok {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:   service.ErrCodeValidation,
			Message: "invalid vendor id",
		})
		return
	}

	var req connectDetailsRequest
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:   service.ErrCodeValidation,
			Message: "invalid request body",
		})
		return
	}

	conn, err := h.connect.SubmitDetails(r.Context(), vendorID, r.PathValue("provider"), gateway.SubaccountDetails{
		BusinessName:     req.BusinessName,
		SettlementBank:   req.SettlementBank,
		AccountNumber:    req.AccountNumber,
		PercentageCharge: req.PercentageCharge,
	}, req.PayoutEmail)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, connectionResponse{Success: true, Connection: sanitizeConnection(conn)})
}

// VendorDisconnect handles DELETE /api/v1/vendors/{id}/connect/{provider}
func (h *Handler) VendorDisconnect(w http.ResponseWriter, r *http.Request) {
	vendorID, ok := pathID(r, "id")
	if !ok {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:   service.ErrCodeValidation,
			Message: "invalid vendor id",
		})
		return
	}

	if err := h.connect.Disconnect(r.Context(), vendorID, r.PathValue("provider")); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

type connectStatusResponse struct {
	Success   bool            `json:"success"`
	Providers map[string]bool `json:"providers"`
}

// VendorConnectStatus handles GET /api/v1/vendors/{id}/connect
func (h *Handler) VendorConnectStatus(w http.ResponseWriter, r *http.Request) {
	vendorID, ok := pathID(r, "id")
	if !ok {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:   service.ErrCodeValidation,
			Message: "invalid vendor id",
		})
		return
	}

	status, err := h.connect.Status(r.Context(), vendorID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, connectStatusResponse{Success: true, Providers: status})
}

// sanitizeConnection strips credentials before a connection leaves the API.
func sanitizeConnection(conn *models.VendorConnection) *models.VendorConnection {
	out := *conn
	out.AccessToken = ""
	out.RefreshToken = ""
	return &out
}
