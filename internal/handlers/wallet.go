package handlers

import (
	"net/http"
	"strconv"

	"github.com/voxelpay/payments/internal/models"
	"github.com/voxelpay/payments/internal/service"
)

type depositRequest struct {
	Email       string `json:"email"`
	UserID      int64  `json:"user_id"`
	AmountCents int64  `json:"amount_cents"`
}

type depositResponse struct {
	Success     bool   `json:"success"`
	DepositID   string `json:"deposit_id"`
	RedirectURL string `json:"redirect_url"`
	OrderID     int64  `json:"order_id"`
}

// CreateDeposit handles POST /api/v1/wallet/deposit
func (h *Handler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if err := decodeBody(r, &req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:   service.ErrCodeValidation,
			Message: "invalid request body",
		})
		return
	}
	if req.UserID <= 0 {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:   service.ErrCodeValidation,
			Message: "user_id is required",
		})
		return
	}

	deposit, checkout, err := h.deposits.Initiate(r.Context(), req.UserID, req.AmountCents, req.Email)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, depositResponse{
		Success:     true,
		DepositID:   deposit.DepositID,
		OrderID:     deposit.OrderID,
		RedirectURL: checkout.RedirectURL,
	})
}

// DepositSuccess handles GET /wallet/deposit/success?deposit_id=. The
// deposit order is synced against the gateway; a confirmed payment credits
// the wallet through the completion hook. Safe to hit repeatedly.
func (h *Handler) DepositSuccess(w http.ResponseWriter, r *http.Request) {
	depositID := r.URL.Query().Get("deposit_id")
	deposit, err := h.deposits.Find(r.Context(), depositID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if !deposit.Processed {
		if _, err := h.flow.Sync(r.Context(), deposit.OrderID); err != nil {
			h.logger.Error("deposit sync failed",
				"deposit_id", depositID,
				"order_id", deposit.OrderID,
				"error", err)
			h.redirectFailure(w, r, deposit.OrderID)
			return
		}
		deposit, err = h.deposits.Find(r.Context(), depositID)
		if err != nil {
			respondServiceError(w, err)
			return
		}
	}

	if deposit.Processed {
		h.redirectSuccess(w, r, deposit.OrderID)
		return
	}
	h.redirectFailure(w, r, deposit.OrderID)
}

// DepositCancel handles GET /wallet/deposit/cancel?deposit_id=
func (h *Handler) DepositCancel(w http.ResponseWriter, r *http.Request) {
	depositID := r.URL.Query().Get("deposit_id")
	if err := h.deposits.Cancel(r.Context(), depositID); err != nil {
		respondServiceError(w, err)
		return
	}
	h.redirectFailure(w, r, 0)
}

type balanceResponse struct {
	Success bool           `json:"success"`
	Wallet  *models.Wallet `json:"wallet"`
}

// GetBalance handles GET /api/v1/wallet/balance?user_id=
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:   service.ErrCodeValidation,
			Message: "user_id is required",
		})
		return
	}

	wallet, err := h.wallet.Balance(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, balanceResponse{Success: true, Wallet: wallet})
}

type transactionsResponse struct {
	Success      bool                        `json:"success"`
	Transactions []*models.WalletTransaction `json:"transactions"`
}

// GetTransactions handles GET /api/v1/wallet/transactions?user_id=&limit=
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:   service.ErrCodeValidation,
			Message: "user_id is required",
		})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	txns, err := h.wallet.Transactions(r.Context(), userID, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transactionsResponse{Success: true, Transactions: txns})
}
