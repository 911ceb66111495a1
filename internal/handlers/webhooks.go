package handlers

import (
	"io"
	"net/http"

	"github.com/voxelpay/payments/internal/service"
)

// maxWebhookBody bounds webhook payloads at 1 MiB.
const maxWebhookBody = 1 << 20

type webhookResponse struct {
	Success bool   `json:"success"`
	Outcome string `json:"outcome,omitempty"`
}

// HandleWebhook handles POST /webhooks/{provider}. The body is read exactly
// once and passed raw to signature verification. Processed and benignly
// ignored events answer 200; only signature and parse failures answer 4xx
// so the provider keeps retrying those.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:   service.ErrCodeValidation,
			Message: "failed to read request body",
		})
		return
	}

	outcome, err := h.flow.HandleWebhook(r.Context(), provider, r, body)
	if err != nil {
		h.logger.Warn("webhook rejected", "provider", provider, "error", err)
		respondServiceError(w, err)
		return
	}

	h.logger.Info("webhook handled", "provider", provider, "outcome", string(outcome))
	respondJSON(w, http.StatusOK, webhookResponse{Success: true, Outcome: string(outcome)})
}
