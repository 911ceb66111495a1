package handlers

import (
	"context"
	"net/http"
	"time"
)

// GetHealth handles GET /health
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	pingCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.healthChecker.PingContext(pingCtx); err != nil {
		h.logger.Error("health check failed: database unreachable", "error", err)
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unhealthy"})
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}
