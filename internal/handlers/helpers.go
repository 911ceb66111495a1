package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/voxelpay/payments/internal/service"
)

// errorResponse is the JSON error envelope. Debug carries the underlying
// provider error and is only populated for server-side failures worth
// surfacing to operators, never raw provider responses to customers.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Debug   string `json:"debug,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // response is already committed
}

// respondServiceError maps a service error code onto an HTTP status and
// writes the error envelope.
func respondServiceError(w http.ResponseWriter, err error) {
	svcErr := extractServiceError(err)
	if svcErr == nil {
		respondJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   service.ErrCodeInternalError,
			Message: "internal error",
		})
		return
	}

	resp := errorResponse{Error: svcErr.Code, Message: svcErr.Message}
	if svcErr.Err != nil {
		resp.Debug = svcErr.Err.Error()
	}
	respondJSON(w, statusForCode(svcErr.Code), resp)
}

func statusForCode(code string) int {
	switch code {
	case service.ErrCodeValidation, service.ErrCodeInvalidAmount,
		service.ErrCodeUnknownGateway, service.ErrCodeUnsupported,
		service.ErrCodeSignatureInvalid:
		return http.StatusBadRequest
	case service.ErrCodeNotFound:
		return http.StatusNotFound
	case service.ErrCodeInsufficientBalance:
		return http.StatusPaymentRequired
	case service.ErrCodeInvalidTransition:
		return http.StatusConflict
	case service.ErrCodeNotConnected:
		return http.StatusUnprocessableEntity
	case service.ErrCodeAuthentication, service.ErrCodeProviderAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func extractServiceError(err error) *service.ServiceError {
	var svcErr *service.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}

// decodeBody decodes a JSON request body, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// pathID parses the {id} path segment as an int64.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil && id > 0
}
