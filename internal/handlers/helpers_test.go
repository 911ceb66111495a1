package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voxelpay/payments/internal/service"
)

func TestStatusForCode(t *testing.T) {
	cases := map[string]int{
		service.ErrCodeValidation:          http.StatusBadRequest,
		service.ErrCodeInvalidAmount:       http.StatusBadRequest,
		service.ErrCodeUnknownGateway:      http.StatusBadRequest,
		service.ErrCodeUnsupported:         http.StatusBadRequest,
		service.ErrCodeSignatureInvalid:    http.StatusBadRequest,
		service.ErrCodeNotFound:            http.StatusNotFound,
		service.ErrCodeInsufficientBalance: http.StatusPaymentRequired,
		service.ErrCodeInvalidTransition:   http.StatusConflict,
		service.ErrCodeNotConnected:        http.StatusUnprocessableEntity,
		service.ErrCodeAuthentication:      http.StatusBadGateway,
		service.ErrCodeProviderAPI:         http.StatusBadGateway,
		service.ErrCodeInternalError:       http.StatusInternalServerError,
		"something_else":                   http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, statusForCode(code), "code %s", code)
	}
}

func TestExtractServiceError(t *testing.T) {
	svcErr := &service.ServiceError{Code: service.ErrCodeNotFound, Message: "order not found"}

	assert.Equal(t, svcErr, extractServiceError(svcErr))
	assert.Equal(t, svcErr, extractServiceError(fmt.Errorf("handling request: %w", svcErr)))
	assert.Nil(t, extractServiceError(errors.New("plain")))
}
