package service

import "fmt"

// ServiceError represents a business logic error with a code
type ServiceError struct {
	Err     error
	Message string
	Code    string
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeValidation          = "validation_error"
	ErrCodeInvalidAmount       = "invalid_amount"
	ErrCodeNotFound            = "not_found"
	ErrCodeInsufficientBalance = "insufficient_balance"
	ErrCodeUnknownGateway      = "unknown_gateway"
	ErrCodeUnsupported         = "unsupported_operation"
	ErrCodeInvalidTransition   = "invalid_transition"
	ErrCodeSignatureInvalid    = "signature_invalid"
	ErrCodeAuthentication      = "authentication_error"
	ErrCodeProviderAPI         = "provider_api_error"
	ErrCodeNotConnected        = "vendor_not_connected"
	ErrCodeInternalError       = "internal_error"
)

func internalError(format string, args ...any) *ServiceError {
	return &ServiceError{
		Code:    ErrCodeInternalError,
		Message: fmt.Sprintf(format, args...),
	}
}
