package dto

import (
	"net/http"

	"github.com/subtrack/backend/internal/domain/shared"
)

// Transport-level error codes. Domain codes come from the shared package.
const (
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeBadRequest  = "BAD_REQUEST"
	ErrCodeRateLimited = "RATE_LIMITED"
	ErrCodeInternal    = "INTERNAL_ERROR"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeValidation:  http.StatusBadRequest,
	ErrCodeBadRequest:  http.StatusBadRequest,
	ErrCodeRateLimited: http.StatusTooManyRequests,
	ErrCodeInternal:    http.StatusInternalServerError,

	shared.CodeInvalidInput:        http.StatusBadRequest,
	shared.CodeInvalidName:         http.StatusBadRequest,
	shared.CodeInvalidDate:         http.StatusBadRequest,
	shared.CodeMissingField:        http.StatusBadRequest,
	shared.CodeInvalidAmount:       http.StatusBadRequest,
	shared.CodeMissingAmount:       http.StatusBadRequest,
	shared.CodeMissingCurrency:     http.StatusBadRequest,
	shared.CodeInvalidCurrency:     http.StatusBadRequest,
	shared.CodeCurrencyMismatch:    http.StatusBadRequest,
	shared.CodeInvalidBillingCycle: http.StatusBadRequest,
	shared.CodeInvalidEmail:        http.StatusBadRequest,
	shared.CodeInvalidPassword:     http.StatusBadRequest,

	shared.CodeInvalidCredentials: http.StatusUnauthorized,
	shared.CodeUnauthorized:       http.StatusUnauthorized,
	shared.CodeAccountDisabled:    http.StatusForbidden,
	shared.CodeNotFound:           http.StatusNotFound,
	shared.CodeAlreadyExists:      http.StatusConflict,
	shared.CodeInvalidState:       http.StatusUnprocessableEntity,

	shared.CodeConcurrentModification: http.StatusConflict,
	shared.CodeConversionUnavailable:  http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
