package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code, so that
// errors.Is(err, ErrNotFound) matches any not-found error regardless of message.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes
const (
	CodeNotFound               = "NOT_FOUND"
	CodeAlreadyExists          = "ALREADY_EXISTS"
	CodeInvalidInput           = "INVALID_INPUT"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeInvalidState           = "INVALID_STATE"
	CodeInvalidName            = "INVALID_NAME"
	CodeInvalidDate            = "INVALID_DATE"
	CodeMissingField           = "MISSING_FIELD"
	CodeInvalidAmount          = "INVALID_AMOUNT"
	CodeMissingAmount          = "MISSING_AMOUNT"
	CodeMissingCurrency        = "MISSING_CURRENCY"
	CodeInvalidCurrency        = "INVALID_CURRENCY"
	CodeCurrencyMismatch       = "CURRENCY_MISMATCH"
	CodeInvalidBillingCycle    = "INVALID_BILLING_CYCLE"
	CodeInvalidEmail           = "INVALID_EMAIL"
	CodeInvalidPassword        = "INVALID_PASSWORD"
	CodeInvalidCredentials     = "INVALID_CREDENTIALS"
	CodeAccountDisabled        = "ACCOUNT_DISABLED"
	CodeConversionUnavailable  = "CONVERSION_UNAVAILABLE"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
)

// Common domain errors
var (
	ErrNotFound               = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists          = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput           = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrUnauthorized           = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
	ErrInvalidState           = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInvalidName            = NewDomainError(CodeInvalidName, "Name cannot be empty")
	ErrInvalidDate            = NewDomainError(CodeInvalidDate, "Date cannot be in the past")
	ErrMissingField           = NewDomainError(CodeMissingField, "Required field is missing")
	ErrInvalidAmount          = NewDomainError(CodeInvalidAmount, "Amount cannot be negative")
	ErrMissingAmount          = NewDomainError(CodeMissingAmount, "Amount is required")
	ErrMissingCurrency        = NewDomainError(CodeMissingCurrency, "Currency is required")
	ErrInvalidCurrency        = NewDomainError(CodeInvalidCurrency, "Currency is not a valid ISO 4217 code")
	ErrCurrencyMismatch       = NewDomainError(CodeCurrencyMismatch, "Currencies do not match")
	ErrInvalidBillingCycle    = NewDomainError(CodeInvalidBillingCycle, "Unknown billing cycle")
	ErrInvalidEmail           = NewDomainError(CodeInvalidEmail, "Invalid email format")
	ErrInvalidPassword        = NewDomainError(CodeInvalidPassword, "Password does not meet requirements")
	ErrInvalidCredentials     = NewDomainError(CodeInvalidCredentials, "Invalid email or password")
	ErrAccountDisabled        = NewDomainError(CodeAccountDisabled, "Account is deactivated")
	ErrConversionUnavailable  = NewDomainError(CodeConversionUnavailable, "Exchange rate not available")
	ErrConcurrentModification = NewDomainError(CodeConcurrentModification, "Resource was modified by another request, reload and retry")
)
