package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/subtrack/backend/internal/domain/shared/valueobject"
	"github.com/subtrack/backend/internal/domain/subscription"
	"github.com/subtrack/backend/internal/interfaces/http/dto"
)

// Custom validation tags
const (
	TagCurrency     = "iso4217"
	TagBillingCycle = "billing_cycle"
	TagDate         = "date"
)

// SetupValidator configures gin's validator with JSON field names and the
// custom tags used by the request DTOs.
func SetupValidator() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected validator engine")
	}
	return RegisterValidations(v)
}

// RegisterValidations installs the tag name func and custom tags on v
func RegisterValidations(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation(TagCurrency, validateCurrency); err != nil {
		return err
	}
	if err := v.RegisterValidation(TagBillingCycle, validateBillingCycle); err != nil {
		return err
	}
	return v.RegisterValidation(TagDate, validateDate)
}

func validateCurrency(fl validator.FieldLevel) bool {
	_, err := valueobject.ParseCurrency(fl.Field().String())
	return err == nil
}

var billingCycleNames = func() string {
	cycles := subscription.AllBillingCycles()
	names := make([]string, len(cycles))
	for i, c := range cycles {
		names[i] = c.String()
	}
	return strings.Join(names, ", ")
}()

func validateBillingCycle(fl validator.FieldLevel) bool {
	_, err := subscription.ParseBillingCycle(fl.Field().String())
	return err == nil
}

func validateDate(fl validator.FieldLevel) bool {
	_, err := subscription.ParseDate(fl.Field().String())
	return err == nil
}

// FormatValidationErrors converts a binding error into the error envelope.
// Malformed JSON yields BAD_REQUEST without field details.
func FormatValidationErrors(err error, requestID string) dto.Response {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return dto.NewErrorResponseWithRequestID(dto.ErrCodeBadRequest, "Malformed request body", requestID)
	}

	details := make([]dto.FieldError, 0, len(validationErrors))
	for _, e := range validationErrors {
		details = append(details, dto.FieldError{
			Field:   e.Field(),
			Message: getValidationMessage(e),
		})
	}
	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError writes a 400 response for a failed bind
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, GetRequestID(c)))
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if e.Kind() == reflect.String {
			return "Must be at least " + e.Param() + " characters"
		}
		return "Must be at least " + e.Param()
	case "max":
		if e.Kind() == reflect.String {
			return "Must be at most " + e.Param() + " characters"
		}
		return "Must be at most " + e.Param()
	case "numeric":
		return "Must be numeric"
	case TagCurrency:
		return "Must be an ISO 4217 currency code"
	case TagBillingCycle:
		return "Must be one of: " + billingCycleNames
	case TagDate:
		return "Must be a date in YYYY-MM-DD format"
	default:
		return "Invalid value"
	}
}
