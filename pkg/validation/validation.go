// Package validation wraps go-playground/validator with the custom tags shared by every
// service and turns its errors into field/message pairs for API responses.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"tourbook/pkg/logger"

	"github.com/go-playground/validator/v10"
)

const (
	TagClock = "valid_clock"
	TagEmail = "email"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Details flattens the errors into the map carried by a VALIDATION_ERROR response.
func (v ValidationErrors) Details() map[string]any {
	details := make(map[string]any, len(v))
	for _, err := range v {
		details[err.Field] = err.Message
	}
	return details
}

// New builds a validator with the shared tags registered. Registration failures are fatal.
func New(log *logger.Logger) *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation(TagClock, validateClock); err != nil {
		log.Fatal("Failed to register 'valid_clock' validator", "error", err)
	}
	return v
}

// validateClock accepts empty values and HH:MM in 24 hour format.
func validateClock(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	if value == "" {
		return true
	}
	_, err := time.Parse("15:04", value)
	return err == nil && len(value) == 5
}

// Struct validates s and translates failures using the per-tag messages in custom,
// falling back to generic wording.
func Struct(v *validator.Validate, s any, custom map[string]string) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	return translate(validationErrs, custom)
}

func translate(errs validator.ValidationErrors, custom map[string]string) ValidationErrors {
	var out ValidationErrors
	for _, err := range errs {
		message, ok := custom[err.Tag()]
		if !ok {
			message = defaultMessage(err)
		}
		out = append(out, ValidationError{
			Field:   err.Namespace(),
			Message: message,
		})
	}
	return out
}

func defaultMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", err.Field(), err.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
	case TagEmail:
		return fmt.Sprintf("%s must be a valid email address", err.Field())
	case TagClock:
		return fmt.Sprintf("%s must be in HH:MM 24-hour format", err.Field())
	case "datetime":
		return fmt.Sprintf("%s must match the %s layout", err.Field(), err.Param())
	case "timezone":
		return fmt.Sprintf("%s must be an IANA time zone", err.Field())
	default:
		return fmt.Sprintf("%s failed on the '%s' rule", err.Field(), err.Tag())
	}
}
