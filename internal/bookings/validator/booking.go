package validator

import (
	"reflect"
	"strings"
	"tourbook/pkg/logger"
	"tourbook/pkg/validation"

	"github.com/go-playground/validator/v10"
)

var bookingMessages = map[string]string{
	"unique": "each session may appear only once",
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

// NewBookingValidator reports fields by their JSON names so errors line up with request
// bodies (sessions[0].tickets[1].quantity).
func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validation.New(log)
	v.RegisterTagNameFunc(jsonName)
	log.Info("Booking validator initialized successfully")
	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

// Validate checks create, manual and cancel requests alike.
func (v *BookingValidator) Validate(req any) error {
	return validation.Struct(v.validate, req, bookingMessages)
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}
