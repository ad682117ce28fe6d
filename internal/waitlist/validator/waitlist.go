package validator

import (
	"tourbook/pkg/logger"
	"tourbook/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type WaitlistValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewWaitlistValidator(log *logger.Logger) *WaitlistValidator {
	return &WaitlistValidator{
		validate: validation.New(log),
		logger:   log,
	}
}

func (v *WaitlistValidator) Validate(req any) error {
	return validation.Struct(v.validate, req, nil)
}
