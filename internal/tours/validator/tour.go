package validator

import (
	"tourbook/pkg/logger"
	"tourbook/pkg/model"
	"tourbook/pkg/validation"

	"github.com/go-playground/validator/v10"
)

var tourMessages = map[string]string{
	"len": "currency must be a three letter ISO 4217 code",
}

type TourValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewTourValidator(log *logger.Logger) *TourValidator {
	v := validation.New(log)
	log.Info("Tour validator initialized successfully")
	return &TourValidator{
		validate: v,
		logger:   log,
	}
}

func (v *TourValidator) Validate(tour *model.Tour) error {
	return validation.Struct(v.validate, tour, tourMessages)
}

func (v *TourValidator) ValidatePolicy(policy *model.ReturnPolicy) error {
	return validation.Struct(v.validate, policy, nil)
}
