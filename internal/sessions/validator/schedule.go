package validator

import (
	"strings"
	"tourbook/pkg/logger"
	"tourbook/pkg/model"
	"tourbook/pkg/validation"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
)

const tagRRule = "valid_rrule"

var scheduleMessages = map[string]string{
	tagRRule:            "rrule must be a valid RFC 5545 recurrence rule",
	validation.TagClock: "start_time and end_time must be in HH:MM 24-hour format",
	"datetime":          "dates must use the YYYY-MM-DD format",
	"timezone":          "time_zone must be an IANA time zone such as Europe/Lisbon",
}

type ScheduleValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewScheduleValidator(log *logger.Logger) *ScheduleValidator {
	v := validation.New(log)
	if err := v.RegisterValidation(tagRRule, validateRRule); err != nil {
		log.Fatal("Failed to register 'valid_rrule' validator", "error", err)
	}

	log.Info("Schedule validator initialized successfully")
	return &ScheduleValidator{
		validate: v,
		logger:   log,
	}
}

func validateRRule(fl validator.FieldLevel) bool {
	rule := strings.TrimPrefix(strings.TrimSpace(fl.Field().String()), "RRULE:")
	if rule == "" {
		return true
	}
	_, err := rrule.StrToROption(rule)
	return err == nil
}

func (v *ScheduleValidator) Validate(sc *model.Schedule) error {
	if err := validation.Struct(v.validate, sc, scheduleMessages); err != nil {
		return err
	}

	var errs validation.ValidationErrors
	if len(sc.Dates) == 0 && sc.RRule == "" {
		errs = append(errs, validation.ValidationError{
			Field:   "Schedule.Dates",
			Message: "either dates or rrule must be provided",
		})
	}
	if sc.Template.EndTime != "" && sc.Template.EndTime <= sc.Template.StartTime {
		errs = append(errs, validation.ValidationError{
			Field:   "Schedule.Template.EndTime",
			Message: "end_time must be after start_time",
		})
	}
	if sc.ValidFrom != nil && sc.ValidUntil != nil && sc.ValidUntil.Before(*sc.ValidFrom) {
		errs = append(errs, validation.ValidationError{
			Field:   "Schedule.ValidUntil",
			Message: "valid_until must not be before valid_from",
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
