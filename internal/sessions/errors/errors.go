package errors

import "errors"

var (
	ErrNotFound = errors.New("session not found")

	ErrScheduleNotFound = errors.New("schedule not found")

	ErrVersionConflict = errors.New("session was modified by another writer")

	ErrDuplicate = errors.New("session already exists for date, schedule and tour")

	ErrInvalidRecurrence = errors.New("invalid recurrence rule")

	ErrInvalidRange = errors.New("generation range end must not be before start")
)
