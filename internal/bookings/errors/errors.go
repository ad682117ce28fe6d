package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrOrderNotFound = errors.New("order not found")

	ErrDuplicateCode = errors.New("booking code already in use")

	ErrStatusChanged = errors.New("booking status changed concurrently")
)
