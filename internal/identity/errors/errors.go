package errors

import "errors"

var (
	ErrVendorNotFound = errors.New("vendor not found")

	ErrUserNotFound = errors.New("user not found")

	ErrDuplicateEmail = errors.New("user with this email already exists")
)
