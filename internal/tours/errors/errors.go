package errors

import "errors"

var (
	ErrNotFound = errors.New("tour not found")

	ErrInventoryConflict = errors.New("variant inventory changed since it was read")

	ErrPolicyNotFound = errors.New("return policy not found")
)
