package inventory

import "errors"

var (
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrInvalidQuantity       = errors.New("quantity must be positive")
	ErrVariantNotFound       = errors.New("ticket variant not found")
)
