package errors

import "errors"

var (
	ErrNotFound = errors.New("waitlist entry not found")

	ErrAlreadyJoined = errors.New("customer already has an active waitlist entry for this session")
)
