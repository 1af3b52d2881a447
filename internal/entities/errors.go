package entities

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate")
	ErrOwnershipMismatch = errors.New("email does not match order billing email")
	ErrInvalidTransition = errors.New("invalid status transition")
)
