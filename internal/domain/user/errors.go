package user

import "errors"

var (
	// ErrNotFound is returned when no user exists for the given id or name.
	ErrNotFound = errors.New("user not found")

	// ErrInvalidRole is returned for roles outside producer/buyer/regulator.
	ErrInvalidRole = errors.New("invalid role")

	ErrInternal = errors.New("internal error")
)
