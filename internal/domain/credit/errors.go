package credit

import "errors"

var (
	// ErrNotFound is returned when no credit exists for the given id.
	ErrNotFound = errors.New("credit not found")

	// ErrAlreadyRetired is returned when mutating a retired credit.
	// Retirement is terminal; a second retirement is a caller bug and is
	// surfaced, not silently ignored.
	ErrAlreadyRetired = errors.New("credit already retired")

	// ErrAlreadySold is returned when a credit has left its producer.
	ErrAlreadySold = errors.New("credit already sold")

	// ErrInvalidUnits is returned when units is zero or negative.
	ErrInvalidUnits = errors.New("invalid units: must be greater than 0")

	// ErrInvalidDate is returned when the production date is unparsable.
	ErrInvalidDate = errors.New("invalid production date")

	// ErrNotOwner is returned when someone other than the current owner
	// attempts a retirement.
	ErrNotOwner = errors.New("caller does not own this credit")

	ErrInternal = errors.New("internal error")
)
