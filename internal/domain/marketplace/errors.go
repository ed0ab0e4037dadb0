package marketplace

import "errors"

var (
	// ErrUnitsMismatch is returned when a purchase names different units
	// than the credit carries. Guards buyers acting on stale listings.
	ErrUnitsMismatch = errors.New("units do not match credit")
)
