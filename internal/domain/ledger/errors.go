package ledger

import "errors"

var (
	// ErrChainBroken is returned by VerifyChain when a recomputed hash or a
	// prev_hash link does not match. Not locally recoverable: an operator
	// has to inspect the break.
	ErrChainBroken = errors.New("ledger chain broken")

	ErrInternal = errors.New("internal error")
)
