// Package hasher computes the integrity digests stamped on credits and
// ledger transactions. The digest is content-derived, so a regulator can
// recompute it from the record's fields and compare.
package hasher

import (
	"encoding/hex"

	"golang.org/x/crypto/sha3"
)

// Genesis anchors the transaction chain: the prev_hash of the very first
// ledger entry. 64 hex zeros, the width of a SHA3-256 digest.
const Genesis = "0000000000000000000000000000000000000000000000000000000000000000"

// fieldSep separates fields inside the digest input so that
// ("ab","c") and ("a","bc") never collide.
const fieldSep = byte(0x1f)

// Hash returns the hex-encoded SHA3-256 digest of the given fields in order.
// Identical input always yields identical output.
func Hash(fields ...string) string {
	h := sha3.New256()
	for i, f := range fields {
		if i > 0 {
			h.Write([]byte{fieldSep})
		}
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}
