package ledger

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/greenledger/greenledger-api/internal/pkg/hasher"
)

// Type classifies a ledger event.
type Type string

const (
	TypeMint     Type = "mint"
	TypeTransfer Type = "transfer"
	TypeRetire   Type = "retire"
)

// Transaction is an immutable, hash-linked ledger entry. Once appended it is
// never mutated or deleted; prev_hash of entry n equals integrity_hash of
// entry n-1, anchored at the genesis value.
type Transaction struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Seq           int64     `db:"seq" json:"-"`
	CreditID      uuid.UUID `db:"credit_id" json:"credit_id"`
	FromUserID    uuid.UUID `db:"from_user_id" json:"from_user_id"`
	ToUserID      uuid.UUID `db:"to_user_id" json:"to_user_id"`
	Units         float64   `db:"units" json:"units"`
	Type          Type      `db:"transaction_type" json:"transaction_type"`
	PrevHash      string    `db:"prev_hash" json:"prev_hash"`
	IntegrityHash string    `db:"integrity_hash" json:"integrity_hash"`
	Timestamp     time.Time `db:"timestamp" json:"timestamp"`
}

// ComputeHash derives the digest over every field including prev_hash, which
// is what links the chain. Timestamps are truncated to microseconds before
// hashing so the digest survives a round trip through the database.
func (t *Transaction) ComputeHash() string {
	return hasher.Hash(
		t.ID.String(),
		t.CreditID.String(),
		t.FromUserID.String(),
		t.ToUserID.String(),
		strconv.FormatFloat(t.Units, 'f', -1, 64),
		string(t.Type),
		t.Timestamp.UTC().Truncate(time.Microsecond).Format(time.RFC3339Nano),
		t.PrevHash,
	)
}

// Verify recomputes the digest and compares it to the stamped one.
func (t *Transaction) Verify() bool {
	return t.IntegrityHash == t.ComputeHash()
}
