package credit

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/greenledger/greenledger-api/internal/pkg/hasher"
)

// Credit is a minted batch of certified hydrogen production. Units are fixed
// at mint time; only owner_id and is_retired ever change, and is_retired
// moves false→true exactly once.
type Credit struct {
	ID             uuid.UUID `db:"id" json:"id"`
	BatchID        string    `db:"batch_id" json:"batch_id"`
	ProducerID     uuid.UUID `db:"producer_id" json:"producer_id"`
	OwnerID        uuid.UUID `db:"owner_id" json:"owner_id"`
	Units          float64   `db:"units" json:"units"`
	ProductionDate time.Time `db:"production_date" json:"production_date"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	IsRetired      bool      `db:"is_retired" json:"is_retired"`
	IntegrityHash  string    `db:"integrity_hash" json:"integrity_hash"`
}

// ComputeHash derives the integrity digest from the immutable fields.
// Owner and retirement state are deliberately excluded: they change over the
// credit's lifecycle and are witnessed by ledger transactions instead.
func (c *Credit) ComputeHash() string {
	return hasher.Hash(
		c.ID.String(),
		c.ProducerID.String(),
		c.BatchID,
		strconv.FormatFloat(c.Units, 'f', -1, 64),
		c.ProductionDate.UTC().Format(time.RFC3339),
	)
}

// VerifyIntegrity recomputes the digest and compares it to the stamped one.
func (c *Credit) VerifyIntegrity() bool {
	return c.IntegrityHash == c.ComputeHash()
}

// Available reports whether the credit is still on the marketplace:
// unretired and never sold away from its producer.
func (c *Credit) Available() bool {
	return !c.IsRetired && c.OwnerID == c.ProducerID
}
