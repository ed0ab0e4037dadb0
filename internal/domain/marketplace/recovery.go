package marketplace

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/greenledger/greenledger-api/internal/domain/ledger"
)

// Reconcile replays the ledger against the credit store at startup. The
// ledger is authoritative: credits missing their mint transaction get it
// appended, and stale ownership or retirement projections are reapplied.
// Idempotent; a clean state is a no-op.
func (e *Engine) Reconcile(ctx context.Context) error {
	credits, err := e.store.ListAll(ctx)
	if err != nil {
		return err
	}

	repaired := 0
	for i := range credits {
		c := &credits[i]

		txs, err := e.ledger.ListByCredit(ctx, c.ID)
		if err != nil {
			return err
		}

		// A credit with no mint transaction is a mint that died between the
		// two stores. Complete it.
		if !hasMint(txs) {
			t, err := e.ledger.Append(ctx, ledger.TypeMint, c.ID, uuid.Nil, c.ProducerID, c.Units)
			if err != nil {
				return err
			}
			txs = append([]ledger.Transaction{*t}, txs...)
			repaired++
			log.Warn().Str("credit_id", c.ID.String()).Msg("completed missing mint transaction")
		}

		// Replay the projection: owner and retirement as the ledger tells it.
		owner := c.ProducerID
		retired := false
		for _, t := range txs {
			switch t.Type {
			case ledger.TypeTransfer:
				owner = t.ToUserID
			case ledger.TypeRetire:
				retired = true
			}
		}

		if owner != c.OwnerID && !c.IsRetired {
			if err := e.store.TransferOwnership(ctx, c.ID, owner); err != nil {
				return err
			}
			repaired++
			log.Warn().Str("credit_id", c.ID.String()).Msg("replayed stale ownership projection")
		}
		if retired && !c.IsRetired {
			if err := e.store.Retire(ctx, c.ID); err != nil {
				return err
			}
			repaired++
			log.Warn().Str("credit_id", c.ID.String()).Msg("replayed missing retirement projection")
		}
	}

	if repaired > 0 {
		log.Info().Int("repairs", repaired).Msg("ledger reconciliation applied repairs")
	}
	return nil
}

func hasMint(txs []ledger.Transaction) bool {
	for _, t := range txs {
		if t.Type == ledger.TypeMint {
			return true
		}
	}
	return false
}
