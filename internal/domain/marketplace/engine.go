// Package marketplace orchestrates the credit workflows: minting, purchase,
// and retirement. It is the only writer that spans the credit store and the
// transaction ledger, and it owns the locking that makes purchase and
// retirement race-free.
package marketplace

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/greenledger/greenledger-api/internal/domain/credit"
	"github.com/greenledger/greenledger-api/internal/domain/ledger"
	"github.com/greenledger/greenledger-api/internal/pkg/lockmgr"
)

// UserDirectory resolves opaque user ids to display names. External
// collaborator; the engine never stores user data.
type UserDirectory interface {
	DisplayNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// Publisher receives every committed ledger transaction, e.g. for a live
// regulator feed. Must not block.
type Publisher interface {
	PublishTransaction(t ledger.Transaction)
}

// Engine coordinates CreditStore and TransactionLedger under per-credit
// locks. The ledger append is the authoritative event; the credit row is a
// projection the reconciler can rebuild by replay.
type Engine struct {
	store  *credit.Store
	ledger *ledger.Ledger
	locks  *lockmgr.Manager
	users  UserDirectory
	feed   Publisher // optional
}

func NewEngine(store *credit.Store, l *ledger.Ledger, locks *lockmgr.Manager, users UserDirectory) *Engine {
	return &Engine{store: store, ledger: l, locks: locks, users: users}
}

// SetFeed attaches a live transaction publisher.
func (e *Engine) SetFeed(feed Publisher) {
	e.feed = feed
}

// MintCredit creates a credit and its mint transaction. If the ledger append
// fails the freshly created credit is rolled back, so the two stores never
// disagree about a mint.
func (e *Engine) MintCredit(ctx context.Context, producerID uuid.UUID, batchID string, units float64, productionDate string) (*credit.Credit, *ledger.Transaction, error) {
	c, err := e.store.Mint(ctx, producerID, batchID, units, productionDate)
	if err != nil {
		return nil, nil, err
	}

	t, err := e.ledger.Append(ctx, ledger.TypeMint, c.ID, uuid.Nil, producerID, c.Units)
	if err != nil {
		if derr := e.store.Discard(ctx, c.ID); derr != nil {
			// Half-minted credit left behind; the startup reconciler will
			// complete or remove it.
			log.Error().Err(derr).Str("credit_id", c.ID.String()).Msg("failed to roll back unlogged mint")
		}
		return nil, nil, err
	}

	e.publish(t)
	return c, t, nil
}

// PurchaseCredit transfers an unsold credit to the buyer. Exactly one
// concurrent purchaser can win: the per-credit lock covers the availability
// check, the ledger append, and the ownership update.
func (e *Engine) PurchaseCredit(ctx context.Context, creditID, buyerID uuid.UUID, expectedUnits float64) (*ledger.Transaction, error) {
	if err := e.locks.Acquire(creditID); err != nil {
		return nil, err
	}
	defer e.locks.Release(creditID)

	c, err := e.store.Get(ctx, creditID)
	if err != nil {
		return nil, err
	}
	if c.IsRetired {
		return nil, credit.ErrAlreadyRetired
	}
	if c.OwnerID != c.ProducerID {
		return nil, credit.ErrAlreadySold
	}
	if expectedUnits != c.Units {
		return nil, ErrUnitsMismatch
	}

	t, err := e.ledger.Append(ctx, ledger.TypeTransfer, c.ID, c.OwnerID, buyerID, c.Units)
	if err != nil {
		return nil, err
	}

	if err := e.store.TransferOwnership(ctx, c.ID, buyerID); err != nil {
		// The transfer is committed in the ledger; the projection is stale
		// until the reconciler replays it. Do not fail the purchase.
		log.Error().Err(err).Str("credit_id", c.ID.String()).Msg("ownership projection lagging behind ledger")
	}

	e.publish(t)
	return t, nil
}

// RetireCredit marks a credit consumed. Only the current owner may retire,
// and only once.
func (e *Engine) RetireCredit(ctx context.Context, creditID, retiringUserID uuid.UUID) (*ledger.Transaction, error) {
	if err := e.locks.Acquire(creditID); err != nil {
		return nil, err
	}
	defer e.locks.Release(creditID)

	c, err := e.store.Get(ctx, creditID)
	if err != nil {
		return nil, err
	}
	if c.IsRetired {
		return nil, credit.ErrAlreadyRetired
	}
	if c.OwnerID != retiringUserID {
		return nil, credit.ErrNotOwner
	}

	t, err := e.ledger.Append(ctx, ledger.TypeRetire, c.ID, c.OwnerID, c.OwnerID, c.Units)
	if err != nil {
		return nil, err
	}

	if err := e.store.Retire(ctx, c.ID); err != nil {
		log.Error().Err(err).Str("credit_id", c.ID.String()).Msg("retirement projection lagging behind ledger")
	}

	e.publish(t)
	return t, nil
}

// AvailableCredits returns the marketplace listing enriched with producer
// display names.
func (e *Engine) AvailableCredits(ctx context.Context) ([]AvailableCredit, error) {
	credits, err := e.store.ListAvailable(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(credits))
	for _, c := range credits {
		ids = append(ids, c.ProducerID)
	}
	names, err := e.users.DisplayNames(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]AvailableCredit, 0, len(credits))
	for _, c := range credits {
		out = append(out, AvailableCredit{Credit: c, ProducerName: names[c.ProducerID]})
	}
	return out, nil
}

// HoldingsOf returns the credits currently owned by a user.
func (e *Engine) HoldingsOf(ctx context.Context, ownerID uuid.UUID) ([]credit.Credit, error) {
	return e.store.ListByOwner(ctx, ownerID)
}

// PurchasesOf returns the transfer transactions where the user is the
// receiving side, newest first.
func (e *Engine) PurchasesOf(ctx context.Context, buyerID uuid.UUID) ([]ledger.Transaction, error) {
	txs, err := e.ledger.ListByUser(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	var purchases []ledger.Transaction
	for _, t := range txs {
		if t.Type == ledger.TypeTransfer && t.ToUserID == buyerID {
			purchases = append(purchases, t)
		}
	}
	return purchases, nil
}

func (e *Engine) publish(t *ledger.Transaction) {
	if e.feed != nil {
		e.feed.PublishTransaction(*t)
	}
}
