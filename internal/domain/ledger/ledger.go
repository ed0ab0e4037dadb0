// Package ledger implements the append-only, hash-linked transaction log
// behind the credit marketplace. Every mint, transfer, and retirement lands
// here exactly once; the chain of integrity hashes makes any later tampering
// detectable.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/greenledger/greenledger-api/internal/pkg/hasher"
)

// Ledger serializes appends onto the chain. The mutex is the one deliberate
// global critical section in the system; it covers only the tail read, the
// hash computation, and the insert.
type Ledger struct {
	mu   sync.Mutex
	repo Repository
	now  func() time.Time
}

func New(repo Repository) *Ledger {
	return &Ledger{repo: repo, now: time.Now}
}

// Append records a ledger event and returns the stamped transaction. The
// timestamp never moves backward relative to the previous entry: clock skew
// is clamped to prev + 1µs. Once this returns, the entry is final; caller
// cancellation does not unwind it.
func (l *Ledger) Append(ctx context.Context, typ Type, creditID, fromUserID, toUserID uuid.UUID, units float64) (*Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tail, err := l.repo.Tail(ctx)
	if err != nil {
		return nil, err
	}

	prevHash := hasher.Genesis
	ts := l.now().UTC().Truncate(time.Microsecond)
	if tail != nil {
		prevHash = tail.IntegrityHash
		if !ts.After(tail.Timestamp) {
			ts = tail.Timestamp.Add(time.Microsecond)
		}
	}

	t := &Transaction{
		ID:         uuid.New(),
		CreditID:   creditID,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Units:      units,
		Type:       typ,
		PrevHash:   prevHash,
		Timestamp:  ts,
	}
	t.IntegrityHash = t.ComputeHash()

	if err := l.repo.Append(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ListAll returns the full ledger, newest first.
func (l *Ledger) ListAll(ctx context.Context) ([]Transaction, error) {
	return l.repo.ListAll(ctx, true)
}

// ListByCredit returns a credit's transactions in append order.
func (l *Ledger) ListByCredit(ctx context.Context, creditID uuid.UUID) ([]Transaction, error) {
	return l.repo.ListByCredit(ctx, creditID)
}

// ListByUser returns transactions where the user appears on either side,
// newest first.
func (l *Ledger) ListByUser(ctx context.Context, userID uuid.UUID) ([]Transaction, error) {
	return l.repo.ListByUser(ctx, userID)
}

// VerifyChain walks the ledger oldest-first, recomputing every digest and
// checking the prev_hash links. Returns -1 and nil when the chain is intact;
// otherwise the index of the first broken entry and ErrChainBroken, so an
// auditor can localize the discrepancy.
func (l *Ledger) VerifyChain(ctx context.Context) (int, error) {
	txs, err := l.repo.ListAll(ctx, false)
	if err != nil {
		return 0, err
	}

	prevHash := hasher.Genesis
	for i := range txs {
		t := &txs[i]
		if t.PrevHash != prevHash {
			return i, fmt.Errorf("%w: prev_hash mismatch at index %d", ErrChainBroken, i)
		}
		if !t.Verify() {
			return i, fmt.Errorf("%w: integrity hash mismatch at index %d", ErrChainBroken, i)
		}
		if i > 0 && t.Timestamp.Before(txs[i-1].Timestamp) {
			return i, fmt.Errorf("%w: timestamp regression at index %d", ErrChainBroken, i)
		}
		prevHash = t.IntegrityHash
	}
	return -1, nil
}
