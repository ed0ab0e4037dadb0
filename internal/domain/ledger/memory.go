package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is the in-process transaction log used by tests and
// DB-less development runs.
type MemoryRepository struct {
	mu   sync.RWMutex
	txs  []Transaction
	next int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{next: 1}
}

func (r *MemoryRepository) Append(ctx context.Context, t *Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t.Seq = r.next
	r.next++
	r.txs = append(r.txs, *t)
	return nil
}

func (r *MemoryRepository) Tail(ctx context.Context) (*Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.txs) == 0 {
		return nil, nil
	}
	cp := r.txs[len(r.txs)-1]
	return &cp, nil
}

func (r *MemoryRepository) ListAll(ctx context.Context, newestFirst bool) ([]Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Transaction, len(r.txs))
	if newestFirst {
		for i, t := range r.txs {
			out[len(r.txs)-1-i] = t
		}
	} else {
		copy(out, r.txs)
	}
	return out, nil
}

func (r *MemoryRepository) ListByCredit(ctx context.Context, creditID uuid.UUID) ([]Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Transaction
	for _, t := range r.txs {
		if t.CreditID == creditID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Transaction
	for i := len(r.txs) - 1; i >= 0; i-- {
		t := r.txs[i]
		if t.FromUserID == userID || t.ToUserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

// tamper overwrites a stored transaction in place. Test hook for chain
// verification; no production path reaches it.
func (r *MemoryRepository) tamper(index int, mutate func(*Transaction)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mutate(&r.txs[index])
}
