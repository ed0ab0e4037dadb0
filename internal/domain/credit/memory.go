package credit

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is the in-process credit store used by tests and DB-less
// development runs. A single RWMutex guards every enumeration, so list and
// overview reads always observe one consistent snapshot.
type MemoryRepository struct {
	mu      sync.RWMutex
	credits map[uuid.UUID]*Credit
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{credits: make(map[uuid.UUID]*Credit)}
}

func (r *MemoryRepository) Create(ctx context.Context, c *Credit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *c
	r.credits[cp.ID] = &cp
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Credit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.credits[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *MemoryRepository) ListAvailable(ctx context.Context) ([]Credit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Credit
	for _, c := range r.credits {
		if c.Available() {
			out = append(out, *c)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *MemoryRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Credit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Credit
	for _, c := range r.credits {
		if c.OwnerID == ownerID {
			out = append(out, *c)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r *MemoryRepository) ListAll(ctx context.Context) ([]Credit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Credit, 0, len(r.credits))
	for _, c := range r.credits {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) UpdateOwner(ctx context.Context, id, newOwnerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.credits[id]
	if !ok {
		return ErrNotFound
	}
	if c.IsRetired {
		return ErrAlreadyRetired
	}
	c.OwnerID = newOwnerID
	return nil
}

func (r *MemoryRepository) MarkRetired(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.credits[id]
	if !ok {
		return ErrNotFound
	}
	if c.IsRetired {
		return ErrAlreadyRetired
	}
	c.IsRetired = true
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.credits, id)
	return nil
}

func (r *MemoryRepository) Overview(ctx context.Context) (int, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := len(r.credits)
	retired := 0
	for _, c := range r.credits {
		if c.IsRetired {
			retired++
		}
	}
	return total, retired, nil
}

func sortNewestFirst(credits []Credit) {
	sort.Slice(credits, func(i, j int) bool {
		return credits[i].CreatedAt.After(credits[j].CreatedAt)
	})
}
