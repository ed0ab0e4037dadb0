package user

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process directory used by tests and DB-less
// development runs.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*User
	byName map[string]*User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[uuid.UUID]*User),
		byName: make(map[string]*User),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *u
	r.byID[cp.ID] = &cp
	r.byName[cp.Username] = &cp
	return nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byName[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[uuid.UUID]*User, len(ids))
	for _, id := range ids {
		if u, ok := r.byID[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}
