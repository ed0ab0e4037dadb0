package credit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store owns credit lifecycle semantics: validation, integrity stamping,
// and the monotonic retired flag. Concurrency control across read-then-write
// sequences lives in the marketplace engine, which locks per credit before
// calling in here.
type Store struct {
	repo Repository
}

func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

// ParseProductionDate accepts an ISO date or a full RFC3339 timestamp.
func ParseProductionDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// Mint creates a credit owned by its producer, stamped with a fresh id and
// an integrity hash over the immutable fields.
func (s *Store) Mint(ctx context.Context, producerID uuid.UUID, batchID string, units float64, productionDate string) (*Credit, error) {
	if units <= 0 {
		return nil, ErrInvalidUnits
	}
	date, err := ParseProductionDate(productionDate)
	if err != nil {
		return nil, err
	}

	c := &Credit{
		ID:             uuid.New(),
		BatchID:        batchID,
		ProducerID:     producerID,
		OwnerID:        producerID,
		Units:          units,
		ProductionDate: date,
		CreatedAt:      time.Now().UTC(),
		IsRetired:      false,
	}
	c.IntegrityHash = c.ComputeHash()

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns a credit by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Credit, error) {
	return s.repo.GetByID(ctx, id)
}

// ListAvailable returns the marketplace listing: unretired credits still
// held by their producer.
func (s *Store) ListAvailable(ctx context.Context) ([]Credit, error) {
	return s.repo.ListAvailable(ctx)
}

// ListByOwner returns the credits currently held by a user.
func (s *Store) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Credit, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// ListAll returns every credit, oldest first.
func (s *Store) ListAll(ctx context.Context) ([]Credit, error) {
	return s.repo.ListAll(ctx)
}

// TransferOwnership moves a credit to a new owner. Fails on missing or
// retired credits.
func (s *Store) TransferOwnership(ctx context.Context, id, newOwnerID uuid.UUID) error {
	return s.repo.UpdateOwner(ctx, id, newOwnerID)
}

// Retire marks a credit retired. A second retirement fails with
// ErrAlreadyRetired.
func (s *Store) Retire(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkRetired(ctx, id)
}

// Discard removes a credit that never made it into the ledger. Only the
// mint rollback path may call this.
func (s *Store) Discard(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Overview returns total and retired counts from one consistent snapshot.
func (s *Store) Overview(ctx context.Context) (total, retired int, err error) {
	return s.repo.Overview(ctx)
}
