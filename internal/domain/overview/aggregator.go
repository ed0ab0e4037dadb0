// Package overview serves the regulator's read-only surface: aggregate
// counts, the full transaction history, chain verification, and audit
// exports.
package overview

import (
	"context"

	"github.com/greenledger/greenledger-api/internal/domain/credit"
)

// Overview is the aggregate credit statistics block.
type Overview struct {
	TotalCredits   int `json:"total_credits"`
	ActiveCredits  int `json:"active_credits"`
	RetiredCredits int `json:"retired_credits"`
}

// Aggregator computes statistics from one consistent store snapshot, so
// active + retired always equals total.
type Aggregator struct {
	store *credit.Store
}

func NewAggregator(store *credit.Store) *Aggregator {
	return &Aggregator{store: store}
}

// ComputeOverview returns total, active, and retired credit counts.
func (a *Aggregator) ComputeOverview(ctx context.Context) (*Overview, error) {
	total, retired, err := a.store.Overview(ctx)
	if err != nil {
		return nil, err
	}
	return &Overview{
		TotalCredits:   total,
		ActiveCredits:  total - retired,
		RetiredCredits: retired,
	}, nil
}
