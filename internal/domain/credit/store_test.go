package credit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/greenledger/greenledger-api/internal/domain/credit"
)

func newStore() *credit.Store {
	return credit.NewStore(credit.NewMemoryRepository())
}

func TestMintStampsCredit(t *testing.T) {
	store := newStore()
	producer := uuid.New()

	c, err := store.Mint(context.Background(), producer, "B1", 100, "2024-01-01")
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if c.Units != 100 {
		t.Errorf("units = %v, want 100", c.Units)
	}
	if c.IsRetired {
		t.Error("freshly minted credit must not be retired")
	}
	if c.OwnerID != producer {
		t.Error("owner must default to producer")
	}
	if !c.VerifyIntegrity() {
		t.Error("integrity hash must verify against immutable fields")
	}
}

func TestMintRejectsBadInput(t *testing.T) {
	store := newStore()
	producer := uuid.New()

	cases := []struct {
		name  string
		units float64
		date  string
		want  error
	}{
		{"zero units", 0, "2024-01-01", credit.ErrInvalidUnits},
		{"negative units", -5, "2024-01-01", credit.ErrInvalidUnits},
		{"garbage date", 10, "next tuesday", credit.ErrInvalidDate},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Mint(context.Background(), producer, "B1", tc.units, tc.date)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestMintAcceptsRFC3339Date(t *testing.T) {
	store := newStore()

	if _, err := store.Mint(context.Background(), uuid.New(), "B1", 1, "2024-01-01T12:30:00Z"); err != nil {
		t.Fatalf("RFC3339 date rejected: %v", err)
	}
}

func TestIntegrityHashDetectsTampering(t *testing.T) {
	store := newStore()

	c, err := store.Mint(context.Background(), uuid.New(), "B1", 100, "2024-01-01")
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	tampered := *c
	tampered.Units = 9999
	if tampered.VerifyIntegrity() {
		t.Fatal("tampered units must fail integrity verification")
	}
}

func TestListAvailableExcludesSoldAndRetired(t *testing.T) {
	store := newStore()
	producer := uuid.New()
	buyer := uuid.New()
	ctx := context.Background()

	onMarket, _ := store.Mint(ctx, producer, "B1", 10, "2024-01-01")
	sold, _ := store.Mint(ctx, producer, "B2", 20, "2024-01-02")
	retired, _ := store.Mint(ctx, producer, "B3", 30, "2024-01-03")

	if err := store.TransferOwnership(ctx, sold.ID, buyer); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}
	if err := store.Retire(ctx, retired.ID); err != nil {
		t.Fatalf("retire failed: %v", err)
	}

	available, err := store.ListAvailable(ctx)
	if err != nil {
		t.Fatalf("list available failed: %v", err)
	}
	if len(available) != 1 || available[0].ID != onMarket.ID {
		t.Fatalf("expected only the unsold unretired credit, got %d entries", len(available))
	}
}

func TestTransferOwnership(t *testing.T) {
	store := newStore()
	buyer := uuid.New()
	ctx := context.Background()

	c, _ := store.Mint(ctx, uuid.New(), "B1", 10, "2024-01-01")

	if err := store.TransferOwnership(ctx, c.ID, buyer); err != nil {
		t.Fatalf("transfer failed: %v", err)
	}

	got, _ := store.Get(ctx, c.ID)
	if got.OwnerID != buyer {
		t.Errorf("owner = %v, want buyer", got.OwnerID)
	}

	if err := store.TransferOwnership(ctx, uuid.New(), buyer); !errors.Is(err, credit.ErrNotFound) {
		t.Errorf("missing credit: got %v, want ErrNotFound", err)
	}

	if err := store.Retire(ctx, c.ID); err != nil {
		t.Fatalf("retire failed: %v", err)
	}
	if err := store.TransferOwnership(ctx, c.ID, uuid.New()); !errors.Is(err, credit.ErrAlreadyRetired) {
		t.Errorf("transfer of retired credit: got %v, want ErrAlreadyRetired", err)
	}
}

func TestRetireTwiceFails(t *testing.T) {
	store := newStore()
	ctx := context.Background()

	c, _ := store.Mint(ctx, uuid.New(), "B1", 10, "2024-01-01")

	if err := store.Retire(ctx, c.ID); err != nil {
		t.Fatalf("first retire failed: %v", err)
	}
	if err := store.Retire(ctx, c.ID); !errors.Is(err, credit.ErrAlreadyRetired) {
		t.Fatalf("second retire: got %v, want ErrAlreadyRetired", err)
	}
}

func TestOverviewCounts(t *testing.T) {
	store := newStore()
	ctx := context.Background()

	a, _ := store.Mint(ctx, uuid.New(), "B1", 10, "2024-01-01")
	store.Mint(ctx, uuid.New(), "B2", 20, "2024-01-02")
	store.Mint(ctx, uuid.New(), "B3", 30, "2024-01-03")

	if err := store.Retire(ctx, a.ID); err != nil {
		t.Fatalf("retire failed: %v", err)
	}

	total, retired, err := store.Overview(ctx)
	if err != nil {
		t.Fatalf("overview failed: %v", err)
	}
	if total != 3 || retired != 1 {
		t.Fatalf("overview = (%d, %d), want (3, 1)", total, retired)
	}
}
