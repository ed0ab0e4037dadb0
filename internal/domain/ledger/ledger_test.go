package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/greenledger/greenledger-api/internal/pkg/hasher"
)

func TestAppendLinksChain(t *testing.T) {
	l := New(NewMemoryRepository())
	ctx := context.Background()
	creditID := uuid.New()
	producer := uuid.New()
	buyer := uuid.New()

	mint, err := l.Append(ctx, TypeMint, creditID, uuid.Nil, producer, 100)
	if err != nil {
		t.Fatalf("append mint: %v", err)
	}
	if mint.PrevHash != hasher.Genesis {
		t.Errorf("first entry must anchor at genesis, got %s", mint.PrevHash)
	}
	if !mint.Verify() {
		t.Error("mint entry must verify")
	}

	transfer, err := l.Append(ctx, TypeTransfer, creditID, producer, buyer, 100)
	if err != nil {
		t.Fatalf("append transfer: %v", err)
	}
	if transfer.PrevHash != mint.IntegrityHash {
		t.Error("prev_hash must equal the previous entry's integrity hash")
	}

	if idx, err := l.VerifyChain(ctx); err != nil || idx != -1 {
		t.Fatalf("intact chain reported break at %d: %v", idx, err)
	}
}

func TestAppendClampsClockSkew(t *testing.T) {
	l := New(NewMemoryRepository())
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(-time.Hour)} // second append behind the first
	i := 0
	l.now = func() time.Time {
		ts := times[i]
		i++
		return ts
	}

	first, err := l.Append(ctx, TypeMint, uuid.New(), uuid.Nil, uuid.New(), 1)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	second, err := l.Append(ctx, TypeMint, uuid.New(), uuid.Nil, uuid.New(), 1)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	want := first.Timestamp.Add(time.Microsecond)
	if !second.Timestamp.Equal(want) {
		t.Fatalf("skewed timestamp not clamped: got %v, want %v", second.Timestamp, want)
	}
	if idx, err := l.VerifyChain(ctx); err != nil || idx != -1 {
		t.Fatalf("clamped chain reported break at %d: %v", idx, err)
	}
}

func TestListAllNewestFirst(t *testing.T) {
	l := New(NewMemoryRepository())
	ctx := context.Background()

	first, _ := l.Append(ctx, TypeMint, uuid.New(), uuid.Nil, uuid.New(), 1)
	second, _ := l.Append(ctx, TypeMint, uuid.New(), uuid.Nil, uuid.New(), 2)

	txs, err := l.ListAll(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 2 || txs[0].ID != second.ID || txs[1].ID != first.ID {
		t.Fatal("ListAll must present newest first")
	}
}

func TestVerifyChainLocalizesTampering(t *testing.T) {
	repo := NewMemoryRepository()
	l := New(repo)
	ctx := context.Background()

	for range [3]struct{}{} {
		if _, err := l.Append(ctx, TypeMint, uuid.New(), uuid.Nil, uuid.New(), 10); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	repo.tamper(1, func(tx *Transaction) { tx.Units = 9999 })

	idx, err := l.VerifyChain(ctx)
	if !errors.Is(err, ErrChainBroken) {
		t.Fatalf("expected ErrChainBroken, got %v", err)
	}
	if idx != 1 {
		t.Fatalf("break localized at %d, want 1", idx)
	}
}

func TestConcurrentAppendsKeepChainValid(t *testing.T) {
	l := New(NewMemoryRepository())
	ctx := context.Background()

	const goroutines = 20
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Append(ctx, TypeMint, uuid.New(), uuid.Nil, uuid.New(), 1); err != nil {
				t.Errorf("append failed: %v", err)
			}
		}()
	}
	wg.Wait()

	txs, err := l.ListAll(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != goroutines {
		t.Fatalf("expected %d entries, got %d", goroutines, len(txs))
	}
	if idx, err := l.VerifyChain(ctx); err != nil || idx != -1 {
		t.Fatalf("concurrent appends broke the chain at %d: %v", idx, err)
	}
}

func TestListByUserAndCredit(t *testing.T) {
	l := New(NewMemoryRepository())
	ctx := context.Background()
	creditID := uuid.New()
	producer := uuid.New()
	buyer := uuid.New()

	l.Append(ctx, TypeMint, creditID, uuid.Nil, producer, 50)
	l.Append(ctx, TypeTransfer, creditID, producer, buyer, 50)
	l.Append(ctx, TypeMint, uuid.New(), uuid.Nil, producer, 7)

	byCredit, err := l.ListByCredit(ctx, creditID)
	if err != nil {
		t.Fatalf("list by credit: %v", err)
	}
	if len(byCredit) != 2 || byCredit[0].Type != TypeMint || byCredit[1].Type != TypeTransfer {
		t.Fatal("ListByCredit must return the credit's entries in append order")
	}

	byBuyer, err := l.ListByUser(ctx, buyer)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(byBuyer) != 1 || byBuyer[0].Type != TypeTransfer {
		t.Fatal("ListByUser must return entries touching the user")
	}
}
