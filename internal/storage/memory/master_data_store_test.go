package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"options-data-lab/internal/domain"
	"options-data-lab/internal/storage"
)

func TestMasterDataStore_Backfill(t *testing.T) {
	store := NewMasterDataStore()
	ctx := context.Background()
	d1 := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 3)

	n, err := store.Backfill(ctx, []*domain.MasterDataEntry{{TableName: "t", EntityKey: "A", FromDate: d1}})
	if err != nil || n != 1 {
		t.Fatalf("Expected 1 inserted, got %d (%v)", n, err)
	}

	// An earlier from_date offered later never overwrites the first-seen date.
	n, err = store.Backfill(ctx, []*domain.MasterDataEntry{
		{TableName: "t", EntityKey: "A", FromDate: d1.AddDate(0, 0, -10), ToDate: d2},
		{TableName: "t", EntityKey: "B", FromDate: d2},
	})
	if err != nil || n != 1 {
		t.Fatalf("Expected 1 inserted, got %d (%v)", n, err)
	}

	a, err := store.Get(ctx, "t", "A")
	if err != nil {
		t.Fatal(err)
	}
	if !a.FromDate.Equal(d1) {
		t.Errorf("from_date overwritten: %s", a.FromDate)
	}
	if !a.ToDate.Equal(d2) {
		t.Errorf("to_date not extended: %s", a.ToDate)
	}

	all, _ := store.GetByTable(ctx, "t")
	if len(all) != 2 || all[0].EntityKey != "A" {
		t.Errorf("Expected [A B], got %v", all)
	}

	if _, err := store.Get(ctx, "t", "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestChangeLogStore_AssignsIDAndTimestamp(t *testing.T) {
	store := NewChangeLogStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Append(ctx, &domain.ChangeLogEntry{RunID: "r1", OperationType: domain.OperationInsert, TableName: "t", AffectedRows: int64(i)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Append(ctx, &domain.ChangeLogEntry{RunID: "r2", OperationType: domain.OperationSkip, TableName: "t"}); err != nil {
		t.Fatal(err)
	}

	entries, _ := store.GetByRunID(ctx, "r1")
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.ID != int64(i+1) {
			t.Errorf("Expected id %d, got %d", i+1, e.ID)
		}
		if e.Timestamp.IsZero() {
			t.Error("Expected timestamp to be assigned")
		}
	}

	if err := store.Append(ctx, &domain.ChangeLogEntry{RunID: "r3"}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestDividendStreakStore_ReplaceAll(t *testing.T) {
	store := NewDividendStreakStore()
	ctx := context.Background()

	if err := store.ReplaceAll(ctx, []*domain.DividendStreak{{Symbol: "A", Years: 3}, {Symbol: "B", Years: 30}}); err != nil {
		t.Fatal(err)
	}
	if err := store.ReplaceAll(ctx, []*domain.DividendStreak{{Symbol: "B", Years: 31}}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "A"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected A removed, got %v", err)
	}
	b, _ := store.Get(ctx, "B")
	if b.Years != 31 {
		t.Errorf("Expected 31, got %d", b.Years)
	}
	err := store.ReplaceAll(ctx, []*domain.DividendStreak{{Symbol: "C"}, {Symbol: "C"}})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}
