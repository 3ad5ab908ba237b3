package memory

import (
	"context"
	"errors"
	"testing"

	"sealed-batch-dex/internal/domain"
	"sealed-batch-dex/internal/storage"
)

func TestBatchStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewBatchStore()

	if _, err := store.GetLatest(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("pre-genesis GetLatest: got %v, want ErrNotFound", err)
	}

	b1 := &domain.Batch{BatchID: 1, StartTime: 1000, Phase: domain.PhaseCommit}
	b2 := &domain.Batch{BatchID: 2, StartTime: 2000, Phase: domain.PhaseCommit}
	if err := store.Insert(ctx, b1); err != nil {
		t.Fatalf("insert b1: %v", err)
	}
	if err := store.Insert(ctx, b2); err != nil {
		t.Fatalf("insert b2: %v", err)
	}
	if err := store.Insert(ctx, b1); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("duplicate insert: got %v, want ErrDuplicateKey", err)
	}

	latest, err := store.GetLatest(ctx)
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest.BatchID != 2 {
		t.Errorf("latest = %d, want 2", latest.BatchID)
	}

	latest.IsSettled = true
	latest.Phase = domain.PhaseSettled
	if err := store.Update(ctx, latest); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := store.GetByID(ctx, 2)
	if !got.IsSettled || got.Phase != domain.PhaseSettled {
		t.Errorf("update not persisted: %+v", got)
	}

	if err := store.Update(ctx, &domain.Batch{BatchID: 99}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("update missing: got %v, want ErrNotFound", err)
	}
}
