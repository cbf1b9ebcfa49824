package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/storage"
)

func testRecord(batchID string, kind domain.RecordKind) *domain.TransactionRecord {
	return &domain.TransactionRecord{
		ID:      fmt.Sprintf("%s-%s", batchID, kind),
		BatchID: batchID,
		GoalID:  "goal1",
		Kind:    kind,
		State:   domain.StatePrepared,
		Network: "solana-mainnet",
	}
}

func TestRecordStore_InsertAndGet(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	r := testRecord("batch1", domain.KindSwap)
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByBatchAndKind(ctx, "batch1", domain.KindSwap)
	if err != nil {
		t.Fatalf("GetByBatchAndKind failed: %v", err)
	}
	if got.State != domain.StatePrepared {
		t.Errorf("State mismatch: got %s, want %s", got.State, domain.StatePrepared)
	}
}

func TestRecordStore_DuplicateBatchKind(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testRecord("batch1", domain.KindSwap)); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	dup := testRecord("batch1", domain.KindSwap)
	dup.ID = "different-id"
	err := store.Insert(ctx, dup)
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Same batch, different kind is allowed.
	if err := store.Insert(ctx, testRecord("batch1", domain.KindDepositSimulation)); err != nil {
		t.Errorf("Different kind under same batch should insert: %v", err)
	}
}

func TestRecordStore_ConcurrentInsert_ExactlyOneWins(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Insert(ctx, testRecord("batch1", domain.KindDepositSimulation))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else if !errors.Is(err, storage.ErrDuplicateKey) {
			t.Errorf("Unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Errorf("Expected exactly 1 successful insert, got %d", winners)
	}

	records, err := store.GetByBatch(ctx, "batch1")
	if err != nil {
		t.Fatalf("GetByBatch failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Expected exactly 1 persisted record, got %d", len(records))
	}
}

func TestRecordStore_Update(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	r := testRecord("batch1", domain.KindSwap)
	if err := store.Insert(ctx, r); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	hash := "5VfYt..."
	r.State = domain.StateConfirmed
	r.TxHash = &hash
	r.Metadata.RefreshCount = 2
	if err := store.Update(ctx, r); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := store.GetByID(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.State != domain.StateConfirmed {
		t.Errorf("State not updated: got %s", got.State)
	}
	if got.TxHash == nil || *got.TxHash != hash {
		t.Errorf("TxHash not updated: got %v", got.TxHash)
	}
	if got.Metadata.RefreshCount != 2 {
		t.Errorf("RefreshCount not updated: got %d", got.Metadata.RefreshCount)
	}
}

func TestRecordStore_UpdateMissing(t *testing.T) {
	store := NewRecordStore()

	err := store.Update(context.Background(), testRecord("nope", domain.KindSwap))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRecordStore_InvalidInput(t *testing.T) {
	store := NewRecordStore()
	ctx := context.Background()

	if err := store.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil, got %v", err)
	}

	bad := testRecord("batch1", domain.RecordKind("BOGUS"))
	if err := store.Insert(ctx, bad); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for bad kind, got %v", err)
	}
}
