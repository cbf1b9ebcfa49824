// Package guard implements the insert-or-fetch idempotency guard.
//
// A batch id plus record kind identifies a unit of work that must run
// at most once. Callers wrap the expensive preparation in EnsureOnce:
// the first caller's insert wins, every other caller, concurrent or
// replayed, reads back the winner's record instead of preparing again.
package guard

import (
	"context"
	"errors"
	"fmt"

	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/storage"
)

// Guard arbitrates exactly-once preparation over a RecordStore.
type Guard struct {
	records storage.RecordStore
}

// New creates a Guard backed by the given record store.
func New(records storage.RecordStore) *Guard {
	return &Guard{records: records}
}

// PrepareFunc builds the record to insert when the caller wins the race.
// It runs before the insert, so it must not have side effects that need
// undoing when another caller wins.
type PrepareFunc func(ctx context.Context) (*domain.TransactionRecord, error)

// EnsureOnce returns the record for (batchID, kind), preparing and
// inserting it if absent. The returned bool reports whether this call
// created the record. Duplicate inserts lose silently: the loser's
// prepared record is discarded and the stored winner returned.
func (g *Guard) EnsureOnce(ctx context.Context, batchID string, kind domain.RecordKind, prepare PrepareFunc) (*domain.TransactionRecord, bool, error) {
	existing, err := g.records.GetByBatchAndKind(ctx, batchID, kind)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup record %s/%s: %w", batchID, kind, err)
	}

	rec, err := prepare(ctx)
	if err != nil {
		return nil, false, err
	}

	if err := g.records.Insert(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			winner, gerr := g.records.GetByBatchAndKind(ctx, batchID, kind)
			if gerr != nil {
				return nil, false, fmt.Errorf("fetch winning record %s/%s: %w", batchID, kind, gerr)
			}
			return winner, false, nil
		}
		return nil, false, fmt.Errorf("insert record %s/%s: %w", batchID, kind, err)
	}
	return rec, true, nil
}
