package memory

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/storage"
)

// LedgerStore is an in-memory implementation of storage.LedgerStore.
// A single mutex serializes applies so the record stamp and the goal
// increment are observed together, mirroring the postgres transaction.
type LedgerStore struct {
	mu      sync.Mutex
	records *RecordStore
	goals   *GoalStore
}

// NewLedgerStore creates a ledger over in-memory record and goal stores.
func NewLedgerStore(records *RecordStore, goals *GoalStore) *LedgerStore {
	return &LedgerStore{records: records, goals: goals}
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

// ApplyConfirmedSwap stamps the record CONFIRMED and increments the
// goal's invested amount. Re-applying an already-CONFIRMED record is a
// no-op returning the stored goal.
func (s *LedgerStore) ApplyConfirmedSwap(ctx context.Context, r *domain.TransactionRecord, txHash string, received decimal.Decimal) (*domain.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.records.GetByID(ctx, r.ID)
	if err != nil {
		return nil, err
	}

	if existing.State == domain.StateConfirmed {
		return s.goals.GetByID(ctx, r.GoalID)
	}
	// Mirror the postgres state guard: a FAILED record stays failed
	// and never produces an increment.
	if existing.State != domain.StatePrepared && existing.State != domain.StateSubmitted {
		return nil, storage.ErrInvalidInput
	}

	stamped := *existing
	stamped.State = domain.StateConfirmed
	stamped.TxHash = &txHash
	stamped.AmountAsset = received
	stamped.Metadata = r.Metadata
	if err := s.records.Update(ctx, &stamped); err != nil {
		return nil, err
	}

	if err := s.goals.apply(r.GoalID, func(g *domain.Goal) {
		g.InvestedAmount = g.InvestedAmount.Add(received)
		if g.Status != domain.GoalCompleted && g.Completed() {
			g.Status = domain.GoalCompleted
		}
	}); err != nil {
		return nil, err
	}

	r.State = stamped.State
	r.TxHash = stamped.TxHash
	r.AmountAsset = stamped.AmountAsset
	r.UpdatedAt = stamped.UpdatedAt

	return s.goals.GetByID(ctx, r.GoalID)
}
