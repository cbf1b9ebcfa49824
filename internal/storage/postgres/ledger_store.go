package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/storage"
)

// LedgerStore implements storage.LedgerStore using PostgreSQL.
//
// The record stamp and the goal increment run in one transaction: a
// confirmed swap is never recorded without the matching increment, and
// vice versa.
type LedgerStore struct {
	pool *Pool
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool *Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// Compile-time interface check.
var _ storage.LedgerStore = (*LedgerStore)(nil)

// ApplyConfirmedSwap stamps the record CONFIRMED and increments the
// goal's invested amount atomically. Re-applying an already-CONFIRMED
// record is a no-op returning the stored goal, so duplicate confirm
// requests have no second economic effect.
func (s *LedgerStore) ApplyConfirmedSwap(ctx context.Context, r *domain.TransactionRecord, txHash string, received decimal.Decimal) (*domain.Goal, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback(ctx)

	meta, err := json.Marshal(r.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal record metadata: %w", err)
	}

	now := time.Now().UTC()

	// Only in-flight states may be stamped: the guard makes the stamp
	// idempotent under concurrent duplicate confirms and refuses to
	// resurrect a FAILED record into a paid increment.
	tag, err := tx.Exec(ctx, `
		UPDATE transaction_records
		SET state = $2, tx_hash = $3, amount_asset = $4, metadata = $5, updated_at = $6
		WHERE id = $1 AND state IN ('PREPARED', 'SUBMITTED')
	`, r.ID, domain.StateConfirmed, txHash, received, meta, now)
	if err != nil {
		return nil, fmt.Errorf("stamp confirmed record: %w", err)
	}

	if tag.RowsAffected() == 0 {
		// Already confirmed, already failed, or missing. Report the
		// stored outcome without touching the goal.
		existing, err := NewRecordStore(s.pool).GetByID(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		if existing.State != domain.StateConfirmed {
			return nil, storage.ErrInvalidInput
		}
		return NewGoalStore(s.pool).GetByID(ctx, r.GoalID)
	}

	row := tx.QueryRow(ctx, `
		UPDATE goals
		SET invested_amount = invested_amount + $2,
		    status = CASE
		        WHEN status = 'COMPLETED' THEN status
		        WHEN invested_amount + $2 >= target_amount THEN 'COMPLETED'
		        ELSE status
		    END,
		    updated_at = $3
		WHERE id = $1
		RETURNING `+goalColumns, r.GoalID, received, now)

	g, err := scanGoal(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("increment goal invested amount: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit ledger tx: %w", err)
	}

	r.State = domain.StateConfirmed
	r.TxHash = &txHash
	r.AmountAsset = received
	r.UpdatedAt = now

	return g, nil
}
