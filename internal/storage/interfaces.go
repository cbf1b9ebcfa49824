package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"solana-dca-engine/internal/domain"
)

// RecordStore provides access to transaction_records storage.
//
// Records are keyed by a deterministic id and additionally unique on
// (batch_id, kind); Insert surfaces ErrDuplicateKey on that constraint
// so concurrent duplicate prepares race to insert and the loser reads
// back the winner's row.
type RecordStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if (batch_id, kind) exists.
	Insert(ctx context.Context, r *domain.TransactionRecord) error

	// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.TransactionRecord, error)

	// GetByBatchAndKind retrieves the single record for (batch_id, kind).
	// Returns ErrNotFound if not exists.
	GetByBatchAndKind(ctx context.Context, batchID string, kind domain.RecordKind) (*domain.TransactionRecord, error)

	// GetByBatch retrieves all records sharing a batch, ordered by created_at ASC.
	GetByBatch(ctx context.Context, batchID string) ([]*domain.TransactionRecord, error)

	// GetByGoal retrieves all records for a goal, ordered by created_at ASC.
	GetByGoal(ctx context.Context, goalID string) ([]*domain.TransactionRecord, error)

	// Update rewrites the mutable fields (state, tx_hash, amounts,
	// metadata) of an existing record. Returns ErrNotFound if not exists.
	Update(ctx context.Context, r *domain.TransactionRecord) error
}

// GoalStore provides access to goals storage.
type GoalStore interface {
	// Insert adds a new goal. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, g *domain.Goal) error

	// GetByID retrieves a goal by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Goal, error)

	// GetByOwner retrieves all goals of an owner, ordered by created_at ASC.
	GetByOwner(ctx context.Context, ownerID string) ([]*domain.Goal, error)

	// UpdateStatus compare-and-sets the goal status. Returns
	// ErrInvalidTransition if the goal is not currently in from status,
	// ErrNotFound if the goal does not exist.
	UpdateStatus(ctx context.Context, id string, from, to domain.GoalStatus) error

	// Delete removes a goal. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, id string) error
}

// LedgerStore applies a confirmed swap atomically: stamps the record
// CONFIRMED with its network reference and received amount, and
// increments the goal's invested amount in the same transaction,
// flipping the goal to COMPLETED when the target is reached.
type LedgerStore interface {
	// ApplyConfirmedSwap returns the goal as updated by the increment.
	// The record's metadata is persisted as passed. Returns ErrNotFound
	// if record or goal does not exist.
	ApplyConfirmedSwap(ctx context.Context, r *domain.TransactionRecord, txHash string, received decimal.Decimal) (*domain.Goal, error)
}

// AuditStore provides access to the append-only audit trail.
type AuditStore interface {
	// Append writes one audit event.
	Append(ctx context.Context, e *domain.AuditEvent) error
}
