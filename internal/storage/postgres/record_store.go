package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/storage"
)

// RecordStore implements storage.RecordStore using PostgreSQL.
type RecordStore struct {
	pool *Pool
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(pool *Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RecordStore = (*RecordStore)(nil)

const recordColumns = `
	id, batch_id, goal_id, kind, provider, network, state,
	tx_hash, amount_fiat, amount_asset, asset_mint, metadata,
	created_at, updated_at
`

// Insert adds a new record. Returns ErrDuplicateKey if (batch_id, kind) exists.
func (s *RecordStore) Insert(ctx context.Context, r *domain.TransactionRecord) error {
	meta, err := json.Marshal(r.Metadata)
	if err != nil {
		return fmt.Errorf("marshal record metadata: %w", err)
	}

	query := `
		INSERT INTO transaction_records (
			id, batch_id, goal_id, kind, provider, network, state,
			tx_hash, amount_fiat, amount_asset, asset_mint, metadata,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14
		)
	`

	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	_, err = s.pool.Exec(ctx, query,
		r.ID, r.BatchID, r.GoalID, r.Kind, r.Provider, r.Network, r.State,
		r.TxHash, r.AmountFiat, r.AmountAsset, r.AssetMint, meta,
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert transaction record: %w", err)
	}
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *RecordStore) GetByID(ctx context.Context, id string) (*domain.TransactionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM transaction_records WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	r, err := scanRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get record by id: %w", err)
	}
	return r, nil
}

// GetByBatchAndKind retrieves the single record for (batch_id, kind).
func (s *RecordStore) GetByBatchAndKind(ctx context.Context, batchID string, kind domain.RecordKind) (*domain.TransactionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM transaction_records WHERE batch_id = $1 AND kind = $2`

	row := s.pool.QueryRow(ctx, query, batchID, kind)
	r, err := scanRecord(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get record by batch and kind: %w", err)
	}
	return r, nil
}

// GetByBatch retrieves all records sharing a batch, ordered by created_at ASC.
func (s *RecordStore) GetByBatch(ctx context.Context, batchID string) ([]*domain.TransactionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM transaction_records WHERE batch_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("get records by batch: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// GetByGoal retrieves all records for a goal, ordered by created_at ASC.
func (s *RecordStore) GetByGoal(ctx context.Context, goalID string) ([]*domain.TransactionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM transaction_records WHERE goal_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, goalID)
	if err != nil {
		return nil, fmt.Errorf("get records by goal: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// Update rewrites the mutable fields of an existing record.
func (s *RecordStore) Update(ctx context.Context, r *domain.TransactionRecord) error {
	meta, err := json.Marshal(r.Metadata)
	if err != nil {
		return fmt.Errorf("marshal record metadata: %w", err)
	}

	query := `
		UPDATE transaction_records
		SET state = $2, tx_hash = $3, amount_fiat = $4, amount_asset = $5,
		    metadata = $6, updated_at = $7
		WHERE id = $1
	`

	r.UpdatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx, query,
		r.ID, r.State, r.TxHash, r.AmountFiat, r.AmountAsset, meta, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update transaction record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanRecord scans a single row into a TransactionRecord.
func scanRecord(row pgx.Row) (*domain.TransactionRecord, error) {
	var r domain.TransactionRecord
	var meta []byte

	err := row.Scan(
		&r.ID, &r.BatchID, &r.GoalID, &r.Kind, &r.Provider, &r.Network, &r.State,
		&r.TxHash, &r.AmountFiat, &r.AmountAsset, &r.AssetMint, &meta,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &r.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal record metadata: %w", err)
		}
	}
	return &r, nil
}

// scanRecords scans multiple rows into a slice of TransactionRecord.
func scanRecords(rows pgx.Rows) ([]*domain.TransactionRecord, error) {
	var records []*domain.TransactionRecord

	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record row: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record rows: %w", err)
	}
	return records, nil
}
