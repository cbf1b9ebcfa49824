package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/storage"
)

// GoalStore implements storage.GoalStore using PostgreSQL.
type GoalStore struct {
	pool *Pool
}

// NewGoalStore creates a new GoalStore.
func NewGoalStore(pool *Pool) *GoalStore {
	return &GoalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.GoalStore = (*GoalStore)(nil)

const goalColumns = `
	id, owner_id, asset_symbol, asset_mint, asset_decimals,
	target_amount, invested_amount, amount_per_interval, frequency, status,
	created_at, updated_at
`

// Insert adds a new goal. Returns ErrDuplicateKey if id exists.
func (s *GoalStore) Insert(ctx context.Context, g *domain.Goal) error {
	query := `
		INSERT INTO goals (
			id, owner_id, asset_symbol, asset_mint, asset_decimals,
			target_amount, invested_amount, amount_per_interval, frequency, status,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12
		)
	`

	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	_, err := s.pool.Exec(ctx, query,
		g.ID, g.OwnerID, g.AssetSymbol, g.AssetMint, g.AssetDecimals,
		g.TargetAmount, g.InvestedAmount, g.AmountPerInterval, g.Frequency, g.Status,
		g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert goal: %w", err)
	}
	return nil
}

// GetByID retrieves a goal by its ID. Returns ErrNotFound if not exists.
func (s *GoalStore) GetByID(ctx context.Context, id string) (*domain.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	g, err := scanGoal(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get goal by id: %w", err)
	}
	return g, nil
}

// GetByOwner retrieves all goals of an owner, ordered by created_at ASC.
func (s *GoalStore) GetByOwner(ctx context.Context, ownerID string) ([]*domain.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE owner_id = $1 ORDER BY created_at ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("get goals by owner: %w", err)
	}
	defer rows.Close()

	var goals []*domain.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal row: %w", err)
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goal rows: %w", err)
	}
	return goals, nil
}

// UpdateStatus compare-and-sets the goal status. The WHERE clause is the
// race-breaker: a concurrent transition loses by matching zero rows.
func (s *GoalStore) UpdateStatus(ctx context.Context, id string, from, to domain.GoalStatus) error {
	query := `
		UPDATE goals
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`

	tag, err := s.pool.Exec(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update goal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing goal from a lost CAS.
		if _, err := s.GetByID(ctx, id); errors.Is(err, storage.ErrNotFound) {
			return storage.ErrNotFound
		}
		return storage.ErrInvalidTransition
	}
	return nil
}

// Delete removes a goal. Returns ErrNotFound if not exists.
func (s *GoalStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM goals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// scanGoal scans a single row into a Goal.
func scanGoal(row pgx.Row) (*domain.Goal, error) {
	var g domain.Goal

	err := row.Scan(
		&g.ID, &g.OwnerID, &g.AssetSymbol, &g.AssetMint, &g.AssetDecimals,
		&g.TargetAmount, &g.InvestedAmount, &g.AmountPerInterval, &g.Frequency, &g.Status,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
