// Package goals owns the goal lifecycle: creation, explicit
// pause/resume transitions and deletion. COMPLETED is reachable only
// through the investment ledger, never by request.
package goals

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"solana-dca-engine/internal/apperr"
	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/storage"
	"solana-dca-engine/internal/units"
)

// Service implements goal operations over a GoalStore.
type Service struct {
	goals  storage.GoalStore
	logger *log.Logger
}

// Options configures Service.
type Options struct {
	Goals  storage.GoalStore
	Logger *log.Logger
}

// NewService creates a goal service.
func NewService(opts Options) (*Service, error) {
	if opts.Goals == nil {
		return nil, errors.New("goal store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[goals] ", log.LstdFlags)
	}
	return &Service{goals: opts.Goals, logger: logger}, nil
}

// Create validates and persists a new goal. Status always starts
// ACTIVE with a zero invested amount, whatever the caller sent.
func (s *Service) Create(ctx context.Context, g *domain.Goal) (*domain.Goal, error) {
	if g == nil {
		return nil, apperr.Validation("goal payload is required")
	}
	if g.OwnerID == "" {
		return nil, apperr.Validation("owner id is required")
	}
	if g.AssetSymbol == "" || g.AssetMint == "" {
		return nil, apperr.Validation("asset symbol and mint are required")
	}
	if g.AssetDecimals < 0 || g.AssetDecimals > units.MaxDecimals {
		return nil, apperr.Validation("asset decimals must be between 0 and %d", units.MaxDecimals)
	}
	if !g.TargetAmount.IsPositive() {
		return nil, apperr.Validation("target amount must be positive")
	}
	if !g.AmountPerInterval.IsPositive() {
		return nil, apperr.Validation("amount per interval must be positive")
	}
	if !g.Frequency.Valid() {
		return nil, apperr.Validation("unknown frequency %q", g.Frequency)
	}

	goal := *g
	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	goal.Status = domain.GoalActive
	goal.InvestedAmount = decimal.Zero

	if err := s.goals.Insert(ctx, &goal); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, apperr.Validation("goal %s already exists", goal.ID)
		}
		return nil, apperr.Internal("insert goal", err)
	}
	s.logger.Printf("created goal %s owner=%s asset=%s target=%s", goal.ID, goal.OwnerID, goal.AssetSymbol, goal.TargetAmount)
	return &goal, nil
}

// Get retrieves one goal.
func (s *Service) Get(ctx context.Context, id string) (*domain.Goal, error) {
	g, err := s.goals.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("goal %s not found", id)
		}
		return nil, apperr.Internal("get goal", err)
	}
	return g, nil
}

// ListByOwner retrieves all goals of one owner.
func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Goal, error) {
	if ownerID == "" {
		return nil, apperr.Validation("owner id is required")
	}
	goals, err := s.goals.GetByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal("list goals", err)
	}
	return goals, nil
}

// ChangeStatus applies an explicit pause/resume request. Only
// ACTIVE→PAUSED and PAUSED→ACTIVE are callable; COMPLETED can neither
// be requested nor left.
func (s *Service) ChangeStatus(ctx context.Context, id string, to domain.GoalStatus) (*domain.Goal, error) {
	if !to.Valid() {
		return nil, apperr.Validation("unknown goal status %q", to)
	}
	if to == domain.GoalCompleted {
		return nil, apperr.Validation("COMPLETED cannot be requested directly")
	}

	g, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if g.Status == domain.GoalCompleted {
		return nil, apperr.Validation("goal %s is completed and has no further transitions", id)
	}
	if g.Status == to {
		return g, nil
	}

	if err := s.goals.UpdateStatus(ctx, id, g.Status, to); err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidTransition):
			// Lost a race with a concurrent transition (or completion).
			return nil, apperr.Validation("goal %s changed state concurrently, transition to %s rejected", id, to)
		case errors.Is(err, storage.ErrNotFound):
			return nil, apperr.NotFound("goal %s not found", id)
		default:
			return nil, apperr.Internal("update goal status", err)
		}
	}
	return s.Get(ctx, id)
}

// Delete removes a goal entirely.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.goals.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("goal %s not found", id)
		}
		return apperr.Internal("delete goal", err)
	}
	s.logger.Printf("deleted goal %s", id)
	return nil
}
