package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/storage"
)

// GoalStore is an in-memory implementation of storage.GoalStore.
type GoalStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Goal // keyed by goal id
}

// NewGoalStore creates a new in-memory goal store.
func NewGoalStore() *GoalStore {
	return &GoalStore{
		data: make(map[string]*domain.Goal),
	}
}

// Compile-time interface check.
var _ storage.GoalStore = (*GoalStore)(nil)

// Insert adds a new goal. Returns ErrDuplicateKey if id exists.
func (s *GoalStore) Insert(_ context.Context, g *domain.Goal) error {
	if g == nil || g.ID == "" || g.OwnerID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[g.ID]; exists {
		return storage.ErrDuplicateKey
	}

	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	goalCopy := *g
	s.data[g.ID] = &goalCopy
	return nil
}

// GetByID retrieves a goal by its ID. Returns ErrNotFound if not exists.
func (s *GoalStore) GetByID(_ context.Context, id string) (*domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	goalCopy := *g
	return &goalCopy, nil
}

// GetByOwner retrieves all goals of an owner, ordered by created_at ASC.
func (s *GoalStore) GetByOwner(_ context.Context, ownerID string) ([]*domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var goals []*domain.Goal
	for _, g := range s.data {
		if g.OwnerID == ownerID {
			goalCopy := *g
			goals = append(goals, &goalCopy)
		}
	}
	sort.Slice(goals, func(i, j int) bool {
		if goals[i].CreatedAt.Equal(goals[j].CreatedAt) {
			return goals[i].ID < goals[j].ID
		}
		return goals[i].CreatedAt.Before(goals[j].CreatedAt)
	})
	return goals, nil
}

// UpdateStatus compare-and-sets the goal status.
func (s *GoalStore) UpdateStatus(_ context.Context, id string, from, to domain.GoalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	if g.Status != from {
		return storage.ErrInvalidTransition
	}
	g.Status = to
	g.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes a goal. Returns ErrNotFound if not exists.
func (s *GoalStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[id]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, id)
	return nil
}

// apply runs fn against the live goal under the write lock. Used by the
// in-memory ledger to keep stamp and increment atomic.
func (s *GoalStore) apply(id string, fn func(g *domain.Goal)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	fn(g)
	g.UpdatedAt = time.Now().UTC()
	return nil
}
