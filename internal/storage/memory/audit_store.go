package memory

import (
	"context"
	"sync"

	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/storage"
)

// AuditStore is an in-memory implementation of storage.AuditStore.
type AuditStore struct {
	mu     sync.RWMutex
	events []*domain.AuditEvent
}

// NewAuditStore creates a new in-memory audit store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Compile-time interface check.
var _ storage.AuditStore = (*AuditStore)(nil)

// Append writes one audit event.
func (s *AuditStore) Append(_ context.Context, e *domain.AuditEvent) error {
	if e == nil || e.BatchID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	eventCopy := *e
	s.events = append(s.events, &eventCopy)
	return nil
}

// GetByBatch retrieves all events for a batch in append order.
func (s *AuditStore) GetByBatch(_ context.Context, batchID string) ([]*domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []*domain.AuditEvent
	for _, e := range s.events {
		if e.BatchID == batchID {
			eventCopy := *e
			events = append(events, &eventCopy)
		}
	}
	return events, nil
}
