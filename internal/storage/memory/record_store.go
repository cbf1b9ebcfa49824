package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/storage"
)

// RecordStore is an in-memory implementation of storage.RecordStore.
type RecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TransactionRecord // keyed by id
	// batchKind mirrors the (batch_id, kind) unique constraint.
	batchKind map[batchKindKey]string
}

type batchKindKey struct {
	batchID string
	kind    domain.RecordKind
}

// NewRecordStore creates a new in-memory record store.
func NewRecordStore() *RecordStore {
	return &RecordStore{
		data:      make(map[string]*domain.TransactionRecord),
		batchKind: make(map[batchKindKey]string),
	}
}

// Compile-time interface check.
var _ storage.RecordStore = (*RecordStore)(nil)

// Insert adds a new record. Returns ErrDuplicateKey if (batch_id, kind) exists.
func (s *RecordStore) Insert(_ context.Context, r *domain.TransactionRecord) error {
	if r == nil || r.ID == "" || r.BatchID == "" || !r.Kind.Valid() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := batchKindKey{r.BatchID, r.Kind}
	if _, exists := s.batchKind[key]; exists {
		return storage.ErrDuplicateKey
	}
	if _, exists := s.data[r.ID]; exists {
		return storage.ErrDuplicateKey
	}

	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now

	// Store a copy to prevent external mutation
	recordCopy := *r
	s.data[r.ID] = &recordCopy
	s.batchKind[key] = r.ID
	return nil
}

// GetByID retrieves a record by its ID. Returns ErrNotFound if not exists.
func (s *RecordStore) GetByID(_ context.Context, id string) (*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	recordCopy := *r
	return &recordCopy, nil
}

// GetByBatchAndKind retrieves the single record for (batch_id, kind).
func (s *RecordStore) GetByBatchAndKind(_ context.Context, batchID string, kind domain.RecordKind) (*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.batchKind[batchKindKey{batchID, kind}]
	if !exists {
		return nil, storage.ErrNotFound
	}
	recordCopy := *s.data[id]
	return &recordCopy, nil
}

// GetByBatch retrieves all records sharing a batch, ordered by created_at ASC.
func (s *RecordStore) GetByBatch(_ context.Context, batchID string) ([]*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*domain.TransactionRecord
	for _, r := range s.data {
		if r.BatchID == batchID {
			recordCopy := *r
			records = append(records, &recordCopy)
		}
	}
	sortRecords(records)
	return records, nil
}

// GetByGoal retrieves all records for a goal, ordered by created_at ASC.
func (s *RecordStore) GetByGoal(_ context.Context, goalID string) ([]*domain.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*domain.TransactionRecord
	for _, r := range s.data {
		if r.GoalID == goalID {
			recordCopy := *r
			records = append(records, &recordCopy)
		}
	}
	sortRecords(records)
	return records, nil
}

// Update rewrites the mutable fields of an existing record.
func (s *RecordStore) Update(_ context.Context, r *domain.TransactionRecord) error {
	if r == nil || r.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.data[r.ID]
	if !exists {
		return storage.ErrNotFound
	}

	r.UpdatedAt = time.Now().UTC()
	existing.State = r.State
	existing.TxHash = r.TxHash
	existing.AmountFiat = r.AmountFiat
	existing.AmountAsset = r.AmountAsset
	existing.Metadata = r.Metadata
	existing.UpdatedAt = r.UpdatedAt
	return nil
}

func sortRecords(records []*domain.TransactionRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID < records[j].ID
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}
