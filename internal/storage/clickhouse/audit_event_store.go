package clickhouse

import (
	"context"
	"fmt"

	"solana-dca-engine/internal/domain"
	"solana-dca-engine/internal/storage"
)

// AuditEventStore implements storage.AuditStore using ClickHouse.
// Events are append-only; ClickHouse MergeTree never updates rows.
type AuditEventStore struct {
	conn *Conn
}

// NewAuditEventStore creates a new AuditEventStore.
func NewAuditEventStore(conn *Conn) *AuditEventStore {
	return &AuditEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AuditStore = (*AuditEventStore)(nil)

// Append writes one audit event.
func (s *AuditEventStore) Append(ctx context.Context, e *domain.AuditEvent) error {
	if e == nil || e.BatchID == "" {
		return storage.ErrInvalidInput
	}

	err := s.conn.Exec(ctx, `
		INSERT INTO audit_events (ts, batch_id, kind, phase, outcome, detail)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.Timestamp, e.BatchID, string(e.Kind), e.Phase, e.Outcome, e.Detail)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// GetByBatch retrieves all events for a batch, ordered by timestamp ASC.
// Used by operators inspecting a stuck batch; not part of the hot path.
func (s *AuditEventStore) GetByBatch(ctx context.Context, batchID string) ([]*domain.AuditEvent, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT ts, batch_id, kind, phase, outcome, detail
		FROM audit_events
		WHERE batch_id = ?
		ORDER BY ts ASC
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("get audit events by batch: %w", err)
	}
	defer rows.Close()

	var events []*domain.AuditEvent
	for rows.Next() {
		var e domain.AuditEvent
		var kind string
		if err := rows.Scan(&e.Timestamp, &e.BatchID, &kind, &e.Phase, &e.Outcome, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event row: %w", err)
		}
		e.Kind = domain.RecordKind(kind)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit event rows: %w", err)
	}
	return events, nil
}
