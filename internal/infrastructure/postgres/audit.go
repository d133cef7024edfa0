package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinscribe/go-scribe/internal/audit"
)

// AuditRecorder is the database sink for the audit-event stream. It pairs
// with the log and Kafka sinks behind audit.MultiRecorder for the hybrid
// dual-write the compliance team expects.
type AuditRecorder struct {
	pool *pgxpool.Pool
}

// NewAuditRecorder creates a database-backed audit recorder.
func NewAuditRecorder(pool *pgxpool.Pool) *AuditRecorder {
	return &AuditRecorder{pool: pool}
}

// Record appends one audit event row.
func (r *AuditRecorder) Record(ctx context.Context, event audit.Event) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}

	query := `
		INSERT INTO audit_events (transaction_id, stage, status, event_time, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.pool.Exec(ctx, query, event.TransactionID, event.Stage, event.Status, event.Timestamp, metadata); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
