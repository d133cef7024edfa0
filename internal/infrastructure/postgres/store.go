// Package postgres persists completed pipeline results, audit events and
// clinician review decisions. Nothing is written here until a transaction's
// pipeline has fully completed or been explicitly marked failed.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// ErrNotFound indicates no row matched the requested transaction.
var ErrNotFound = errors.New("postgres: transaction not found")

// StoredResult is a persisted pipeline result row.
type StoredResult struct {
	TransactionID  string
	State          string
	ReviewRequired bool
	Payload        json.RawMessage
	CreatedAt      time.Time
}

// Store provides the persistence sink for pipeline results.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStore creates a new store.
func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}
}

// SaveResult persists a completed pipeline result. The payload is the full
// serialized PipelineResult; state and review_required are denormalized for
// queue queries.
func (s *Store) SaveResult(ctx context.Context, transactionID, state string, reviewRequired bool, payload []byte) error {
	query := `
		INSERT INTO pipeline_results (transaction_id, state, review_required, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (transaction_id) DO UPDATE
		SET state = EXCLUDED.state,
		    review_required = EXCLUDED.review_required,
		    payload = EXCLUDED.payload
	`
	if _, err := s.pool.Exec(ctx, query, transactionID, state, reviewRequired, payload); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// GetResult loads a persisted result by transaction id.
func (s *Store) GetResult(ctx context.Context, transactionID string) (*StoredResult, error) {
	query := `
		SELECT transaction_id, state, review_required, payload, created_at
		FROM pipeline_results
		WHERE transaction_id = $1
	`
	row := s.pool.QueryRow(ctx, query, transactionID)

	var r StoredResult
	if err := row.Scan(&r.TransactionID, &r.State, &r.ReviewRequired, &r.Payload, &r.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	return &r, nil
}

// ListPendingReview returns transactions flagged for review that have no
// recorded clinician decision yet, oldest first.
func (s *Store) ListPendingReview(ctx context.Context, limit int) ([]*StoredResult, error) {
	query := `
		SELECT r.transaction_id, r.state, r.review_required, r.payload, r.created_at
		FROM pipeline_results r
		LEFT JOIN review_decisions d ON d.transaction_id = r.transaction_id
		WHERE r.review_required AND d.transaction_id IS NULL
		ORDER BY r.created_at ASC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending review: %w", err)
	}
	defer rows.Close()

	var results []*StoredResult
	for rows.Next() {
		r := &StoredResult{}
		if err := rows.Scan(&r.TransactionID, &r.State, &r.ReviewRequired, &r.Payload, &r.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// SaveReviewDecision records a clinician's decision for a transaction.
func (s *Store) SaveReviewDecision(ctx context.Context, transactionID, clinicianID, action, notes string) error {
	query := `
		INSERT INTO review_decisions (transaction_id, clinician_id, action, notes)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.pool.Exec(ctx, query, transactionID, clinicianID, action, notes); err != nil {
		return fmt.Errorf("save review decision: %w", err)
	}
	return nil
}

// ReviewDecision is a persisted clinician decision.
type ReviewDecision struct {
	TransactionID string    `json:"transaction_id"`
	ClinicianID   string    `json:"clinician_id"`
	Action        string    `json:"action"`
	Notes         string    `json:"notes,omitempty"`
	ReviewedAt    time.Time `json:"reviewed_at"`
}

// GetReviewHistory returns all decisions for a transaction, oldest first.
func (s *Store) GetReviewHistory(ctx context.Context, transactionID string) ([]*ReviewDecision, error) {
	query := `
		SELECT transaction_id, clinician_id, action, COALESCE(notes, ''), reviewed_at
		FROM review_decisions
		WHERE transaction_id = $1
		ORDER BY reviewed_at ASC
	`
	rows, err := s.pool.Query(ctx, query, transactionID)
	if err != nil {
		return nil, fmt.Errorf("get review history: %w", err)
	}
	defer rows.Close()

	var decisions []*ReviewDecision
	for rows.Next() {
		d := &ReviewDecision{}
		if err := rows.Scan(&d.TransactionID, &d.ClinicianID, &d.Action, &d.Notes, &d.ReviewedAt); err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}
