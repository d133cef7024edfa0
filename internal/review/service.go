// Package review records clinician decisions for transactions the confidence
// gate flagged. The gate state itself is terminal; decisions are an append-on
// record layered over it, never a mutation of the pipeline result.
package review

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/clinscribe/go-scribe/internal/gate"
	"github.com/clinscribe/go-scribe/internal/infrastructure/postgres"
)

// Action is a clinician's decision on a flagged transaction.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionEscalate Action = "escalate"
)

// ErrUnknownAction indicates an action outside the allowed set.
var ErrUnknownAction = errors.New("review: unknown action")

// ErrNotReviewable indicates the transaction was never flagged for review.
var ErrNotReviewable = errors.New("review: transaction does not require review")

// Service coordinates the review queue and decision recording.
type Service struct {
	store  *postgres.Store
	logger *zap.Logger
}

// NewService creates a review service.
func NewService(store *postgres.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// PendingQueue returns flagged transactions with no recorded decision yet,
// oldest first.
func (s *Service) PendingQueue(ctx context.Context, limit int) ([]*postgres.StoredResult, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.ListPendingReview(ctx, limit)
}

// SubmitDecision records a clinician's decision. The transaction must exist
// and must be flagged for review; escalations may stack, so repeat decisions
// are allowed and the history keeps them all.
func (s *Service) SubmitDecision(ctx context.Context, transactionID, clinicianID string, action Action, notes string) error {
	switch action {
	case ActionApprove, ActionReject, ActionEscalate:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if clinicianID == "" {
		return errors.New("review: clinician id is required")
	}

	stored, err := s.store.GetResult(ctx, transactionID)
	if err != nil {
		return err
	}
	if stored.State != string(gate.StateFlaggedForReview) {
		return fmt.Errorf("%w: state is %s", ErrNotReviewable, stored.State)
	}

	if err := s.store.SaveReviewDecision(ctx, transactionID, clinicianID, string(action), notes); err != nil {
		return err
	}

	s.logger.Info("review decision recorded",
		zap.String("transaction_id", transactionID),
		zap.String("clinician_id", clinicianID),
		zap.String("action", string(action)))
	return nil
}

// History returns every recorded decision for a transaction, oldest first.
func (s *Service) History(ctx context.Context, transactionID string) ([]*postgres.ReviewDecision, error) {
	return s.store.GetReviewHistory(ctx, transactionID)
}
