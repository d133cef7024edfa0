// Package audit provides the append-only compliance event stream. Every
// pipeline stage emits exactly one canonical event; recorders deliver it
// at-least-once to however many physical sinks are configured.
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Stage names for audit events, one per pipeline stage.
const (
	StageRedaction  = "redaction"
	StageExtraction = "extraction"
	StageTransform  = "transformation"
	StageGate       = "confidence_gate"
)

// Event statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Event is one audit record for one pipeline stage of one transaction.
type Event struct {
	TransactionID string                 `json:"transaction_id"`
	Stage         string                 `json:"stage"`
	Status        string                 `json:"status"`
	Timestamp     time.Time              `json:"timestamp"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// NewEvent creates a timestamped audit event.
func NewEvent(transactionID, stage, status string, metadata map[string]interface{}) Event {
	return Event{
		TransactionID: transactionID,
		Stage:         stage,
		Status:        status,
		Timestamp:     time.Now().UTC(),
		Metadata:      metadata,
	}
}

// Recorder is the append-only event sink consumed by every pipeline stage.
type Recorder interface {
	Record(ctx context.Context, event Event) error
}

// LogRecorder writes audit events to the structured log. It is the always-on
// sink; database and stream sinks layer on top via MultiRecorder.
type LogRecorder struct {
	logger *zap.Logger
}

// NewLogRecorder creates a log-backed recorder.
func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogRecorder{logger: logger}
}

// Record writes the event as a structured log line.
func (r *LogRecorder) Record(_ context.Context, event Event) error {
	r.logger.Info("audit event",
		zap.String("transaction_id", event.TransactionID),
		zap.String("stage", event.Stage),
		zap.String("status", event.Status),
		zap.Time("event_time", event.Timestamp),
		zap.Any("metadata", event.Metadata),
	)
	return nil
}

// MultiRecorder fans one event out to several sinks with at-least-once
// semantics: every sink is attempted, sink failures are logged and the first
// error is returned, but one sink's failure never blocks another's delivery.
type MultiRecorder struct {
	sinks  []Recorder
	logger *zap.Logger
}

// NewMultiRecorder creates a fan-out recorder.
func NewMultiRecorder(logger *zap.Logger, sinks ...Recorder) *MultiRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiRecorder{sinks: sinks, logger: logger}
}

// Record delivers the event to every sink.
func (r *MultiRecorder) Record(ctx context.Context, event Event) error {
	var firstErr error
	for _, sink := range r.sinks {
		if err := sink.Record(ctx, event); err != nil {
			r.logger.Error("audit sink delivery failed",
				zap.String("transaction_id", event.TransactionID),
				zap.String("stage", event.Stage),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
