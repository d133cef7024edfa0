package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clinscribe/go-scribe/internal/infrastructure/redpanda"
)

// KafkaRecorder publishes audit events to the audit topic, keyed by
// transaction so a transaction's events stay ordered within a partition.
type KafkaRecorder struct {
	producer *redpanda.Producer
	topic    string
}

// NewKafkaRecorder creates a stream-backed recorder.
func NewKafkaRecorder(producer *redpanda.Producer) *KafkaRecorder {
	return &KafkaRecorder{
		producer: producer,
		topic:    redpanda.TopicAuditEvents,
	}
}

// Record publishes the event and waits for broker acknowledgment.
func (r *KafkaRecorder) Record(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return r.producer.Produce(ctx, r.topic, event.TransactionID, value)
}
