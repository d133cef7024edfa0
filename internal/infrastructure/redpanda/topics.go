// Package redpanda provides Kafka-compatible streaming with franz-go for the
// audit trail and batch note intake.
package redpanda

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// Topic names for the clinical scribe pipeline.
const (
	TopicAuditEvents     = "scribe.audit.events"
	TopicNoteSubmissions = "scribe.notes.submissions"
	TopicDeadLetter      = "scribe.dead.letter"
)

// TopicConfig holds configuration for a Kafka topic.
type TopicConfig struct {
	Name              string
	Partitions        int32
	ReplicationFactor int16
	Configs           map[string]*string
}

// DefaultTopicConfigs returns topic configurations for the pipeline. The
// audit topic keeps a long retention window; compliance reads lag writes by
// days, not minutes.
func DefaultTopicConfigs() []TopicConfig {
	ptr := func(s string) *string { return &s }

	return []TopicConfig{
		{
			Name:              TopicAuditEvents,
			Partitions:        6,
			ReplicationFactor: 1, // set to 3 in production
			Configs: map[string]*string{
				"retention.ms":     ptr("2592000000"), // 30 days
				"cleanup.policy":   ptr("delete"),
				"compression.type": ptr("lz4"),
			},
		},
		{
			Name:              TopicNoteSubmissions,
			Partitions:        6,
			ReplicationFactor: 1,
			Configs: map[string]*string{
				"retention.ms":     ptr("604800000"), // 7 days
				"cleanup.policy":   ptr("delete"),
				"compression.type": ptr("lz4"),
			},
		},
		{
			Name:              TopicDeadLetter,
			Partitions:        1,
			ReplicationFactor: 1,
			Configs: map[string]*string{
				"retention.ms":   ptr("2592000000"),
				"cleanup.policy": ptr("delete"),
			},
		},
	}
}

// EnsureTopics creates any missing topics.
func EnsureTopics(ctx context.Context, brokers []string, configs []TopicConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return fmt.Errorf("create admin client: %w", err)
	}
	defer client.Close()

	admin := kadm.NewClient(client)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	existing, err := admin.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}

	for _, cfg := range configs {
		if existing.Has(cfg.Name) {
			continue
		}
		if _, err := admin.CreateTopic(ctx, cfg.Partitions, cfg.ReplicationFactor, cfg.Configs, cfg.Name); err != nil {
			return fmt.Errorf("create topic %s: %w", cfg.Name, err)
		}
		logger.Info("topic created",
			zap.String("topic", cfg.Name),
			zap.Int32("partitions", cfg.Partitions))
	}

	return nil
}
