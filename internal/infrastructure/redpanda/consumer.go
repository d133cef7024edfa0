package redpanda

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ConsumerConfig holds configuration for the consumer.
type ConsumerConfig struct {
	// Brokers is a list of broker addresses.
	Brokers []string
	// GroupID is the consumer group ID.
	GroupID string
	// Topics is the list of topics to consume.
	Topics []string
	// SessionTimeoutMS is the session timeout.
	SessionTimeoutMS int64
	// HeartbeatIntervalMS is the heartbeat interval.
	HeartbeatIntervalMS int64
	// StartOffset is the initial offset (earliest or latest).
	StartOffset string
	// MaxPollRecords bounds how many records are in flight per poll.
	MaxPollRecords int
}

// DefaultConsumerConfig returns defaults for note-submission intake.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers:             []string{"localhost:9092"},
		GroupID:             "scribe-batch-processor",
		SessionTimeoutMS:    30000,
		HeartbeatIntervalMS: 3000,
		StartOffset:         "earliest",
		MaxPollRecords:      256,
	}
}

// MessageHandler is called for each consumed message.
type MessageHandler func(ctx context.Context, msg *ConsumedMessage) error

// ConsumedMessage represents a consumed Kafka message.
type ConsumedMessage struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
}

// Consumer pulls note submissions from Redpanda. Offsets are committed
// manually, only after the handler has returned for every record in a poll,
// so a crashed processor re-reads in-flight submissions rather than losing
// them. Handlers must therefore block until their record is fully processed.
type Consumer struct {
	client  *kgo.Client
	config  ConsumerConfig
	logger  *zap.Logger
	tracer  trace.Tracer
	handler MessageHandler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumer creates a new consumer.
func NewConsumer(cfg ConsumerConfig, handler MessageHandler, logger *zap.Logger) (*Consumer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if handler == nil {
		return nil, errors.New("message handler is required")
	}
	if cfg.MaxPollRecords <= 0 {
		cfg.MaxPollRecords = DefaultConsumerConfig().MaxPollRecords
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.SessionTimeout(time.Duration(cfg.SessionTimeoutMS) * time.Millisecond),
		kgo.HeartbeatInterval(time.Duration(cfg.HeartbeatIntervalMS) * time.Millisecond),
		kgo.DisableAutoCommit(),
	}

	switch cfg.StartOffset {
	case "latest":
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()))
	default:
		opts = append(opts, kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		client:  client,
		config:  cfg,
		logger:  logger,
		tracer:  otel.Tracer("redpanda-consumer"),
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start launches the consume loop.
func (c *Consumer) Start() {
	c.wg.Add(1)
	go c.consumeLoop()
	c.logger.Info("consumer started",
		zap.String("group", c.config.GroupID),
		zap.Strings("topics", c.config.Topics))
}

// Stop shuts down the consumer and waits for the loop to exit.
func (c *Consumer) Stop() {
	c.cancel()
	c.wg.Wait()
	c.client.Close()
	c.logger.Info("consumer stopped")
}

func (c *Consumer) consumeLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		fetches := c.client.PollRecords(c.ctx, c.config.MaxPollRecords)
		if fetches.IsClientClosed() {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("fetch error",
				zap.String("topic", topic),
				zap.Int32("partition", partition),
				zap.Error(err))
		})

		var records []*kgo.Record
		fetches.EachRecord(func(record *kgo.Record) {
			records = append(records, record)
		})

		// The commit below covers every record of this poll, so all handlers
		// must have returned first.
		dispatch(records, c.handleRecord)

		if err := c.client.CommitUncommittedOffsets(c.ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				c.logger.Error("offset commit failed", zap.Error(err))
			}
		}
	}
}

// dispatch runs the handler for every record concurrently and returns only
// once all handlers have completed.
func dispatch(records []*kgo.Record, handle func(*kgo.Record)) {
	var wg sync.WaitGroup
	for _, record := range records {
		wg.Add(1)
		go func(record *kgo.Record) {
			defer wg.Done()
			handle(record)
		}(record)
	}
	wg.Wait()
}

func (c *Consumer) handleRecord(record *kgo.Record) {
	ctx, span := c.tracer.Start(c.ctx, "consume_message",
		trace.WithAttributes(
			attribute.String("topic", record.Topic),
			attribute.Int64("offset", record.Offset),
		))
	defer span.End()

	msg := &ConsumedMessage{
		Topic:     record.Topic,
		Partition: record.Partition,
		Offset:    record.Offset,
		Key:       record.Key,
		Value:     record.Value,
		Timestamp: record.Timestamp,
	}

	if err := c.handler(ctx, msg); err != nil {
		span.RecordError(err)
		c.logger.Error("message handler failed",
			zap.String("topic", record.Topic),
			zap.Int64("offset", record.Offset),
			zap.Error(err))
	}
}
