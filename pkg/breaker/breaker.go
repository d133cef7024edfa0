// Package breaker wraps sony/gobreaker with OpenTelemetry integration for
// calls to the entity extraction service.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// State represents the circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Config holds circuit breaker configuration.
type Config struct {
	// Name identifies the circuit breaker.
	Name string
	// MaxRequests is max requests allowed in half-open state.
	MaxRequests uint32
	// Interval is the cyclic period for clearing counts in closed state.
	Interval time.Duration
	// Timeout is how long to wait before transitioning from open to half-open.
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures before opening.
	FailureThreshold uint32
	// FailureRatio is the failure ratio threshold once MinRequests is reached.
	FailureRatio float64
	// MinRequests is minimum requests before the ratio is considered.
	MinRequests uint32
}

// DefaultConfig returns defaults tuned for a single network-bound
// extraction collaborator.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		FailureRatio:     0.6,
		MinRequests:      10,
	}
}

// Breaker wraps gobreaker with observability.
type Breaker struct {
	cb     *gobreaker.CircuitBreaker
	name   string
	logger *zap.Logger
	tracer trace.Tracer

	meter          metric.Meter
	requestCounter metric.Int64Counter
	failureCounter metric.Int64Counter
	rejectCounter  metric.Int64Counter

	mu           sync.RWMutex
	currentState State
}

// New creates a new circuit breaker.
func New(cfg Config, logger *zap.Logger) (*Breaker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Breaker{
		name:         cfg.Name,
		logger:       logger,
		tracer:       otel.Tracer("breaker"),
		meter:        otel.Meter("breaker"),
		currentState: StateClosed,
	}

	var err error
	b.requestCounter, err = b.meter.Int64Counter("breaker_requests_total",
		metric.WithDescription("Total requests through the circuit breaker"))
	if err != nil {
		return nil, fmt.Errorf("create request counter: %w", err)
	}
	b.failureCounter, err = b.meter.Int64Counter("breaker_failures_total",
		metric.WithDescription("Total failed requests"))
	if err != nil {
		return nil, fmt.Errorf("create failure counter: %w", err)
	}
	b.rejectCounter, err = b.meter.Int64Counter("breaker_rejections_total",
		metric.WithDescription("Total requests rejected due to open circuit"))
	if err != nil {
		return nil, fmt.Errorf("create rejection counter: %w", err)
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.onStateChange(from, to)
		},
	}

	b.cb = gobreaker.NewCircuitBreaker(settings)
	return b, nil
}

// ErrOpen reports whether an error came from the breaker rejecting the call
// rather than the call itself failing.
func ErrOpen(err error) bool {
	return err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests
}

// Execute runs a function through the circuit breaker.
func (b *Breaker) Execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	ctx, span := b.tracer.Start(ctx, "breaker_execute",
		trace.WithAttributes(
			attribute.String("breaker_name", b.name),
			attribute.String("state", string(b.GetState())),
		))
	defer span.End()

	b.requestCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("name", b.name)))

	result, err := b.cb.Execute(fn)
	if err != nil {
		if ErrOpen(err) {
			b.rejectCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("name", b.name)))
			span.SetAttributes(attribute.Bool("circuit_open", true))
		} else {
			b.failureCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("name", b.name)))
		}
		span.RecordError(err)
		return nil, err
	}
	return result, nil
}

// GetState returns the current circuit breaker state.
func (b *Breaker) GetState() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.currentState
}

// IsOpen returns true if the circuit is open.
func (b *Breaker) IsOpen() bool { return b.GetState() == StateOpen }

// Counts returns the current counts from the circuit breaker.
func (b *Breaker) Counts() gobreaker.Counts { return b.cb.Counts() }

func (b *Breaker) onStateChange(from, to gobreaker.State) {
	fromState := mapState(from)
	toState := mapState(to)

	b.mu.Lock()
	b.currentState = toState
	b.mu.Unlock()

	b.logger.Warn("circuit breaker state changed",
		zap.String("breaker", b.name),
		zap.String("from", string(fromState)),
		zap.String("to", string(toState)))
}

func mapState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
