package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/clinscribe/go-scribe/pkg/breaker"
)

// ClientConfig holds configuration for the HTTP extraction client.
type ClientConfig struct {
	// Endpoint is the extraction service URL.
	Endpoint string
	// APIKey authenticates requests to the extraction service.
	APIKey string
	// RequestTimeout bounds a single extraction call.
	RequestTimeout time.Duration
	// MaxAttempts bounds transient-failure retries per Extract call.
	MaxAttempts int
	// RetryBackoff is the base delay between attempts, doubled each retry.
	RetryBackoff time.Duration
}

// DefaultClientConfig returns sensible defaults for the extraction service.
func DefaultClientConfig(endpoint string) ClientConfig {
	return ClientConfig{
		Endpoint:       endpoint,
		RequestTimeout: 60 * time.Second,
		MaxAttempts:    3,
		RetryBackoff:   500 * time.Millisecond,
	}
}

// Client calls the external entity extraction service over HTTP. All calls
// go through a circuit breaker; schema violations are surfaced as
// *SchemaError and everything network-shaped as *TransientError.
type Client struct {
	config ClientConfig
	http   *http.Client
	brk    *breaker.Breaker
	logger *zap.Logger
	tracer trace.Tracer
}

// NewClient creates a new extraction client.
func NewClient(cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("extraction endpoint is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	brk, err := breaker.New(breaker.DefaultConfig("extraction-service"), logger)
	if err != nil {
		return nil, fmt.Errorf("create breaker: %w", err)
	}

	return &Client{
		config: cfg,
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		brk:    brk,
		logger: logger,
		tracer: otel.Tracer("extraction-client"),
	}, nil
}

// Extract sends masked text to the extraction service and returns validated
// clinical entities. The deterministic flag is always set: the pipeline
// requires reproducible output for identical input.
func (c *Client) Extract(ctx context.Context, maskedText, transactionID string) (*ClinicalEntities, error) {
	ctx, span := c.tracer.Start(ctx, "extract_entities",
		trace.WithAttributes(
			attribute.String("transaction_id", transactionID),
			attribute.Int("masked_length", len(maskedText)),
		))
	defer span.End()

	body, err := json.Marshal(Request{
		MaskedText:    maskedText,
		TransactionID: transactionID,
		Deterministic: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.config.RetryBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, &TransientError{Cause: ctx.Err()}
			case <-time.After(backoff):
			}
			c.logger.Debug("retrying extraction call",
				zap.String("transaction_id", transactionID),
				zap.Int("attempt", attempt+1))
		}

		entities, err := c.doRequest(ctx, body, transactionID)
		if err == nil {
			return entities, nil
		}

		// Schema violations are final; only transient failures retry.
		if _, ok := err.(*SchemaError); ok {
			span.RecordError(err)
			return nil, err
		}
		lastErr = err
	}

	span.RecordError(lastErr)
	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, body []byte, transactionID string) (*ClinicalEntities, error) {
	result, err := c.brk.Execute(ctx, func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set("X-API-Key", c.config.APIKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("extraction service returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			// 4xx other than 429 means our request shape is wrong; treat as
			// a schema-level failure so the caller does not retry forever.
			return nil, &SchemaError{
				TransactionID: transactionID,
				Violations:    []string{fmt.Sprintf("extraction service rejected request with status %d", resp.StatusCode)},
			}
		}
		return data, nil
	})
	if err != nil {
		if se, ok := err.(*SchemaError); ok {
			return nil, se
		}
		return nil, &TransientError{Cause: err}
	}

	return ParseResponse(result.([]byte), transactionID)
}
