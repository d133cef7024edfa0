package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/clinscribe/go-scribe/internal/audit"
	"github.com/clinscribe/go-scribe/internal/deid"
	"github.com/clinscribe/go-scribe/internal/extraction"
	"github.com/clinscribe/go-scribe/internal/gate"
	"github.com/clinscribe/go-scribe/internal/observability/metrics"
	"github.com/clinscribe/go-scribe/internal/transform"
)

// ResultSink persists a completed or explicitly failed pipeline result.
// Nothing is written to it mid-transaction.
type ResultSink interface {
	SaveResult(ctx context.Context, transactionID, state string, reviewRequired bool, payload []byte) error
}

// Deps holds the processor's collaborators. Extractor and Recorder are
// required; Sink and Metrics are optional.
type Deps struct {
	Extractor extraction.Extractor
	Recorder  audit.Recorder
	Sink      ResultSink
	Metrics   *metrics.Metrics
	Gate      gate.Config
	Logger    *zap.Logger
}

// Processor runs the full pipeline for one conversation at a time.
type Processor struct {
	redactor  *deid.Redactor
	extractor extraction.Extractor
	builder   *transform.Builder
	assembler *transform.Assembler
	gate      gate.Config
	recorder  audit.Recorder
	sink      ResultSink
	metrics   *metrics.Metrics
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewProcessor creates a pipeline processor.
func NewProcessor(deps Deps) (*Processor, error) {
	if deps.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if deps.Recorder == nil {
		return nil, fmt.Errorf("audit recorder is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Gate == (gate.Config{}) {
		deps.Gate = gate.DefaultConfig()
	}

	return &Processor{
		redactor:  deid.NewRedactor(),
		extractor: deps.Extractor,
		builder:   transform.NewBuilder(),
		assembler: transform.NewAssembler(),
		gate:      deps.Gate,
		recorder:  deps.Recorder,
		sink:      deps.Sink,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		tracer:    otel.Tracer("pipeline"),
	}, nil
}

// Process runs one conversation through every stage strictly in order and
// returns the completed result. A transaction that hard-fails in extraction
// with a schema violation, or leaks PHI past redaction, comes back with state
// rejected and no bundle; transient extraction failures and malformed input
// return an error instead, and nothing is persisted for them.
func (p *Processor) Process(ctx context.Context, conversationText string) (*Result, error) {
	transactionID := uuid.NewString()
	ctx, span := p.tracer.Start(ctx, "process_note",
		trace.WithAttributes(attribute.String("transaction_id", transactionID)))
	defer span.End()

	start := time.Now()
	if p.metrics != nil {
		p.metrics.ActiveTransactions.Inc()
		defer p.metrics.ActiveTransactions.Dec()
		defer func() { p.metrics.ProcessingDuration.Observe(time.Since(start).Seconds()) }()
	}

	result := newResult(transactionID)

	if err := p.runRedaction(ctx, result, conversationText); err != nil {
		span.RecordError(err)
		p.countFailed()
		return nil, err
	}
	if result.State == gate.StateRejected {
		p.finish(ctx, result)
		return result, nil
	}

	if err := p.runExtraction(ctx, result); err != nil {
		span.RecordError(err)
		p.countFailed()
		return nil, err
	}
	if result.State == gate.StateRejected {
		p.finish(ctx, result)
		return result, nil
	}

	validation := p.runTransformation(ctx, result)
	p.runGate(ctx, result, validation)

	p.finish(ctx, result)
	span.SetAttributes(attribute.String("state", string(result.State)))
	return result, nil
}

func (p *Processor) runRedaction(ctx context.Context, result *Result, text string) error {
	masked, redactionAudit, err := p.redactor.Deidentify(text)
	if err != nil {
		result.Stages.Redaction = RedactionStage{Status: StageFailed}
		p.record(ctx, result.TransactionID, audit.StageRedaction, audit.StatusFailed,
			map[string]interface{}{"error": err.Error()})
		return &InputError{Err: err}
	}

	report := p.redactor.Validate(masked)
	result.Stages.Redaction = RedactionStage{
		Status:     StageSuccess,
		Audit:      redactionAudit,
		Validation: report,
	}

	if p.metrics != nil {
		for category, count := range redactionAudit.Redactions {
			p.metrics.RedactionsTotal.WithLabelValues(string(category)).Add(float64(count))
		}
	}

	if !report.IsSafe {
		// Text with residual PHI never leaves the process. The masked text is
		// withheld from outputs too; only category counts are recorded.
		result.Stages.Redaction.Status = StageFailed
		result.State = gate.StateRejected
		p.record(ctx, result.TransactionID, audit.StageRedaction, audit.StatusFailed,
			map[string]interface{}{
				"total_redactions": redactionAudit.TotalRedactions,
				"residual_risks":   len(report.ResidualRisks),
			})
		p.countRejected()
		return nil
	}

	result.Outputs.MaskedConversation = masked
	p.record(ctx, result.TransactionID, audit.StageRedaction, audit.StatusSuccess,
		map[string]interface{}{
			"total_redactions": redactionAudit.TotalRedactions,
			"original_length":  redactionAudit.OriginalLength,
			"masked_length":    redactionAudit.MaskedLength,
		})
	return nil
}

func (p *Processor) runExtraction(ctx context.Context, result *Result) error {
	extractStart := time.Now()
	entities, err := p.extractor.Extract(ctx, result.Outputs.MaskedConversation, result.TransactionID)
	if p.metrics != nil {
		p.metrics.ExtractionDuration.Observe(time.Since(extractStart).Seconds())
	}

	if err != nil {
		var schemaErr *extraction.SchemaError
		if errors.As(err, &schemaErr) {
			// Non-retryable: the transaction is rejected, no bundle produced.
			result.Stages.Extraction = ExtractionStage{
				Status:     StageFailed,
				Violations: schemaErr.Violations,
			}
			result.State = gate.StateRejected
			p.record(ctx, result.TransactionID, audit.StageExtraction, audit.StatusFailed,
				map[string]interface{}{"violations": schemaErr.Violations})
			p.countRejected()
			return nil
		}

		result.Stages.Extraction = ExtractionStage{Status: StageFailed, Error: err.Error()}
		p.record(ctx, result.TransactionID, audit.StageExtraction, audit.StatusFailed,
			map[string]interface{}{"error": err.Error()})

		var transientErr *extraction.TransientError
		if errors.As(err, &transientErr) {
			return transientErr
		}
		return &InternalError{Stage: audit.StageExtraction, Err: err}
	}

	result.Stages.Extraction = ExtractionStage{
		Status:            StageSuccess,
		OverallConfidence: entities.OverallConfidence,
	}
	result.Outputs.StructuredClinicalData = entities
	p.record(ctx, result.TransactionID, audit.StageExtraction, audit.StatusSuccess,
		map[string]interface{}{
			"overall_confidence": entities.OverallConfidence,
			"diagnoses":          len(entities.Diagnoses),
			"medications":        len(entities.Medications),
			"allergies":          len(entities.Allergies),
			"review_flags":       len(entities.ReviewFlags),
		})
	return nil
}

func (p *Processor) runTransformation(ctx context.Context, result *Result) transform.ValidationResult {
	set := p.builder.Build(result.Outputs.StructuredClinicalData, result.TransactionID)
	bundle := p.assembler.Assemble(set, result.TransactionID)
	validation := p.assembler.Validate(bundle)

	result.Stages.Transformation = TransformStage{
		Status:        StageSuccess,
		ResourceCount: len(bundle.Entry),
		Validation:    &validation,
	}
	result.Outputs.FHIRBundle = bundle

	if !validation.Passed && p.metrics != nil {
		p.metrics.ValidationFailures.Inc()
	}

	p.record(ctx, result.TransactionID, audit.StageTransform, audit.StatusSuccess,
		map[string]interface{}{
			"resource_count":    len(bundle.Entry),
			"validation_passed": validation.Passed,
			"validation_errors": len(validation.Errors),
		})
	return validation
}

func (p *Processor) runGate(ctx context.Context, result *Result, validation transform.ValidationResult) {
	entities := result.Outputs.StructuredClinicalData
	decision := gate.Decide(p.gate, entities.OverallConfidence, entities.FieldConfidence, validation.Passed)

	result.State = decision.State
	result.ReviewRequired = decision.State == gate.StateFlaggedForReview
	result.Stages.ConfidenceGate = GateStage{Status: StageSuccess, Decision: decision}

	if p.metrics != nil {
		p.metrics.GateDecisions.WithLabelValues(string(decision.State)).Inc()
		if result.ReviewRequired {
			p.metrics.NotesFlagged.Inc()
		}
	}

	p.record(ctx, result.TransactionID, audit.StageGate, audit.StatusSuccess,
		map[string]interface{}{
			"state":   string(decision.State),
			"reasons": decision.Reasons,
		})
}

// finish persists the fully-formed result. Persistence failures are logged
// but do not unwind an already-completed transaction.
func (p *Processor) finish(ctx context.Context, result *Result) {
	if p.metrics != nil {
		p.metrics.NotesProcessed.Inc()
	}

	if p.sink == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		p.logger.Error("marshal pipeline result",
			zap.String("transaction_id", result.TransactionID), zap.Error(err))
		return
	}
	if err := p.sink.SaveResult(ctx, result.TransactionID, string(result.State), result.ReviewRequired, payload); err != nil {
		p.logger.Error("persist pipeline result",
			zap.String("transaction_id", result.TransactionID), zap.Error(err))
	}
}

func (p *Processor) record(ctx context.Context, transactionID, stage, status string, metadata map[string]interface{}) {
	event := audit.NewEvent(transactionID, stage, status, metadata)
	if err := p.recorder.Record(ctx, event); err != nil {
		p.logger.Error("record audit event",
			zap.String("transaction_id", transactionID),
			zap.String("stage", stage),
			zap.Error(err))
	}
}

func (p *Processor) countFailed() {
	if p.metrics != nil {
		p.metrics.NotesFailed.Inc()
	}
}

func (p *Processor) countRejected() {
	if p.metrics != nil {
		p.metrics.NotesRejected.Inc()
	}
}
