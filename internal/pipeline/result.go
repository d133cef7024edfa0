// Package pipeline runs the synchronous de-identification and transformation
// pipeline: Redactor, Extractor, Builder, Assembler/Validator, Gate. Each
// process call is single-transaction-scoped; concurrency exists only across
// transactions via the batch processor.
package pipeline

import (
	"github.com/clinscribe/go-scribe/internal/deid"
	"github.com/clinscribe/go-scribe/internal/extraction"
	fhir "github.com/clinscribe/go-scribe/internal/fhir/r4"
	"github.com/clinscribe/go-scribe/internal/gate"
	"github.com/clinscribe/go-scribe/internal/transform"
)

// Stage statuses recorded in a Result.
const (
	StageSuccess = "success"
	StageFailed  = "failed"
	StageSkipped = "skipped"
)

// RedactionStage records the outcome of PHI masking and its post-hoc check.
type RedactionStage struct {
	Status     string                `json:"status"`
	Audit      deid.RedactionAudit   `json:"audit"`
	Validation deid.ValidationReport `json:"validation"`
}

// ExtractionStage records the outcome of the entity extraction call.
type ExtractionStage struct {
	Status            string   `json:"status"`
	OverallConfidence int      `json:"overall_confidence,omitempty"`
	Violations        []string `json:"violations,omitempty"`
	Error             string   `json:"error,omitempty"`
}

// TransformStage records resource building and bundle validation.
type TransformStage struct {
	Status        string                      `json:"status"`
	ResourceCount int                         `json:"resource_count,omitempty"`
	Validation    *transform.ValidationResult `json:"validation,omitempty"`
}

// GateStage records the confidence gate decision.
type GateStage struct {
	Status   string        `json:"status"`
	Decision gate.Decision `json:"decision"`
}

// Stages is the stage-by-stage status record of one transaction.
type Stages struct {
	Redaction      RedactionStage  `json:"redaction"`
	Extraction     ExtractionStage `json:"extraction"`
	Transformation TransformStage  `json:"transformation"`
	ConfidenceGate GateStage       `json:"confidence_gate"`
}

// Outputs holds the pipeline's per-transaction artifacts. A field is empty
// when its producing stage never ran or hard-failed.
type Outputs struct {
	MaskedConversation     string                       `json:"masked_conversation,omitempty"`
	StructuredClinicalData *extraction.ClinicalEntities `json:"structured_clinical_data,omitempty"`
	FHIRBundle             *fhir.Bundle                 `json:"fhir_bundle,omitempty"`
}

// Result is the per-transaction aggregate. It is created at pipeline entry,
// fully populated or short-circuited on first hard failure, then persisted.
// Read-only afterward.
type Result struct {
	TransactionID  string     `json:"transaction_id"`
	State          gate.State `json:"state"`
	ReviewRequired bool       `json:"review_required"`
	Stages         Stages     `json:"stages"`
	Outputs        Outputs    `json:"outputs"`
}

// newResult creates a pending result with every stage marked skipped; stages
// overwrite their own entry as they run.
func newResult(transactionID string) *Result {
	return &Result{
		TransactionID: transactionID,
		State:         gate.StatePending,
		Stages: Stages{
			Redaction:      RedactionStage{Status: StageSkipped},
			Extraction:     ExtractionStage{Status: StageSkipped},
			Transformation: TransformStage{Status: StageSkipped},
			ConfidenceGate: GateStage{Status: StageSkipped},
		},
	}
}
