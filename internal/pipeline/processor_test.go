package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/clinscribe/go-scribe/internal/audit"
	"github.com/clinscribe/go-scribe/internal/extraction"
	"github.com/clinscribe/go-scribe/internal/gate"
)

// fakeExtractor returns canned entities or a canned error.
type fakeExtractor struct {
	entities *extraction.ClinicalEntities
	err      error
	calls    int
}

func (f *fakeExtractor) Extract(_ context.Context, _, transactionID string) (*extraction.ClinicalEntities, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := *f.entities
	return &out, nil
}

// memRecorder captures audit events in memory.
type memRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *memRecorder) Record(_ context.Context, event audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *memRecorder) byStage(stage string) []audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Event
	for _, e := range r.events {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}

// memSink captures persisted results.
type memSink struct {
	mu    sync.Mutex
	saved map[string]string // transaction id -> state
}

func (s *memSink) SaveResult(_ context.Context, transactionID, state string, _ bool, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = make(map[string]string)
	}
	if !json.Valid(payload) {
		return errors.New("payload is not valid json")
	}
	s.saved[transactionID] = state
	return nil
}

func confidentEntities() *extraction.ClinicalEntities {
	return &extraction.ClinicalEntities{
		ChiefComplaint: "headache",
		VitalSigns:     extraction.VitalSigns{BloodPressure: "150/95", Temperature: "N/A", HeartRate: "88"},
		Diagnoses: []extraction.Diagnosis{
			{Text: "hypertension", Status: "active"},
		},
		Medications: []extraction.Medication{
			{Text: "lisinopril", Dosage: "10mg", Route: "oral"},
		},
		AssessmentPlan:    "start lisinopril",
		OverallConfidence: 92,
		FieldConfidence:   map[string]int{"diagnoses": 95, "medications": 90},
	}
}

func newTestProcessor(t *testing.T, extractor extraction.Extractor, recorder audit.Recorder, sink ResultSink) *Processor {
	t.Helper()
	p, err := NewProcessor(Deps{
		Extractor: extractor,
		Recorder:  recorder,
		Sink:      sink,
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("processor creation failed: %v", err)
	}
	return p
}

const sampleConversation = "Patient John Smith, DOB 05/15/1980, presents with headache. BP 150/95."

func TestProcessAutoAccepts(t *testing.T) {
	recorder := &memRecorder{}
	sink := &memSink{}
	p := newTestProcessor(t, &fakeExtractor{entities: confidentEntities()}, recorder, sink)

	result, err := p.Process(context.Background(), sampleConversation)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if result.State != gate.StateAutoAccepted {
		t.Errorf("expected auto_accepted, got %s", result.State)
	}
	if result.ReviewRequired {
		t.Error("auto-accepted transaction must not require review")
	}
	if result.TransactionID == "" {
		t.Error("expected a transaction id")
	}
	if result.Outputs.FHIRBundle == nil {
		t.Fatal("expected a bundle")
	}
	if result.Outputs.FHIRBundle.Type != "transaction" {
		t.Errorf("bundle type %q, want transaction", result.Outputs.FHIRBundle.Type)
	}
	if result.Outputs.MaskedConversation == "" {
		t.Error("expected masked conversation in outputs")
	}

	// One audit event per stage, all success.
	for _, stage := range []string{audit.StageRedaction, audit.StageExtraction, audit.StageTransform, audit.StageGate} {
		events := recorder.byStage(stage)
		if len(events) != 1 {
			t.Fatalf("expected 1 event for stage %s, got %d", stage, len(events))
		}
		if events[0].Status != audit.StatusSuccess {
			t.Errorf("stage %s status %s, want success", stage, events[0].Status)
		}
		if events[0].TransactionID != result.TransactionID {
			t.Errorf("stage %s event carries wrong transaction id", stage)
		}
	}

	if sink.saved[result.TransactionID] != string(gate.StateAutoAccepted) {
		t.Errorf("expected persisted state auto_accepted, got %q", sink.saved[result.TransactionID])
	}
}

func TestProcessMaskedTextReachesExtractor(t *testing.T) {
	var got string
	extractor := &extractorFunc{fn: func(_ context.Context, maskedText, _ string) (*extraction.ClinicalEntities, error) {
		got = maskedText
		return confidentEntities(), nil
	}}
	p := newTestProcessor(t, extractor, &memRecorder{}, nil)

	if _, err := p.Process(context.Background(), sampleConversation); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	for _, leaked := range []string{"John", "Smith", "05/15/1980"} {
		if strings.Contains(got, leaked) {
			t.Errorf("extractor received unmasked PHI %q: %s", leaked, got)
		}
	}
}

func TestProcessSchemaErrorRejects(t *testing.T) {
	recorder := &memRecorder{}
	sink := &memSink{}
	extractor := &fakeExtractor{err: &extraction.SchemaError{
		TransactionID: "ignored",
		Violations:    []string{"missing required field: diagnoses"},
	}}
	p := newTestProcessor(t, extractor, recorder, sink)

	result, err := p.Process(context.Background(), sampleConversation)
	if err != nil {
		t.Fatalf("schema error must not surface as a process error, got %v", err)
	}

	if result.State != gate.StateRejected {
		t.Errorf("expected rejected, got %s", result.State)
	}
	if result.Outputs.FHIRBundle != nil {
		t.Error("rejected transaction must not carry a bundle")
	}
	if result.Stages.Extraction.Status != StageFailed {
		t.Errorf("extraction stage status %q, want failed", result.Stages.Extraction.Status)
	}
	if result.Stages.Transformation.Status != StageSkipped {
		t.Errorf("transformation stage status %q, want skipped", result.Stages.Transformation.Status)
	}

	events := recorder.byStage(audit.StageExtraction)
	if len(events) != 1 || events[0].Status != audit.StatusFailed {
		t.Fatalf("expected one failed extraction event, got %+v", events)
	}

	// Rejected results are still persisted.
	if sink.saved[result.TransactionID] != string(gate.StateRejected) {
		t.Errorf("expected persisted rejected state, got %q", sink.saved[result.TransactionID])
	}
}

func TestProcessTransientErrorSurfaces(t *testing.T) {
	recorder := &memRecorder{}
	sink := &memSink{}
	extractor := &fakeExtractor{err: &extraction.TransientError{Cause: errors.New("connection refused")}}
	p := newTestProcessor(t, extractor, recorder, sink)

	result, err := p.Process(context.Background(), sampleConversation)
	if result != nil {
		t.Error("transient failure must not produce a result")
	}
	var transientErr *extraction.TransientError
	if !errors.As(err, &transientErr) {
		t.Fatalf("expected *TransientError, got %v", err)
	}

	// Nothing is persisted for an incomplete transaction.
	if len(sink.saved) != 0 {
		t.Errorf("expected no persisted results, got %v", sink.saved)
	}
	events := recorder.byStage(audit.StageExtraction)
	if len(events) != 1 || events[0].Status != audit.StatusFailed {
		t.Errorf("expected failed extraction event, got %+v", events)
	}
}

func TestProcessLowConfidenceFlagsForReview(t *testing.T) {
	entities := confidentEntities()
	entities.OverallConfidence = 60
	entities.FieldConfidence = map[string]int{"diagnoses": 50}

	sink := &memSink{}
	p := newTestProcessor(t, &fakeExtractor{entities: entities}, &memRecorder{}, sink)

	result, err := p.Process(context.Background(), sampleConversation)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if result.State != gate.StateFlaggedForReview {
		t.Errorf("expected flagged_for_review, got %s", result.State)
	}
	if !result.ReviewRequired {
		t.Error("flagged transaction must require review")
	}
	if result.Outputs.FHIRBundle == nil {
		t.Error("flagged transaction still carries its bundle")
	}
	if len(result.Stages.ConfidenceGate.Decision.Reasons) == 0 {
		t.Error("flagged decision must carry reasons")
	}
}

func TestProcessRejectsMalformedInput(t *testing.T) {
	p := newTestProcessor(t, &fakeExtractor{entities: confidentEntities()}, &memRecorder{}, nil)

	_, err := p.Process(context.Background(), "")
	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected *InputError, got %v", err)
	}
}

func TestProcessResultJSONShape(t *testing.T) {
	p := newTestProcessor(t, &fakeExtractor{entities: confidentEntities()}, &memRecorder{}, nil)

	result, err := p.Process(context.Background(), sampleConversation)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded struct {
		TransactionID string                     `json:"transaction_id"`
		Stages        map[string]json.RawMessage `json:"stages"`
		Outputs       struct {
			MaskedConversation     string          `json:"masked_conversation"`
			StructuredClinicalData json.RawMessage `json:"structured_clinical_data"`
			FHIRBundle             json.RawMessage `json:"fhir_bundle"`
		} `json:"outputs"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded.TransactionID != result.TransactionID {
		t.Error("transaction_id missing from serialized result")
	}
	for _, stage := range []string{"redaction", "extraction", "transformation", "confidence_gate"} {
		if _, ok := decoded.Stages[stage]; !ok {
			t.Errorf("stages missing %q", stage)
		}
	}
	if decoded.Outputs.MaskedConversation == "" || decoded.Outputs.FHIRBundle == nil {
		t.Errorf("outputs incomplete: %s", data)
	}
}

// Two runs over identical input differ only in generated identifiers and the
// bundle timestamp.
func TestProcessDeterministicEntityOutput(t *testing.T) {
	p := newTestProcessor(t, &fakeExtractor{entities: confidentEntities()}, &memRecorder{}, nil)

	first, err := p.Process(context.Background(), sampleConversation)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	second, err := p.Process(context.Background(), sampleConversation)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if first.Outputs.MaskedConversation != second.Outputs.MaskedConversation {
		t.Error("masked conversation differs across identical runs")
	}
	a, _ := json.Marshal(first.Outputs.StructuredClinicalData)
	b, _ := json.Marshal(second.Outputs.StructuredClinicalData)
	if string(a) != string(b) {
		t.Error("structured clinical data differs across identical runs")
	}
	if first.TransactionID == second.TransactionID {
		t.Error("transaction ids must be unique per run")
	}
}

// extractorFunc adapts a function to the Extractor interface.
type extractorFunc struct {
	fn func(ctx context.Context, maskedText, transactionID string) (*extraction.ClinicalEntities, error)
}

func (e *extractorFunc) Extract(ctx context.Context, maskedText, transactionID string) (*extraction.ClinicalEntities, error) {
	return e.fn(ctx, maskedText, transactionID)
}
