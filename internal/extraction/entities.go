// Package extraction defines the entity-extraction collaborator contract:
// masked text in, schema-validated clinical entities out. The concrete
// extraction service is pluggable behind the Extractor interface; the core
// pipeline never sees raw collaborator JSON.
package extraction

import "context"

// Diagnosis is a single extracted diagnosis or problem.
type Diagnosis struct {
	Text   string `json:"text"`
	Status string `json:"status"` // active | resolved | rule-out
}

// Medication is a single new or changed medication order.
type Medication struct {
	Text      string `json:"text"`
	Dosage    string `json:"dosage"`
	Route     string `json:"route"`
	Frequency string `json:"frequency,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Allergy is a single extracted allergy.
type Allergy struct {
	Substance string `json:"substance"`
	Reaction  string `json:"reaction"`
	Severity  string `json:"severity,omitempty"` // mild | moderate | severe
}

// VitalSigns carries extracted vitals as free strings; "N/A" marks a vital
// not mentioned in the conversation.
type VitalSigns struct {
	BloodPressure    string `json:"blood_pressure"`
	Temperature      string `json:"temperature"`
	HeartRate        string `json:"heart_rate"`
	RespiratoryRate  string `json:"respiratory_rate,omitempty"`
	OxygenSaturation string `json:"oxygen_saturation,omitempty"`
}

// ClinicalEntities is the validated structured output for one transaction.
// Produced once by the extractor and never mutated afterward.
type ClinicalEntities struct {
	ChiefComplaint    string         `json:"chief_complaint"`
	VitalSigns        VitalSigns     `json:"vital_signs"`
	Diagnoses         []Diagnosis    `json:"diagnoses"`
	Medications       []Medication   `json:"medications"`
	Allergies         []Allergy      `json:"allergies"`
	AssessmentPlan    string         `json:"assessment_plan"`
	OverallConfidence int            `json:"overall_confidence"`
	FieldConfidence   map[string]int `json:"field_confidence"`
	ReviewFlags       []string       `json:"review_flags,omitempty"`
}

// Request is the wire request sent to the extraction collaborator. The
// deterministic flag requires the service to run at its most reproducible
// setting so identical masked text yields identical entities.
type Request struct {
	MaskedText    string `json:"masked_text"`
	TransactionID string `json:"transaction_id"`
	Deterministic bool   `json:"deterministic"`
}

// Extractor is the capability the pipeline consumes. Implementations own
// their transient-failure retry policy; the pipeline only distinguishes
// *TransientError from *SchemaError.
type Extractor interface {
	Extract(ctx context.Context, maskedText, transactionID string) (*ClinicalEntities, error)
}
