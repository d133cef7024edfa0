// Package r4 provides FHIR R4 data structures for the clinical scribe pipeline.
package r4

import "time"

// Meta contains metadata about a resource.
type Meta struct {
	VersionID     string   `json:"versionId,omitempty"`
	Source        string   `json:"source,omitempty"`
	Profile       []string `json:"profile,omitempty"`
	TransactionID string   `json:"transactionId,omitempty"`
}

// Coding represents a code from a terminology system.
type Coding struct {
	System  string `json:"system,omitempty"`
	Version string `json:"version,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// CodeableConcept represents a concept with text and codings.
type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// Reference points to another resource by value. References are weak: the
// bundle validator, not the type system, enforces that they resolve.
type Reference struct {
	Reference string `json:"reference,omitempty"`
	Type      string `json:"type,omitempty"`
	Display   string `json:"display,omitempty"`
}

// Period represents a time period.
type Period struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// HumanName represents a human name.
type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Text   string   `json:"text,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

// Annotation represents a note or comment.
type Annotation struct {
	AuthorString string `json:"authorString,omitempty"`
	Text         string `json:"text"`
}

// Dosage contains dosage instructions for a medication.
type Dosage struct {
	Sequence           int              `json:"sequence,omitempty"`
	Text               string           `json:"text,omitempty"`
	PatientInstruction string           `json:"patientInstruction,omitempty"`
	Timing             *Timing          `json:"timing,omitempty"`
	Route              *CodeableConcept `json:"route,omitempty"`
}

// Timing contains timing information for dosage.
type Timing struct {
	Code *CodeableConcept `json:"code,omitempty"`
}

// Common code systems.
const (
	SystemICD10               = "http://hl7.org/fhir/sid/icd-10"
	SystemRxNorm              = "http://www.nlm.nih.gov/research/umls/rxnorm"
	SystemSNOMED              = "http://snomed.info/sct"
	SystemLOINC               = "http://loinc.org"
	SystemActCode             = "http://terminology.hl7.org/CodeSystem/v3-ActCode"
	SystemConditionClinical   = "http://terminology.hl7.org/CodeSystem/condition-clinical"
	SystemAllergyClinical     = "http://terminology.hl7.org/CodeSystem/allergyintolerance-clinical"
	SystemAllergyVerification = "http://terminology.hl7.org/CodeSystem/allergyintolerance-verification"
)

// Condition clinical status codes.
const (
	ClinicalStatusActive      = "active"
	ClinicalStatusResolved    = "resolved"
	ClinicalStatusUnconfirmed = "unconfirmed"
	ClinicalStatusInactive    = "inactive"
)

// Resource type names used across the pipeline.
const (
	TypePatient            = "Patient"
	TypeEncounter          = "Encounter"
	TypeCondition          = "Condition"
	TypeMedicationRequest  = "MedicationRequest"
	TypeAllergyIntolerance = "AllergyIntolerance"
)
