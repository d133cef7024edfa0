// Package transform builds cross-referenced FHIR R4 resources from extracted
// clinical entities and assembles them into validated bundles.
package transform

import (
	"strings"

	"github.com/google/uuid"

	"github.com/clinscribe/go-scribe/internal/extraction"
	fhir "github.com/clinscribe/go-scribe/internal/fhir/r4"
	"github.com/clinscribe/go-scribe/internal/terminology"
)

// maskedPatientName is the only name a de-identified patient ever carries.
const maskedPatientName = "[NAME]"

// ResourceSet holds the typed resources built for one transaction.
type ResourceSet struct {
	Patient            *fhir.Patient
	Encounter          *fhir.Encounter
	Conditions         []*fhir.Condition
	MedicationRequests []*fhir.MedicationRequest
	Allergies          []*fhir.AllergyIntolerance
}

// All returns every resource in deterministic order: Patient, Encounter,
// then Conditions, MedicationRequests and Allergies in input order.
func (s *ResourceSet) All() []fhir.Resource {
	out := []fhir.Resource{s.Patient, s.Encounter}
	for _, c := range s.Conditions {
		out = append(out, c)
	}
	for _, m := range s.MedicationRequests {
		out = append(out, m)
	}
	for _, a := range s.Allergies {
		out = append(out, a)
	}
	return out
}

// clinicalStatusMap translates extractor diagnosis statuses to FHIR
// condition-clinical codes.
var clinicalStatusMap = map[string]string{
	"active":   fhir.ClinicalStatusActive,
	"resolved": fhir.ClinicalStatusResolved,
	"rule-out": fhir.ClinicalStatusUnconfirmed,
	"inactive": fhir.ClinicalStatusInactive,
}

// routeCodeMap translates extractor medication routes to SNOMED route codes.
var routeCodeMap = map[string]fhir.Coding{
	"oral":       {System: fhir.SystemSNOMED, Code: "26643006", Display: "Oral route"},
	"iv":         {System: fhir.SystemSNOMED, Code: "47625008", Display: "Intravenous route"},
	"im":         {System: fhir.SystemSNOMED, Code: "78421000", Display: "Intramuscular route"},
	"sc":         {System: fhir.SystemSNOMED, Code: "34206005", Display: "Subcutaneous route"},
	"topical":    {System: fhir.SystemSNOMED, Code: "6064005", Display: "Topical route"},
	"inhaled":    {System: fhir.SystemSNOMED, Code: "447694001", Display: "Respiratory tract route"},
	"sublingual": {System: fhir.SystemSNOMED, Code: "37839007", Display: "Sublingual route"},
}

// IDGenerator produces resource identifiers. Swappable for tests; the
// default is uuid.NewString (v4, 122 bits of entropy).
type IDGenerator func() string

// Builder constructs FHIR resources from clinical entities. Given identical
// entities the resource content is byte-identical across runs; identifiers
// are the only non-deterministic field.
type Builder struct {
	newID IDGenerator
}

// NewBuilder creates a builder using uuid v4 identifiers.
func NewBuilder() *Builder {
	return &Builder{newID: uuid.NewString}
}

// NewBuilderWithIDs creates a builder with a custom identifier generator.
func NewBuilderWithIDs(gen IDGenerator) *Builder {
	return &Builder{newID: gen}
}

// Build constructs the full resource set for one transaction: exactly one
// Patient and one Encounter, plus one Condition per diagnosis, one
// MedicationRequest per medication and one AllergyIntolerance per allergy.
// Empty entity lists yield zero resources of that type.
func (b *Builder) Build(entities *extraction.ClinicalEntities, transactionID string) *ResourceSet {
	patientID := b.newID()
	encounterID := b.newID()

	set := &ResourceSet{
		Patient:   b.buildPatient(patientID, transactionID),
		Encounter: b.buildEncounter(encounterID, patientID, transactionID, entities),
	}

	subjectRef := fhir.Reference{Reference: "Patient/" + patientID}
	encounterRef := fhir.Reference{Reference: "Encounter/" + encounterID}

	for _, dx := range entities.Diagnoses {
		set.Conditions = append(set.Conditions, b.buildCondition(dx, subjectRef, encounterRef))
	}
	for _, med := range entities.Medications {
		set.MedicationRequests = append(set.MedicationRequests, b.buildMedicationRequest(med, subjectRef, encounterRef))
	}
	for _, al := range entities.Allergies {
		set.Allergies = append(set.Allergies, b.buildAllergy(al, subjectRef))
	}

	return set
}

func (b *Builder) buildPatient(id, transactionID string) *fhir.Patient {
	return &fhir.Patient{
		ResourceType: fhir.TypePatient,
		ID:           id,
		Meta:         &fhir.Meta{TransactionID: transactionID},
		Name: []fhir.HumanName{
			{Use: "usual", Text: maskedPatientName},
		},
		Gender: "unknown",
	}
}

func (b *Builder) buildEncounter(id, patientID, transactionID string, entities *extraction.ClinicalEntities) *fhir.Encounter {
	chiefComplaint := entities.ChiefComplaint
	if chiefComplaint == "" {
		chiefComplaint = "Not documented"
	}

	return &fhir.Encounter{
		ResourceType: fhir.TypeEncounter,
		ID:           id,
		Meta:         &fhir.Meta{TransactionID: transactionID},
		Status:       "finished",
		Class: fhir.Coding{
			System:  fhir.SystemActCode,
			Code:    "AMB",
			Display: "ambulatory",
		},
		Type: []fhir.CodeableConcept{
			{
				Coding: []fhir.Coding{
					{System: fhir.SystemSNOMED, Code: "185347001", Display: "Encounter for problem"},
				},
				Text: "Clinical Encounter",
			},
		},
		Subject: fhir.Reference{
			Reference: "Patient/" + patientID,
			Display:   maskedPatientName,
		},
		ReasonCode: []fhir.CodeableConcept{
			{Text: chiefComplaint},
		},
	}
}

func (b *Builder) buildCondition(dx extraction.Diagnosis, subject, encounter fhir.Reference) *fhir.Condition {
	status, ok := clinicalStatusMap[strings.ToLower(dx.Status)]
	if !ok {
		status = fhir.ClinicalStatusActive
	}

	coded := terminology.MapTerm(terminology.CategoryCondition, dx.Text)

	return &fhir.Condition{
		ResourceType: fhir.TypeCondition,
		ID:           b.newID(),
		ClinicalStatus: fhir.CodeableConcept{
			Coding: []fhir.Coding{
				{System: fhir.SystemConditionClinical, Code: status},
			},
		},
		Code: fhir.CodeableConcept{
			Coding: coded.Codings,
			Text:   coded.Text,
		},
		Subject:   subject,
		Encounter: encounter,
	}
}

func (b *Builder) buildMedicationRequest(med extraction.Medication, subject, encounter fhir.Reference) *fhir.MedicationRequest {
	coded := terminology.MapTerm(terminology.CategoryMedication, med.Text)

	dosage := fhir.Dosage{Text: med.Dosage}
	if route, ok := routeCodeMap[strings.ToLower(med.Route)]; ok {
		dosage.Route = &fhir.CodeableConcept{Coding: []fhir.Coding{route}, Text: med.Route}
	} else if med.Route != "" {
		dosage.Route = &fhir.CodeableConcept{Text: med.Route}
	}
	if med.Frequency != "" {
		dosage.Timing = &fhir.Timing{Code: &fhir.CodeableConcept{Text: med.Frequency}}
	}

	req := &fhir.MedicationRequest{
		ResourceType: fhir.TypeMedicationRequest,
		ID:           b.newID(),
		Status:       "active",
		Intent:       "order",
		MedicationCodeableConcept: fhir.CodeableConcept{
			Coding: coded.Codings,
			Text:   coded.Text,
		},
		Subject:           subject,
		Encounter:         encounter,
		DosageInstruction: []fhir.Dosage{dosage},
	}
	if med.Reason != "" {
		req.ReasonCode = []fhir.CodeableConcept{{Text: med.Reason}}
	}
	return req
}

func (b *Builder) buildAllergy(al extraction.Allergy, subject fhir.Reference) *fhir.AllergyIntolerance {
	severity := strings.ToLower(al.Severity)
	switch severity {
	case "mild", "moderate", "severe":
	default:
		severity = ""
	}

	return &fhir.AllergyIntolerance{
		ResourceType: fhir.TypeAllergyIntolerance,
		ID:           b.newID(),
		ClinicalStatus: fhir.CodeableConcept{
			Coding: []fhir.Coding{
				{System: fhir.SystemAllergyClinical, Code: "active"},
			},
		},
		VerificationStatus: fhir.CodeableConcept{
			Coding: []fhir.Coding{
				{System: fhir.SystemAllergyVerification, Code: "unconfirmed"},
			},
		},
		Code: fhir.CodeableConcept{
			Coding: []fhir.Coding{
				{System: fhir.SystemSNOMED, Display: al.Substance},
			},
			Text: al.Substance,
		},
		Patient: subject,
		Reaction: []fhir.AllergyReaction{
			{
				Manifestation: []fhir.CodeableConcept{{Text: al.Reaction}},
				Severity:      severity,
			},
		},
	}
}
