package terminology

import (
	"testing"

	fhir "github.com/clinscribe/go-scribe/internal/fhir/r4"
)

func TestMapTermCondition(t *testing.T) {
	term := MapTerm(CategoryCondition, "Hypertension")
	if !term.Found {
		t.Fatal("expected hypertension to map")
	}
	if term.Text != "Hypertension" {
		t.Errorf("original text must be preserved, got %q", term.Text)
	}

	var icd10, snomed string
	for _, c := range term.Codings {
		switch c.System {
		case fhir.SystemICD10:
			icd10 = c.Code
		case fhir.SystemSNOMED:
			snomed = c.Code
		}
	}
	if icd10 != "I10" {
		t.Errorf("expected ICD-10 I10, got %q", icd10)
	}
	if snomed != "59621000" {
		t.Errorf("expected SNOMED 59621000, got %q", snomed)
	}
}

func TestMapTermMedication(t *testing.T) {
	term := MapTerm(CategoryMedication, "Lisinopril")
	if !term.Found {
		t.Fatal("expected lisinopril to map")
	}

	var rxnorm string
	for _, c := range term.Codings {
		if c.System == fhir.SystemRxNorm {
			rxnorm = c.Code
		}
	}
	if rxnorm != "21600" {
		t.Errorf("expected RxNorm 21600, got %q", rxnorm)
	}
}

func TestMapTermNormalizesWhitespaceAndCase(t *testing.T) {
	term := MapTerm(CategoryCondition, "  High   Blood  Pressure ")
	if !term.Found {
		t.Fatalf("expected normalized lookup to succeed, got %+v", term)
	}
}

// An unmapped term falls back to a text-only coding; it is never an error.
func TestMapTermUnknownFallsBackToText(t *testing.T) {
	term := MapTerm(CategoryCondition, "fibromyalgia flare")
	if term.Found {
		t.Error("unexpected mapping for unknown term")
	}
	if term.Text != "fibromyalgia flare" {
		t.Errorf("expected original text preserved, got %q", term.Text)
	}
	if len(term.Codings) != 0 {
		t.Errorf("expected no codings, got %+v", term.Codings)
	}
}

func TestMapTermCategoryIsolation(t *testing.T) {
	// A medication name looked up as a condition must miss.
	if term := MapTerm(CategoryCondition, "aspirin"); term.Found {
		t.Error("aspirin should not resolve in the condition table")
	}
}
