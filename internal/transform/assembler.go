package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	fhir "github.com/clinscribe/go-scribe/internal/fhir/r4"
)

// ValidationError describes a single bundle validation failure.
type ValidationError struct {
	ResourceType string `json:"resource_type"`
	Field        string `json:"field,omitempty"`
	Message      string `json:"message"`
}

func (e ValidationError) String() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.ResourceType, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s", e.ResourceType, e.Field, e.Message)
}

// ValidationResult is the outcome of validating a bundle. A failed
// validation is recorded and feeds the confidence gate; it does not by
// itself abort the transaction.
type ValidationResult struct {
	Passed bool              `json:"passed"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Assembler aggregates resources into transaction bundles and validates
// their integrity.
type Assembler struct {
	now func() time.Time
}

// NewAssembler creates an assembler stamping bundles with wall-clock time.
func NewAssembler() *Assembler {
	return &Assembler{now: time.Now}
}

// NewAssemblerWithClock creates an assembler with a fixed clock source.
func NewAssemblerWithClock(now func() time.Time) *Assembler {
	return &Assembler{now: now}
}

// Assemble wraps a resource set into a FHIR R4 transaction bundle. Entry
// order follows ResourceSet.All; each entry gets a urn:uuid fullUrl and a
// POST request stanza.
func (a *Assembler) Assemble(set *ResourceSet, transactionID string) *fhir.Bundle {
	ts := a.now().UTC()
	bundle := &fhir.Bundle{
		ResourceType: "Bundle",
		ID:           uuid.NewString(),
		Type:         "transaction",
		Timestamp:    &ts,
		Meta: &fhir.Meta{
			Source:        "go-scribe",
			TransactionID: transactionID,
		},
	}

	for _, res := range set.All() {
		bundle.Entry = append(bundle.Entry, fhir.BundleEntry{
			FullURL:  "urn:uuid:" + res.ResourceID(),
			Resource: res,
			Request: &fhir.BundleRequest{
				Method: "POST",
				URL:    res.ResourceName(),
			},
		})
	}

	return bundle
}

// Validate checks referential integrity and required-field completeness.
// It never mutates the bundle. Checks: every reference resolves within the
// bundle, Patient and Encounter each appear exactly once, and each resource
// carries its type-required fields.
func (a *Assembler) Validate(bundle *fhir.Bundle) ValidationResult {
	var errs []ValidationError

	if bundle.ResourceType != "Bundle" {
		errs = append(errs, ValidationError{ResourceType: "Bundle", Field: "resourceType", Message: "must be Bundle"})
	}
	if bundle.Type != "transaction" {
		errs = append(errs, ValidationError{ResourceType: "Bundle", Field: "type", Message: "must be transaction"})
	}
	if len(bundle.Entry) == 0 {
		errs = append(errs, ValidationError{ResourceType: "Bundle", Field: "entry", Message: "must contain at least one entry"})
		return ValidationResult{Passed: false, Errors: errs}
	}

	ids := make(map[string]string, len(bundle.Entry))
	counts := bundle.CountByType()

	for _, entry := range bundle.Entry {
		res := entry.Resource
		if res.ResourceID() == "" {
			errs = append(errs, ValidationError{ResourceType: res.ResourceName(), Field: "id", Message: "missing identifier"})
			continue
		}
		ids[res.ResourceID()] = res.ResourceName()
	}

	for _, required := range []string{fhir.TypePatient, fhir.TypeEncounter} {
		if counts[required] != 1 {
			errs = append(errs, ValidationError{
				ResourceType: required,
				Message:      fmt.Sprintf("must appear exactly once, found %d", counts[required]),
			})
		}
	}

	for _, entry := range bundle.Entry {
		res := entry.Resource
		for _, ref := range res.References() {
			if ref.Reference == "" {
				errs = append(errs, ValidationError{ResourceType: res.ResourceName(), Field: "reference", Message: "empty reference"})
				continue
			}
			target := referenceID(ref.Reference)
			if _, ok := ids[target]; !ok {
				errs = append(errs, ValidationError{
					ResourceType: res.ResourceName(),
					Field:        "reference",
					Message:      fmt.Sprintf("reference %q does not resolve within the bundle", ref.Reference),
				})
			}
		}
		errs = append(errs, requiredFieldErrors(res)...)
	}

	return ValidationResult{Passed: len(errs) == 0, Errors: errs}
}

// requiredFieldErrors checks type-specific required fields.
func requiredFieldErrors(res fhir.Resource) []ValidationError {
	var errs []ValidationError
	missing := func(field string) {
		errs = append(errs, ValidationError{ResourceType: res.ResourceName(), Field: field, Message: "required field is empty"})
	}

	switch r := res.(type) {
	case *fhir.Patient:
		if len(r.Name) == 0 || r.Name[0].Text == "" {
			missing("name")
		}
	case *fhir.Encounter:
		if r.Status == "" {
			missing("status")
		}
		if r.Class.Code == "" {
			missing("class")
		}
	case *fhir.Condition:
		if r.ClinicalStatusCode() == "" {
			missing("clinicalStatus")
		}
		if r.Code.Text == "" {
			missing("code.text")
		}
	case *fhir.MedicationRequest:
		if r.Status == "" {
			missing("status")
		}
		if r.Intent == "" {
			missing("intent")
		}
		if r.MedicationDisplay() == "" {
			missing("medicationCodeableConcept")
		}
	case *fhir.AllergyIntolerance:
		if r.Code.Text == "" {
			missing("code.text")
		}
	}
	return errs
}

// referenceID extracts the logical id from "Patient/123" or "urn:uuid:123".
func referenceID(ref string) string {
	if i := strings.LastIndexAny(ref, "/:"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
