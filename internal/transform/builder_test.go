package transform

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/clinscribe/go-scribe/internal/extraction"
	fhir "github.com/clinscribe/go-scribe/internal/fhir/r4"
)

// sequentialIDs returns a generator producing id-0, id-1, ... so tests can
// pin resource identity.
func sequentialIDs() IDGenerator {
	n := 0
	return func() string {
		id := fmt.Sprintf("id-%d", n)
		n++
		return id
	}
}

func sampleEntities() *extraction.ClinicalEntities {
	return &extraction.ClinicalEntities{
		ChiefComplaint: "headache and dizziness",
		VitalSigns:     extraction.VitalSigns{BloodPressure: "150/95", Temperature: "N/A", HeartRate: "88"},
		Diagnoses: []extraction.Diagnosis{
			{Text: "hypertension", Status: "active"},
		},
		Medications: []extraction.Medication{
			{Text: "lisinopril", Dosage: "10mg", Route: "oral", Frequency: "daily", Reason: "hypertension"},
		},
		Allergies: []extraction.Allergy{
			{Substance: "penicillin", Reaction: "hives", Severity: "moderate"},
		},
		AssessmentPlan:    "start lisinopril, recheck in 2 weeks",
		OverallConfidence: 92,
		FieldConfidence:   map[string]int{"diagnoses": 95},
	}
}

func TestBuildProducesCrossReferencedResources(t *testing.T) {
	b := NewBuilderWithIDs(sequentialIDs())

	set := b.Build(sampleEntities(), "txn-1")

	if set.Patient == nil || set.Encounter == nil {
		t.Fatal("expected patient and encounter")
	}
	if len(set.Conditions) != 1 || len(set.MedicationRequests) != 1 || len(set.Allergies) != 1 {
		t.Fatalf("unexpected resource counts: %+v", set)
	}

	patientRef := "Patient/" + set.Patient.ID
	encounterRef := "Encounter/" + set.Encounter.ID

	cond := set.Conditions[0]
	if cond.Subject.Reference != patientRef {
		t.Errorf("condition subject %q, want %q", cond.Subject.Reference, patientRef)
	}
	if cond.Encounter.Reference != encounterRef {
		t.Errorf("condition encounter %q, want %q", cond.Encounter.Reference, encounterRef)
	}
	if cond.ClinicalStatusCode() != fhir.ClinicalStatusActive {
		t.Errorf("expected active clinical status, got %q", cond.ClinicalStatusCode())
	}

	// hypertension resolves to ICD-10 and SNOMED codings
	var icd10 string
	for _, c := range cond.Code.Coding {
		if c.System == fhir.SystemICD10 {
			icd10 = c.Code
		}
	}
	if icd10 != "I10" {
		t.Errorf("expected ICD-10 I10 for hypertension, got %q", icd10)
	}

	med := set.MedicationRequests[0]
	if med.Subject.Reference != patientRef || med.Encounter.Reference != encounterRef {
		t.Errorf("medication request references wrong resources: %+v", med)
	}
	if med.Status != "active" || med.Intent != "order" {
		t.Errorf("unexpected medication request status/intent: %s/%s", med.Status, med.Intent)
	}
	if len(med.DosageInstruction) != 1 {
		t.Fatalf("expected one dosage instruction, got %d", len(med.DosageInstruction))
	}
	route := med.DosageInstruction[0].Route
	if route == nil || len(route.Coding) == 0 || route.Coding[0].Code != "26643006" {
		t.Errorf("expected SNOMED oral route coding, got %+v", route)
	}

	allergy := set.Allergies[0]
	if allergy.Patient.Reference != patientRef {
		t.Errorf("allergy patient %q, want %q", allergy.Patient.Reference, patientRef)
	}
	if len(allergy.Reaction) != 1 || allergy.Reaction[0].Severity != "moderate" {
		t.Errorf("unexpected allergy reaction: %+v", allergy.Reaction)
	}
}

func TestBuildPatientCarriesOnlyMaskedName(t *testing.T) {
	b := NewBuilderWithIDs(sequentialIDs())

	set := b.Build(sampleEntities(), "txn-1")
	if len(set.Patient.Name) != 1 || set.Patient.Name[0].Text != "[NAME]" {
		t.Errorf("patient must carry the masked placeholder name, got %+v", set.Patient.Name)
	}
}

// Identical entities must produce byte-identical resource content when the
// identifier source is fixed.
func TestBuildDeterministicContent(t *testing.T) {
	first := NewBuilderWithIDs(sequentialIDs()).Build(sampleEntities(), "txn-1")
	second := NewBuilderWithIDs(sequentialIDs()).Build(sampleEntities(), "txn-1")

	a, err := json.Marshal(first.All())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	b, err := json.Marshal(second.All())
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(a) != string(b) {
		t.Errorf("resource content differs across identical builds:\n%s\n%s", a, b)
	}
}

func TestBuildEmptyListsYieldPatientAndEncounterOnly(t *testing.T) {
	entities := &extraction.ClinicalEntities{
		ChiefComplaint:    "wellness visit",
		AssessmentPlan:    "routine follow-up",
		OverallConfidence: 97,
	}

	set := NewBuilder().Build(entities, "txn-2")
	all := set.All()
	if len(all) != 2 {
		t.Fatalf("expected exactly 2 resources, got %d", len(all))
	}
	if all[0].ResourceName() != fhir.TypePatient || all[1].ResourceName() != fhir.TypeEncounter {
		t.Errorf("unexpected resource order: %s, %s", all[0].ResourceName(), all[1].ResourceName())
	}
}

func TestBuildUnknownStatusAndRouteFallBack(t *testing.T) {
	entities := sampleEntities()
	entities.Diagnoses[0].Status = "suspected"
	entities.Medications[0].Route = "intrathecal"

	set := NewBuilder().Build(entities, "txn-3")

	if set.Conditions[0].ClinicalStatusCode() != fhir.ClinicalStatusActive {
		t.Errorf("unknown status must default to active, got %q", set.Conditions[0].ClinicalStatusCode())
	}
	route := set.MedicationRequests[0].DosageInstruction[0].Route
	if route == nil || route.Text != "intrathecal" || len(route.Coding) != 0 {
		t.Errorf("unknown route must fall back to text-only, got %+v", route)
	}
}

func TestBuildGeneratesUniqueUUIDs(t *testing.T) {
	set := NewBuilder().Build(sampleEntities(), "txn-4")

	seen := map[string]bool{}
	for _, res := range set.All() {
		id := res.ResourceID()
		if id == "" {
			t.Fatalf("%s has empty id", res.ResourceName())
		}
		if len(id) != 36 {
			t.Errorf("%s id %q is not a uuid", res.ResourceName(), id)
		}
		if seen[id] {
			t.Errorf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
