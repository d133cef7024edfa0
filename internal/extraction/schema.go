package extraction

import (
	"encoding/json"
	"fmt"
)

// rawResponse mirrors the collaborator wire format with pointer fields so
// missing keys are distinguishable from zero values. The typed
// ClinicalEntities value is only constructed after validation passes; raw
// collaborator data never travels deeper into the pipeline.
type rawResponse struct {
	ChiefComplaint    *string          `json:"chief_complaint"`
	VitalSigns        *rawVitals       `json:"vital_signs"`
	Diagnoses         *[]rawDiagnosis  `json:"diagnoses"`
	Medications       *[]rawMedication `json:"medications"`
	Allergies         *[]rawAllergy    `json:"allergies"`
	AssessmentPlan    *string          `json:"assessment_plan"`
	OverallConfidence *int             `json:"overall_confidence"`
	FieldConfidence   map[string]int   `json:"field_confidence"`
	ReviewFlags       []string         `json:"review_flags"`
}

type rawVitals struct {
	BloodPressure    *string `json:"blood_pressure"`
	Temperature      *string `json:"temperature"`
	HeartRate        *string `json:"heart_rate"`
	RespiratoryRate  string  `json:"respiratory_rate"`
	OxygenSaturation string  `json:"oxygen_saturation"`
}

type rawDiagnosis struct {
	Text   *string `json:"text"`
	Status *string `json:"status"`
}

type rawMedication struct {
	Text      *string `json:"text"`
	Dosage    *string `json:"dosage"`
	Route     *string `json:"route"`
	Frequency string  `json:"frequency"`
	Reason    string  `json:"reason"`
}

type rawAllergy struct {
	Substance *string `json:"substance"`
	Reaction  *string `json:"reaction"`
	Severity  string  `json:"severity"`
}

var diagnosisStatuses = map[string]bool{
	"active":   true,
	"resolved": true,
	"rule-out": true,
}

// ParseResponse validates the collaborator's JSON against the
// ClinicalEntities schema and constructs the typed value. Any missing
// required field or type violation yields a *SchemaError; the response is
// rejected, never coerced.
func ParseResponse(data []byte, transactionID string) (*ClinicalEntities, error) {
	var raw rawResponse
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &SchemaError{
			TransactionID: transactionID,
			Violations:    []string{fmt.Sprintf("response is not valid JSON: %v", err)},
		}
	}

	var violations []string
	requireString := func(field string, v *string) string {
		if v == nil {
			violations = append(violations, "missing required field: "+field)
			return ""
		}
		return *v
	}

	entities := &ClinicalEntities{
		ChiefComplaint: requireString("chief_complaint", raw.ChiefComplaint),
		AssessmentPlan: requireString("assessment_plan", raw.AssessmentPlan),
	}

	if raw.VitalSigns == nil {
		violations = append(violations, "missing required field: vital_signs")
	} else {
		entities.VitalSigns = VitalSigns{
			BloodPressure:    requireString("vital_signs.blood_pressure", raw.VitalSigns.BloodPressure),
			Temperature:      requireString("vital_signs.temperature", raw.VitalSigns.Temperature),
			HeartRate:        requireString("vital_signs.heart_rate", raw.VitalSigns.HeartRate),
			RespiratoryRate:  raw.VitalSigns.RespiratoryRate,
			OxygenSaturation: raw.VitalSigns.OxygenSaturation,
		}
	}

	if raw.Diagnoses == nil {
		violations = append(violations, "missing required field: diagnoses")
	} else {
		for i, d := range *raw.Diagnoses {
			dx := Diagnosis{
				Text:   requireString(fmt.Sprintf("diagnoses[%d].text", i), d.Text),
				Status: requireString(fmt.Sprintf("diagnoses[%d].status", i), d.Status),
			}
			if d.Status != nil && !diagnosisStatuses[*d.Status] {
				violations = append(violations,
					fmt.Sprintf("diagnoses[%d].status %q not in {active, resolved, rule-out}", i, *d.Status))
			}
			entities.Diagnoses = append(entities.Diagnoses, dx)
		}
	}

	if raw.Medications == nil {
		violations = append(violations, "missing required field: medications")
	} else {
		for i, m := range *raw.Medications {
			entities.Medications = append(entities.Medications, Medication{
				Text:      requireString(fmt.Sprintf("medications[%d].text", i), m.Text),
				Dosage:    requireString(fmt.Sprintf("medications[%d].dosage", i), m.Dosage),
				Route:     requireString(fmt.Sprintf("medications[%d].route", i), m.Route),
				Frequency: m.Frequency,
				Reason:    m.Reason,
			})
		}
	}

	if raw.Allergies == nil {
		violations = append(violations, "missing required field: allergies")
	} else {
		for i, a := range *raw.Allergies {
			entities.Allergies = append(entities.Allergies, Allergy{
				Substance: requireString(fmt.Sprintf("allergies[%d].substance", i), a.Substance),
				Reaction:  requireString(fmt.Sprintf("allergies[%d].reaction", i), a.Reaction),
				Severity:  a.Severity,
			})
		}
	}

	if raw.OverallConfidence == nil {
		violations = append(violations, "missing required field: overall_confidence")
	} else if *raw.OverallConfidence < 1 || *raw.OverallConfidence > 100 {
		violations = append(violations,
			fmt.Sprintf("overall_confidence %d outside range 1-100", *raw.OverallConfidence))
	} else {
		entities.OverallConfidence = *raw.OverallConfidence
	}

	if raw.FieldConfidence == nil {
		violations = append(violations, "missing required field: field_confidence")
	} else {
		for field, score := range raw.FieldConfidence {
			if score < 1 || score > 100 {
				violations = append(violations,
					fmt.Sprintf("field_confidence[%s] %d outside range 1-100", field, score))
			}
		}
		entities.FieldConfidence = raw.FieldConfidence
	}

	entities.ReviewFlags = raw.ReviewFlags

	if len(violations) > 0 {
		return nil, &SchemaError{TransactionID: transactionID, Violations: violations}
	}
	return entities, nil
}
