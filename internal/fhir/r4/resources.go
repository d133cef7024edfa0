package r4

// Resource is implemented by every typed FHIR resource the pipeline builds.
// ResourceID returns the logical id; References returns every reference field
// so the bundle validator can check resolution without type switches.
type Resource interface {
	ResourceName() string
	ResourceID() string
	References() []Reference
}

// Patient represents a FHIR R4 Patient resource. The pipeline only ever emits
// de-identified patients: the name is the redaction placeholder and gender is
// unknown.
type Patient struct {
	ResourceType string      `json:"resourceType"`
	ID           string      `json:"id"`
	Meta         *Meta       `json:"meta,omitempty"`
	Name         []HumanName `json:"name,omitempty"`
	Gender       string      `json:"gender,omitempty"`
	BirthDate    string      `json:"birthDate,omitempty"`
}

func (p *Patient) ResourceName() string    { return TypePatient }
func (p *Patient) ResourceID() string      { return p.ID }
func (p *Patient) References() []Reference { return nil }

// Encounter represents a FHIR R4 Encounter resource.
type Encounter struct {
	ResourceType string            `json:"resourceType"`
	ID           string            `json:"id"`
	Meta         *Meta             `json:"meta,omitempty"`
	Status       string            `json:"status"`
	Class        Coding            `json:"class"`
	Type         []CodeableConcept `json:"type,omitempty"`
	Subject      Reference         `json:"subject"`
	Period       *Period           `json:"period,omitempty"`
	ReasonCode   []CodeableConcept `json:"reasonCode,omitempty"`
}

func (e *Encounter) ResourceName() string { return TypeEncounter }
func (e *Encounter) ResourceID() string   { return e.ID }
func (e *Encounter) References() []Reference {
	return []Reference{e.Subject}
}

// Condition represents a FHIR R4 Condition resource.
type Condition struct {
	ResourceType   string          `json:"resourceType"`
	ID             string          `json:"id"`
	Meta           *Meta           `json:"meta,omitempty"`
	ClinicalStatus CodeableConcept `json:"clinicalStatus"`
	Code           CodeableConcept `json:"code"`
	Subject        Reference       `json:"subject"`
	Encounter      Reference       `json:"encounter"`
}

func (c *Condition) ResourceName() string { return TypeCondition }
func (c *Condition) ResourceID() string   { return c.ID }
func (c *Condition) References() []Reference {
	return []Reference{c.Subject, c.Encounter}
}

// ClinicalStatusCode returns the first clinicalStatus coding code.
func (c *Condition) ClinicalStatusCode() string {
	if len(c.ClinicalStatus.Coding) == 0 {
		return ""
	}
	return c.ClinicalStatus.Coding[0].Code
}

// MedicationRequest represents a FHIR R4 MedicationRequest resource.
type MedicationRequest struct {
	ResourceType              string            `json:"resourceType"`
	ID                        string            `json:"id"`
	Meta                      *Meta             `json:"meta,omitempty"`
	Status                    string            `json:"status"`
	Intent                    string            `json:"intent"`
	MedicationCodeableConcept CodeableConcept   `json:"medicationCodeableConcept"`
	Subject                   Reference         `json:"subject"`
	Encounter                 Reference         `json:"encounter"`
	DosageInstruction         []Dosage          `json:"dosageInstruction,omitempty"`
	ReasonCode                []CodeableConcept `json:"reasonCode,omitempty"`
	Note                      []Annotation      `json:"note,omitempty"`
}

func (m *MedicationRequest) ResourceName() string { return TypeMedicationRequest }
func (m *MedicationRequest) ResourceID() string   { return m.ID }
func (m *MedicationRequest) References() []Reference {
	return []Reference{m.Subject, m.Encounter}
}

// MedicationDisplay returns the medication text or first coding display.
func (m *MedicationRequest) MedicationDisplay() string {
	if m.MedicationCodeableConcept.Text != "" {
		return m.MedicationCodeableConcept.Text
	}
	if len(m.MedicationCodeableConcept.Coding) > 0 {
		return m.MedicationCodeableConcept.Coding[0].Display
	}
	return ""
}

// AllergyIntolerance represents a FHIR R4 AllergyIntolerance resource.
type AllergyIntolerance struct {
	ResourceType       string            `json:"resourceType"`
	ID                 string            `json:"id"`
	Meta               *Meta             `json:"meta,omitempty"`
	ClinicalStatus     CodeableConcept   `json:"clinicalStatus"`
	VerificationStatus CodeableConcept   `json:"verificationStatus"`
	Code               CodeableConcept   `json:"code"`
	Patient            Reference         `json:"patient"`
	Reaction           []AllergyReaction `json:"reaction,omitempty"`
}

func (a *AllergyIntolerance) ResourceName() string { return TypeAllergyIntolerance }
func (a *AllergyIntolerance) ResourceID() string   { return a.ID }
func (a *AllergyIntolerance) References() []Reference {
	return []Reference{a.Patient}
}

// AllergyReaction describes a reaction event for an allergy.
type AllergyReaction struct {
	Manifestation []CodeableConcept `json:"manifestation"`
	Severity      string            `json:"severity,omitempty"`
}
