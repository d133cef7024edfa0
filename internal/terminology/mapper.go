// Package terminology maps free-text clinical terms to standard code systems.
// Tables are static and loaded once; extension happens by shipping updated
// tables, never by runtime mutation.
package terminology

import (
	"strings"

	fhir "github.com/clinscribe/go-scribe/internal/fhir/r4"
)

// Category selects which lookup table a term is resolved against.
type Category string

const (
	CategoryCondition  Category = "condition"
	CategoryMedication Category = "medication"
)

// CodedTerm is a clinical term with zero or more terminology codings.
// An unmapped term carries only its original text.
type CodedTerm struct {
	Text    string
	Codings []fhir.Coding
	Found   bool
}

type codes struct {
	icd10  string
	snomed string
	rxnorm string
}

var conditionCodes = map[string]codes{
	"high blood pressure":         {icd10: "I10", snomed: "59621000"},
	"hypertension":                {icd10: "I10", snomed: "59621000"},
	"diabetes":                    {icd10: "E11.9", snomed: "44054006"},
	"type 2 diabetes":             {icd10: "E11.9", snomed: "44054006"},
	"heart failure":               {icd10: "I50", snomed: "84114007"},
	"pneumonia":                   {icd10: "J18.9", snomed: "233604007"},
	"upper respiratory infection": {icd10: "J06.9", snomed: "54150009"},
	"anxiety":                     {icd10: "F41.9", snomed: "48694002"},
	"headache":                    {icd10: "R51.9", snomed: "25064002"},
	"chest pain":                  {icd10: "R07.9", snomed: "29650007"},
	"cough":                       {icd10: "R05.9", snomed: "13645005"},
	"fatigue":                     {icd10: "R53.83", snomed: "84216000"},
	"shortness of breath":         {icd10: "R06.02", snomed: "267036007"},
	"neuropathy":                  {icd10: "G89.29", snomed: "386033004"},
	"edema":                       {icd10: "R60.9", snomed: "267038008"},
}

var medicationCodes = map[string]codes{
	"aspirin":             {rxnorm: "1191", snomed: "387458008"},
	"metformin":           {rxnorm: "6809", snomed: "372567009"},
	"lisinopril":          {rxnorm: "21600", snomed: "386876001"},
	"amlodipine":          {rxnorm: "17767", snomed: "386929003"},
	"atorvastatin":        {rxnorm: "83367", snomed: "412263009"},
	"sertraline":          {rxnorm: "36437", snomed: "372588000"},
	"albuterol":           {rxnorm: "435", snomed: "372897005"},
	"hydrochlorothiazide": {rxnorm: "5487", snomed: "366333007"},
	"atenolol":            {rxnorm: "733", snomed: "372495000"},
	"acetaminophen":       {rxnorm: "161", snomed: "372348007"},
	"ibuprofen":           {rxnorm: "5640", snomed: "373025003"},
	"amoxicillin":         {rxnorm: "2230", snomed: "372687004"},
	"glipizide":           {rxnorm: "4821", snomed: "386228008"},
	"insulin":             {rxnorm: "5856", snomed: "325072002"},
}

// MapTerm resolves a term against the category's table using an exact match
// on the normalized key. Unmapped terms return a text-only CodedTerm; the
// pipeline must never block on unknown clinical vocabulary.
func MapTerm(category Category, text string) CodedTerm {
	key := normalize(text)
	term := CodedTerm{Text: text}

	var c codes
	var ok bool
	switch category {
	case CategoryCondition:
		c, ok = conditionCodes[key]
	case CategoryMedication:
		c, ok = medicationCodes[key]
	}
	if !ok {
		return term
	}

	term.Found = true
	if c.icd10 != "" {
		term.Codings = append(term.Codings, fhir.Coding{
			System:  fhir.SystemICD10,
			Code:    c.icd10,
			Display: text,
		})
	}
	if c.rxnorm != "" {
		term.Codings = append(term.Codings, fhir.Coding{
			System:  fhir.SystemRxNorm,
			Code:    c.rxnorm,
			Display: text,
		})
	}
	if c.snomed != "" {
		term.Codings = append(term.Codings, fhir.Coding{
			System:  fhir.SystemSNOMED,
			Code:    c.snomed,
			Display: text,
		})
	}
	return term
}

// normalize lowercases and collapses internal whitespace so lookup keys are
// insensitive to formatting differences in extracted text.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
