// Package deid provides pattern-based PHI detection and masking for clinical
// conversation text. All text leaving the system for entity extraction must
// pass through Deidentify first.
package deid

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Category identifies a class of protected health information.
type Category string

const (
	CategoryTitleReference Category = "title_reference"
	CategoryName           Category = "name"
	CategoryDate           Category = "date"
	CategoryIdentifier     Category = "identifier_number"
	CategoryPhone          Category = "phone"
	CategoryEmail          Category = "email"
	CategoryAddress        Category = "address"
	CategoryAgeReference   Category = "age_reference"
)

// ErrInvalidInput indicates the redactor was given malformed input.
var ErrInvalidInput = errors.New("deid: input is not valid text")

// RedactionAudit records what was masked in a single Deidentify call.
// Immutable once returned.
type RedactionAudit struct {
	Redactions      map[Category]int `json:"redactions_by_category"`
	TotalRedactions int              `json:"total_redactions"`
	OriginalLength  int              `json:"original_length"`
	MaskedLength    int              `json:"masked_length"`
}

// ResidualRisk describes a detection pattern that still matches masked text.
type ResidualRisk struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
	Examples []string `json:"examples,omitempty"`
}

// ValidationReport is the outcome of re-running detection against masked text.
type ValidationReport struct {
	IsSafe        bool           `json:"is_safe"`
	ResidualRisks []ResidualRisk `json:"residual_risks,omitempty"`
}

// rule pairs a PHI category with its detection pattern and placeholder.
// Placeholders are bracketed uppercase tokens with underscores, a shape no
// detection pattern below can produce, so re-running Deidentify on masked
// text is a fixed point.
type rule struct {
	category    Category
	pattern     *regexp.Regexp
	placeholder string
}

// commonSurnames anchors full-name detection to avoid masking clinical terms
// that happen to be capitalized ("Blood Pressure", "Chest Pain").
const commonSurnames = `Smith|Johnson|Williams|Brown|Jones|Garcia|Miller|Davis|Rodriguez|Martinez|Hernandez|Lopez|Gonzalez|Wilson|Anderson|Thomas|Taylor|Moore|Jackson|Martin|Lee|Perez|Thompson|White|Harris|Sanchez|Clark|Ramirez|Lewis|Robinson|Young|Strokes|King|Wright|Long|Chavez`

// rules are applied in this exact order. Names run before titles so a titled
// full name ("Dr. John Smith") masks the whole name instead of leaving the
// surname behind; a title with a bare surname ("Dr. Smith") falls through to
// the title rule. Dates run before identifiers so "05/15/1980" is never
// consumed as a digit run.
var rules = []rule{
	{
		category:    CategoryName,
		pattern:     regexp.MustCompile(`\b[A-Z][a-z]+ (?:[A-Z][a-z]+ )?(?:` + commonSurnames + `)\b`),
		placeholder: "[NAME]",
	},
	{
		category:    CategoryTitleReference,
		pattern:     regexp.MustCompile(`\b(?:Dr|Mr|Ms|Mrs)\.?\s+[A-Z][a-z]+\b`),
		placeholder: "[TITLE_NAME]",
	},
	{
		category:    CategoryDate,
		pattern:     regexp.MustCompile(`\b(?:(?:January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\.?\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?|\d{1,2}/\d{1,2}/\d{2,4})\b`),
		placeholder: "[DATE]",
	},
	{
		category:    CategoryIdentifier,
		pattern:     regexp.MustCompile(`\b(?:(?:MRN|SSN|Record|ID)[\s:#]*\d{6,10}|\d{3}-\d{2}-\d{4})\b`),
		placeholder: "[ID_NUMBER]",
	},
	{
		category:    CategoryPhone,
		pattern:     regexp.MustCompile(`\(?\d{3}\)?[-.\s]\d{3}[-.\s]?\d{4}\b`),
		placeholder: "[PHONE]",
	},
	{
		category:    CategoryEmail,
		pattern:     regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`),
		placeholder: "[EMAIL]",
	},
	{
		category:    CategoryAddress,
		pattern:     regexp.MustCompile(`\b\d+\s+(?:North|South|East|West|N|S|E|W)?\.?\s*[A-Z][A-Za-z]*(?:\s+[A-Z][A-Za-z]*)?\s+(?:Street|St|Avenue|Ave|Road|Rd|Drive|Dr|Lane|Ln|Boulevard|Blvd|Court|Ct|Circle|Cir|Trail|Trl)\b`),
		placeholder: "[ADDRESS]",
	},
	{
		category:    CategoryAgeReference,
		pattern:     regexp.MustCompile(`\b\d{1,3}[\s-]*(?:year|yr|yo|y\.o\.)[\s-]*old\b`),
		placeholder: "[AGE]",
	},
}

// residualChecks are the looser patterns Validate runs against masked text.
// They intentionally over-match: a hit is a signal for human inspection, not
// proof of leaked PHI.
var residualChecks = []struct {
	category Category
	pattern  *regexp.Regexp
}{
	{CategoryName, regexp.MustCompile(`\b[A-Z][a-z]+ [A-Z][a-z]+\b`)},
	{CategoryDate, regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)},
	{CategoryIdentifier, regexp.MustCompile(`\b\d{6,10}\b`)},
	{CategoryEmail, regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`)},
}

// Redactor detects and masks PHI spans.
type Redactor struct{}

// NewRedactor creates a redactor with the standard category rules.
func NewRedactor() *Redactor {
	return &Redactor{}
}

// Deidentify replaces every PHI span in text with its category placeholder
// and returns the masked text plus an audit of what was removed. Finding no
// PHI is not an error; the audit is simply empty.
func (r *Redactor) Deidentify(text string) (string, RedactionAudit, error) {
	audit := RedactionAudit{
		Redactions:     make(map[Category]int),
		OriginalLength: len(text),
	}

	if text == "" || !utf8.ValidString(text) {
		return "", audit, ErrInvalidInput
	}

	masked := text
	for _, rl := range rules {
		var count int
		masked = rl.pattern.ReplaceAllStringFunc(masked, func(string) string {
			count++
			return rl.placeholder
		})
		if count > 0 {
			audit.Redactions[rl.category] = count
			audit.TotalRedactions += count
		}
	}

	audit.MaskedLength = len(masked)
	return masked, audit, nil
}

// Validate re-runs detection against already-masked text and reports any
// category whose pattern still matches. It never fails; callers decide what
// to do with an unsafe report.
func (r *Redactor) Validate(masked string) ValidationReport {
	report := ValidationReport{IsSafe: true}

	for _, check := range residualChecks {
		matches := check.pattern.FindAllString(masked, -1)
		matches = dropPlaceholderMatches(matches)
		if len(matches) == 0 {
			continue
		}
		report.IsSafe = false
		examples := matches
		if len(examples) > 3 {
			examples = examples[:3]
		}
		report.ResidualRisks = append(report.ResidualRisks, ResidualRisk{
			Category: check.category,
			Count:    len(matches),
			Examples: examples,
		})
	}

	return report
}

// dropPlaceholderMatches filters residual hits that are fragments of the
// placeholder tokens themselves.
func dropPlaceholderMatches(matches []string) []string {
	out := matches[:0]
	for _, m := range matches {
		if strings.ToUpper(m) == m && strings.Contains(m, "_") {
			continue
		}
		out = append(out, m)
	}
	return out
}
