// Package gate decides whether a transaction is auto-accepted or routed to
// human review. The decision is a pure function of extraction confidence and
// bundle validation; callers persist the outcome.
package gate

import "sort"

// State is the terminal disposition of a transaction.
type State string

const (
	StatePending          State = "pending"
	StateAutoAccepted     State = "auto_accepted"
	StateFlaggedForReview State = "flagged_for_review"
	StateRejected         State = "rejected"
)

// Config holds the gate thresholds.
type Config struct {
	// Threshold is the minimum overall confidence for auto-acceptance.
	Threshold int
	// FieldFloor is the minimum any single field confidence may have.
	FieldFloor int
}

// DefaultConfig returns the standard gate thresholds.
func DefaultConfig() Config {
	return Config{Threshold: 85, FieldFloor: 70}
}

// Decision is the gate's outcome plus the reasons for it.
type Decision struct {
	State   State    `json:"state"`
	Reasons []string `json:"reasons,omitempty"`
}

// Decide evaluates the transition rule: auto-accept only when overall
// confidence meets the threshold, validation passed, and no field falls
// below the floor. Anything else is flagged for review. A transaction that
// hard-failed before reaching the gate never calls Decide; the pipeline
// moves it straight to rejected.
func Decide(cfg Config, overallConfidence int, fieldConfidence map[string]int, validationPassed bool) Decision {
	var reasons []string

	if overallConfidence < cfg.Threshold {
		reasons = append(reasons, "overall confidence below threshold")
	}
	if !validationPassed {
		reasons = append(reasons, "bundle validation failed")
	}
	var lowFields []string
	for field, score := range fieldConfidence {
		if score < cfg.FieldFloor {
			lowFields = append(lowFields, field)
		}
	}
	sort.Strings(lowFields)
	for _, field := range lowFields {
		reasons = append(reasons, "field confidence below floor: "+field)
	}

	if len(reasons) == 0 {
		return Decision{State: StateAutoAccepted}
	}
	return Decision{State: StateFlaggedForReview, Reasons: reasons}
}
