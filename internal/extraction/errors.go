package extraction

import "fmt"

// SchemaError indicates the collaborator returned a response that does not
// conform to the ClinicalEntities schema. Not retryable; the transaction is
// rejected.
type SchemaError struct {
	TransactionID string
	Violations    []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("extraction response failed schema validation (%d violations): %v",
		len(e.Violations), e.Violations)
}

// TransientError indicates a network or service failure. Eligible for
// caller-level retry with backoff.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("extraction service unavailable: %v", e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }
