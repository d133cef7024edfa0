package audit

import (
	"context"
	"errors"
	"testing"
)

type captureSink struct {
	events []Event
	err    error
}

func (s *captureSink) Record(_ context.Context, event Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func TestNewEventStampsTimestamp(t *testing.T) {
	event := NewEvent("txn-1", StageRedaction, StatusSuccess, map[string]interface{}{"total": 3})
	if event.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}
	if event.TransactionID != "txn-1" || event.Stage != StageRedaction {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestMultiRecorderDeliversToAllSinks(t *testing.T) {
	a := &captureSink{}
	b := &captureSink{}
	r := NewMultiRecorder(nil, a, b)

	event := NewEvent("txn-1", StageGate, StatusSuccess, nil)
	if err := r.Record(context.Background(), event); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("expected delivery to both sinks, got %d and %d", len(a.events), len(b.events))
	}
}

// One sink's failure never blocks another's delivery; the first error is
// still surfaced.
func TestMultiRecorderSinkFailureDoesNotBlockOthers(t *testing.T) {
	failure := errors.New("sink down")
	broken := &captureSink{err: failure}
	healthy := &captureSink{}
	r := NewMultiRecorder(nil, broken, healthy)

	err := r.Record(context.Background(), NewEvent("txn-2", StageExtraction, StatusFailed, nil))
	if !errors.Is(err, failure) {
		t.Errorf("expected first sink error surfaced, got %v", err)
	}
	if len(healthy.events) != 1 {
		t.Error("healthy sink must still receive the event")
	}
}
