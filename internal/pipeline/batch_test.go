package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/clinscribe/go-scribe/internal/extraction"
	"github.com/clinscribe/go-scribe/internal/gate"
	"github.com/clinscribe/go-scribe/pkg/workerpool"
)

func TestProcessBatchIsolatesFailures(t *testing.T) {
	// Fail extraction transiently for conversations mentioning "flaky".
	extractor := &extractorFunc{fn: func(_ context.Context, maskedText, _ string) (*extraction.ClinicalEntities, error) {
		if strings.Contains(maskedText, "flaky") {
			return nil, &extraction.TransientError{Cause: errors.New("service unavailable")}
		}
		return confidentEntities(), nil
	}}

	p := newTestProcessor(t, extractor, &memRecorder{}, &memSink{})
	batch, err := NewBatchProcessor(p, workerpool.Config{Workers: 4, QueueSize: 16}, zap.NewNop())
	if err != nil {
		t.Fatalf("batch processor creation failed: %v", err)
	}
	defer batch.Close()

	items := batch.ProcessBatch(context.Background(), []string{
		"Patient Maria Garcia presents with cough.",
		"flaky conversation about nothing in particular",
		"Patient Robert Jones reports chest pain.",
	})

	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	if items[0].Err != nil || items[0].Result == nil {
		t.Errorf("item 0 should succeed: %v", items[0].Err)
	}
	if items[1].Err == nil {
		t.Error("item 1 should fail")
	}
	if items[2].Err != nil || items[2].Result == nil {
		t.Errorf("item 2 should succeed despite sibling failure: %v", items[2].Err)
	}

	for _, i := range []int{0, 2} {
		if items[i].Result.State != gate.StateAutoAccepted {
			t.Errorf("item %d state %s, want auto_accepted", i, items[i].Result.State)
		}
	}
}

func TestProcessBatchPreservesInputOrder(t *testing.T) {
	p := newTestProcessor(t, &fakeExtractor{entities: confidentEntities()}, &memRecorder{}, nil)
	batch, err := NewBatchProcessor(p, workerpool.Config{Workers: 8, QueueSize: 64}, zap.NewNop())
	if err != nil {
		t.Fatalf("batch processor creation failed: %v", err)
	}
	defer batch.Close()

	conversations := make([]string, 20)
	for i := range conversations {
		conversations[i] = "Patient reports mild headache and fatigue today."
	}

	items := batch.ProcessBatch(context.Background(), conversations)
	if len(items) != len(conversations) {
		t.Fatalf("expected %d items, got %d", len(conversations), len(items))
	}
	seen := map[string]bool{}
	for i, item := range items {
		if item.Index != i {
			t.Errorf("item at position %d carries index %d", i, item.Index)
		}
		if item.Err != nil {
			t.Errorf("item %d failed: %v", i, item.Err)
			continue
		}
		if seen[item.Result.TransactionID] {
			t.Errorf("duplicate transaction id %s", item.Result.TransactionID)
		}
		seen[item.Result.TransactionID] = true
	}
}
