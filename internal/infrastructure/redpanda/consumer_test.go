package redpanda

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Offsets are committed right after dispatch returns, so dispatch must not
// return while any record handler is still running.
func TestDispatchReturnsAfterEveryHandler(t *testing.T) {
	records := make([]*kgo.Record, 10)
	for i := range records {
		records[i] = &kgo.Record{Offset: int64(i)}
	}

	var handled atomic.Int64
	dispatch(records, func(*kgo.Record) {
		time.Sleep(5 * time.Millisecond)
		handled.Add(1)
	})

	if handled.Load() != int64(len(records)) {
		t.Fatalf("dispatch returned with %d of %d handlers complete", handled.Load(), len(records))
	}
}

func TestDispatchHandlesEmptyPoll(t *testing.T) {
	called := false
	dispatch(nil, func(*kgo.Record) { called = true })
	if called {
		t.Error("handler must not run for an empty poll")
	}
}
