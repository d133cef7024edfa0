package pipeline

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/clinscribe/go-scribe/pkg/workerpool"
)

// BatchItem is the per-conversation outcome of a batch run. Exactly one of
// Result and Err is set; a rejected transaction is still a Result.
type BatchItem struct {
	Index  int
	Result *Result
	Err    error
}

// BatchProcessor runs independent pipeline invocations over a bounded worker
// pool. Transactions share nothing, so one conversation's failure never
// aborts its siblings.
type BatchProcessor struct {
	processor *Processor
	pool      *workerpool.Pool
	logger    *zap.Logger
}

// NewBatchProcessor creates a batch processor backed by its own worker pool.
// The pool is started immediately; call Close when done.
func NewBatchProcessor(processor *Processor, cfg workerpool.Config, logger *zap.Logger) (*BatchProcessor, error) {
	if processor == nil {
		return nil, fmt.Errorf("processor is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &BatchProcessor{processor: processor, logger: logger}

	pool, err := workerpool.New(cfg, b.work, logger)
	if err != nil {
		return nil, err
	}
	b.pool = pool
	pool.Start()
	return b, nil
}

// Close drains and stops the worker pool.
func (b *BatchProcessor) Close() error {
	return b.pool.Stop()
}

// ProcessBatch runs every conversation through the pipeline concurrently and
// returns one item per input, in input order.
func (b *BatchProcessor) ProcessBatch(ctx context.Context, conversations []string) []BatchItem {
	items := make([]BatchItem, len(conversations))

	var wg sync.WaitGroup
	for i, text := range conversations {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			items[i] = b.processOne(ctx, i, text)
		}(i, text)
	}
	wg.Wait()

	return items
}

func (b *BatchProcessor) processOne(ctx context.Context, index int, text string) BatchItem {
	task := &workerpool.Task{
		ID:      fmt.Sprintf("batch-%d", index),
		Payload: text,
		Context: ctx,
	}

	result, err := b.pool.SubmitWait(ctx, task)
	if err != nil {
		return BatchItem{Index: index, Err: err}
	}
	if !result.Success {
		return BatchItem{Index: index, Err: result.Error}
	}
	return BatchItem{Index: index, Result: result.Data.(*Result)}
}

// work adapts Processor.Process to the worker pool's task signature.
func (b *BatchProcessor) work(ctx context.Context, task *workerpool.Task) *workerpool.Result {
	text, ok := task.Payload.(string)
	if !ok {
		return &workerpool.Result{
			TaskID: task.ID,
			Error:  fmt.Errorf("unexpected payload type %T", task.Payload),
		}
	}

	res, err := b.processor.Process(ctx, text)
	if err != nil {
		return &workerpool.Result{TaskID: task.ID, Error: err}
	}
	return &workerpool.Result{TaskID: task.ID, Success: true, Data: res}
}
