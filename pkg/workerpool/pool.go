// Package workerpool provides a bounded worker pool for controlled
// concurrency during batch note processing.
package workerpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task represents a unit of work to be processed.
type Task struct {
	ID      string
	Payload interface{}
	Context context.Context

	// done receives the task's result exactly once. Nil for fire-and-forget
	// submissions.
	done chan *Result
}

// Result represents the outcome of task processing.
type Result struct {
	TaskID  string
	Success bool
	Error   error
	Data    interface{}
}

// WorkerFunc is the function signature for task processing.
type WorkerFunc func(ctx context.Context, task *Task) *Result

// Config holds worker pool configuration.
type Config struct {
	// Workers is the number of concurrent workers.
	Workers int
	// QueueSize is the size of the task queue.
	QueueSize int
	// GracefulShutdownTimeout is the timeout for graceful shutdown.
	GracefulShutdownTimeout time.Duration
}

// DefaultConfig returns defaults sized for note batches. Extraction calls
// dominate task latency, so the worker count bounds concurrent calls to the
// extraction service rather than CPU use.
func DefaultConfig() Config {
	return Config{
		Workers:                 8,
		QueueSize:               1024,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}

// Pool manages a pool of workers for concurrent task processing. Each task
// carries its own result channel, so concurrent SubmitWait callers never see
// each other's results.
type Pool struct {
	config     Config
	workerFunc WorkerFunc
	logger     *zap.Logger

	taskChan chan *Task
	wg       sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards stopped and orders submissions against the channel close:
	// enqueue sends under RLock, Stop closes under Lock, so a send can never
	// race the close.
	mu      sync.RWMutex
	stopped bool

	// Metrics
	tasksSubmitted int64
	tasksCompleted int64
	tasksFailed    int64
	activeWorkers  int64
	queueDepth     int64
}

// New creates a new worker pool.
func New(cfg Config, fn WorkerFunc, logger *zap.Logger) (*Pool, error) {
	if fn == nil {
		return nil, fmt.Errorf("worker function is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		config:     cfg,
		workerFunc: fn,
		logger:     logger,
		taskChan:   make(chan *Task, cfg.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start launches all workers.
func (p *Pool) Start() {
	for i := 0; i < p.config.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.logger.Info("worker pool started",
		zap.Int("workers", p.config.Workers),
		zap.Int("queue_size", p.config.QueueSize))
}

// Submit adds a task to the queue without waiting for its result.
func (p *Pool) Submit(task *Task) error {
	return p.enqueue(task)
}

// SubmitWait adds a task and blocks until its result is available or ctx is
// cancelled. The task still runs to completion after cancellation; only the
// wait is abandoned.
func (p *Pool) SubmitWait(ctx context.Context, task *Task) (*Result, error) {
	task.done = make(chan *Result, 1)
	if err := p.enqueue(task); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-task.done:
		return result, nil
	}
}

func (p *Pool) enqueue(task *Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return fmt.Errorf("pool is shutting down")
	}

	select {
	case p.taskChan <- task:
		atomic.AddInt64(&p.tasksSubmitted, 1)
		atomic.AddInt64(&p.queueDepth, 1)
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

// Stop gracefully shuts down the pool: no new submissions are accepted,
// queued tasks drain, and workers exit.
func (p *Pool) Stop() error {
	p.logger.Info("stopping worker pool")
	p.cancel()

	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.taskChan)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-time.After(p.config.GracefulShutdownTimeout):
		p.logger.Warn("worker pool shutdown timed out")
	}
	return nil
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	atomic.AddInt64(&p.activeWorkers, 1)
	defer atomic.AddInt64(&p.activeWorkers, -1)

	for task := range p.taskChan {
		atomic.AddInt64(&p.queueDepth, -1)
		p.processTask(id, task)
	}
}

func (p *Pool) processTask(workerID int, task *Task) {
	ctx := task.Context
	if ctx == nil {
		ctx = p.ctx
	}

	var result *Result
	select {
	case <-ctx.Done():
		result = &Result{TaskID: task.ID, Success: false, Error: ctx.Err()}
	default:
		result = p.workerFunc(ctx, task)
	}

	if result.Success {
		atomic.AddInt64(&p.tasksCompleted, 1)
	} else {
		atomic.AddInt64(&p.tasksFailed, 1)
		p.logger.Error("task failed",
			zap.String("task_id", task.ID),
			zap.Int("worker_id", workerID),
			zap.Error(result.Error))
	}

	if task.done != nil {
		task.done <- result
	}
}

// Stats holds current pool statistics.
type Stats struct {
	TasksSubmitted int64
	TasksCompleted int64
	TasksFailed    int64
	ActiveWorkers  int64
	QueueDepth     int64
	QueueCapacity  int
	Workers        int
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	return Stats{
		TasksSubmitted: atomic.LoadInt64(&p.tasksSubmitted),
		TasksCompleted: atomic.LoadInt64(&p.tasksCompleted),
		TasksFailed:    atomic.LoadInt64(&p.tasksFailed),
		ActiveWorkers:  atomic.LoadInt64(&p.activeWorkers),
		QueueDepth:     atomic.LoadInt64(&p.queueDepth),
		QueueCapacity:  p.config.QueueSize,
		Workers:        p.config.Workers,
	}
}

// IsHealthy returns true if the pool is operating normally.
func (p *Pool) IsHealthy() bool {
	stats := p.Stats()
	return float64(stats.QueueDepth)/float64(stats.QueueCapacity) < 0.9
}
