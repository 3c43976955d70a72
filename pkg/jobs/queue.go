package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull is returned by Enqueue when the buffer has no free slot.
	ErrQueueFull = errors.New("queue full")
	// ErrQueueClosed is returned once Stop has been called.
	ErrQueueClosed = errors.New("queue closed")
	// ErrQueueNotStarted is returned when Enqueue runs before Start.
	ErrQueueNotStarted = errors.New("queue not started")
)

// Job represents a queued background task.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Attempt  int
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
	// OnGiveUp runs once for every job the queue abandons, including retries lost to a
	// full or stopped queue.
	OnGiveUp func(job Job, err error)
}

// Stats is a point-in-time view of queue pressure.
type Stats struct {
	Pending   int
	Capacity  int
	Processed int64
	Failed    int64
	Dropped   int64
}

// Queue is a bounded in-memory job dispatcher backed by goroutines. Enqueue never
// blocks: a full buffer rejects the job and counts it as dropped.
type Queue struct {
	name    string
	handler Handler

	workers    int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
	onGiveUp   func(Job, error)

	jobs   chan Job
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup

	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewQueue builds a new queue with the provided handler.
func NewQueue(name string, handler Handler, cfg QueueConfig) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Queue{
		name:       name,
		handler:    handler,
		workers:    cfg.Workers,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		onGiveUp:   cfg.OnGiveUp,
		jobs:       make(chan Job, cfg.BufferSize),
	}
}

// Name returns the queue name used in logs.
func (q *Queue) Name() string {
	return q.name
}

// Start begins worker consumption. Safe to call once.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.ctx, q.cancel = context.WithCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i + 1)
	}
	q.started = true
	q.logger.Sugar().Infow("queue started", "queue", q.name, "workers", q.workers, "capacity", cap(q.jobs))
}

// Stop refuses new jobs, lets workers drain what is buffered and waits up to timeout.
// Jobs still pending when the timeout elapses are abandoned.
func (q *Queue) Stop(timeout time.Duration) error {
	q.mu.Lock()
	if !q.started || q.closed {
		q.closed = true
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-done:
		q.cancel()
		q.logger.Sugar().Infow("queue stopped", "queue", q.name, "processed", q.processed.Load(), "dropped", q.dropped.Load())
		return nil
	case <-timer:
		q.cancel()
		pending := len(q.jobs)
		q.logger.Sugar().Warnw("queue stop timed out", "queue", q.name, "pending", pending)
		return fmt.Errorf("queue %s: stop timed out with %d pending jobs", q.name, pending)
	}
}

// Enqueue offers a job without blocking.
func (q *Queue) Enqueue(job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}
	if !q.started {
		return ErrQueueNotStarted
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now().UTC()
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		q.dropped.Add(1)
		return ErrQueueFull
	}
}

// Stats reports queue depth and counters.
func (q *Queue) Stats() Stats {
	return Stats{
		Pending:   len(q.jobs),
		Capacity:  cap(q.jobs),
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
		Dropped:   q.dropped.Load(),
	}
}

func (q *Queue) worker(workerID int) {
	defer q.wg.Done()
	for job := range q.jobs {
		if err := q.run(job); err != nil {
			q.handleFailure(workerID, job, err)
			continue
		}
		q.processed.Add(1)
	}
}

func (q *Queue) run(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return q.handler(q.ctx, job)
}

func (q *Queue) handleFailure(workerID int, job Job, err error) {
	job.Attempt++
	if job.Attempt > q.maxRetries {
		q.logger.Sugar().Errorw("job exceeded retries", "queue", q.name, "worker", workerID, "job_id", job.ID, "type", job.Type, "error", err)
		q.giveUp(job, err)
		return
	}
	q.logger.Sugar().Warnw("job failed, retrying", "queue", q.name, "worker", workerID, "job_id", job.ID, "type", job.Type, "attempt", job.Attempt, "error", err)

	go func(j Job, cause error) {
		timer := time.NewTimer(q.retryDelay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
			q.logger.Sugar().Warnw("retry abandoned on shutdown", "queue", q.name, "job_id", j.ID, "type", j.Type)
			q.giveUp(j, fmt.Errorf("retry abandoned: %w (last error: %v)", q.ctx.Err(), cause))
		case <-timer.C:
			if rerr := q.Enqueue(j); rerr != nil {
				q.logger.Sugar().Errorw("failed to requeue job", "queue", q.name, "job_id", j.ID, "error", rerr)
				q.giveUp(j, fmt.Errorf("requeue failed: %w (last error: %v)", rerr, cause))
			}
		}
	}(job, err)
}

func (q *Queue) giveUp(job Job, err error) {
	q.failed.Add(1)
	if q.onGiveUp == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Sugar().Errorw("give-up callback panicked", "queue", q.name, "job_id", job.ID, "panic", r)
		}
	}()
	q.onGiveUp(job, err)
}
