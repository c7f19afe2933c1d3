package generation

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one unit of queued work.
type Task func(ctx context.Context) error

// RetryPolicy controls how often a failing task is re-run before it is given
// up on. Backoff is exponential: InitialBackoff, then doubled per attempt.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

// DefaultRetryPolicy matches the job-queue behavior the API relies on: three
// attempts with a doubling backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 5 * time.Second,
	}
}

// Queue is a bounded in-process task queue with retries. It is deliberately
// generic: it knows nothing about certificates, only tasks and a retry
// policy, so the rendering core stays decoupled from job orchestration.
type Queue struct {
	tasks   chan queuedTask
	policy  RetryPolicy
	workers int
	logger  *zap.Logger

	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type queuedTask struct {
	name      string
	run       Task
	onFailure func(error)
}

var ErrQueueFull = errors.New("task queue is full")

func NewQueue(workers, buffer int, policy RetryPolicy, logger *zap.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{
		tasks:   make(chan queuedTask, buffer),
		policy:  policy,
		workers: workers,
		logger:  logger,
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled or the
// queue is closed.
func (q *Queue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.worker(ctx)
		}
	})
}

// Submit enqueues a task. onFailure runs once, only after every retry attempt
// has been exhausted; it may be nil.
func (q *Queue) Submit(name string, task Task, onFailure func(error)) error {
	select {
	case q.tasks <- queuedTask{name: name, run: task, onFailure: onFailure}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting tasks and blocks until queued work drains.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.tasks) })
	q.wg.Wait()
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-q.tasks:
			if !ok {
				return
			}
			q.runWithRetry(ctx, task)
		}
	}
}

func (q *Queue) runWithRetry(ctx context.Context, task queuedTask) {
	backoff := q.policy.InitialBackoff
	var lastErr error

attempts:
	for attempt := 1; attempt <= q.policy.MaxAttempts; attempt++ {
		lastErr = task.run(ctx)
		if lastErr == nil {
			return
		}

		q.logger.Warn("task attempt failed",
			zap.String("task", task.name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", q.policy.MaxAttempts),
			zap.Error(lastErr))

		if attempt == q.policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
			break attempts
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	q.logger.Error("task failed permanently",
		zap.String("task", task.name),
		zap.Error(lastErr))
	if task.onFailure != nil {
		task.onFailure(lastErr)
	}
}
