package tasks

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/strandhq/strand/internal/observability"
	"github.com/strandhq/strand/pkg/models"
)

// DefaultTaskConcurrency bounds parallel background workers.
const DefaultTaskConcurrency = 2

// ProcessFunc performs the actual work of one task and returns its result
// text. Implementations usually run a full agent turn.
type ProcessFunc func(ctx context.Context, task models.BackgroundTask) (string, error)

// Executor drains the queue with a bounded worker pool. A worker
// re-fetches its task after dequeue and only runs tasks still pending, so
// cancellations that raced the dequeue are honored.
type Executor struct {
	queue   *Queue
	sem     *semaphore.Weighted
	process ProcessFunc
	logger  *observability.Logger
	wg      sync.WaitGroup
}

func NewExecutor(queue *Queue, maxConcurrent int, process ProcessFunc, logger *observability.Logger) *Executor {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultTaskConcurrency
	}
	return &Executor{
		queue:   queue,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
		process: process,
		logger:  logger,
	}
}

// Run consumes the queue until ctx ends, then waits for in-flight workers
// to finish. Intended to be launched as a goroutine.
func (e *Executor) Run(ctx context.Context) {
	for {
		id, ok := e.queue.Dequeue(ctx)
		if !ok {
			break
		}
		if err := e.sem.Acquire(ctx, 1); err != nil {
			break
		}
		// Workers keep running after shutdown starts so in-flight tasks
		// drain instead of aborting mid-way.
		workCtx := context.WithoutCancel(ctx)
		e.wg.Add(1)
		go func(taskID string) {
			defer e.wg.Done()
			defer e.sem.Release(1)
			e.runOne(workCtx, taskID)
		}(id)
	}
	e.wg.Wait()
}

// Wait blocks until all in-flight workers return. Used by the shutdown
// coordinator to drain without dropping results.
func (e *Executor) Wait() { e.wg.Wait() }

func (e *Executor) runOne(ctx context.Context, taskID string) {
	task, ok := e.queue.Get(taskID)
	if !ok || task.Status != models.TaskPending {
		return
	}

	e.queue.UpdateStatus(taskID, models.TaskRunning)
	if e.logger != nil {
		e.logger.Info(ctx, "task_started", "task_id", taskID, "user_id", task.UserID, "priority", task.Priority.String())
	}

	result, err := e.process(ctx, task)
	if err != nil {
		e.queue.SetError(taskID, err.Error())
		if e.logger != nil {
			e.logger.Warn(ctx, "task_failed", "task_id", taskID, "error", err.Error())
		}
		return
	}
	e.queue.SetResult(taskID, result)
	if e.logger != nil {
		e.logger.Info(ctx, "task_completed", "task_id", taskID)
	}
}
