package tools

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultToolConcurrency bounds tool calls running at once across sessions.
const DefaultToolConcurrency = 3

// Scheduler admits tool executions through a weighted semaphore. A permit is
// acquired after the loop decides to run a tool and held for the duration of
// that one call.
type Scheduler struct {
	sem      *semaphore.Weighted
	capacity int64
}

func NewScheduler(capacity int) *Scheduler {
	if capacity <= 0 {
		capacity = DefaultToolConcurrency
	}
	return &Scheduler{sem: semaphore.NewWeighted(int64(capacity)), capacity: int64(capacity)}
}

// AcquireTool blocks until a permit is free or ctx is done. The returned
// release function must be called exactly once.
func (s *Scheduler) AcquireTool(ctx context.Context) (func(), error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { s.sem.Release(1) }, nil
}

// TryAcquireTool acquires without blocking.
func (s *Scheduler) TryAcquireTool() (func(), bool) {
	if !s.sem.TryAcquire(1) {
		return nil, false
	}
	return func() { s.sem.Release(1) }, true
}

func (s *Scheduler) Capacity() int { return int(s.capacity) }
