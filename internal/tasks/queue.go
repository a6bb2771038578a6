// Package tasks is the durable background work queue: tasks submitted
// while the user is away are executed by a bounded worker pool, tracked
// through a monotonic lifecycle, and announced exactly once on completion.
package tasks

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/strandhq/strand/internal/observability"
	"github.com/strandhq/strand/pkg/models"
)

const notificationBuffer = 256

// pendingItem orders the dequeue: higher priority first, FIFO within one
// priority class.
type pendingItem struct {
	id       string
	priority models.TaskPriority
	seq      uint64
}

type pendingHeap []pendingItem

func (h pendingHeap) Len() int { return len(h) }
func (h pendingHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h pendingHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *pendingHeap) Push(x any)   { *h = append(*h, x.(pendingItem)) }
func (h *pendingHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue owns all background tasks. Memory is authoritative; when a
// database is attached every mutation is mirrored there best effort.
type Queue struct {
	mu        sync.Mutex
	tasks     map[string]*models.BackgroundTask
	userTasks map[string][]string
	pending   pendingHeap
	seq       uint64
	wake      chan struct{}

	notifications chan models.TaskNotification

	db      *taskDB
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewQueue creates a memory-only queue.
func NewQueue(logger *observability.Logger, metrics *observability.Metrics) *Queue {
	return &Queue{
		tasks:         make(map[string]*models.BackgroundTask),
		userTasks:     make(map[string][]string),
		wake:          make(chan struct{}, 1),
		notifications: make(chan models.TaskNotification, notificationBuffer),
		logger:        logger,
		metrics:       metrics,
	}
}

// NewQueueWithDB creates a durable queue backed by SQLite at path and
// restores every non-terminal task, re-enqueueing the pending ones.
func NewQueueWithDB(path string, logger *observability.Logger, metrics *observability.Metrics) (*Queue, error) {
	db, err := openTaskDB(path)
	if err != nil {
		return nil, err
	}
	q := NewQueue(logger, metrics)
	q.db = db

	restored, err := db.loadActive()
	if err != nil {
		db.Close()
		return nil, err
	}
	for _, task := range restored {
		q.tasks[task.ID] = task
		q.userTasks[task.UserID] = append(q.userTasks[task.UserID], task.ID)
		if task.Status == models.TaskPending {
			q.enqueueLocked(task)
		}
	}
	if len(restored) > 0 && logger != nil {
		logger.Info(context.Background(), "tasks_restored", "count", len(restored))
	}
	return q, nil
}

// Close releases the database handle, if any.
func (q *Queue) Close() error {
	if q.db != nil {
		return q.db.Close()
	}
	return nil
}

// Notifications delivers exactly one entry per terminal transition.
func (q *Queue) Notifications() <-chan models.TaskNotification {
	return q.notifications
}

// Submit stores the task and makes it eligible for dequeue.
func (q *Queue) Submit(task *models.BackgroundTask) string {
	q.mu.Lock()
	q.tasks[task.ID] = task
	q.userTasks[task.UserID] = append(q.userTasks[task.UserID], task.ID)
	q.enqueueLocked(task)
	q.persistLocked(task)
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.RecordTaskTransition(string(models.TaskPending), 0)
	}
	return task.ID
}

func (q *Queue) enqueueLocked(task *models.BackgroundTask) {
	q.seq++
	heap.Push(&q.pending, pendingItem{id: task.ID, priority: task.Priority, seq: q.seq})
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Dequeue blocks until a pending task id is available or ctx ends.
func (q *Queue) Dequeue(ctx context.Context) (string, bool) {
	for {
		q.mu.Lock()
		if q.pending.Len() > 0 {
			item := heap.Pop(&q.pending).(pendingItem)
			q.mu.Unlock()
			return item.id, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return "", false
		case <-q.wake:
		}
	}
}

// Get returns a copy of the task.
func (q *Queue) Get(id string) (models.BackgroundTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[id]
	if !ok {
		return models.BackgroundTask{}, false
	}
	return *task, true
}

// GetUserTasks returns copies of every task the user has submitted.
func (q *Queue) GetUserTasks(userID string) []models.BackgroundTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := q.userTasks[userID]
	out := make([]models.BackgroundTask, 0, len(ids))
	for _, id := range ids {
		if task, ok := q.tasks[id]; ok {
			out = append(out, *task)
		}
	}
	return out
}

// GetPendingTasks returns the user's non-terminal tasks.
func (q *Queue) GetPendingTasks(userID string) []models.BackgroundTask {
	all := q.GetUserTasks(userID)
	out := all[:0]
	for _, task := range all {
		if !task.Status.IsTerminal() {
			out = append(out, task)
		}
	}
	return out
}

// UpdateStatus applies one lifecycle transition. Transitions out of a
// terminal state are ignored; terminal transitions notify exactly once.
func (q *Queue) UpdateStatus(id string, status models.TaskStatus) {
	q.mu.Lock()
	task, ok := q.tasks[id]
	if !ok || task.Status.IsTerminal() {
		q.mu.Unlock()
		return
	}
	task.Status = status
	now := time.Now().UnixMilli()
	switch status {
	case models.TaskRunning:
		task.StartedAt = now
	case models.TaskCompleted, models.TaskFailed, models.TaskCancelled:
		task.CompletedAt = now
		task.Progress = 100
	}
	q.persistLocked(task)
	notification, notify := terminalNotification(task)
	duration := runDurationSeconds(task)
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.RecordTaskTransition(string(status), duration)
	}
	if notify {
		q.notifications <- notification
	}
}

// SetResult completes the task with its output.
func (q *Queue) SetResult(id, result string) {
	q.finish(id, models.TaskCompleted, result, "")
}

// SetError fails the task with a reason.
func (q *Queue) SetError(id, errText string) {
	q.finish(id, models.TaskFailed, "", errText)
}

func (q *Queue) finish(id string, status models.TaskStatus, result, errText string) {
	q.mu.Lock()
	task, ok := q.tasks[id]
	if !ok || task.Status.IsTerminal() {
		q.mu.Unlock()
		return
	}
	task.Status = status
	task.Result = result
	task.Error = errText
	task.CompletedAt = time.Now().UnixMilli()
	task.Progress = 100
	q.persistLocked(task)
	notification, _ := terminalNotification(task)
	duration := runDurationSeconds(task)
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.RecordTaskTransition(string(status), duration)
	}
	q.notifications <- notification
}

// UpdateProgress clamps progress to 0..100. Terminal tasks are left alone.
func (q *Queue) UpdateProgress(id string, progress int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.tasks[id]
	if !ok || task.Status.IsTerminal() {
		return
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	task.Progress = progress
	q.persistLocked(task)
}

// Cancel moves a pre-terminal task to cancelled. Returns false when the
// task is unknown or already finished.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	task, ok := q.tasks[id]
	if !ok || task.Status.IsTerminal() {
		q.mu.Unlock()
		return false
	}
	task.Status = models.TaskCancelled
	task.CompletedAt = time.Now().UnixMilli()
	task.Progress = 100
	q.persistLocked(task)
	notification, _ := terminalNotification(task)
	q.mu.Unlock()

	if q.metrics != nil {
		q.metrics.RecordTaskTransition(string(models.TaskCancelled), 0)
	}
	q.notifications <- notification
	return true
}

// CleanupOldTasks drops terminal tasks older than maxAge and returns how
// many were removed.
func (q *Queue) CleanupOldTasks(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge).UnixMilli()

	q.mu.Lock()
	removed := 0
	for id, task := range q.tasks {
		if task.Status.IsTerminal() && task.CompletedAt > 0 && task.CompletedAt < cutoff {
			delete(q.tasks, id)
			q.userTasks[task.UserID] = removeID(q.userTasks[task.UserID], id)
			removed++
		}
	}
	db := q.db
	q.mu.Unlock()

	if db != nil {
		if err := db.deleteOldTerminal(cutoff); err != nil && q.logger != nil {
			q.logger.Warn(context.Background(), "task_cleanup_failed", "error", err.Error())
		}
	}
	return removed
}

func (q *Queue) persistLocked(task *models.BackgroundTask) {
	if q.db == nil {
		return
	}
	if err := q.db.save(task); err != nil && q.logger != nil {
		q.logger.Warn(context.Background(), "task_persist_failed", "task_id", task.ID, "error", err.Error())
	}
}

func terminalNotification(task *models.BackgroundTask) (models.TaskNotification, bool) {
	if !task.Status.IsTerminal() {
		return models.TaskNotification{}, false
	}
	return models.TaskNotification{
		TaskID:      task.ID,
		UserID:      task.UserID,
		SessionID:   task.SessionID,
		Instruction: task.Instruction,
		Status:      task.Status,
		Result:      task.Result,
		Error:       task.Error,
	}, true
}

func runDurationSeconds(task *models.BackgroundTask) float64 {
	if task.StartedAt == 0 || task.CompletedAt == 0 {
		return 0
	}
	return float64(task.CompletedAt-task.StartedAt) / 1000
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
