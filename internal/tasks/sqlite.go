package tasks

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/strandhq/strand/pkg/models"
)

const taskSchema = `
CREATE TABLE IF NOT EXISTS background_tasks (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	session_id TEXT,
	instruction TEXT NOT NULL,
	status TEXT NOT NULL,
	priority INTEGER NOT NULL,
	result TEXT,
	error TEXT,
	created_at INTEGER NOT NULL,
	started_at INTEGER,
	completed_at INTEGER,
	estimated_duration INTEGER,
	progress INTEGER NOT NULL DEFAULT 0,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_tasks_user ON background_tasks(user_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON background_tasks(status);
`

// taskDB mirrors the queue to SQLite. Every task row is written whole on
// each change; the queue treats failures as log-and-continue.
type taskDB struct {
	db *sql.DB
}

func openTaskDB(path string) (*taskDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open task db: %w", err)
	}
	if _, err := db.Exec(taskSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init task schema: %w", err)
	}
	return &taskDB{db: db}, nil
}

func (t *taskDB) Close() error { return t.db.Close() }

func (t *taskDB) save(task *models.BackgroundTask) error {
	var metadata any
	if len(task.Metadata) > 0 {
		raw, err := json.Marshal(task.Metadata)
		if err == nil {
			metadata = string(raw)
		}
	}
	_, err := t.db.Exec(
		`INSERT OR REPLACE INTO background_tasks
		 (id, user_id, session_id, instruction, status, priority, result, error,
		  created_at, started_at, completed_at, estimated_duration, progress, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.UserID, task.SessionID, task.Instruction,
		string(task.Status), int(task.Priority), task.Result, task.Error,
		task.CreatedAt, task.StartedAt, task.CompletedAt,
		task.EstimatedDuration, task.Progress, metadata)
	return err
}

// loadActive returns every non-terminal task, highest priority first and
// oldest first within one priority.
func (t *taskDB) loadActive() ([]*models.BackgroundTask, error) {
	rows, err := t.db.Query(
		`SELECT id, user_id, COALESCE(session_id, ''), instruction, status, priority,
		        COALESCE(result, ''), COALESCE(error, ''), created_at,
		        COALESCE(started_at, 0), COALESCE(completed_at, 0),
		        COALESCE(estimated_duration, 0), progress, COALESCE(metadata, '')
		 FROM background_tasks
		 WHERE status IN ('pending', 'running')
		 ORDER BY priority DESC, created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*models.BackgroundTask
	for rows.Next() {
		var task models.BackgroundTask
		var status string
		var priority int
		var metadata string
		if err := rows.Scan(
			&task.ID, &task.UserID, &task.SessionID, &task.Instruction, &status, &priority,
			&task.Result, &task.Error, &task.CreatedAt,
			&task.StartedAt, &task.CompletedAt,
			&task.EstimatedDuration, &task.Progress, &metadata); err != nil {
			return nil, err
		}
		task.Status = models.TaskStatus(status)
		task.Priority = models.TaskPriority(priority)
		if metadata != "" {
			var m map[string]string
			if err := json.Unmarshal([]byte(metadata), &m); err == nil {
				task.Metadata = m
			}
		}
		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}

func (t *taskDB) deleteOldTerminal(cutoffMillis int64) error {
	_, err := t.db.Exec(
		`DELETE FROM background_tasks
		 WHERE status IN ('completed', 'failed', 'cancelled') AND completed_at < ?`,
		cutoffMillis)
	return err
}
