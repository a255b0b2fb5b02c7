package store

import (
	"context"
	"fmt"
	"time"
)

// Upsert atomically writes the task row and, when task.History is
// non-nil, replaces all history rows for this task with the given
// sequence (newest first in the slice, as Get returns it; only the first
// ten are kept, and reads come back in the same newest-first order).
// Applying the same task twice is idempotent.
func (s *Store) Upsert(ctx context.Context, task Task) error {
	lock := s.lockFor(task.ID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (
			id, trigger_type, trigger_config, mcp_server, mcp_tool, mcp_arguments,
			agent_prompt, enabled, status, created_at, updated_at,
			last_run, last_status, last_message, next_run
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			trigger_type = excluded.trigger_type,
			trigger_config = excluded.trigger_config,
			mcp_server = excluded.mcp_server,
			mcp_tool = excluded.mcp_tool,
			mcp_arguments = excluded.mcp_arguments,
			agent_prompt = excluded.agent_prompt,
			enabled = excluded.enabled,
			status = excluded.status,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			last_run = excluded.last_run,
			last_status = excluded.last_status,
			last_message = excluded.last_message,
			next_run = excluded.next_run
	`,
		task.ID, task.TriggerType, string(task.TriggerConfig), task.MCPServer, task.MCPTool, task.MCPArguments,
		task.AgentPrompt, boolToInt(task.Enabled), task.Status, formatTime(task.CreatedAt), formatTime(task.UpdatedAt),
		formatTimePtr(task.LastRun), task.LastStatus, task.LastMessage, formatTimePtr(task.NextRun),
	)
	if err != nil {
		return fmt.Errorf("upsert task row: %w", err)
	}

	if task.History != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_history WHERE task_id = ?`, task.ID); err != nil {
			return fmt.Errorf("clear existing history: %w", err)
		}
		history := task.History
		if len(history) > 10 {
			history = history[:10]
		}
		for i := len(history) - 1; i >= 0; i-- {
			h := history[i]
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO task_history (task_id, run_at, status, message) VALUES (?, ?, ?, ?)
			`, task.ID, formatTime(h.RunAt), h.Status, h.Message); err != nil {
				return fmt.Errorf("insert history row: %w", err)
			}
		}
	}

	return tx.Commit()
}

// Get returns a hydrated task with history attached (newest first), or
// (Task{}, false, nil) if no row exists with that id.
func (s *Store) Get(ctx context.Context, id string) (Task, bool, error) {
	var row taskRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM tasks WHERE id = ?`, id)
	if isNoRows(err) {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, fmt.Errorf("select task: %w", err)
	}
	task, err := row.toTask()
	if err != nil {
		return Task{}, false, fmt.Errorf("decode task row: %w", err)
	}
	history, err := s.history(ctx, id)
	if err != nil {
		return Task{}, false, err
	}
	task.History = history
	return task, true, nil
}

// List returns every task hydrated with history, ordered by created_at
// ascending.
func (s *Store) List(ctx context.Context) ([]Task, error) {
	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT * FROM tasks ORDER BY created_at ASC`); err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	tasks := make([]Task, 0, len(rows))
	for _, r := range rows {
		task, err := r.toTask()
		if err != nil {
			return nil, fmt.Errorf("decode task row %s: %w", r.ID, err)
		}
		history, err := s.history(ctx, task.ID)
		if err != nil {
			return nil, err
		}
		task.History = history
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (s *Store) history(ctx context.Context, taskID string) ([]HistoryEntry, error) {
	var rows []historyRow
	if err := s.db.SelectContext(ctx, &rows, `
		SELECT task_id, run_at, status, message FROM task_history
		WHERE task_id = ? ORDER BY id DESC LIMIT 10
	`, taskID); err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	entries := make([]HistoryEntry, 0, len(rows))
	for _, r := range rows {
		e, err := r.toEntry()
		if err != nil {
			return nil, fmt.Errorf("decode history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Delete removes a task and cascades its history. Returns whether a row
// existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read rows affected: %w", err)
	}
	return n > 0, nil
}

// UpdateStatus applies a partial mutation to a task row; a field with a
// *Set flag is written only when its flag is set, and Status and Enabled
// are written only when non-nil. updated_at is always touched.
func (s *Store) UpdateStatus(ctx context.Context, id string, upd StatusUpdate) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	sets := []string{"updated_at = ?"}
	args := []interface{}{formatTime(time.Now())}

	if upd.LastRunSet {
		sets = append(sets, "last_run = ?")
		args = append(args, formatTimePtr(upd.LastRun))
	}
	if upd.LastStatusSet {
		sets = append(sets, "last_status = ?")
		args = append(args, upd.LastStatus)
	}
	if upd.LastMessageSet {
		sets = append(sets, "last_message = ?")
		args = append(args, upd.LastMessage)
	}
	if upd.NextRunSet {
		sets = append(sets, "next_run = ?")
		args = append(args, formatTimePtr(upd.NextRun))
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *upd.Status)
	}
	if upd.Enabled != nil {
		sets = append(sets, "enabled = ?")
		args = append(args, boolToInt(*upd.Enabled))
	}

	query := "UPDATE tasks SET "
	for i, s := range sets {
		if i > 0 {
			query += ", "
		}
		query += s
	}
	query += " WHERE id = ?"
	args = append(args, id)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return nil
}

// ClearHistory removes all history rows for a task, clears last_status
// and last_message, leaves last_run null, and touches updated_at.
func (s *Store) ClearHistory(ctx context.Context, id string) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear-history tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM task_history WHERE task_id = ?`, id); err != nil {
		return fmt.Errorf("delete history rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE tasks SET last_run = NULL, last_status = NULL, last_message = NULL, updated_at = ?
		WHERE id = ?
	`, formatTime(time.Now()), id); err != nil {
		return fmt.Errorf("clear task last-run fields: %w", err)
	}

	return tx.Commit()
}

// AppendHistory inserts a new newest entry for a task and prunes any rows
// beyond the ten most recent, keeping §3's bounded-history invariant
// without requiring the caller to re-supply the full history sequence.
func (s *Store) AppendHistory(ctx context.Context, id string, entry HistoryEntry) error {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append-history tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO task_history (task_id, run_at, status, message) VALUES (?, ?, ?, ?)
	`, id, formatTime(entry.RunAt), entry.Status, entry.Message); err != nil {
		return fmt.Errorf("insert history row: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM task_history
		WHERE task_id = ? AND id NOT IN (
			SELECT id FROM task_history WHERE task_id = ? ORDER BY id DESC LIMIT 10
		)
	`, id, id); err != nil {
		return fmt.Errorf("prune history rows: %w", err)
	}

	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
