package store

import (
	"encoding/json"
	"time"
)

// Task is the durable row shape for a scheduled task, hydrated with its
// bounded history (newest first).
type Task struct {
	ID            string
	TriggerType   string
	TriggerConfig json.RawMessage
	MCPServer     *string
	MCPTool       *string
	MCPArguments  *string
	AgentPrompt   *string
	Enabled       bool
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastRun       *time.Time
	LastStatus    *string
	LastMessage   *string
	NextRun       *time.Time
	History       []HistoryEntry
}

// HistoryEntry is one fire outcome, newest entries sorting first.
type HistoryEntry struct {
	RunAt   time.Time
	Status  string
	Message *string
}

// StatusUpdate is a partial mutation applied by UpdateStatus. A field
// paired with a *Set flag is written only when the flag is true, and a nil
// value then writes NULL; Status and Enabled are written only when
// non-nil. UpdatedAt is always stamped regardless.
type StatusUpdate struct {
	LastRun     *time.Time
	LastRunSet  bool
	LastStatus     *string
	LastStatusSet  bool
	LastMessage    *string
	LastMessageSet bool
	NextRun        *time.Time
	NextRunSet     bool
	Status         *string
	Enabled        *bool
}

// taskRow mirrors the tasks table for sqlx scanning; nullable columns use
// sql-friendly pointer/string forms decoded into Task afterward.
type taskRow struct {
	ID            string  `db:"id"`
	TriggerType   string  `db:"trigger_type"`
	TriggerConfig string  `db:"trigger_config"`
	MCPServer     *string `db:"mcp_server"`
	MCPTool       *string `db:"mcp_tool"`
	MCPArguments  *string `db:"mcp_arguments"`
	AgentPrompt   *string `db:"agent_prompt"`
	Enabled       int     `db:"enabled"`
	Status        string  `db:"status"`
	CreatedAt     string  `db:"created_at"`
	UpdatedAt     string  `db:"updated_at"`
	LastRun       *string `db:"last_run"`
	LastStatus    *string `db:"last_status"`
	LastMessage   *string `db:"last_message"`
	NextRun       *string `db:"next_run"`
}

type historyRow struct {
	TaskID  string `db:"task_id"`
	RunAt   string `db:"run_at"`
	Status  string `db:"status"`
	Message *string `db:"message"`
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseTimePtr(s *string) *time.Time {
	if s == nil || *s == "" {
		return nil
	}
	t, err := parseTime(*s)
	if err != nil {
		return nil
	}
	return &t
}

func (r taskRow) toTask() (Task, error) {
	created, err := parseTime(r.CreatedAt)
	if err != nil {
		return Task{}, err
	}
	updated, err := parseTime(r.UpdatedAt)
	if err != nil {
		return Task{}, err
	}
	return Task{
		ID:            r.ID,
		TriggerType:   r.TriggerType,
		TriggerConfig: json.RawMessage(r.TriggerConfig),
		MCPServer:     r.MCPServer,
		MCPTool:       r.MCPTool,
		MCPArguments:  r.MCPArguments,
		AgentPrompt:   r.AgentPrompt,
		Enabled:       r.Enabled != 0,
		Status:        r.Status,
		CreatedAt:     created,
		UpdatedAt:     updated,
		LastRun:       parseTimePtr(r.LastRun),
		LastStatus:    r.LastStatus,
		LastMessage:   r.LastMessage,
		NextRun:       parseTimePtr(r.NextRun),
	}, nil
}

func (r historyRow) toEntry() (HistoryEntry, error) {
	runAt, err := parseTime(r.RunAt)
	if err != nil {
		return HistoryEntry{}, err
	}
	return HistoryEntry{RunAt: runAt, Status: r.Status, Message: r.Message}, nil
}
