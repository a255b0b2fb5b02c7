package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// importLegacyJSON implements §4.C migration 2: on an empty tasks table,
// attempt a one-shot import from a legacy free-form JSON file. Missing
// fields are coerced with the documented defaults. On success the source
// file is renamed with a .bak suffix so the import never repeats.
func (s *Store) importLegacyJSON(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}

	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT count(*) FROM tasks`); err != nil {
		return fmt.Errorf("check tasks table empty: %w", err)
	}
	if count > 0 {
		return nil
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read legacy file: %w", err)
	}

	records, err := decodeLegacyRecords(raw)
	if err != nil {
		return fmt.Errorf("parse legacy file: %w", err)
	}

	imported := 0
	for _, rec := range records {
		task, err := coerceLegacyTask(rec)
		if err != nil {
			// A single malformed record is logged and skipped rather than
			// aborting the whole import.
			slog.Warn("skipping malformed legacy task record", "component", "store", "error", err)
			continue
		}
		if err := s.Upsert(ctx, task); err != nil {
			return fmt.Errorf("import task %s: %w", task.ID, err)
		}
		imported++
	}

	if err := os.Rename(path, path+".bak"); err != nil {
		return fmt.Errorf("rename legacy file to .bak: %w", err)
	}
	return nil
}

func decodeLegacyRecords(raw []byte) ([]map[string]interface{}, error) {
	var asArray []map[string]interface{}
	if err := json.Unmarshal(raw, &asArray); err == nil {
		return asArray, nil
	}

	var asObject map[string]interface{}
	if err := json.Unmarshal(raw, &asObject); err != nil {
		return nil, err
	}
	tasksField, ok := asObject["tasks"]
	if !ok {
		return nil, fmt.Errorf("legacy file has neither a task array nor a %q field", "tasks")
	}
	encoded, err := json.Marshal(tasksField)
	if err != nil {
		return nil, err
	}
	var tasks []map[string]interface{}
	if err := json.Unmarshal(encoded, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func coerceLegacyTask(rec map[string]interface{}) (Task, error) {
	id, _ := firstString(rec, "id")
	if id == "" {
		return Task{}, fmt.Errorf("legacy record missing id")
	}
	triggerType, _ := firstString(rec, "trigger_type", "triggerType")
	if triggerType == "" {
		return Task{}, fmt.Errorf("legacy record %s missing trigger_type", id)
	}

	cfg, ok := firstValue(rec, "trigger_config", "triggerConfig")
	var cfgJSON json.RawMessage
	if ok {
		encoded, err := json.Marshal(cfg)
		if err != nil {
			return Task{}, err
		}
		cfgJSON = encoded
	} else {
		cfgJSON = json.RawMessage(`{}`)
	}

	status, _ := firstString(rec, "status")
	if status == "" {
		status = "scheduled"
	}

	now := time.Now().UTC()
	createdAt := firstTime(rec, now, "created_at", "createdAt")
	updatedAt := firstTime(rec, now, "updated_at", "updatedAt")

	task := Task{
		ID:            id,
		TriggerType:   triggerType,
		TriggerConfig: cfgJSON,
		MCPServer:     firstStringPtr(rec, "mcp_server", "mcpServer"),
		MCPTool:       firstStringPtr(rec, "mcp_tool", "mcpTool"),
		MCPArguments:  firstStringPtr(rec, "mcp_arguments", "mcpArguments"),
		AgentPrompt:   firstStringPtr(rec, "agent_prompt", "agentPrompt"),
		Enabled:       firstBool(rec, true, "enabled"),
		Status:        status,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
		LastMessage:   firstStringPtr(rec, "last_message", "lastMessage"),
		LastStatus:    firstStringPtr(rec, "last_status", "lastStatus"),
		History:       []HistoryEntry{},
	}
	if t := firstTimePtr(rec, "last_run", "lastRun"); t != nil {
		task.LastRun = t
	}
	if t := firstTimePtr(rec, "next_run", "nextRun"); t != nil {
		task.NextRun = t
	}
	return task, nil
}

func firstValue(rec map[string]interface{}, keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func firstString(rec map[string]interface{}, keys ...string) (string, bool) {
	v, ok := firstValue(rec, keys...)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func firstStringPtr(rec map[string]interface{}, keys ...string) *string {
	s, ok := firstString(rec, keys...)
	if !ok || s == "" {
		return nil
	}
	return &s
}

func firstBool(rec map[string]interface{}, def bool, keys ...string) bool {
	v, ok := firstValue(rec, keys...)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func firstTime(rec map[string]interface{}, def time.Time, keys ...string) time.Time {
	if t := firstTimePtr(rec, keys...); t != nil {
		return *t
	}
	return def
}

func firstTimePtr(rec map[string]interface{}, keys ...string) *time.Time {
	s, ok := firstString(rec, keys...)
	if !ok {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	if t, err := time.Parse(timeLayout, s); err == nil {
		return &t
	}
	return nil
}
