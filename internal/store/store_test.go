package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tasks.db")
	s, err := Open(context.Background(), dbPath, filepath.Join(dir, "tasks.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTask(id string) Task {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return Task{
		ID:            id,
		TriggerType:   "interval",
		TriggerConfig: json.RawMessage(`{"seconds":1}`),
		Enabled:       true,
		Status:        "scheduled",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := sampleTask("task-1")
	if err := s.Upsert(ctx, task); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, ok, err := s.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get: expected task to exist")
	}
	if got.TriggerType != "interval" || got.Status != "scheduled" {
		t.Errorf("got = %+v", got)
	}
	if len(got.History) != 0 {
		t.Errorf("expected no history, got %d entries", len(got.History))
	}
}

func TestUpsertIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := sampleTask("task-1")
	if err := s.Upsert(ctx, task); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	if err := s.Upsert(ctx, task); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	tasks, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected exactly one task after repeated upsert, got %d", len(tasks))
	}
}

func TestUpsertHistoryBoundedAndNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := sampleTask("task-1")
	// Newest first, the order Get returns and Upsert expects.
	var history []HistoryEntry
	for i := 0; i < 12; i++ {
		history = append(history, HistoryEntry{
			RunAt:  task.CreatedAt.Add(time.Duration(11-i) * time.Minute),
			Status: "success",
		})
	}
	task.History = history
	if err := s.Upsert(ctx, task); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, ok, err := s.Get(ctx, "task-1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if len(got.History) != 10 {
		t.Fatalf("expected history truncated to 10, got %d", len(got.History))
	}
	if !got.History[0].RunAt.After(got.History[len(got.History)-1].RunAt) {
		t.Errorf("expected newest-first ordering, got %+v", got.History)
	}
}

func TestAppendHistoryPrunesBeyondTen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := sampleTask("task-1")
	if err := s.Upsert(ctx, task); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	for i := 0; i < 12; i++ {
		err := s.AppendHistory(ctx, "task-1", HistoryEntry{
			RunAt:  task.CreatedAt.Add(time.Duration(i) * time.Minute),
			Status: "success",
		})
		if err != nil {
			t.Fatalf("AppendHistory %d: %v", i, err)
		}
	}

	got, ok, err := s.Get(ctx, "task-1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if len(got.History) != 10 {
		t.Fatalf("expected 10 entries after pruning, got %d", len(got.History))
	}
	if !got.History[0].RunAt.Equal(task.CreatedAt.Add(11 * time.Minute)) {
		t.Errorf("newest entry = %v, want the 12th appended entry", got.History[0].RunAt)
	}
}

func TestDeleteCascadesHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := sampleTask("task-1")
	task.History = []HistoryEntry{{RunAt: task.CreatedAt, Status: "success"}}
	if err := s.Upsert(ctx, task); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	existed, err := s.Delete(ctx, "task-1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !existed {
		t.Fatal("expected Delete to report the row existed")
	}

	_, ok, err := s.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("Get after delete: %v", err)
	}
	if ok {
		t.Fatal("expected task to be gone after delete")
	}
}

func TestUpdateStatusPartial(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := sampleTask("task-1")
	if err := s.Upsert(ctx, task); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	status := "error"
	msg := "boom"
	if err := s.UpdateStatus(ctx, "task-1", StatusUpdate{
		Status:         &status,
		LastMessage:    &msg,
		LastMessageSet: true,
	}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	got, ok, err := s.Get(ctx, "task-1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Status != "error" {
		t.Errorf("status = %q, want error", got.Status)
	}
	if got.LastMessage == nil || *got.LastMessage != "boom" {
		t.Errorf("last_message = %v, want boom", got.LastMessage)
	}
	if got.TriggerType != "interval" {
		t.Errorf("unrelated field trigger_type changed: %q", got.TriggerType)
	}
}

func TestClearHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := sampleTask("task-1")
	task.History = []HistoryEntry{{RunAt: task.CreatedAt, Status: "success"}}
	task.LastStatus = strPtr("success")
	task.LastMessage = strPtr("ok")
	if err := s.Upsert(ctx, task); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := s.ClearHistory(ctx, "task-1"); err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}

	got, ok, err := s.Get(ctx, "task-1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if len(got.History) != 0 {
		t.Errorf("expected history cleared, got %d entries", len(got.History))
	}
	if got.LastStatus != nil || got.LastMessage != nil {
		t.Errorf("expected last_status/last_message cleared, got %v/%v", got.LastStatus, got.LastMessage)
	}
	if got.LastRun != nil {
		t.Errorf("expected last_run left null, got %v", got.LastRun)
	}
}

func TestLegacyJSONImport(t *testing.T) {
	dir := t.TempDir()
	legacyPath := filepath.Join(dir, "tasks.json")
	legacy := `{"tasks":[{"id":"legacy-1","trigger_type":"interval","trigger_config":{"seconds":5},"enabled":true}]}`
	if err := os.WriteFile(legacyPath, []byte(legacy), 0o644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}

	dbPath := filepath.Join(dir, "tasks.db")
	s, err := Open(context.Background(), dbPath, legacyPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	tasks, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "legacy-1" {
		t.Fatalf("expected imported legacy task, got %+v", tasks)
	}
	if tasks[0].Status != "scheduled" {
		t.Errorf("status = %q, want scheduled default", tasks[0].Status)
	}
	if len(tasks[0].History) != 0 {
		t.Errorf("expected empty history for imported task, got %d", len(tasks[0].History))
	}

	if _, err := os.Stat(legacyPath + ".bak"); err != nil {
		t.Errorf("expected legacy file renamed to .bak: %v", err)
	}
	if _, err := os.Stat(legacyPath); !os.IsNotExist(err) {
		t.Errorf("expected original legacy file gone, stat err = %v", err)
	}
}

func TestRebuildLegacyNameColumn(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tasks.db")

	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open raw sqlite: %v", err)
	}
	_, err = raw.Exec(`CREATE TABLE tasks (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		trigger_type TEXT NOT NULL,
		trigger_config TEXT NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	_, err = raw.Exec(`INSERT INTO tasks (id, name, trigger_type, trigger_config, enabled, status, created_at, updated_at)
		VALUES ('legacy-1', 'old name column', 'cron', '{"expression":"0 9 * * *"}', 1, 'scheduled', '2025-01-01T00:00:00Z', '2025-01-01T00:00:00Z')`)
	if err != nil {
		t.Fatalf("insert legacy row: %v", err)
	}
	if err := raw.Close(); err != nil {
		t.Fatalf("close raw handle: %v", err)
	}

	s, err := Open(context.Background(), dbPath, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	got, ok, err := s.Get(context.Background(), "legacy-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected legacy row to survive rebuild")
	}
	if got.TriggerType != "cron" {
		t.Errorf("trigger_type = %q, want cron", got.TriggerType)
	}
}

func strPtr(s string) *string { return &s }
