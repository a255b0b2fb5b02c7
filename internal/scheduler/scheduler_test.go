package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/schedule-task-mcp/internal/executor"
	"github.com/nextlevelbuilder/schedule-task-mcp/internal/store"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(context.Background(), filepath.Join(dir, "tasks.db"), "")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	drv := executor.New(st, nil, time.Second)
	sch := New(st, drv, time.UTC)
	t.Cleanup(sch.Shutdown)
	return sch
}

func TestCreate_IntervalArmsAndComputesNextRun(t *testing.T) {
	sch := newTestScheduler(t)
	task, err := sch.Create(context.Background(), CreateParams{
		Name:             "ping every second",
		TriggerType:      "interval",
		TriggerConfigRaw: map[string]interface{}{"seconds": 1.0},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.Status != "scheduled" || !task.Enabled {
		t.Errorf("task = %+v", task)
	}
	if task.NextRun == nil || !task.NextRun.After(time.Now().UTC()) {
		t.Errorf("expected next_run in the future, got %v", task.NextRun)
	}
}

func TestCreate_RejectsEmptyName(t *testing.T) {
	sch := newTestScheduler(t)
	_, err := sch.Create(context.Background(), CreateParams{
		TriggerType:      "interval",
		TriggerConfigRaw: map[string]interface{}{"seconds": 1.0},
	})
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUpdate_TriggerTypeWithoutConfigIsRejected(t *testing.T) {
	sch := newTestScheduler(t)
	ctx := context.Background()
	task, err := sch.Create(ctx, CreateParams{
		Name:             "t",
		TriggerType:      "interval",
		TriggerConfigRaw: map[string]interface{}{"seconds": 1.0},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = sch.Update(ctx, task.ID, UpdatePatch{
		HasTriggerType: true,
		TriggerType:    "cron",
	})
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	unchanged, err := sch.Get(ctx, task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if unchanged.TriggerType != "interval" {
		t.Errorf("trigger_type changed despite rejected update: %q", unchanged.TriggerType)
	}
}

func TestUpdate_ChangesTriggerAndRearms(t *testing.T) {
	sch := newTestScheduler(t)
	ctx := context.Background()
	task, err := sch.Create(ctx, CreateParams{
		Name:             "t",
		TriggerType:      "interval",
		TriggerConfigRaw: map[string]interface{}{"seconds": 1.0},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	updated, err := sch.Update(ctx, task.ID, UpdatePatch{
		HasTriggerType:   true,
		TriggerType:      "cron",
		HasTriggerConfig: true,
		TriggerConfigRaw: map[string]interface{}{"expression": "0 9 * * *"},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.TriggerType != "cron" {
		t.Errorf("trigger_type = %q, want cron", updated.TriggerType)
	}
	if updated.NextRun == nil {
		t.Error("expected next_run recomputed for new cron trigger")
	}
}

func TestPauseResume(t *testing.T) {
	sch := newTestScheduler(t)
	ctx := context.Background()
	task, err := sch.Create(ctx, CreateParams{
		Name:             "t",
		TriggerType:      "interval",
		TriggerConfigRaw: map[string]interface{}{"seconds": 1.0},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	paused, err := sch.Pause(ctx, task.ID)
	if err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if paused.Enabled || paused.Status != "paused" {
		t.Errorf("paused task = %+v", paused)
	}

	resumed, err := sch.Resume(ctx, task.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !resumed.Enabled || resumed.Status != "scheduled" {
		t.Errorf("resumed task = %+v", resumed)
	}
}

func TestDelete_RemovesTaskAndHistory(t *testing.T) {
	sch := newTestScheduler(t)
	ctx := context.Background()
	task, err := sch.Create(ctx, CreateParams{
		Name:             "t",
		TriggerType:      "interval",
		TriggerConfigRaw: map[string]interface{}{"seconds": 1.0},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	existed, err := sch.Delete(ctx, task.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !existed {
		t.Fatal("expected Delete to report the row existed")
	}

	if _, err := sch.Get(ctx, task.ID); err != ErrTaskNotFound {
		t.Errorf("Get after delete: err = %v, want ErrTaskNotFound", err)
	}
}

func TestExecute_RunsFireAndRecordsHistory(t *testing.T) {
	sch := newTestScheduler(t)
	ctx := context.Background()
	task, err := sch.Create(ctx, CreateParams{
		Name:             "t",
		TriggerType:      "interval",
		TriggerConfigRaw: map[string]interface{}{"hours": 1.0},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	result, err := sch.Execute(ctx, task.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(result.History) != 1 || result.History[0].Status != "success" {
		t.Fatalf("history = %+v", result.History)
	}

	runs := sch.RecentRuns(10)
	if len(runs) != 1 || runs[0].TaskID != task.ID {
		t.Errorf("RecentRuns = %+v", runs)
	}
}

func TestExecute_DateTaskCompletesAndDisables(t *testing.T) {
	sch := newTestScheduler(t)
	ctx := context.Background()
	task, err := sch.Create(ctx, CreateParams{
		Name:             "t",
		TriggerType:      "date",
		TriggerConfigRaw: map[string]interface{}{"delay_seconds": 0.02},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.Status != "scheduled" || !task.Enabled {
		t.Fatalf("expected task still scheduled before its run_date, got %+v", task)
	}

	time.Sleep(50 * time.Millisecond)
	result, err := sch.Execute(ctx, task.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != "completed" || result.Enabled || result.NextRun != nil {
		t.Errorf("result = %+v", result)
	}
}

func TestClearHistory_ReturnsStatusFromErrorToScheduled(t *testing.T) {
	sch := newTestScheduler(t)
	ctx := context.Background()
	task, err := sch.Create(ctx, CreateParams{
		Name:             "t",
		TriggerType:      "interval",
		TriggerConfigRaw: map[string]interface{}{"hours": 1.0},
		AgentPrompt:      nil,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Force a sampling failure so last_status becomes "error" without a client.
	prompt := "hello"
	if _, err := sch.Update(ctx, task.ID, UpdatePatch{HasAgentPrompt: true, AgentPrompt: &prompt}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	failed, err := sch.Execute(ctx, task.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if failed.Status != "error" {
		t.Fatalf("expected error status after sampling failure, got %q", failed.Status)
	}

	cleared, err := sch.ClearHistory(ctx, task.ID)
	if err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	if len(cleared.History) != 0 {
		t.Errorf("expected empty history, got %d entries", len(cleared.History))
	}
	if cleared.Status != "scheduled" {
		t.Errorf("status = %q, want scheduled after clearing the error", cleared.Status)
	}
}

func TestInitialize_ArmsEnabledTasksAcrossRestart(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tasks.db")

	st1, err := store.Open(context.Background(), dbPath, "")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	drv1 := executor.New(st1, nil, time.Second)
	sch1 := New(st1, drv1, time.UTC)
	task, err := sch1.Create(context.Background(), CreateParams{
		Name:             "t",
		TriggerType:      "interval",
		TriggerConfigRaw: map[string]interface{}{"hours": 1.0},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	firstNextRun := *task.NextRun
	sch1.Shutdown()
	st1.Close()

	st2, err := store.Open(context.Background(), dbPath, "")
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer st2.Close()
	drv2 := executor.New(st2, nil, time.Second)
	sch2 := New(st2, drv2, time.UTC)
	defer sch2.Shutdown()

	if err := sch2.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	restarted, err := sch2.Get(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if restarted.NextRun == nil || !restarted.NextRun.Equal(firstNextRun) {
		t.Errorf("next_run changed across restart: had %v, now %v", firstNextRun, restarted.NextRun)
	}
	if !restarted.Enabled || restarted.Status != "scheduled" {
		t.Errorf("restarted task = %+v", restarted)
	}
}

func TestDescribe_IntervalSummaryAndLocalFields(t *testing.T) {
	sch := newTestScheduler(t)
	ctx := context.Background()
	task, err := sch.Create(ctx, CreateParams{
		Name:             "t",
		TriggerType:      "interval",
		TriggerConfigRaw: map[string]interface{}{"minutes": 30.0},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	d := sch.Describe(task)
	if d.TriggerSummary != "每30分钟" {
		t.Errorf("trigger_summary = %q, want 每30分钟", d.TriggerSummary)
	}
	if d.CreatedAtLocal == "" || d.UpdatedAtLocal == "" {
		t.Error("expected *_local fields populated")
	}
}

func TestDescribe_DateSummaryAndLocalMirror(t *testing.T) {
	sch := newTestScheduler(t)
	ctx := context.Background()
	task, err := sch.Create(ctx, CreateParams{
		Name:             "t",
		TriggerType:      "date",
		TriggerConfigRaw: map[string]interface{}{"delay_hours": 1.0},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	d := sch.Describe(task)
	if d.TriggerSummary == "" || d.TriggerSummary[:len("一次性 @ ")] != "一次性 @ " {
		t.Errorf("trigger_summary = %q, want 一次性 @ prefix", d.TriggerSummary)
	}
	if len(d.TriggerLocal) == 0 {
		t.Error("expected trigger_config_local populated for date trigger")
	}
}

func TestManualExecuteBlocksUntilScheduledFireCompletes(t *testing.T) {
	sch := newTestScheduler(t)
	ctx := context.Background()
	task, err := sch.Create(ctx, CreateParams{
		Name:             "t",
		TriggerType:      "interval",
		TriggerConfigRaw: map[string]interface{}{"hours": 1.0},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	lock := sch.fireLockFor(task.ID)
	lock.Lock()
	done := make(chan struct{})
	go func() {
		if _, err := sch.Execute(ctx, task.ID); err != nil {
			t.Errorf("Execute: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Execute returned before the held fire lock was released")
	case <-time.After(30 * time.Millisecond):
	}

	lock.Unlock()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Execute did not complete after the fire lock was released")
	}
}
