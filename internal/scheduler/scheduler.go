// Package scheduler owns per-task timers and the lifecycle verbs of §4.D:
// hydrate-and-arm at startup, create/update/pause/resume/delete, manual
// execution, history clearing, and the describe() presentation
// projection. It is the only component that mutates a task's armed-timer
// state; internal/store stays a dumb CRUD layer and internal/executor
// stays a pure per-fire runner.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/schedule-task-mcp/internal/executor"
	"github.com/nextlevelbuilder/schedule-task-mcp/internal/store"
)

const recentRunLogCapacity = 200

// Scheduler is the coordination point between the durable store, the
// trigger evaluator, and the execution driver.
type Scheduler struct {
	store *store.Store
	exec  *executor.Driver
	zone  *time.Location

	mu          sync.Mutex
	cronTimers  map[string]*time.Timer
	otherTimers map[string]*time.Timer

	fireMu    sync.Mutex
	fireLocks map[string]*sync.Mutex

	runLog *runLog
	logger *slog.Logger
}

// New builds a Scheduler. zone is used only for cron next-fire computation
// and *_local presentation fields.
func New(st *store.Store, exec *executor.Driver, zone *time.Location) *Scheduler {
	return &Scheduler{
		store:       st,
		exec:        exec,
		zone:        zone,
		cronTimers:  make(map[string]*time.Timer),
		otherTimers: make(map[string]*time.Timer),
		fireLocks:   make(map[string]*sync.Mutex),
		runLog:      newRunLog(recentRunLogCapacity),
		logger:      slog.With("component", "scheduler"),
	}
}

func (s *Scheduler) fireLockFor(id string) *sync.Mutex {
	s.fireMu.Lock()
	defer s.fireMu.Unlock()
	l, ok := s.fireLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.fireLocks[id] = l
	}
	return l
}

// Initialize hydrates every task from the store, normalizes it, persists
// any change, and arms a timer for each enabled, non-completed task. Call
// once at startup before serving requests.
func (s *Scheduler) Initialize(ctx context.Context) error {
	tasks, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	now := time.Now().UTC()
	for _, task := range tasks {
		norm := normalize(task, s.zone, now)
		if err := s.reconcileAfterExternalChange(ctx, task, norm); err != nil {
			s.logger.Error("normalize at startup failed", "task_id", task.ID, "error", err)
			continue
		}
		if norm.Enabled && norm.Status != "completed" {
			s.arm(norm)
		}
	}
	s.logger.Info("scheduler initialized", "tasks", len(tasks))
	return nil
}

// Shutdown unarms every timer. In-flight fires are not cancelled.
func (s *Scheduler) Shutdown() {
	s.shutdown()
	s.logger.Info("scheduler shut down")
}

// RecentRuns returns up to n of the most recently recorded fires across
// every task, newest first.
func (s *Scheduler) RecentRuns(n int) []RunLogEntry {
	return s.runLog.Recent(n)
}

// reconcileAfterExternalChange persists the delta between orig and norm
// (status, enabled, next_run) when they differ, leaving history and every
// other field untouched.
func (s *Scheduler) reconcileAfterExternalChange(ctx context.Context, orig, norm store.Task) error {
	if orig.Status == norm.Status && orig.Enabled == norm.Enabled && timePtrEqual(orig.NextRun, norm.NextRun) {
		return nil
	}
	upd := store.StatusUpdate{
		Status:     &norm.Status,
		NextRunSet: true,
		NextRun:    norm.NextRun,
	}
	if orig.Enabled != norm.Enabled {
		enabled := norm.Enabled
		upd.Enabled = &enabled
	}
	return s.store.UpdateStatus(ctx, orig.ID, upd)
}

// persistTask writes task's row fields without touching history; every
// lifecycle verb below owns history exclusively through the store's
// AppendHistory/ClearHistory, never through Upsert's history-replace path.
func (s *Scheduler) persistTask(ctx context.Context, task store.Task) error {
	t := task
	t.History = nil
	return s.store.Upsert(ctx, t)
}

// fireAndNormalize runs one fire for id, reloads the resulting row, and
// applies normalization, persisting any delta. existed is false if the
// task was deleted during the fire (best-effort: nothing further to do).
func (s *Scheduler) fireAndNormalize(ctx context.Context, id string) (task store.Task, existed bool, err error) {
	current, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return store.Task{}, false, err
	}
	if !ok {
		return store.Task{}, false, nil
	}

	outcome, fireErr := s.exec.Fire(ctx, current, s.zone)
	if fireErr != nil {
		return store.Task{}, true, fireErr
	}
	s.runLog.append(RunLogEntry{
		TaskID:  id,
		RanAt:   outcome.RanAt,
		Status:  statusFromSuccess(outcome.Success),
		Message: outcome.Message,
	})

	updated, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return store.Task{}, true, err
	}
	if !ok {
		return store.Task{}, false, nil
	}
	norm := normalize(updated, s.zone, time.Now().UTC())
	if err := s.reconcileAfterExternalChange(ctx, updated, norm); err != nil {
		return store.Task{}, true, err
	}
	return norm, true, nil
}

// onFire is the timer callback for a scheduled tick. It runs the fire, then
// (since this timer registration is spent the moment it fires) unarms and,
// if the task is still live, re-arms from the freshly computed next_run —
// always derived from the real completion instant rather than the stale
// previously-scheduled one, so a slow fire never produces a backlog of
// catch-up fires (missed ticks are dropped, per DESIGN.md).
func (s *Scheduler) onFire(id string) {
	ctx := context.Background()
	lock := s.fireLockFor(id)
	lock.Lock()
	defer lock.Unlock()

	norm, existed, err := s.fireAndNormalize(ctx, id)

	s.mu.Lock()
	s.unarmLocked(id)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled fire failed", "task_id", id, "error", err)
		return
	}
	if !existed {
		return
	}
	if norm.Enabled && norm.Status != "completed" {
		s.arm(norm)
	}
}

// Execute runs a fire synchronously now, regardless of schedule. Per
// §4.D, timers are not affected: the task's normally-scheduled timer (if
// any) keeps its existing registration and will still fire at its
// originally-planned instant. A concurrent scheduled fire for the same
// task blocks this call until it completes and vice versa (the per-task
// fire lock), matching the "queue rather than reject" Open Question
// decision in DESIGN.md.
func (s *Scheduler) Execute(ctx context.Context, id string) (store.Task, error) {
	if _, ok, err := s.store.Get(ctx, id); err != nil {
		return store.Task{}, err
	} else if !ok {
		return store.Task{}, ErrTaskNotFound
	}

	lock := s.fireLockFor(id)
	lock.Lock()
	defer lock.Unlock()

	norm, existed, err := s.fireAndNormalize(ctx, id)
	if err != nil {
		return store.Task{}, err
	}
	if !existed {
		return store.Task{}, ErrTaskNotFound
	}
	return norm, nil
}

func statusFromSuccess(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
