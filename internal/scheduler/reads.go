package scheduler

import (
	"context"
	"time"

	"github.com/nextlevelbuilder/schedule-task-mcp/internal/store"
)

// Get returns a single task with normalization rules applied as of now.
// The recompute is transient: it is not persisted here, since the only
// writes to status/next_run happen through the lifecycle verbs above (or
// Initialize at startup) — a plain read must reflect current invariants
// without racing a concurrent lifecycle operation's own persist.
func (s *Scheduler) Get(ctx context.Context, id string) (store.Task, error) {
	task, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return store.Task{}, err
	}
	if !ok {
		return store.Task{}, ErrTaskNotFound
	}
	return normalize(task, s.zone, time.Now().UTC()), nil
}

// List returns every task, normalized, ordered by created_at ascending.
func (s *Scheduler) List(ctx context.Context) ([]store.Task, error) {
	tasks, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	out := make([]store.Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, normalize(t, s.zone, now))
	}
	return out, nil
}
