package scheduler

import (
	"time"

	"github.com/nextlevelbuilder/schedule-task-mcp/internal/store"
	"github.com/nextlevelbuilder/schedule-task-mcp/internal/trigger"
)

// arm registers a one-shot timer for task.NextRun in the registry matching
// its trigger family (cron vs interval/date), per §4.D's "two disjoint
// timer sets". Both registries use the same time.AfterFunc primitive: the
// cron engine's job here is only ever "fire once at the already-computed
// next tick, then recompute" (never a continuously self-scheduling
// robfig/cron-style engine), since internal/trigger already owns the sole
// next-tick computation via gronx and recomputing it twice would risk the
// two disagreeing. A no-op if task.NextRun is nil (nothing to arm).
func (s *Scheduler) arm(task store.Task) {
	if task.NextRun == nil {
		return
	}
	delay := time.Until(*task.NextRun)
	if delay < 0 {
		delay = 0
	}
	id := task.ID
	timer := time.AfterFunc(delay, func() { s.onFire(id) })

	s.mu.Lock()
	defer s.mu.Unlock()
	if trigger.Type(task.TriggerType) == trigger.Cron {
		s.cronTimers[id] = timer
	} else {
		s.otherTimers[id] = timer
	}
}

// unarm stops and removes a task's timer from whichever registry holds it,
// per the "always unarm-then-re-arm" discipline of §4.D.
func (s *Scheduler) unarm(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unarmLocked(id)
}

func (s *Scheduler) unarmLocked(id string) {
	if t, ok := s.cronTimers[id]; ok {
		t.Stop()
		delete(s.cronTimers, id)
	}
	if t, ok := s.otherTimers[id]; ok {
		t.Stop()
		delete(s.otherTimers, id)
	}
}

// shutdown stops every armed timer. In-flight fires are not cancelled;
// their persistence remains best-effort per §4.D.
func (s *Scheduler) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.cronTimers {
		t.Stop()
		delete(s.cronTimers, id)
	}
	for id, t := range s.otherTimers {
		t.Stop()
		delete(s.otherTimers, id)
	}
}
