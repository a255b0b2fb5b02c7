package scheduler

import (
	"encoding/json"
	"time"

	"github.com/nextlevelbuilder/schedule-task-mcp/internal/store"
	"github.com/nextlevelbuilder/schedule-task-mcp/internal/trigger"
)

// normalize applies §4.D's normalization rules to task as of now: history
// truncation, status recomputation, the date-completion force-disable
// rule, and a next_run recompute that preserves the stored next_run as
// previously_planned. It never touches the store; the lifecycle verbs and
// Initialize persist the result when it differs from what was read, while
// Get and List return it without persisting.
func normalize(task store.Task, zone *time.Location, now time.Time) store.Task {
	if len(task.History) > 10 {
		task.History = task.History[:10]
	}

	task.Status = normalizeStatus(task, now)
	if trigger.Type(task.TriggerType) == trigger.Date && task.Status == "completed" {
		task.Enabled = false
	}

	next, err := trigger.NextFire(trigger.Type(task.TriggerType), task.TriggerConfig, now, zone, task.NextRun)
	if err == nil {
		task.NextRun = next
	}
	return task
}

func normalizeStatus(task store.Task, now time.Time) string {
	if !task.Enabled {
		if task.Status == "completed" {
			return "completed"
		}
		return "paused"
	}
	if task.Status == "running" {
		return "running"
	}
	if trigger.Type(task.TriggerType) == trigger.Date {
		mostRecentSuccess := len(task.History) > 0 && task.History[0].Status == "success"
		runDatePassed := dateRunDatePassed(task.TriggerConfig, now)
		if mostRecentSuccess || runDatePassed {
			return "completed"
		}
	}
	if task.LastStatus != nil && *task.LastStatus == "error" {
		return "error"
	}
	return "scheduled"
}

func dateRunDatePassed(cfg json.RawMessage, now time.Time) bool {
	var dc trigger.DateConfig
	if err := json.Unmarshal(cfg, &dc); err != nil {
		return false
	}
	return dc.RunDate != nil && !dc.RunDate.After(now)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
