package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nextlevelbuilder/schedule-task-mcp/internal/store"
	"github.com/nextlevelbuilder/schedule-task-mcp/internal/trigger"
)

// Create validates p, assigns a fresh id, computes the initial next_run,
// persists, and arms a timer if the task comes up enabled.
func (s *Scheduler) Create(ctx context.Context, p CreateParams) (store.Task, error) {
	if strings.TrimSpace(p.Name) == "" {
		return store.Task{}, invalid("name must be a non-empty string")
	}
	if !trigger.Type(p.TriggerType).Valid() {
		return store.Task{}, invalid("trigger_type must be one of interval, cron, date")
	}
	if p.AgentPrompt != nil && strings.TrimSpace(*p.AgentPrompt) == "" {
		return store.Task{}, invalid("agent_prompt must be non-empty when provided")
	}

	now := time.Now().UTC()
	cfgJSON, err := materializeTriggerConfig(p.TriggerType, p.TriggerConfigRaw, now)
	if err != nil {
		return store.Task{}, err
	}

	id := newTaskID(now)
	task := store.Task{
		ID:            id,
		TriggerType:   p.TriggerType,
		TriggerConfig: cfgJSON,
		MCPServer:     p.MCPServer,
		MCPTool:       p.MCPTool,
		MCPArguments:  p.MCPArguments,
		AgentPrompt:   p.AgentPrompt,
		Enabled:       true,
		Status:        "scheduled",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if next, err := trigger.NextFire(trigger.Type(p.TriggerType), cfgJSON, now, s.zone, nil); err == nil {
		task.NextRun = next
	}

	norm := normalize(task, s.zone, now)
	if err := s.persistTask(ctx, norm); err != nil {
		return store.Task{}, fmt.Errorf("persist new task: %w", err)
	}
	s.logger.Info("task created", "task_id", id, "trigger_type", p.TriggerType, "name", p.Name)

	if norm.Enabled && norm.Status != "completed" {
		s.arm(norm)
	}
	return norm, nil
}

// Update merges patch into the stored task, recomputes status and
// next_run, unarms then re-arms the timer, and persists. Changing
// trigger_type without supplying a new trigger_config is rejected.
func (s *Scheduler) Update(ctx context.Context, id string, patch UpdatePatch) (store.Task, error) {
	task, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return store.Task{}, err
	}
	if !ok {
		return store.Task{}, ErrTaskNotFound
	}

	if patch.HasTriggerType && !patch.HasTriggerConfig {
		return store.Task{}, invalid("changing trigger_type requires a new trigger_config")
	}

	now := time.Now().UTC()
	triggerType := task.TriggerType
	if patch.HasTriggerType {
		if !trigger.Type(patch.TriggerType).Valid() {
			return store.Task{}, invalid("trigger_type must be one of interval, cron, date")
		}
		triggerType = patch.TriggerType
	}

	cfgJSON := task.TriggerConfig
	if patch.HasTriggerConfig {
		cfgJSON, err = materializeTriggerConfig(triggerType, patch.TriggerConfigRaw, now)
		if err != nil {
			return store.Task{}, err
		}
	}

	if patch.HasAgentPrompt {
		if patch.AgentPrompt != nil && strings.TrimSpace(*patch.AgentPrompt) == "" {
			return store.Task{}, invalid("agent_prompt must be non-empty when provided")
		}
		task.AgentPrompt = patch.AgentPrompt
	}
	if patch.HasMCPServer {
		task.MCPServer = patch.MCPServer
	}
	if patch.HasMCPTool {
		task.MCPTool = patch.MCPTool
	}
	if patch.HasMCPArguments {
		task.MCPArguments = patch.MCPArguments
	}

	task.TriggerType = triggerType
	task.TriggerConfig = cfgJSON
	task.UpdatedAt = now

	if patch.HasTriggerType || patch.HasTriggerConfig {
		// The trigger definition changed; a preserved previously_planned
		// instant would be meaningless against the new definition.
		if next, err := trigger.NextFire(trigger.Type(triggerType), cfgJSON, now, s.zone, nil); err == nil {
			task.NextRun = next
		} else {
			task.NextRun = nil
		}
	}

	norm := normalize(task, s.zone, now)
	if err := s.persistTask(ctx, norm); err != nil {
		return store.Task{}, fmt.Errorf("persist updated task: %w", err)
	}

	s.unarm(id)
	if norm.Enabled && norm.Status != "completed" {
		s.arm(norm)
	}
	return norm, nil
}

// Pause is shorthand for Update with enabled = false.
func (s *Scheduler) Pause(ctx context.Context, id string) (store.Task, error) {
	return s.setEnabled(ctx, id, false)
}

// Resume is shorthand for Update with enabled = true.
func (s *Scheduler) Resume(ctx context.Context, id string) (store.Task, error) {
	return s.setEnabled(ctx, id, true)
}

func (s *Scheduler) setEnabled(ctx context.Context, id string, enabled bool) (store.Task, error) {
	task, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return store.Task{}, err
	}
	if !ok {
		return store.Task{}, ErrTaskNotFound
	}

	task.Enabled = enabled
	task.UpdatedAt = time.Now().UTC()

	norm := normalize(task, s.zone, task.UpdatedAt)
	if err := s.persistTask(ctx, norm); err != nil {
		return store.Task{}, fmt.Errorf("persist enabled change: %w", err)
	}

	s.unarm(id)
	if norm.Enabled && norm.Status != "completed" {
		s.arm(norm)
	}
	return norm, nil
}

// Delete unarms the task's timer and cascades the delete through the
// store. Returns whether a row existed.
func (s *Scheduler) Delete(ctx context.Context, id string) (bool, error) {
	s.unarm(id)
	return s.store.Delete(ctx, id)
}

// ClearHistory delegates to the store, then re-normalizes: a cleared
// last_status can flip status away from "error" back to "scheduled".
func (s *Scheduler) ClearHistory(ctx context.Context, id string) (store.Task, error) {
	if _, ok, err := s.store.Get(ctx, id); err != nil {
		return store.Task{}, err
	} else if !ok {
		return store.Task{}, ErrTaskNotFound
	}

	if err := s.store.ClearHistory(ctx, id); err != nil {
		return store.Task{}, fmt.Errorf("clear history: %w", err)
	}

	task, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return store.Task{}, err
	}
	if !ok {
		return store.Task{}, ErrTaskNotFound
	}

	norm := normalize(task, s.zone, time.Now().UTC())
	if err := s.reconcileAfterExternalChange(ctx, task, norm); err != nil {
		return store.Task{}, err
	}
	return norm, nil
}

func materializeTriggerConfig(triggerType string, raw map[string]interface{}, now time.Time) (json.RawMessage, error) {
	switch trigger.Type(triggerType) {
	case trigger.Interval:
		cfg, err := trigger.ValidateInterval(raw)
		if err != nil {
			return nil, err
		}
		return json.Marshal(cfg)
	case trigger.Cron:
		cfg, err := trigger.ValidateCron(raw)
		if err != nil {
			return nil, err
		}
		return json.Marshal(cfg)
	case trigger.Date:
		cfg, err := trigger.ValidateAndMaterializeDate(raw, now)
		if err != nil {
			return nil, err
		}
		return json.Marshal(cfg)
	default:
		return nil, invalid("unknown trigger_type %q", triggerType)
	}
}
