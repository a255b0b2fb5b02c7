// Package executor runs one fire of a task: it stamps the running state,
// optionally performs a reverse sampling round trip through the peer,
// interprets the result, and persists the outcome as the execution
// pipeline described in §4.E — generalized from the timeout-bounded
// reverse-call pattern the teacher uses for its own MCP tool bridge.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nextlevelbuilder/schedule-task-mcp/internal/store"
	"github.com/nextlevelbuilder/schedule-task-mcp/internal/trigger"
)

// SamplingClient is the reverse-RPC primitive the RPC surface (component
// F) exposes to the execution driver: issue a sampling/createMessage
// request carrying prompt, bounded by timeout, and return the assistant's
// text or a typed error (ErrSamplingTimeout on expiry).
type SamplingClient interface {
	RequestSampling(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}

// ErrSamplingTimeout is returned by a SamplingClient when the peer does
// not answer within the configured timeout.
var ErrSamplingTimeout = errors.New("sampling request timed out")

// ErrSamplingUnavailable indicates no reverse-RPC channel is currently
// connected (e.g. fired before a client session exists).
var ErrSamplingUnavailable = errors.New("sampling channel unavailable")

// Driver runs fires and persists their outcome through the store.
type Driver struct {
	store    *store.Store
	sampling SamplingClient
	timeout  time.Duration
	logger   *slog.Logger
}

// New builds an execution driver. timeout is the configured sampling
// round-trip bound (SCHEDULE_TASK_SAMPLING_TIMEOUT, default 180s).
func New(st *store.Store, sampling SamplingClient, timeout time.Duration) *Driver {
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &Driver{
		store:    st,
		sampling: sampling,
		timeout:  timeout,
		logger:   slog.With("component", "executor"),
	}
}

// SetSampling attaches the reverse-RPC channel after construction. The RPC
// surface (component F) is built from the scheduler, which is in turn
// built from this driver, so the sampling client cannot be known at New
// time; main wires it in once every component exists.
func (d *Driver) SetSampling(sampling SamplingClient) {
	d.sampling = sampling
}

// Outcome summarizes one completed fire, for the scheduler's normalization
// pass and the bounded in-process run log.
type Outcome struct {
	TaskID  string
	Success bool
	Message string
	RanAt   time.Time
	NextRun *time.Time
}

// Fire runs the full lifecycle of §4.E against the current persisted
// state of task (trigger_type, trigger_config, agent_prompt, and legacy
// fields are read from it; task.ID addresses the row). zone is used to
// recompute next_run for cron triggers.
func (d *Driver) Fire(ctx context.Context, task store.Task, zone *time.Location) (Outcome, error) {
	ranAt := time.Now().UTC()

	runningMsg := "running"
	if err := d.store.UpdateStatus(ctx, task.ID, store.StatusUpdate{
		Status:         strPtr("running"),
		LastRunSet:     true,
		LastRun:        &ranAt,
		LastStatusSet:  true,
		LastStatus:     &runningMsg,
		LastMessageSet: true,
		LastMessage:    nil,
	}); err != nil {
		return Outcome{}, fmt.Errorf("stamp running state: %w", err)
	}

	message, fireErr := d.perform(ctx, task)

	success := fireErr == nil
	finalStatus := "success"
	if !success {
		finalStatus = "error"
		message = fireErr.Error()
	}

	var nextRun *time.Time
	isDate := task.TriggerType == string(trigger.Date)
	taskStatus := "scheduled"

	if isDate && success {
		taskStatus = "completed"
		nextRun = nil
	} else {
		// next_run counts from the moment the fire finished, so a slow fire
		// drops missed ticks instead of queueing them. A failed scheduled
		// date fire yields nil here too: its run_date has lapsed by the time
		// the timer fires, so NextFire reports none. A manual execute before
		// run_date keeps run_date as next_run.
		next, err := trigger.NextFire(trigger.Type(task.TriggerType), task.TriggerConfig, time.Now().UTC(), zone, nil)
		if err != nil {
			d.logger.Error("recompute next_fire failed", "task_id", task.ID, "error", err)
		} else {
			nextRun = next
		}
		if !success {
			taskStatus = "error"
		}
	}

	statusPtr := &finalStatus
	upd := store.StatusUpdate{
		Status:         &taskStatus,
		LastStatusSet:  true,
		LastStatus:     statusPtr,
		LastMessageSet: true,
		LastMessage:    &message,
		NextRunSet:     true,
		NextRun:        nextRun,
	}
	if isDate && success {
		enabled := false
		upd.Enabled = &enabled
	}
	if err := d.store.UpdateStatus(ctx, task.ID, upd); err != nil {
		return Outcome{}, fmt.Errorf("persist fire outcome: %w", err)
	}

	if err := d.store.AppendHistory(ctx, task.ID, store.HistoryEntry{
		RunAt:   ranAt,
		Status:  finalStatus,
		Message: &message,
	}); err != nil {
		return Outcome{}, fmt.Errorf("append history: %w", err)
	}

	return Outcome{
		TaskID:  task.ID,
		Success: success,
		Message: message,
		RanAt:   ranAt,
		NextRun: nextRun,
	}, nil
}

// perform executes steps 2–4 of §4.E and returns the success message, or
// an error whose text becomes the persisted failure message.
func (d *Driver) perform(ctx context.Context, task store.Task) (string, error) {
	if task.AgentPrompt != nil && *task.AgentPrompt != "" {
		return d.performSampling(ctx, *task.AgentPrompt)
	}
	if task.MCPServer != nil || task.MCPTool != nil {
		return fmt.Sprintf("Task executed with legacy tool configuration (mcp_server=%s, mcp_tool=%s)",
			strOrEmpty(task.MCPServer), strOrEmpty(task.MCPTool)), nil
	}
	return fmt.Sprintf("Task executed: %s (no action configured)", task.ID), nil
}

func (d *Driver) performSampling(ctx context.Context, prompt string) (string, error) {
	if d.sampling == nil {
		return "", ErrSamplingUnavailable
	}

	text, err := d.sampling.RequestSampling(ctx, prompt, d.timeout)
	if err != nil {
		if errors.Is(err, ErrSamplingTimeout) || errors.Is(err, context.DeadlineExceeded) {
			seconds := int(d.timeout.Round(time.Second) / time.Second)
			return "", fmt.Errorf("Sampling request timed out after %ds", seconds)
		}
		return "", fmt.Errorf("sampling request failed: %w", err)
	}
	return fmt.Sprintf("Sampling response: %s", text), nil
}

func strPtr(s string) *string { return &s }

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
