package scheduler

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nextlevelbuilder/schedule-task-mcp/internal/store"
	"github.com/nextlevelbuilder/schedule-task-mcp/internal/timeutil"
	"github.com/nextlevelbuilder/schedule-task-mcp/internal/trigger"
)

// Described is the presentation shape produced by Describe: task fields
// plus trigger_summary, *_local mirrors of every absolute timestamp, and
// (for date triggers) a trigger_config_local mirror carrying run_date_local.
type Described struct {
	ID             string                  `json:"id"`
	TriggerType    string                  `json:"trigger_type"`
	TriggerConfig  json.RawMessage         `json:"trigger_config"`
	TriggerLocal   json.RawMessage         `json:"trigger_config_local,omitempty"`
	TriggerSummary string                  `json:"trigger_summary"`
	AgentPrompt    *string                 `json:"agent_prompt,omitempty"`
	MCPServer      *string                 `json:"mcp_server,omitempty"`
	MCPTool        *string                 `json:"mcp_tool,omitempty"`
	MCPArguments   *string                 `json:"mcp_arguments,omitempty"`
	Enabled        bool                    `json:"enabled"`
	Status         string                  `json:"status"`
	CreatedAt      string                  `json:"created_at"`
	CreatedAtLocal string                  `json:"created_at_local"`
	UpdatedAt      string                  `json:"updated_at"`
	UpdatedAtLocal string                  `json:"updated_at_local"`
	LastRun        *string                 `json:"last_run,omitempty"`
	LastRunLocal   *string                 `json:"last_run_local,omitempty"`
	LastStatus     *string                 `json:"last_status,omitempty"`
	LastMessage    *string                 `json:"last_message,omitempty"`
	NextRun        *string                 `json:"next_run,omitempty"`
	NextRunLocal   *string                 `json:"next_run_local,omitempty"`
	History        []DescribedHistoryEntry `json:"history"`
}

// DescribedHistoryEntry mirrors store.HistoryEntry with a localized
// run_at_local field added.
type DescribedHistoryEntry struct {
	RunAt      string  `json:"run_at"`
	RunAtLocal string  `json:"run_at_local"`
	Status     string  `json:"status"`
	Message    *string `json:"message,omitempty"`
}

// Describe projects task (assumed already normalized, e.g. via Get/List)
// to its presentation shape, per §4.D.
func (s *Scheduler) Describe(task store.Task) Described {
	loc := s.zone
	d := Described{
		ID:             task.ID,
		TriggerType:    task.TriggerType,
		TriggerConfig:  task.TriggerConfig,
		TriggerSummary: triggerSummary(task, loc),
		AgentPrompt:    task.AgentPrompt,
		MCPServer:      task.MCPServer,
		MCPTool:        task.MCPTool,
		MCPArguments:   task.MCPArguments,
		Enabled:        task.Enabled,
		Status:         task.Status,
		CreatedAt:      formatUTC(task.CreatedAt),
		CreatedAtLocal: timeutil.FormatLocal(task.CreatedAt, loc),
		UpdatedAt:      formatUTC(task.UpdatedAt),
		UpdatedAtLocal: timeutil.FormatLocal(task.UpdatedAt, loc),
		LastStatus:     task.LastStatus,
		LastMessage:    task.LastMessage,
		History:        make([]DescribedHistoryEntry, 0, len(task.History)),
	}

	if task.LastRun != nil {
		run := formatUTC(*task.LastRun)
		runLocal := timeutil.FormatLocal(*task.LastRun, loc)
		d.LastRun, d.LastRunLocal = &run, &runLocal
	}
	if task.NextRun != nil {
		next := formatUTC(*task.NextRun)
		nextLocal := timeutil.FormatLocal(*task.NextRun, loc)
		d.NextRun, d.NextRunLocal = &next, &nextLocal
	}

	if trigger.Type(task.TriggerType) == trigger.Date {
		var dc trigger.DateConfig
		if err := json.Unmarshal(task.TriggerConfig, &dc); err == nil && dc.RunDate != nil {
			mirror, err := json.Marshal(map[string]string{
				"run_date_local": timeutil.FormatLocal(*dc.RunDate, loc),
			})
			if err == nil {
				d.TriggerLocal = mirror
			}
		}
	}

	for _, h := range task.History {
		d.History = append(d.History, DescribedHistoryEntry{
			RunAt:      formatUTC(h.RunAt),
			RunAtLocal: timeutil.FormatLocal(h.RunAt, loc),
			Status:     h.Status,
			Message:    h.Message,
		})
	}
	return d
}

func formatUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// triggerSummary renders the localized one-line summary: "每<N><unit>"
// for interval, "Cron: <expr>" for cron, "一次性 @ <local timestamp>" for
// date — matching the exact forms spec.md §6 specifies.
func triggerSummary(task store.Task, loc *time.Location) string {
	switch trigger.Type(task.TriggerType) {
	case trigger.Interval:
		var cfg trigger.IntervalConfig
		if err := json.Unmarshal(task.TriggerConfig, &cfg); err != nil {
			return "interval"
		}
		return "每" + intervalParts(cfg)
	case trigger.Cron:
		var cfg trigger.CronConfig
		if err := json.Unmarshal(task.TriggerConfig, &cfg); err != nil {
			return "cron"
		}
		return "Cron: " + cfg.Expression
	case trigger.Date:
		var cfg trigger.DateConfig
		if err := json.Unmarshal(task.TriggerConfig, &cfg); err != nil || cfg.RunDate == nil {
			return "一次性"
		}
		return "一次性 @ " + timeutil.FormatLocal(*cfg.RunDate, loc)
	default:
		return string(task.TriggerType)
	}
}

func intervalParts(cfg trigger.IntervalConfig) string {
	var parts []string
	if cfg.Days != nil {
		parts = append(parts, fmt.Sprintf("%s天", trimNum(*cfg.Days)))
	}
	if cfg.Hours != nil {
		parts = append(parts, fmt.Sprintf("%s小时", trimNum(*cfg.Hours)))
	}
	if cfg.Minutes != nil {
		parts = append(parts, fmt.Sprintf("%s分钟", trimNum(*cfg.Minutes)))
	}
	if cfg.Seconds != nil {
		parts = append(parts, fmt.Sprintf("%s秒", trimNum(*cfg.Seconds)))
	}
	if len(parts) == 0 {
		return "0秒"
	}
	return strings.Join(parts, "")
}

// trimNum renders a float with no trailing ".0" for whole numbers, so
// "every 30 minutes" reads as "每30分钟" rather than "每30.0分钟".
func trimNum(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", f), "0"), ".")
}
