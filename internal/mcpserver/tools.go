package mcpserver

import (
	mcpgo "github.com/mark3labs/mcp-go/mcp"
)

func createTaskTool() mcpgo.Tool {
	return mcpgo.NewTool("create_task",
		mcpgo.WithDescription("Register a new scheduled task."),
		mcpgo.WithString("name", mcpgo.Required(), mcpgo.Description("Human-readable task name (not persisted).")),
		mcpgo.WithString("trigger_type", mcpgo.Required(), mcpgo.Description("One of interval, cron, date.")),
		mcpgo.WithObject("trigger_config", mcpgo.Required(), mcpgo.Description("Shape depends on trigger_type.")),
		mcpgo.WithString("agent_prompt", mcpgo.Description("Non-empty instruction sent to the peer on fire.")),
		mcpgo.WithString("mcp_server", mcpgo.Description("Legacy field, retained but inert.")),
		mcpgo.WithString("mcp_tool", mcpgo.Description("Legacy field, retained but inert.")),
		mcpgo.WithString("mcp_arguments", mcpgo.Description("Legacy field, retained but inert.")),
	)
}

func listTasksTool() mcpgo.Tool {
	return mcpgo.NewTool("list_tasks",
		mcpgo.WithDescription("List every scheduled task, optionally filtered by status."),
		mcpgo.WithString("status", mcpgo.Description("Filter to this status value.")),
	)
}

func getTaskTool() mcpgo.Tool {
	return mcpgo.NewTool("get_task",
		mcpgo.WithDescription("Fetch one task by id."),
		mcpgo.WithString("task_id", mcpgo.Required()),
	)
}

func updateTaskTool() mcpgo.Tool {
	return mcpgo.NewTool("update_task",
		mcpgo.WithDescription("Update fields on an existing task. Changing trigger_type requires trigger_config."),
		mcpgo.WithString("task_id", mcpgo.Required()),
		mcpgo.WithString("name"),
		mcpgo.WithString("trigger_type"),
		mcpgo.WithObject("trigger_config"),
		mcpgo.WithString("agent_prompt"),
		mcpgo.WithString("mcp_server"),
		mcpgo.WithString("mcp_tool"),
		mcpgo.WithString("mcp_arguments"),
	)
}

func deleteTaskTool() mcpgo.Tool {
	return mcpgo.NewTool("delete_task",
		mcpgo.WithDescription("Delete a task and its history."),
		mcpgo.WithString("task_id", mcpgo.Required()),
	)
}

func pauseTaskTool() mcpgo.Tool {
	return mcpgo.NewTool("pause_task",
		mcpgo.WithDescription("Disable a task's scheduling."),
		mcpgo.WithString("task_id", mcpgo.Required()),
	)
}

func resumeTaskTool() mcpgo.Tool {
	return mcpgo.NewTool("resume_task",
		mcpgo.WithDescription("Re-enable a task's scheduling."),
		mcpgo.WithString("task_id", mcpgo.Required()),
	)
}

func executeTaskTool() mcpgo.Tool {
	return mcpgo.NewTool("execute_task",
		mcpgo.WithDescription("Run a fire now, regardless of schedule."),
		mcpgo.WithString("task_id", mcpgo.Required()),
	)
}

func clearTaskHistoryTool() mcpgo.Tool {
	return mcpgo.NewTool("clear_task_history",
		mcpgo.WithDescription("Clear a task's history and last-run fields."),
		mcpgo.WithString("task_id", mcpgo.Required()),
	)
}

func getCurrentTimeTool() mcpgo.Tool {
	return mcpgo.NewTool("get_current_time",
		mcpgo.WithDescription("Return the server's current time in its configured zone."),
		mcpgo.WithString("format", mcpgo.Description("One of iso, readable (default readable).")),
	)
}
