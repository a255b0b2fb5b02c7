package mcpserver

import (
	"context"
	"errors"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/nextlevelbuilder/schedule-task-mcp/internal/scheduler"
)

func (s *Server) fail(name string, err error) (*mcpgo.CallToolResult, error) {
	if isValidationError(err) {
		s.logger.Info("tool call rejected", "tool", name, "error", err)
	} else {
		s.logger.Error("tool call failed", "tool", name, "error", err)
	}
	return errorResult(err)
}

func stringArg(args map[string]interface{}, key string) *string {
	v, ok := args[key]
	if !ok || v == nil {
		return nil
	}
	str, ok := v.(string)
	if !ok {
		return nil
	}
	return &str
}

func requiredStringArg(args map[string]interface{}, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", invalid("%s is required", key)
	}
	str, ok := v.(string)
	if !ok || str == "" {
		return "", invalid("%s must be a non-empty string", key)
	}
	return str, nil
}

func objectArg(args map[string]interface{}, key string) (map[string]interface{}, bool) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, false
	}
	m, ok := v.(map[string]interface{})
	return m, ok
}

func (s *Server) handleCreateTask(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	args := req.Params.Arguments

	name, err := requiredStringArg(args, "name")
	if err != nil {
		return s.fail("create_task", err)
	}
	triggerType, err := requiredStringArg(args, "trigger_type")
	if err != nil {
		return s.fail("create_task", err)
	}
	cfg, ok := objectArg(args, "trigger_config")
	if !ok {
		return s.fail("create_task", invalid("trigger_config is required"))
	}

	task, err := s.sch.Create(ctx, scheduler.CreateParams{
		Name:             name,
		TriggerType:      triggerType,
		TriggerConfigRaw: cfg,
		AgentPrompt:      stringArg(args, "agent_prompt"),
		MCPServer:        stringArg(args, "mcp_server"),
		MCPTool:          stringArg(args, "mcp_tool"),
		MCPArguments:     stringArg(args, "mcp_arguments"),
	})
	if err != nil {
		return s.fail("create_task", err)
	}
	return successResult(s.sch.Describe(task))
}

func (s *Server) handleListTasks(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	statusFilter := stringArg(req.Params.Arguments, "status")

	tasks, err := s.sch.List(ctx)
	if err != nil {
		return s.fail("list_tasks", err)
	}
	described := make([]scheduler.Described, 0, len(tasks))
	for _, t := range tasks {
		if statusFilter != nil && t.Status != *statusFilter {
			continue
		}
		described = append(described, s.sch.Describe(t))
	}
	return successResult(map[string]interface{}{
		"count": len(described),
		"tasks": described,
	})
}

func (s *Server) handleGetTask(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	taskID, err := requiredStringArg(req.Params.Arguments, "task_id")
	if err != nil {
		return s.fail("get_task", err)
	}
	task, err := s.sch.Get(ctx, taskID)
	if err != nil {
		return s.fail("get_task", translateNotFound(err))
	}
	return successResult(s.sch.Describe(task))
}

func (s *Server) handleUpdateTask(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	args := req.Params.Arguments
	taskID, err := requiredStringArg(args, "task_id")
	if err != nil {
		return s.fail("update_task", err)
	}

	patch := scheduler.UpdatePatch{}
	if v, ok := args["trigger_type"]; ok {
		patch.HasTriggerType = true
		str, _ := v.(string)
		patch.TriggerType = str
	}
	if cfg, ok := objectArg(args, "trigger_config"); ok {
		patch.HasTriggerConfig = true
		patch.TriggerConfigRaw = cfg
	}
	if _, ok := args["agent_prompt"]; ok {
		patch.HasAgentPrompt = true
		patch.AgentPrompt = stringArg(args, "agent_prompt")
	}
	if _, ok := args["mcp_server"]; ok {
		patch.HasMCPServer = true
		patch.MCPServer = stringArg(args, "mcp_server")
	}
	if _, ok := args["mcp_tool"]; ok {
		patch.HasMCPTool = true
		patch.MCPTool = stringArg(args, "mcp_tool")
	}
	if _, ok := args["mcp_arguments"]; ok {
		patch.HasMCPArguments = true
		patch.MCPArguments = stringArg(args, "mcp_arguments")
	}

	task, err := s.sch.Update(ctx, taskID, patch)
	if err != nil {
		return s.fail("update_task", translateNotFound(err))
	}
	return successResult(s.sch.Describe(task))
}

func (s *Server) handleDeleteTask(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	taskID, err := requiredStringArg(req.Params.Arguments, "task_id")
	if err != nil {
		return s.fail("delete_task", err)
	}
	existed, err := s.sch.Delete(ctx, taskID)
	if err != nil {
		return s.fail("delete_task", err)
	}
	if !existed {
		return s.fail("delete_task", scheduler.ErrTaskNotFound)
	}
	return successResult(map[string]interface{}{
		"success": true,
		"message": "Task deleted",
	})
}

func (s *Server) handlePauseTask(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	taskID, err := requiredStringArg(req.Params.Arguments, "task_id")
	if err != nil {
		return s.fail("pause_task", err)
	}
	task, err := s.sch.Pause(ctx, taskID)
	if err != nil {
		return s.fail("pause_task", translateNotFound(err))
	}
	return successResult(s.sch.Describe(task))
}

func (s *Server) handleResumeTask(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	taskID, err := requiredStringArg(req.Params.Arguments, "task_id")
	if err != nil {
		return s.fail("resume_task", err)
	}
	task, err := s.sch.Resume(ctx, taskID)
	if err != nil {
		return s.fail("resume_task", translateNotFound(err))
	}
	return successResult(s.sch.Describe(task))
}

func (s *Server) handleExecuteTask(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	taskID, err := requiredStringArg(req.Params.Arguments, "task_id")
	if err != nil {
		return s.fail("execute_task", err)
	}
	task, err := s.sch.Execute(ctx, taskID)
	if err != nil {
		return s.fail("execute_task", translateNotFound(err))
	}
	message := "Task executed"
	if task.LastMessage != nil {
		message = *task.LastMessage
	}
	return successResult(map[string]interface{}{
		"success": task.LastStatus != nil && *task.LastStatus == "success",
		"message": message,
	})
}

func (s *Server) handleClearTaskHistory(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	taskID, err := requiredStringArg(req.Params.Arguments, "task_id")
	if err != nil {
		return s.fail("clear_task_history", err)
	}
	task, err := s.sch.ClearHistory(ctx, taskID)
	if err != nil {
		return s.fail("clear_task_history", translateNotFound(err))
	}
	return successResult(s.sch.Describe(task))
}

func translateNotFound(err error) error {
	if errors.Is(err, scheduler.ErrTaskNotFound) {
		return errors.New("Task not found")
	}
	return err
}
