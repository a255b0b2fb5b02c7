// Package mcpserver is the RPC surface (component F): it registers the
// fixed tool catalogue from §6 on top of github.com/mark3labs/mcp-go's
// server package, validates arguments, dispatches into the scheduler, and
// shapes responses into the canonical {success, ...} / {success:false,
// error, stack?} envelope. itsddvn-goclaw already depends on mcp-go but
// only ever uses its client package (internal/mcp/bridge_tool.go); this
// is the first place in the module tree exercising the server side.
package mcpserver

import (
	"context"
	"log/slog"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nextlevelbuilder/schedule-task-mcp/internal/scheduler"
	"github.com/nextlevelbuilder/schedule-task-mcp/internal/timeutil"
)

const (
	serverName    = "schedule-task-mcp"
	serverVersion = "1.0.0"
)

// Server wires the tool catalogue onto an *server.MCPServer and exposes
// the reverse sampling primitive the execution driver needs.
type Server struct {
	mcp      *server.MCPServer
	sch      *scheduler.Scheduler
	zone     *time.Location
	logger   *slog.Logger
	sessions *sessionTracker
}

// New builds the server and registers every tool in §6's catalogue.
func New(sch *scheduler.Scheduler, zone *time.Location) *Server {
	s := &Server{
		sch:      sch,
		zone:     zone,
		logger:   slog.With("component", "mcpserver"),
		sessions: &sessionTracker{},
	}
	s.mcp = server.NewMCPServer(
		serverName, serverVersion,
		server.WithToolCapabilities(true),
		server.WithHooks(s.sessions.hooks()),
	)
	s.registerTools()
	return s
}

// Serve blocks, speaking JSON-RPC 2.0 over stdio until the stream closes;
// ctx is not consulted, so the caller stops waiting on its own when ctx
// is cancelled. Per §1, the host process lifecycle (signal
// handling, stdout vs stderr routing) is an external collaborator; stdout
// is reserved for the transport, so every log line in this module goes to
// stderr via log/slog's default handler.
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(createTaskTool(), s.handleCreateTask)
	s.mcp.AddTool(listTasksTool(), s.handleListTasks)
	s.mcp.AddTool(getTaskTool(), s.handleGetTask)
	s.mcp.AddTool(updateTaskTool(), s.handleUpdateTask)
	s.mcp.AddTool(deleteTaskTool(), s.handleDeleteTask)
	s.mcp.AddTool(pauseTaskTool(), s.handlePauseTask)
	s.mcp.AddTool(resumeTaskTool(), s.handleResumeTask)
	s.mcp.AddTool(executeTaskTool(), s.handleExecuteTask)
	s.mcp.AddTool(clearTaskHistoryTool(), s.handleClearTaskHistory)
	s.mcp.AddTool(getCurrentTimeTool(), s.handleGetCurrentTime)
}

func (s *Server) handleGetCurrentTime(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	format, _ := req.Params.Arguments["format"].(string)
	now := timeutil.Now()
	var rendered string
	switch format {
	case "readable", "":
		rendered = timeutil.FormatLocal(now, s.zone)
	case "iso":
		rendered = now.Format(time.RFC3339)
	default:
		return errorResult(invalid("format must be one of iso, readable"))
	}
	return successResult(map[string]interface{}{
		"success": true,
		"time":    rendered,
		"zone":    s.zone.String(),
	})
}
