package mcpserver

import (
	"encoding/json"
	"fmt"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/nextlevelbuilder/schedule-task-mcp/internal/scheduler"
	"github.com/nextlevelbuilder/schedule-task-mcp/internal/trigger"
)

// successResult marshals v as the single text content block every tool
// in §6 returns, two-space indented, adding "success": true to the
// top-level object unless v already sets it.
func successResult(v interface{}) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("decode tool result: %w", err)
	}
	if _, ok := fields["success"]; !ok {
		fields["success"] = json.RawMessage("true")
	}
	b, err = json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// errorResult shapes err into the canonical {success:false, error,
// stack?} envelope (§7). Tool-call errors never propagate as transport
// errors; they return a result the caller reads as a failure.
func errorResult(err error) (*mcpgo.CallToolResult, error) {
	envelope := map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	}
	b, marshalErr := json.MarshalIndent(envelope, "", "  ")
	if marshalErr != nil {
		return mcpgo.NewToolResultError(err.Error()), nil
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// isValidationError reports whether err originated from trigger or
// scheduler argument validation, rather than a store or execution fault.
func isValidationError(err error) bool {
	switch err.(type) {
	case *trigger.ValidationError, *scheduler.ValidationError:
		return true
	default:
		return false
	}
}
