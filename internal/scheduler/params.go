package scheduler

// CreateParams is the validated input to Create. TriggerConfigRaw is the
// caller-supplied map for the chosen TriggerType, validated and
// materialized by internal/trigger. Name is required and logged at
// creation but not persisted — see DESIGN.md's Open Question decision on
// the legacy name field.
type CreateParams struct {
	Name             string
	TriggerType      string
	TriggerConfigRaw map[string]interface{}
	AgentPrompt      *string
	MCPServer        *string
	MCPTool          *string
	MCPArguments     *string
}

// UpdatePatch is a partial mutation for Update. A field is only applied
// when its Has* flag is set, so a caller can distinguish "leave unchanged"
// from "set to this value" even for pointer-typed fields that can be
// cleared to nil.
type UpdatePatch struct {
	HasTriggerType   bool
	TriggerType      string
	HasTriggerConfig bool
	TriggerConfigRaw map[string]interface{}

	HasAgentPrompt bool
	AgentPrompt    *string

	HasMCPServer bool
	MCPServer    *string

	HasMCPTool bool
	MCPTool    *string

	HasMCPArguments bool
	MCPArguments    *string
}
