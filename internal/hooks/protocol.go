// Package hooks implements the Hook Dispatcher: the uniform process-level
// entry point every tool-call interception point funnels through. A hook is
// identified by (category, name), e.g. (validation, schema-pre).
package hooks

// Category groups related hook names.
type Category string

const (
	CategoryValidation    Category = "validation"
	CategoryContext       Category = "context"
	CategoryEnforcement   Category = "enforcement"
	CategoryLifecycle     Category = "lifecycle"
	CategoryObservability Category = "observability"
	CategorySession       Category = "session"
)

// Request is the single JSON object a hook reads from stdin.
type Request struct {
	SessionID      string         `json:"session_id"`
	TranscriptPath string         `json:"transcript_path,omitempty"`
	ToolName       string         `json:"tool_name"`
	ToolInput      map[string]any `json:"tool_input"`
	// ToolResult is present only for post-use hooks.
	ToolResult any `json:"tool_result,omitempty"`
}

// Decision is the permission verdict a hook may render.
type Decision string

const (
	// DecisionDeny cancels a pre-use tool call; reason is surfaced to the
	// agent.
	DecisionDeny Decision = "deny"
	// DecisionBlock marks a post-use tool call's effect as rejected.
	DecisionBlock Decision = "block"
	// DecisionApprove and DecisionDeny are the Stop-hook vocabulary.
	DecisionApprove Decision = "approve"
)

// HookSpecificOutput carries the inject-context payload. Transform-input
// payloads travel in Response.UpdatedInput.
type HookSpecificOutput struct {
	HookEventName     string `json:"hookEventName,omitempty"`
	AdditionalContext string `json:"additionalContext,omitempty"`
}

// Response is the single JSON object a hook writes to stdout before exiting
// 0. The zero value is Allow.
type Response struct {
	Decision            Decision             `json:"decision,omitempty"`
	Reason              string               `json:"reason,omitempty"`
	HookSpecificOutput  *HookSpecificOutput  `json:"hookSpecificOutput,omitempty"`
	UpdatedInput        map[string]any       `json:"updatedInput,omitempty"`
}

// Allow is the canonical "proceed unchanged" response: an empty object.
var Allow = Response{}

// Deny builds a pre-use deny response.
func Deny(reason string) Response {
	return Response{Decision: DecisionDeny, Reason: reason}
}

// Block builds a post-use block response.
func Block(reason string) Response {
	return Response{Decision: DecisionBlock, Reason: reason}
}

// InjectContext builds a context-injection response for the given hook
// event name (e.g. "PreToolUse", "PostToolUse").
func InjectContext(hookEventName, additionalContext string) Response {
	return Response{HookSpecificOutput: &HookSpecificOutput{
		HookEventName:     hookEventName,
		AdditionalContext: additionalContext,
	}}
}

// TransformInput builds a tool-input transformation response.
func TransformInput(updated map[string]any) Response {
	return Response{UpdatedInput: updated}
}

// Approve and DenyStop build Stop-hook decisions.
func Approve() Response { return Response{Decision: DecisionApprove} }
func DenyStop(reason string) Response {
	return Response{Decision: DecisionDeny, Reason: reason}
}
