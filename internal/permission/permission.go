// Package permission mediates whether a tool invocation may proceed:
// policy rules per tool, a safe-command shortcut for shell invocations,
// and an interactive prompt with allow/always/deny/never/feedback
// responses.
package permission

import "fmt"

// Policy is the configured disposition for a tool.
type Policy string

const (
	// PolicyAllow executes without prompting.
	PolicyAllow Policy = "allow"
	// PolicyAsk prompts the user before executing.
	PolicyAsk Policy = "ask"
	// PolicyDeny denies execution of the tool.
	PolicyDeny Policy = "deny"
)

// Answer is a single response from the interactive prompt.
type Answer int

const (
	// AnswerAllow permits this one invocation.
	AnswerAllow Answer = iota
	// AnswerAlways permits the invocation and sets the tool's policy to allow.
	AnswerAlways
	// AnswerDeny refuses this one invocation.
	AnswerDeny
	// AnswerNever refuses and sets the tool's policy to deny.
	AnswerNever
	// AnswerFeedback refuses the invocation but carries a free-text
	// correction to relay to the model instead of an error.
	AnswerFeedback
)

// Response pairs an Answer with its optional feedback text.
type Response struct {
	Answer   Answer
	Feedback string
}

// Status discriminates the final outcome of a permission check.
type Status int

const (
	// StatusAllowed means the invocation may execute.
	StatusAllowed Status = iota
	// StatusDenied means the invocation must not execute.
	StatusDenied
	// StatusFeedback means the invocation must not execute, and the
	// user's correction should be relayed to the model as guidance,
	// not reported as a failure.
	StatusFeedback
)

// Outcome is the tagged result of a check. Call sites switch on Status
// instead of catching error types.
type Outcome struct {
	Status   Status
	Reason   string
	Feedback string
}

// Allowed reports whether the invocation may proceed.
func (o Outcome) Allowed() bool { return o.Status == StatusAllowed }

// Request describes the invocation being checked, shown to the user in
// the interactive prompt.
type Request struct {
	ToolName string
	Detail   string
	Args     map[string]any
}

// NewRequest builds a Request, deriving the display detail from the
// tool's arguments.
func NewRequest(toolName string, args map[string]any) *Request {
	return &Request{
		ToolName: toolName,
		Detail:   buildDetail(toolName, args),
		Args:     args,
	}
}

// Describe returns a one-line description of the request for display.
func (r *Request) Describe() string {
	switch r.ToolName {
	case "bash":
		return fmt.Sprintf("Run shell command: %s", r.Detail)
	case "write":
		return fmt.Sprintf("Write file: %s", r.Detail)
	case "edit":
		return fmt.Sprintf("Edit file: %s", r.Detail)
	default:
		if r.Detail != "" {
			return fmt.Sprintf("Use tool %s: %s", r.ToolName, r.Detail)
		}
		return fmt.Sprintf("Use tool %s", r.ToolName)
	}
}

func buildDetail(toolName string, args map[string]any) string {
	switch toolName {
	case "bash":
		if cmd, ok := args["command"].(string); ok {
			return cmd
		}
	case "write", "edit":
		if path, ok := args["file_path"].(string); ok {
			return path
		}
		if path, ok := args["path"].(string); ok {
			return path
		}
	}
	return ""
}
