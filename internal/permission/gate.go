package permission

import (
	"context"
	"sync"

	"github.com/danib549/gofer/internal/logging"
)

// PromptFunc asks the user about a request and returns their answer.
// Injectable for testing; defaults to the terminal prompt.
type PromptFunc func(ctx context.Context, req *Request) (Response, error)

// SafeCommandFunc reports whether a shell command is safe to run without
// prompting. Supplied by configuration.
type SafeCommandFunc func(command string) bool

// Gate decides whether a tool invocation may proceed.
//
// Resolution order per check: auto mode bypasses everything; otherwise
// the tool's policy applies (allow proceeds, deny refuses, ask prompts).
// CheckShell additionally short-circuits on the safe-command predicate
// when auto-approval of safe commands is enabled.
type Gate struct {
	rules           *Rules
	autoMode        bool
	prompt          PromptFunc
	safeCommand     SafeCommandFunc
	autoApproveSafe bool

	mu sync.Mutex
}

// NewGate creates a Gate with the given rules. A nil rules uses defaults;
// a nil prompt uses the terminal prompt.
func NewGate(rules *Rules, prompt PromptFunc) *Gate {
	if rules == nil {
		rules = DefaultRules()
	}
	if prompt == nil {
		prompt = TerminalPrompt
	}
	return &Gate{
		rules:  rules,
		prompt: prompt,
	}
}

// SetAutoMode enables or disables the global bypass. When on, every
// check allows without a policy lookup or prompt.
func (g *Gate) SetAutoMode(auto bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.autoMode = auto
}

// AutoMode reports whether the global bypass is on.
func (g *Gate) AutoMode() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.autoMode
}

// SetSafeCommandCheck configures the safe-command predicate and whether
// matching commands skip the prompt flow entirely.
func (g *Gate) SetSafeCommandCheck(fn SafeCommandFunc, autoApprove bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.safeCommand = fn
	g.autoApproveSafe = autoApprove
}

// SetPolicy sets a tool's policy directly.
func (g *Gate) SetPolicy(toolName string, policy Policy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rules.SetPolicy(toolName, policy)
}

// GetPolicy returns a tool's effective policy.
func (g *Gate) GetPolicy(toolName string) Policy {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rules.GetPolicy(toolName)
}

// Check runs the full permission flow for a tool invocation and returns
// a tagged Outcome.
func (g *Gate) Check(ctx context.Context, toolName string, args map[string]any) Outcome {
	g.mu.Lock()
	if g.autoMode {
		g.mu.Unlock()
		return Outcome{Status: StatusAllowed, Reason: "auto mode"}
	}
	policy := g.rules.GetPolicy(toolName)
	g.mu.Unlock()

	switch policy {
	case PolicyAllow:
		return Outcome{Status: StatusAllowed, Reason: "allowed by policy"}
	case PolicyDeny:
		return Outcome{Status: StatusDenied, Reason: "Permission denied by policy for tool: " + toolName}
	}

	return g.ask(ctx, NewRequest(toolName, args))
}

// CheckShell runs the permission flow for a shell command. Safe commands
// skip the prompt entirely when auto-approval is configured.
func (g *Gate) CheckShell(ctx context.Context, command string) Outcome {
	g.mu.Lock()
	safe := g.safeCommand
	approveSafe := g.autoApproveSafe
	g.mu.Unlock()

	if approveSafe && safe != nil && safe(command) {
		logging.Debug("safe command auto-approved", "command", command)
		return Outcome{Status: StatusAllowed, Reason: "safe command"}
	}

	return g.Check(ctx, "bash", map[string]any{"command": command})
}

// ask prompts the user and converts their answer to an Outcome,
// mutating the rule set on always/never.
func (g *Gate) ask(ctx context.Context, req *Request) Outcome {
	g.mu.Lock()
	prompt := g.prompt
	g.mu.Unlock()

	resp, err := prompt(ctx, req)
	if err != nil {
		return Outcome{Status: StatusDenied, Reason: "permission prompt failed: " + err.Error()}
	}

	switch resp.Answer {
	case AnswerAllow:
		return Outcome{Status: StatusAllowed, Reason: "allowed by user"}

	case AnswerAlways:
		g.mu.Lock()
		g.rules.SetPolicy(req.ToolName, PolicyAllow)
		g.mu.Unlock()
		logging.Info("tool policy set to allow", "tool", req.ToolName)
		return Outcome{Status: StatusAllowed, Reason: "allowed by user (always)"}

	case AnswerNever:
		g.mu.Lock()
		g.rules.SetPolicy(req.ToolName, PolicyDeny)
		g.mu.Unlock()
		logging.Info("tool policy set to deny", "tool", req.ToolName)
		return Outcome{Status: StatusDenied, Reason: "Permission denied by user for tool: " + req.ToolName}

	case AnswerFeedback:
		return Outcome{Status: StatusFeedback, Feedback: resp.Feedback}

	default:
		return Outcome{Status: StatusDenied, Reason: "Permission denied by user for tool: " + req.ToolName}
	}
}
