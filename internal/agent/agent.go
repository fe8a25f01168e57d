// Package agent drives the tool-call round-trip loop: send a message
// to the model, execute any tool calls it requests through the
// exploration guard and permission gate, feed results back, and
// repeat until the model stops calling tools or the round cap is hit.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/danib549/gofer/internal/audit"
	"github.com/danib549/gofer/internal/chat"
	"github.com/danib549/gofer/internal/client"
	"github.com/danib549/gofer/internal/exploration"
	"github.com/danib549/gofer/internal/git"
	"github.com/danib549/gofer/internal/logging"
	"github.com/danib549/gofer/internal/mode"
	"github.com/danib549/gofer/internal/permission"
	"github.com/danib549/gofer/internal/ratelimit"
	"github.com/danib549/gofer/internal/tools"
)

const (
	// MaxChatRounds caps tool-call rounds for a normal chat turn.
	MaxChatRounds = 20

	// MaxStepRounds caps tool-call rounds within one plan step.
	MaxStepRounds = 15
)

// TextHandler receives streamed assistant text.
type TextHandler func(text string)

// ToolActivityHandler observes tool execution. Status is "start",
// "ok", "error", "denied", or "blocked".
type ToolActivityHandler func(toolName string, args map[string]any, status string)

// Agent orchestrates one conversation between the user, the model,
// and the tool set.
type Agent struct {
	client       client.Client
	registry     *tools.Registry
	session      *chat.Session
	guard        *exploration.Guard
	gate         *permission.Gate
	modes        *mode.Manager
	checkpointer *git.Checkpointer
	limiter      *ratelimit.Limiter
	trail        *audit.Trail

	onText         TextHandler
	onToolActivity ToolActivityHandler

	// checkpointed is set after the first approved modification of the
	// current turn has been snapshotted.
	checkpointed bool
}

// Options configures a new Agent.
type Options struct {
	Client       client.Client
	Registry     *tools.Registry
	Session      *chat.Session
	Guard        *exploration.Guard
	Gate         *permission.Gate
	Modes        *mode.Manager
	Checkpointer *git.Checkpointer

	// Limiter paces outgoing model requests. Nil disables pacing.
	Limiter *ratelimit.Limiter

	// Trail audits tool executions and permission decisions. Nil
	// disables auditing.
	Trail *audit.Trail
}

// New creates an agent from its collaborators.
func New(opts Options) *Agent {
	return &Agent{
		client:       opts.Client,
		registry:     opts.Registry,
		session:      opts.Session,
		guard:        opts.Guard,
		gate:         opts.Gate,
		modes:        opts.Modes,
		checkpointer: opts.Checkpointer,
		limiter:      opts.Limiter,
		trail:        opts.Trail,
	}
}

// SetOnText sets the assistant text stream handler.
func (a *Agent) SetOnText(fn TextHandler) {
	a.onText = fn
}

// SetOnToolActivity sets the tool execution observer.
func (a *Agent) SetOnToolActivity(fn ToolActivityHandler) {
	a.onToolActivity = fn
}

// Session returns the agent's conversation session.
func (a *Agent) Session() *chat.Session {
	return a.session
}

// RunTurn processes one user message to completion and returns the
// accumulated assistant text. Exploration state resets at the turn
// boundary so discipline does not carry over from unrelated work.
func (a *Agent) RunTurn(ctx context.Context, message string) (string, error) {
	a.guard.Reset()
	a.checkpointed = false
	text, _, err := a.runLoop(ctx, message, MaxChatRounds)
	return text, err
}

// runLoop drives the round-trip protocol for one instruction. The
// boolean reports whether the loop stopped because an entire round of
// tool calls was denied or blocked.
func (a *Agent) runLoop(ctx context.Context, message string, maxRounds int) (string, bool, error) {
	a.session.AddUserMessage(message)

	var output strings.Builder
	var round int

	for round = 0; round < maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return output.String(), false, err
		}

		a.client.SetTools(a.registry.GeminiTools(a.modes.IsReadOnly()))

		resp, err := a.getModelResponse(ctx)
		if err != nil {
			// Cancellation aborts the current round only; history up to
			// this point is preserved.
			if ctx.Err() != nil {
				return output.String(), false, ctx.Err()
			}
			return output.String(), false, fmt.Errorf("model response error: %w", err)
		}

		a.session.AddContent(&genai.Content{
			Role:  genai.RoleModel,
			Parts: responseParts(resp),
		})

		if resp.Text != "" {
			output.WriteString(resp.Text)
			a.emitText(resp.Text)
		}

		if len(resp.FunctionCalls) == 0 {
			break
		}

		// Tool calls execute strictly sequentially, in the order the
		// model issued them.
		results := make([]*genai.Part, 0, len(resp.FunctionCalls))
		usable := 0
		for _, fc := range resp.FunctionCalls {
			result, ok := a.dispatchCall(ctx, fc)
			if ok {
				usable++
			}
			part := genai.NewPartFromFunctionResponse(fc.Name, result.ToMap())
			part.FunctionResponse.ID = fc.ID
			results = append(results, part)
		}

		a.session.AddContent(&genai.Content{
			Role:  genai.RoleUser,
			Parts: results,
		})

		// A round where every call was denied or blocked gives the
		// model nothing new to act on.
		if usable == 0 {
			a.emitText("\n[All tool calls were blocked or denied, stopping]\n")
			return output.String(), true, nil
		}
	}

	if round >= maxRounds {
		a.emitText("\n[Reached maximum tool-call rounds, stopping]\n")
	}
	return output.String(), false, nil
}

// dispatchCall runs one tool call through the full check chain. The
// boolean reports whether the result gives the model something usable
// (an execution result or user feedback, as opposed to a denial).
func (a *Agent) dispatchCall(ctx context.Context, fc *genai.FunctionCall) (tools.ToolResult, bool) {
	tool, found := a.registry.Get(fc.Name)
	if !found {
		logging.Warn("model requested unknown tool", "tool", fc.Name)
		return tools.NewErrorResult(fmt.Sprintf("unknown tool: %s", fc.Name)), false
	}

	if err := tool.Validate(fc.Args); err != nil {
		return tools.NewErrorResult(fmt.Sprintf("validation error: %s", err)), true
	}

	if !tool.RequiresBuildMode() {
		result := a.execute(ctx, tool, fc)
		if result.Success {
			// Only a successful exploration earns credit. A failed read
			// taught the model nothing about the codebase.
			a.guard.RecordExploration(fc.Name, fc.Args)
		}
		return result, true
	}

	// Mutating tools pass mode, exploration, and permission checks in
	// that order.
	if err := a.modes.RequireBuild(fc.Name); err != nil {
		a.notifyActivity(fc, "blocked")
		a.trail.Tool(fc.Name, fc.Args, "blocked", err.Error(), 0)
		return tools.NewErrorResult(err.Error()), false
	}

	if violation := a.guard.CheckModification(fc.Name, fc.Args); violation.Blocked {
		a.notifyActivity(fc, "blocked")
		a.trail.Tool(fc.Name, fc.Args, "blocked", violation.Reason, 0)
		logging.Info("exploration guard blocked modification", "tool", fc.Name, "reason", violation.Reason)
		return tools.NewErrorResult(violation.TeachingMessage), false
	}

	outcome := a.checkPermission(ctx, fc)
	a.trail.Permission(fc.Name, permissionOutcomeName(outcome.Status), outcome.Reason)
	switch outcome.Status {
	case permission.StatusDenied:
		a.notifyActivity(fc, "denied")
		reason := outcome.Reason
		if reason == "" {
			reason = "the user denied this action"
		}
		return tools.NewErrorResult(fmt.Sprintf(
			"Permission denied: %s. Do not repeat the blocked content of this call in your reply; acknowledge the denial and move on.",
			reason)), false

	case permission.StatusFeedback:
		a.notifyActivity(fc, "denied")
		return tools.NewSuccessResult(fmt.Sprintf(
			"The user did not approve this call and provided feedback instead: %q. Follow this guidance before retrying.",
			outcome.Feedback)), true
	}

	a.maybeCheckpoint(fc)
	result := a.execute(ctx, tool, fc)
	if result.Success {
		// A successful write or edit makes the file known without
		// counting as exploration.
		a.guard.RecordExploration(fc.Name, fc.Args)
	}
	return result, true
}

// checkPermission routes shell commands through the safe-command
// aware check and everything else through the standard one.
func (a *Agent) checkPermission(ctx context.Context, fc *genai.FunctionCall) permission.Outcome {
	if fc.Name == "bash" {
		if command, ok := tools.GetString(fc.Args, "command"); ok {
			return a.gate.CheckShell(ctx, command)
		}
	}
	return a.gate.Check(ctx, fc.Name, fc.Args)
}

// execute runs the tool and converts failures into error results.
func (a *Agent) execute(ctx context.Context, tool tools.Tool, fc *genai.FunctionCall) tools.ToolResult {
	a.notifyActivity(fc, "start")
	started := time.Now()

	result, err := tool.Execute(ctx, fc.Args)
	if err != nil {
		a.notifyActivity(fc, "error")
		a.trail.Tool(fc.Name, fc.Args, "error", err.Error(), time.Since(started))
		logging.Warn("tool execution failed", "tool", fc.Name, "error", err)
		return tools.NewErrorResult(err.Error())
	}

	if result.Success {
		a.notifyActivity(fc, "ok")
		a.trail.Tool(fc.Name, fc.Args, "ok", result.Content, time.Since(started))
	} else {
		a.notifyActivity(fc, "error")
		a.trail.Tool(fc.Name, fc.Args, "error", result.Error, time.Since(started))
	}
	return result
}

// permissionOutcomeName maps a gate status to its audit name.
func permissionOutcomeName(status permission.Status) string {
	switch status {
	case permission.StatusAllowed:
		return "allowed"
	case permission.StatusDenied:
		return "denied"
	default:
		return "feedback"
	}
}

// maybeCheckpoint snapshots the repository before the first approved
// modification of the turn.
func (a *Agent) maybeCheckpoint(fc *genai.FunctionCall) {
	if a.checkpointed || a.checkpointer == nil {
		return
	}
	a.checkpointed = true

	description := fc.Name
	if path, ok := tools.GetString(fc.Args, "file_path"); ok {
		description = fmt.Sprintf("%s %s", fc.Name, path)
	} else if path, ok := tools.GetString(fc.Args, "path"); ok {
		description = fmt.Sprintf("%s %s", fc.Name, path)
	}
	a.checkpointer.Checkpoint(description)
}

// getModelResponse issues the next request. When the last history
// entry carries tool results it uses the continuation call so the
// request keeps the call/result interleaving the API requires.
func (a *Agent) getModelResponse(ctx context.Context) (*client.Response, error) {
	history := a.session.GetHistory()
	if len(history) == 0 {
		return nil, fmt.Errorf("empty history")
	}

	if err := a.limiter.Wait(ctx, estimateHistoryTokens(history)); err != nil {
		return nil, err
	}
	last := history[len(history)-1]
	rest := history[:len(history)-1]

	if last.Role == string(genai.RoleUser) {
		var funcResponses []*genai.FunctionResponse
		for _, part := range last.Parts {
			if part.FunctionResponse != nil {
				funcResponses = append(funcResponses, part.FunctionResponse)
			}
		}
		if len(funcResponses) > 0 {
			stream, err := a.client.SendFunctionResponse(ctx, rest, funcResponses)
			if err != nil {
				return nil, err
			}
			return stream.Collect()
		}
	}

	var message string
	if last.Role == string(genai.RoleUser) {
		for _, part := range last.Parts {
			if part.Text != "" {
				message = part.Text
				break
			}
		}
	}
	if message == "" {
		message = "Continue."
	}

	stream, err := a.client.SendMessageWithHistory(ctx, rest, message)
	if err != nil {
		return nil, err
	}
	return stream.Collect()
}

// responseParts preserves the model's parts for history, falling back
// to reconstructing them from the collected text and calls.
func responseParts(resp *client.Response) []*genai.Part {
	if len(resp.Parts) > 0 {
		return resp.Parts
	}

	var parts []*genai.Part
	if resp.Text != "" {
		parts = append(parts, genai.NewPartFromText(resp.Text))
	}
	for _, fc := range resp.FunctionCalls {
		parts = append(parts, &genai.Part{FunctionCall: fc})
	}
	if len(parts) == 0 {
		parts = append(parts, genai.NewPartFromText(" "))
	}
	return parts
}

// estimateHistoryTokens approximates the prompt size of the request
// about to be sent.
func estimateHistoryTokens(history []*genai.Content) int64 {
	var total int64
	for _, content := range history {
		for _, part := range content.Parts {
			total += ratelimit.EstimateTokens(part.Text)
		}
	}
	return total
}

func (a *Agent) emitText(text string) {
	if a.onText != nil {
		a.onText(text)
	}
}

func (a *Agent) notifyActivity(fc *genai.FunctionCall, status string) {
	if a.onToolActivity != nil {
		a.onToolActivity(fc.Name, fc.Args, status)
	}
}
