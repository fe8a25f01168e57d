package agent

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/danib549/gofer/internal/chat"
	"github.com/danib549/gofer/internal/client"
	"github.com/danib549/gofer/internal/exploration"
	"github.com/danib549/gofer/internal/mode"
	"github.com/danib549/gofer/internal/permission"
	"github.com/danib549/gofer/internal/plan"
	"github.com/danib549/gofer/internal/tools"
)

// fakeClient replays a fixed script of responses, one per request.
type fakeClient struct {
	responses []*client.Response
	calls     int
}

func (f *fakeClient) next() (*client.StreamingResponse, error) {
	if f.calls >= len(f.responses) {
		return nil, fmt.Errorf("unscripted request %d", f.calls+1)
	}
	resp := f.responses[f.calls]
	f.calls++

	ch := make(chan client.ResponseChunk, 1)
	ch <- client.ResponseChunk{
		Text:          resp.Text,
		FunctionCalls: resp.FunctionCalls,
		Done:          true,
	}
	close(ch)
	done := make(chan struct{})
	close(done)
	return &client.StreamingResponse{Chunks: ch, Done: done}, nil
}

func (f *fakeClient) SendMessage(ctx context.Context, message string) (*client.StreamingResponse, error) {
	return f.next()
}

func (f *fakeClient) SendMessageWithHistory(ctx context.Context, history []*genai.Content, message string) (*client.StreamingResponse, error) {
	return f.next()
}

func (f *fakeClient) SendFunctionResponse(ctx context.Context, history []*genai.Content, results []*genai.FunctionResponse) (*client.StreamingResponse, error) {
	return f.next()
}

func (f *fakeClient) SetTools(t []*genai.Tool)           {}
func (f *fakeClient) SetSystemInstruction(s string)      {}
func (f *fakeClient) GetModel() string                   { return "fake" }
func (f *fakeClient) SetModel(name string)               {}
func (f *fakeClient) Close() error                       { return nil }

// fakeTool counts executions and returns a canned result.
type fakeTool struct {
	name      string
	buildMode bool
	result    tools.ToolResult
	calls     int
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "test tool" }
func (f *fakeTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{Name: f.name}
}
func (f *fakeTool) Validate(args map[string]any) error { return nil }
func (f *fakeTool) RequiresBuildMode() bool            { return f.buildMode }
func (f *fakeTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	f.calls++
	return f.result, nil
}

type harness struct {
	agent   *Agent
	session *chat.Session
	modes   *mode.Manager
	guard   *exploration.Guard
}

func newHarness(fc *fakeClient, guardEnabled bool, defaultPolicy string, prompt permission.PromptFunc, toolList ...tools.Tool) *harness {
	registry := tools.NewRegistry()
	for _, tl := range toolList {
		registry.MustRegister(tl)
	}

	session := chat.NewSession()
	guard := exploration.NewGuard(guardEnabled)
	modes := mode.NewManager(mode.Build, mode.Interactive)
	gate := permission.NewGate(permission.NewRulesFromConfig(defaultPolicy, nil), prompt)

	a := New(Options{
		Client:   fc,
		Registry: registry,
		Session:  session,
		Guard:    guard,
		Gate:     gate,
		Modes:    modes,
	})
	return &harness{agent: a, session: session, modes: modes, guard: guard}
}

func textResponse(text string) *client.Response {
	return &client.Response{Text: text}
}

func callResponse(name string, args map[string]any) *client.Response {
	return &client.Response{
		FunctionCalls: []*genai.FunctionCall{{Name: name, Args: args}},
	}
}

// lastFunctionResponse returns the response map of the newest tool
// result in history.
func lastFunctionResponse(t *testing.T, session *chat.Session) map[string]any {
	t.Helper()
	history := session.GetHistory()
	for i := len(history) - 1; i >= 0; i-- {
		for _, part := range history[i].Parts {
			if part.FunctionResponse != nil {
				return part.FunctionResponse.Response
			}
		}
	}
	t.Fatal("no function response in history")
	return nil
}

func TestRunTurnPlainResponse(t *testing.T) {
	fc := &fakeClient{responses: []*client.Response{textResponse("hello there")}}
	h := newHarness(fc, false, "allow", nil)

	text, err := h.agent.RunTurn(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
	assert.Equal(t, 1, fc.calls)
	assert.Equal(t, 2, h.session.MessageCount())
}

func TestRunTurnExecutesToolThenFinishes(t *testing.T) {
	inspect := &fakeTool{name: "inspect", result: tools.NewSuccessResult("inspect output")}
	fc := &fakeClient{responses: []*client.Response{
		callResponse("inspect", nil),
		textResponse("done"),
	}}
	h := newHarness(fc, false, "allow", nil, inspect)

	text, err := h.agent.RunTurn(context.Background(), "investigate")
	require.NoError(t, err)
	assert.Equal(t, "done", text)
	assert.Equal(t, 1, inspect.calls)
	assert.Equal(t, 2, fc.calls)

	resp := lastFunctionResponse(t, h.session)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "inspect output", resp["content"])
}

func TestRunTurnUnknownToolStopsRound(t *testing.T) {
	fc := &fakeClient{responses: []*client.Response{
		callResponse("no_such_tool", nil),
	}}
	h := newHarness(fc, false, "allow", nil)

	var streamed strings.Builder
	h.agent.SetOnText(func(s string) { streamed.WriteString(s) })

	_, err := h.agent.RunTurn(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, 1, fc.calls)
	assert.Contains(t, streamed.String(), "blocked or denied")

	resp := lastFunctionResponse(t, h.session)
	assert.Contains(t, resp["error"], "unknown tool")
}

func TestPlanModeBlocksMutatingTool(t *testing.T) {
	writer := &fakeTool{name: "write", buildMode: true, result: tools.NewSuccessResult("wrote")}
	fc := &fakeClient{responses: []*client.Response{
		callResponse("write", map[string]any{"file_path": "/tmp/x"}),
	}}
	h := newHarness(fc, false, "allow", nil, writer)
	h.modes.ToPlan()

	_, err := h.agent.RunTurn(context.Background(), "change it")
	require.NoError(t, err)
	assert.Equal(t, 0, writer.calls)

	resp := lastFunctionResponse(t, h.session)
	assert.Contains(t, resp["error"], "/build")
}

func TestGuardBlocksUnexploredWrite(t *testing.T) {
	dir := t.TempDir()
	writer := &fakeTool{name: "write", buildMode: true, result: tools.NewSuccessResult("wrote")}
	fc := &fakeClient{responses: []*client.Response{
		callResponse("write", map[string]any{"file_path": dir + "/new.go", "content": "x"}),
	}}
	h := newHarness(fc, true, "allow", nil, writer)

	_, err := h.agent.RunTurn(context.Background(), "write the file")
	require.NoError(t, err)
	assert.Equal(t, 0, writer.calls)

	resp := lastFunctionResponse(t, h.session)
	assert.Contains(t, resp["error"], "EXPLORATION REQUIRED")
}

func TestPermissionDenialStopsRound(t *testing.T) {
	writer := &fakeTool{name: "write", buildMode: true, result: tools.NewSuccessResult("wrote")}
	fc := &fakeClient{responses: []*client.Response{
		callResponse("write", map[string]any{"file_path": "/tmp/x"}),
	}}
	deny := func(ctx context.Context, req *permission.Request) (permission.Response, error) {
		return permission.Response{Answer: permission.AnswerDeny}, nil
	}
	h := newHarness(fc, false, "ask", deny, writer)

	_, err := h.agent.RunTurn(context.Background(), "change it")
	require.NoError(t, err)
	assert.Equal(t, 0, writer.calls)
	assert.Equal(t, 1, fc.calls)

	resp := lastFunctionResponse(t, h.session)
	assert.Contains(t, resp["error"], "Permission denied")
}

func TestPermissionFeedbackKeepsLoopAlive(t *testing.T) {
	writer := &fakeTool{name: "write", buildMode: true, result: tools.NewSuccessResult("wrote")}
	fc := &fakeClient{responses: []*client.Response{
		callResponse("write", map[string]any{"file_path": "/tmp/x"}),
		textResponse("adjusting approach"),
	}}
	feedback := func(ctx context.Context, req *permission.Request) (permission.Response, error) {
		return permission.Response{Answer: permission.AnswerFeedback, Feedback: "use a different file"}, nil
	}
	h := newHarness(fc, false, "ask", feedback, writer)

	text, err := h.agent.RunTurn(context.Background(), "change it")
	require.NoError(t, err)
	assert.Equal(t, "adjusting approach", text)
	assert.Equal(t, 0, writer.calls)
	assert.Equal(t, 2, fc.calls)

	history := h.session.GetHistory()
	var feedbackSeen bool
	for _, content := range history {
		for _, part := range content.Parts {
			if part.FunctionResponse != nil {
				if c, ok := part.FunctionResponse.Response["content"].(string); ok &&
					strings.Contains(c, "use a different file") {
					feedbackSeen = true
				}
			}
		}
	}
	assert.True(t, feedbackSeen, "feedback text should reach the model as a success result")
}

func TestFailedExplorationEarnsNoCredit(t *testing.T) {
	reader := &fakeTool{name: "read", result: tools.NewErrorResult("file not found: /nope/missing.go")}
	fc := &fakeClient{responses: []*client.Response{
		callResponse("read", map[string]any{"path": "/nope/missing.go"}),
		callResponse("read", map[string]any{"path": "/nope/missing.go"}),
		textResponse("the file does not exist"),
	}}
	h := newHarness(fc, true, "allow", nil, reader)

	_, err := h.agent.RunTurn(context.Background(), "look at missing.go")
	require.NoError(t, err)
	assert.Equal(t, 2, reader.calls)

	// Failed reads taught the model nothing; the guard still blocks.
	assert.Equal(t, 0, h.guard.GetSummary().ExplorationCount)
	v := h.guard.CheckModification("edit", map[string]any{"file_path": "/nope/missing.go"})
	assert.True(t, v.Blocked)
}

func TestSuccessfulExplorationEarnsCredit(t *testing.T) {
	reader := &fakeTool{name: "read", result: tools.NewSuccessResult("package main")}
	fc := &fakeClient{responses: []*client.Response{
		callResponse("read", map[string]any{"path": "/tmp/main.go"}),
		textResponse("read it"),
	}}
	h := newHarness(fc, true, "allow", nil, reader)

	_, err := h.agent.RunTurn(context.Background(), "look at main.go")
	require.NoError(t, err)
	assert.Equal(t, 1, h.guard.GetSummary().ExplorationCount)
}

func TestMixedBatchKeepsOrderAndContinues(t *testing.T) {
	inspect := &fakeTool{name: "inspect", result: tools.NewSuccessResult("data")}
	writer := &fakeTool{name: "write", buildMode: true, result: tools.NewSuccessResult("wrote")}
	fc := &fakeClient{responses: []*client.Response{
		{FunctionCalls: []*genai.FunctionCall{
			{Name: "inspect", Args: nil},
			{Name: "write", Args: map[string]any{"file_path": "/tmp/x"}},
			{Name: "inspect", Args: nil},
		}},
		textResponse("done"),
	}}
	deny := func(ctx context.Context, req *permission.Request) (permission.Response, error) {
		return permission.Response{Answer: permission.AnswerDeny}, nil
	}
	h := newHarness(fc, false, "ask", deny, inspect, writer)

	text, err := h.agent.RunTurn(context.Background(), "do three things")
	require.NoError(t, err)

	// One denied call in the middle must not stop the round: the other
	// calls execute and the loop continues.
	assert.Equal(t, "done", text)
	assert.Equal(t, 2, fc.calls)
	assert.Equal(t, 2, inspect.calls)
	assert.Equal(t, 0, writer.calls)

	// Results go back in the order the calls were issued.
	var batch []*genai.FunctionResponse
	for _, content := range h.session.GetHistory() {
		var responses []*genai.FunctionResponse
		for _, part := range content.Parts {
			if part.FunctionResponse != nil {
				responses = append(responses, part.FunctionResponse)
			}
		}
		if len(responses) == 3 {
			batch = responses
		}
	}
	require.Len(t, batch, 3, "expected one round with three tool results")
	assert.Equal(t, "inspect", batch[0].Name)
	assert.Equal(t, true, batch[0].Response["success"])
	assert.Equal(t, "write", batch[1].Name)
	assert.Equal(t, false, batch[1].Response["success"])
	assert.Contains(t, batch[1].Response["error"], "Permission denied")
	assert.Equal(t, "inspect", batch[2].Name)
	assert.Equal(t, true, batch[2].Response["success"])
}

func TestRunTurnHitsRoundCap(t *testing.T) {
	inspect := &fakeTool{name: "inspect", result: tools.NewSuccessResult("more")}

	responses := make([]*client.Response, MaxChatRounds)
	for i := range responses {
		responses[i] = callResponse("inspect", nil)
	}
	fc := &fakeClient{responses: responses}
	h := newHarness(fc, false, "allow", nil, inspect)

	var streamed strings.Builder
	h.agent.SetOnText(func(s string) { streamed.WriteString(s) })

	_, err := h.agent.RunTurn(context.Background(), "loop forever")
	require.NoError(t, err)
	assert.Equal(t, MaxChatRounds, fc.calls)
	assert.Equal(t, MaxChatRounds, inspect.calls)
	assert.Contains(t, streamed.String(), "maximum tool-call rounds")
}

func TestRunTurnCancelledContext(t *testing.T) {
	fc := &fakeClient{responses: []*client.Response{textResponse("x")}}
	h := newHarness(fc, false, "allow", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.agent.RunTurn(ctx, "hi")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fc.calls)
}

func TestRunPlanExecutesAllSteps(t *testing.T) {
	fc := &fakeClient{responses: []*client.Response{
		textResponse("did step one"),
		textResponse("did step two"),
	}}
	h := newHarness(fc, false, "allow", nil)

	manager := plan.NewManager(false)
	manager.CreatePlan("Test plan", "", "do two things")
	manager.AddStep("first", "")
	manager.AddStep("second", "")

	require.NoError(t, h.agent.RunPlan(context.Background(), manager, nil))

	p := manager.GetCurrentPlan()
	assert.True(t, p.IsComplete())
	assert.Equal(t, plan.StatusCompleted, p.Status)
	assert.Equal(t, "did step one", p.GetStep(1).Output)
	assert.Equal(t, "did step two", p.GetStep(2).Output)
}

func TestRunPlanWithoutPlanFails(t *testing.T) {
	fc := &fakeClient{}
	h := newHarness(fc, false, "allow", nil)

	err := h.agent.RunPlan(context.Background(), plan.NewManager(false), nil)
	assert.Error(t, err)
}

func TestRunPlanStepFailureSkip(t *testing.T) {
	writer := &fakeTool{name: "write", buildMode: true, result: tools.NewSuccessResult("wrote")}
	fc := &fakeClient{responses: []*client.Response{
		// Step one: the only tool call is denied, so the step fails.
		callResponse("write", map[string]any{"file_path": "/tmp/x"}),
		textResponse("did step two"),
	}}
	deny := func(ctx context.Context, req *permission.Request) (permission.Response, error) {
		return permission.Response{Answer: permission.AnswerDeny}, nil
	}
	h := newHarness(fc, false, "ask", deny, writer)

	manager := plan.NewManager(false)
	manager.CreatePlan("Test plan", "", "")
	manager.AddStep("first", "")
	manager.AddStep("second", "")

	var failedSteps []int
	handler := func(step *plan.Step, reason string) StepFailureDecision {
		failedSteps = append(failedSteps, step.ID)
		return StepSkip
	}

	require.NoError(t, h.agent.RunPlan(context.Background(), manager, handler))

	p := manager.GetCurrentPlan()
	assert.Equal(t, []int{1}, failedSteps)
	assert.Equal(t, plan.StatusSkipped, p.GetStep(1).Status)
	assert.Equal(t, plan.StatusCompleted, p.GetStep(2).Status)
	assert.Equal(t, plan.StatusCompleted, p.Status)
}

func TestRunPlanStepFailureRetry(t *testing.T) {
	writer := &fakeTool{name: "write", buildMode: true, result: tools.NewSuccessResult("wrote")}
	fc := &fakeClient{responses: []*client.Response{
		// Step one fails twice: retried once, then skipped.
		callResponse("write", map[string]any{"file_path": "/tmp/x"}),
		callResponse("write", map[string]any{"file_path": "/tmp/x"}),
		textResponse("did step two"),
	}}
	deny := func(ctx context.Context, req *permission.Request) (permission.Response, error) {
		return permission.Response{Answer: permission.AnswerDeny}, nil
	}
	h := newHarness(fc, false, "ask", deny, writer)

	manager := plan.NewManager(false)
	manager.CreatePlan("Test plan", "", "")
	manager.AddStep("first", "")
	manager.AddStep("second", "")

	var failedSteps []int
	handler := func(step *plan.Step, reason string) StepFailureDecision {
		failedSteps = append(failedSteps, step.ID)
		if len(failedSteps) == 1 {
			return StepRetry
		}
		return StepSkip
	}

	require.NoError(t, h.agent.RunPlan(context.Background(), manager, handler))

	p := manager.GetCurrentPlan()
	assert.Equal(t, []int{1, 1}, failedSteps)
	assert.Equal(t, 3, fc.calls)
	assert.Equal(t, plan.StatusSkipped, p.GetStep(1).Status)
	assert.Equal(t, plan.StatusCompleted, p.GetStep(2).Status)
}

func TestRunPlanCancelledContextPreservesState(t *testing.T) {
	fc := &fakeClient{responses: []*client.Response{textResponse("never sent")}}
	h := newHarness(fc, false, "allow", nil)

	manager := plan.NewManager(false)
	manager.CreatePlan("Test plan", "", "")
	manager.AddStep("first", "")
	manager.AddStep("second", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.agent.RunPlan(ctx, manager, nil)
	assert.ErrorIs(t, err, context.Canceled)

	// Aborting the run leaves the plan resumable.
	p := manager.GetCurrentPlan()
	assert.Equal(t, plan.StatusPending, p.GetStep(1).Status)
	assert.Equal(t, plan.StatusPending, p.GetStep(2).Status)
}

func TestRunPlanStepFailureAbort(t *testing.T) {
	writer := &fakeTool{name: "write", buildMode: true, result: tools.NewSuccessResult("wrote")}
	fc := &fakeClient{responses: []*client.Response{
		callResponse("write", map[string]any{"file_path": "/tmp/x"}),
	}}
	deny := func(ctx context.Context, req *permission.Request) (permission.Response, error) {
		return permission.Response{Answer: permission.AnswerDeny}, nil
	}
	h := newHarness(fc, false, "ask", deny, writer)

	manager := plan.NewManager(false)
	manager.CreatePlan("Test plan", "", "")
	manager.AddStep("first", "")
	manager.AddStep("second", "")

	err := h.agent.RunPlan(context.Background(), manager, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aborted at step 1")
	assert.Equal(t, plan.StatusPending, manager.GetCurrentPlan().GetStep(2).Status)
}
