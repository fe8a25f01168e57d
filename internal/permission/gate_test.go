package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedPrompt(resp Response) PromptFunc {
	return func(ctx context.Context, req *Request) (Response, error) {
		return resp, nil
	}
}

func panicPrompt(t *testing.T) PromptFunc {
	return func(ctx context.Context, req *Request) (Response, error) {
		t.Fatal("prompt should not have been called")
		return Response{}, nil
	}
}

func TestPolicyAllowSkipsPrompt(t *testing.T) {
	g := NewGate(DefaultRules(), panicPrompt(t))
	out := g.Check(context.Background(), "read", map[string]any{"path": "x"})
	assert.True(t, out.Allowed())
}

func TestPolicyDenySkipsPrompt(t *testing.T) {
	rules := DefaultRules()
	rules.SetPolicy("bash", PolicyDeny)

	g := NewGate(rules, panicPrompt(t))
	out := g.Check(context.Background(), "bash", map[string]any{"command": "ls"})
	assert.Equal(t, StatusDenied, out.Status)
	assert.Contains(t, out.Reason, "denied by policy")
}

func TestAutoModeBypassesEverything(t *testing.T) {
	rules := DefaultRules()
	rules.SetPolicy("bash", PolicyDeny)

	g := NewGate(rules, panicPrompt(t))
	g.SetAutoMode(true)

	out := g.Check(context.Background(), "bash", map[string]any{"command": "ls"})
	assert.True(t, out.Allowed())
	assert.Equal(t, "auto mode", out.Reason)
}

func TestAskPolicyPromptsUser(t *testing.T) {
	g := NewGate(DefaultRules(), fixedPrompt(Response{Answer: AnswerAllow}))
	out := g.Check(context.Background(), "write", map[string]any{"file_path": "a.go"})
	assert.True(t, out.Allowed())
}

func TestAlwaysAnswerPersistsPolicy(t *testing.T) {
	calls := 0
	prompt := func(ctx context.Context, req *Request) (Response, error) {
		calls++
		return Response{Answer: AnswerAlways}, nil
	}

	g := NewGate(DefaultRules(), prompt)
	require.True(t, g.Check(context.Background(), "write", nil).Allowed())
	require.True(t, g.Check(context.Background(), "write", nil).Allowed())

	assert.Equal(t, 1, calls, "second check should use the stored allow policy")
	assert.Equal(t, PolicyAllow, g.GetPolicy("write"))
}

func TestNeverAnswerPersistsDeny(t *testing.T) {
	g := NewGate(DefaultRules(), fixedPrompt(Response{Answer: AnswerNever}))

	out := g.Check(context.Background(), "bash", map[string]any{"command": "rm x"})
	assert.Equal(t, StatusDenied, out.Status)
	assert.Equal(t, PolicyDeny, g.GetPolicy("bash"))
}

func TestFeedbackAnswerCarriesText(t *testing.T) {
	g := NewGate(DefaultRules(), fixedPrompt(Response{
		Answer:   AnswerFeedback,
		Feedback: "use the staging config instead",
	}))

	out := g.Check(context.Background(), "edit", map[string]any{"file_path": "prod.yaml"})
	assert.Equal(t, StatusFeedback, out.Status)
	assert.Equal(t, "use the staging config instead", out.Feedback)
}

func TestPromptErrorDenies(t *testing.T) {
	prompt := func(ctx context.Context, req *Request) (Response, error) {
		return Response{}, errors.New("terminal gone")
	}

	g := NewGate(DefaultRules(), prompt)
	out := g.Check(context.Background(), "write", nil)
	assert.Equal(t, StatusDenied, out.Status)
	assert.Contains(t, out.Reason, "prompt failed")
}

func TestCheckShellSafeCommandShortCircuit(t *testing.T) {
	g := NewGate(DefaultRules(), panicPrompt(t))
	g.SetSafeCommandCheck(func(cmd string) bool { return cmd == "git status" }, true)

	out := g.CheckShell(context.Background(), "git status")
	assert.True(t, out.Allowed())
	assert.Equal(t, "safe command", out.Reason)
}

func TestCheckShellUnsafeCommandPrompts(t *testing.T) {
	g := NewGate(DefaultRules(), fixedPrompt(Response{Answer: AnswerDeny}))
	g.SetSafeCommandCheck(func(string) bool { return false }, true)

	out := g.CheckShell(context.Background(), "rm -rf build")
	assert.Equal(t, StatusDenied, out.Status)
}

func TestCheckShellSafeCommandStillPromptsWhenAutoApproveOff(t *testing.T) {
	g := NewGate(DefaultRules(), fixedPrompt(Response{Answer: AnswerAllow}))
	g.SetSafeCommandCheck(func(string) bool { return true }, false)

	out := g.CheckShell(context.Background(), "git status")
	assert.True(t, out.Allowed())
	assert.Equal(t, "allowed by user", out.Reason)
}

func TestNewRulesFromConfig(t *testing.T) {
	rules := NewRulesFromConfig("deny", map[string]string{
		"read": "allow",
		"bash": "ask",
		"junk": "bogus",
	})

	assert.Equal(t, PolicyAllow, rules.GetPolicy("read"))
	assert.Equal(t, PolicyAsk, rules.GetPolicy("bash"))
	assert.Equal(t, PolicyAsk, rules.GetPolicy("junk"))
	assert.Equal(t, PolicyDeny, rules.GetPolicy("unlisted"))
}

func TestRequestDescribe(t *testing.T) {
	req := NewRequest("bash", map[string]any{"command": "go vet ./..."})
	assert.Equal(t, "Run shell command: go vet ./...", req.Describe())

	req = NewRequest("edit", map[string]any{"file_path": "main.go"})
	assert.Equal(t, "Edit file: main.go", req.Describe())

	req = NewRequest("custom", nil)
	assert.Equal(t, "Use tool custom", req.Describe())
}
