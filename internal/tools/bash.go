package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"google.golang.org/genai"
)

// SafeEnvVars is the whitelist of environment variables passed to bash
// commands. This prevents leaking sensitive variables like API keys.
var SafeEnvVars = []string{
	"PATH",
	"HOME",
	"USER",
	"SHELL",
	"TERM",
	"LANG",
	"LC_ALL",
	"LC_CTYPE",
	"TMPDIR",
	"TMP",
	"TEMP",
	"EDITOR",
	"VISUAL",
	"PAGER",
	"XDG_CONFIG_HOME",
	"XDG_DATA_HOME",
	"XDG_CACHE_HOME",
	"XDG_RUNTIME_DIR",
	// Go-specific
	"GOPATH",
	"GOROOT",
	"GOPROXY",
	"GOPRIVATE",
	"GOFLAGS",
	// Node/npm
	"NODE_PATH",
	"NPM_CONFIG_PREFIX",
	// Python
	"PYTHONPATH",
	"VIRTUAL_ENV",
	// Git
	"GIT_AUTHOR_NAME",
	"GIT_AUTHOR_EMAIL",
	"GIT_COMMITTER_NAME",
	"GIT_COMMITTER_EMAIL",
}

// DefaultBashTimeout is the default timeout for bash commands.
const DefaultBashTimeout = 30 * time.Second

// BashSession maintains persistent state across bash command
// invocations. It tracks the working directory and environment
// variables so that sequential commands behave as if they run in the
// same shell session.
type BashSession struct {
	workDir string
	env     map[string]string
	mu      sync.Mutex
}

// NewBashSession creates a BashSession with the given initial working
// directory.
func NewBashSession(workDir string) *BashSession {
	return &BashSession{
		workDir: workDir,
		env:     make(map[string]string),
	}
}

// WorkDir returns the current working directory of the session.
func (s *BashSession) WorkDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workDir
}

// SetWorkDir updates the working directory of the session.
func (s *BashSession) SetWorkDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workDir = dir
}

// SetEnv sets an environment variable in the session.
func (s *BashSession) SetEnv(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.env[key] = value
}

// Env returns a copy of the session environment variables.
func (s *BashSession) Env() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(map[string]string, len(s.env))
	for k, v := range s.env {
		cp[k] = v
	}
	return cp
}

// BashTool executes bash commands.
type BashTool struct {
	workDir string
	session *BashSession
	timeout time.Duration
}

// NewBashTool creates a BashTool rooted at workDir.
func NewBashTool(workDir string) *BashTool {
	return &BashTool{
		workDir: workDir,
		session: NewBashSession(workDir),
		timeout: DefaultBashTimeout,
	}
}

// SetTimeout sets the timeout for bash commands.
func (t *BashTool) SetTimeout(timeout time.Duration) {
	t.timeout = timeout
}

// buildSafeEnv creates a sanitized environment for command execution.
// Only whitelisted environment variables are passed through.
func buildSafeEnv() []string {
	env := make([]string, 0, len(SafeEnvVars))
	for _, key := range SafeEnvVars {
		if val := os.Getenv(key); val != "" {
			env = append(env, key+"="+val)
		}
	}
	hasPath := false
	hasTerm := false
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			hasPath = true
		}
		if strings.HasPrefix(e, "TERM=") {
			hasTerm = true
		}
	}
	if !hasPath {
		env = append(env, "PATH=/usr/local/bin:/usr/bin:/bin")
	}
	if !hasTerm {
		env = append(env, "TERM=xterm-256color")
	}
	return env
}

func (t *BashTool) Name() string {
	return "bash"
}

func (t *BashTool) RequiresBuildMode() bool {
	return true
}

func (t *BashTool) Description() string {
	return `Executes a bash command and returns the output. Use for system operations, git commands, running tests, etc.

PARAMETERS:
- command (required): The bash command to execute
- description (optional): Brief description of what the command does

TIMEOUT:
- Default: 30 seconds

BLOCKED COMMANDS (safety):
- rm -rf /
- mkfs
- Fork bombs
- Direct device writes

OUTPUT:
- stdout and stderr are captured
- Output >30000 chars is truncated
- Exit codes are reported on failure`
}

func (t *BashTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"command": {
					Type:        genai.TypeString,
					Description: "The bash command to execute",
				},
				"description": {
					Type:        genai.TypeString,
					Description: "A brief description of what the command does",
				},
			},
			Required: []string{"command"},
		},
	}
}

func (t *BashTool) Validate(args map[string]any) error {
	command, ok := GetString(args, "command")
	if !ok || command == "" {
		return NewValidationError("command", "is required")
	}
	if err := ValidateCommand(command); err != nil {
		return NewValidationError("command", err.Error())
	}
	return nil
}

func (t *BashTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	command, _ := GetString(args, "command")

	execCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(execCtx, "bash", "-c", command)
	cmd.Dir = t.session.WorkDir()
	cmd.Env = t.buildSessionEnv()
	// New process group so the whole tree can be killed on timeout.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return NewErrorResult(fmt.Sprintf("failed to start command: %s", err)), nil
	}

	var cmdErr error
	cmdDone := make(chan struct{})
	go func() {
		cmdErr = cmd.Wait()
		close(cmdDone)
	}()

	timedOut := false
	select {
	case <-cmdDone:
	case <-execCtx.Done():
		timedOut = true
		killProcessGroup(cmd, 5*time.Second)
		<-cmdDone
	}

	if timedOut {
		return NewErrorResult(fmt.Sprintf("command timed out after %v", t.timeout)), nil
	}

	if cmdErr == nil {
		t.updateSessionAfterCommand(command)
	}

	if cmdErr != nil {
		if exitErr, ok := cmdErr.(*exec.ExitError); ok {
			return ToolResult{
				Content: combineOutput(stdout.String(), stderr.String()),
				Error:   fmt.Sprintf("command exited with code %d", exitErr.ExitCode()),
				Success: false,
			}, nil
		}
		return NewErrorResult(fmt.Sprintf("command failed: %s", cmdErr)), nil
	}

	return t.buildResult(stdout.String(), stderr.String()), nil
}

// buildSessionEnv creates a sanitized environment with session env vars
// injected.
func (t *BashTool) buildSessionEnv() []string {
	env := buildSafeEnv()
	for key, val := range t.session.Env() {
		found := false
		prefix := key + "="
		for i, e := range env {
			if strings.HasPrefix(e, prefix) {
				env[i] = key + "=" + val
				found = true
				break
			}
		}
		if !found {
			env = append(env, key+"="+val)
		}
	}
	return env
}

// updateSessionAfterCommand tracks cd so sequential commands behave as
// one shell session. Compound commands are skipped since the final
// directory depends on the full chain.
func (t *BashTool) updateSessionAfterCommand(command string) {
	trimmed := strings.TrimSpace(command)

	if trimmed == "cd" || trimmed == "cd ~" {
		if home, err := os.UserHomeDir(); err == nil {
			t.session.SetWorkDir(home)
		}
		return
	}
	if trimmed == "cd -" {
		return
	}
	if !strings.HasPrefix(trimmed, "cd ") {
		return
	}

	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "cd "))
	for _, sep := range []string{"&&", "||", ";", "|"} {
		if strings.Contains(rest, sep) {
			return
		}
	}

	if (strings.HasPrefix(rest, "\"") && strings.HasSuffix(rest, "\"")) ||
		(strings.HasPrefix(rest, "'") && strings.HasSuffix(rest, "'")) {
		rest = rest[1 : len(rest)-1]
	}
	if strings.HasPrefix(rest, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			rest = home + rest[1:]
		}
	}
	if rest == "" {
		return
	}

	target := rest
	if !filepath.IsAbs(target) {
		target = filepath.Join(t.session.WorkDir(), target)
	}
	target = filepath.Clean(target)

	if info, err := os.Stat(target); err == nil && info.IsDir() {
		t.session.SetWorkDir(target)
	}
}

// buildResult constructs a ToolResult from stdout and stderr output.
func (t *BashTool) buildResult(stdoutStr, stderrStr string) ToolResult {
	result := combineOutput(stdoutStr, stderrStr)

	const maxLen = 30000
	if len(result) > maxLen {
		totalLen := len(result)
		result = result[:maxLen] + fmt.Sprintf("\n... (output truncated: showing %d of %d characters)", maxLen, totalLen)
	}
	if result == "" {
		result = "(no output)"
	}
	return NewSuccessResult(result)
}

func combineOutput(stdoutStr, stderrStr string) string {
	var output strings.Builder
	if len(stdoutStr) > 0 {
		output.WriteString(stdoutStr)
	}
	if len(stderrStr) > 0 {
		if output.Len() > 0 {
			output.WriteString("\n")
		}
		output.WriteString("STDERR:\n")
		output.WriteString(stderrStr)
	}
	return output.String()
}

// killProcessGroup sends SIGTERM to the command's process group, then
// SIGKILL after the grace period if it is still running.
func killProcessGroup(cmd *exec.Cmd, grace time.Duration) {
	if cmd.Process == nil {
		return
	}
	pgid := -cmd.Process.Pid
	_ = syscall.Kill(pgid, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if err := syscall.Kill(pgid, 0); err != nil {
				return
			}
			time.Sleep(100 * time.Millisecond)
		}
	}()

	select {
	case <-done:
	case <-time.After(grace):
		_ = syscall.Kill(pgid, syscall.SIGKILL)
	}
}
