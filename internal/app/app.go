// Package app wires the agent's collaborators together and runs the
// interactive REPL.
package app

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/danib549/gofer/internal/agent"
	"github.com/danib549/gofer/internal/audit"
	"github.com/danib549/gofer/internal/chat"
	"github.com/danib549/gofer/internal/client"
	"github.com/danib549/gofer/internal/config"
	"github.com/danib549/gofer/internal/exploration"
	"github.com/danib549/gofer/internal/git"
	"github.com/danib549/gofer/internal/highlight"
	"github.com/danib549/gofer/internal/logging"
	"github.com/danib549/gofer/internal/mode"
	"github.com/danib549/gofer/internal/permission"
	"github.com/danib549/gofer/internal/plan"
	"github.com/danib549/gofer/internal/ratelimit"
	"github.com/danib549/gofer/internal/tools"
	"github.com/danib549/gofer/internal/ui"
	"github.com/danib549/gofer/internal/watcher"
)

// App holds the assembled application.
type App struct {
	cfg     *config.Config
	workDir string

	client       client.Client
	registry     *tools.Registry
	session      *chat.Session
	guard        *exploration.Guard
	gate         *permission.Gate
	modes        *mode.Manager
	planManager  *plan.Manager
	checkpointer *git.Checkpointer
	agent        *agent.Agent
	watcher      *watcher.Watcher
	store        *chat.Store
	autoSaver    *chat.AutoSaver
	trail        *audit.Trail

	styles      *ui.Styles
	markdown    *ui.MarkdownRenderer
	highlighter *highlight.Highlighter

	lastResponse string
	quit         bool
}

// New assembles the application for the given working directory.
func New(ctx context.Context, cfg *config.Config, workDir string) (*App, error) {
	a := &App{
		cfg:         cfg,
		workDir:     workDir,
		styles:      ui.DefaultStyles(),
		markdown:    ui.NewMarkdownRenderer(cfg.UI.MarkdownRendering),
		highlighter: highlight.New(""),
	}

	c, err := client.NewClient(ctx, cfg, cfg.Model.Name)
	if err != nil {
		return nil, err
	}
	a.client = c

	a.registry = tools.DefaultRegistry(workDir, cfg.Tools.BashTimeout)
	a.session = chat.NewSession()
	a.session.SetWorkDir(workDir)
	a.session.SetMaxMessages(cfg.Session.MaxHistory)

	a.guard = exploration.NewGuard(cfg.Exploration.Enabled)
	a.modes = mode.NewManager(mode.Build, mode.Interactive)
	a.planManager = plan.NewManager(cfg.Plan.RequireApproval)
	a.checkpointer = git.NewCheckpointer(workDir, cfg.Checkpoint.Enabled)

	rules := permission.NewRulesFromConfig(cfg.Permission.DefaultPolicy, cfg.Permission.Rules)
	a.gate = permission.NewGate(rules, permission.TerminalPrompt)

	safeChecker := tools.NewSafeCommandChecker(cfg.Tools.SafeCommands)
	a.gate.SetSafeCommandCheck(safeChecker.IsSafe, cfg.Tools.AutoApproveSafe)

	a.wireDiffHandler()

	// Local models need no pacing; remote providers get quota headroom.
	var limiter *ratelimit.Limiter
	if cfg.API.GetActiveProvider() != "ollama" {
		limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}

	if dir := filepath.Dir(config.GetConfigPath()); dir != "." {
		trail, err := audit.NewTrail(dir, a.session.ID)
		if err != nil {
			logging.Warn("audit trail unavailable", "error", err)
		} else {
			a.trail = trail
		}
	}

	a.agent = agent.New(agent.Options{
		Client:       a.client,
		Registry:     a.registry,
		Session:      a.session,
		Guard:        a.guard,
		Gate:         a.gate,
		Modes:        a.modes,
		Checkpointer: a.checkpointer,
		Limiter:      limiter,
		Trail:        a.trail,
	})
	a.agent.SetOnText(a.printAssistantText)
	if cfg.UI.ShowToolCalls {
		a.agent.SetOnToolActivity(a.printToolActivity)
	}

	if cfg.Watcher.Enabled {
		ignore := git.NewIgnore(workDir)
		_ = ignore.Load()
		w, err := watcher.New(workDir, ignore, watcher.DefaultConfig())
		if err != nil {
			logging.Warn("file watcher unavailable", "error", err)
		} else {
			w.SetOnChange(func(path string, op watcher.Operation) {
				// External edits make prior reads stale.
				a.guard.Invalidate(path)
			})
			a.watcher = w
		}
	}

	if cfg.Session.AutoSave {
		store, err := chat.NewStore()
		if err != nil {
			logging.Warn("session persistence unavailable", "error", err)
		} else {
			a.store = store
			a.autoSaver = chat.NewAutoSaver(a.session, store, chat.AutoSaverOptions{})
		}
	}

	return a, nil
}

// wireDiffHandler attaches the diff preview prompt to the mutating
// file tools.
func (a *App) wireDiffHandler() {
	prompter := ui.NewDiffPrompter(a.styles, a.highlighter)
	if tool, ok := a.registry.Get("write"); ok {
		if wt, ok := tool.(*tools.WriteTool); ok {
			wt.SetDiffHandler(prompter)
			wt.SetDiffEnabled(true)
		}
	}
	if tool, ok := a.registry.Get("edit"); ok {
		if et, ok := tool.(*tools.EditTool); ok {
			et.SetDiffHandler(prompter)
			et.SetDiffEnabled(true)
		}
	}
}

// SetAutoMode switches execution to auto, bypassing permission
// prompts.
func (a *App) SetAutoMode() {
	a.modes.ToAuto()
	a.gate.SetAutoMode(true)
}

// SetPlanMode starts the session in plan mode.
func (a *App) SetPlanMode() {
	a.modes.ToPlan()
}

// Run starts the REPL and blocks until the user quits.
func (a *App) Run() error {
	a.client.SetSystemInstruction(a.buildSystemInstruction())

	if a.watcher != nil {
		if err := a.watcher.Start(); err != nil {
			logging.Warn("failed to start file watcher", "error", err)
		}
		defer a.watcher.Stop()
	}
	if a.autoSaver != nil {
		a.autoSaver.Start()
		defer a.autoSaver.Stop()
	}
	defer a.trail.Close()
	defer a.client.Close()

	a.printBanner()

	reader := bufio.NewReader(os.Stdin)
	for !a.quit {
		fmt.Print(a.promptLine())

		line, err := reader.ReadString('\n')
		if err != nil {
			// EOF ends the session like /quit.
			fmt.Println()
			break
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "!") {
			a.runShellPassthrough(strings.TrimSpace(input[1:]))
			continue
		}

		switch classifyInput(input) {
		case inputCommand:
			a.handleCommand(input)
		case inputShell:
			// Bare shell commands (git status, ls -la) run directly
			// without a round-trip to the model.
			a.runShellPassthrough(input)
		default:
			a.maybeAutoPlan(input)
			a.processMessage(input)
		}
	}

	fmt.Println(a.styles.Muted.Render("Goodbye."))
	return nil
}

// maybeAutoPlan switches to plan mode when a request looks complex
// enough to deserve a plan before any file is touched.
func (a *App) maybeAutoPlan(message string) {
	if !a.cfg.Plan.AutoPlan || a.modes.IsPlan() || a.planManager.IsActive() {
		return
	}
	threshold := a.cfg.Plan.ComplexityThreshold
	if threshold <= 0 {
		threshold = 0.6
	}
	score := analyzeComplexity(message)
	if score < threshold {
		return
	}

	fmt.Println(a.styles.Muted.Render(fmt.Sprintf(
		"[Complex task detected (score %.2f), entering plan mode. /build to skip planning.]", score)))
	a.modes.ToPlan()
	a.client.SetSystemInstruction(a.buildSystemInstruction())
}

// processMessage runs one chat turn, cancellable with Ctrl-C.
func (a *App) processMessage(message string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var spinner *ui.Spinner
	if a.cfg.UI.Spinner {
		spinner = ui.NewSpinner("Thinking...")
		spinner.Start()
	}

	text, err := a.agent.RunTurn(ctx, message)
	if spinner != nil {
		spinner.Stop()
	}

	if err != nil {
		if ctx.Err() != nil {
			fmt.Println(a.styles.Warning.Render("\n[Cancelled]"))
		} else {
			fmt.Println(a.styles.Error.Render(fmt.Sprintf("\nError: %v", err)))
		}
	}

	if text != "" {
		a.lastResponse = text
		// Re-render the full response as markdown once streaming is
		// done; streamed chunks were printed raw.
		if a.markdown.Enabled() {
			fmt.Println()
			fmt.Println(a.markdown.Render(text))
		} else {
			fmt.Println()
		}
	}

	if a.autoSaver != nil {
		if err := a.autoSaver.Save(); err != nil {
			logging.Debug("session save failed", "error", err)
		}
	}
}

// printAssistantText streams raw model text when markdown rendering
// is off; otherwise output is rendered once at the end of the turn.
func (a *App) printAssistantText(text string) {
	if !a.markdown.Enabled() {
		fmt.Print(text)
	}
}

func (a *App) printToolActivity(toolName string, args map[string]any, status string) {
	detail := ""
	if path, ok := tools.GetString(args, "file_path"); ok {
		detail = path
	} else if path, ok := tools.GetString(args, "path"); ok {
		detail = path
	} else if pattern, ok := tools.GetString(args, "pattern"); ok {
		detail = pattern
	} else if command, ok := tools.GetString(args, "command"); ok {
		detail = command
	}

	line := fmt.Sprintf("  ⚙ %s %s", toolName, detail)
	switch status {
	case "start":
		fmt.Println(a.styles.ToolCall.Render(line))
	case "error":
		fmt.Println(a.styles.ToolErr.Render(line + " [failed]"))
	case "denied":
		fmt.Println(a.styles.ToolErr.Render(line + " [denied]"))
	case "blocked":
		fmt.Println(a.styles.Warning.Render(line + " [blocked]"))
	}
}

func (a *App) promptLine() string {
	modeName := a.modes.Mode().String()
	tag := a.styles.ModeStyle(modeName).Render(a.modes.StatusShort())
	return fmt.Sprintf("%s %s ", tag, a.styles.Prompt.Render(">"))
}

func (a *App) printBanner() {
	fmt.Println(a.styles.Banner.Render("gofer"))
	fmt.Println(a.styles.Muted.Render(fmt.Sprintf("model: %s | workdir: %s", a.client.GetModel(), a.workDir)))
	fmt.Println(a.styles.Muted.Render("Type /help for commands. Ctrl-C cancels the current turn."))
	fmt.Println()
}

// buildSystemInstruction composes the standing instruction for the
// model.
func (a *App) buildSystemInstruction() string {
	var b strings.Builder
	b.WriteString("You are gofer, a coding assistant operating in a user's workspace at ")
	b.WriteString(a.workDir)
	b.WriteString(".\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Explore before you modify: read files and search the codebase before writing or editing.\n")
	b.WriteString("- Use the provided tools for all filesystem and shell interaction.\n")
	b.WriteString("- Keep changes minimal and focused on what the user asked for.\n")
	b.WriteString("- When a tool call is denied or blocked, do not restate its content; adjust your approach.\n")

	switch a.modes.Mode() {
	case mode.Plan:
		b.WriteString("\nYou are in PLAN mode: only read-only tools are available. ")
		b.WriteString("Investigate and produce a concrete numbered step plan instead of making changes.\n")
	case mode.Review:
		b.WriteString("\nYou are in REVIEW mode: only read-only tools are available. ")
		b.WriteString("Analyze code and report findings instead of making changes.\n")
	}
	return b.String()
}
