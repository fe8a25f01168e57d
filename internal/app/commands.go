package app

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/atotto/clipboard"

	"github.com/danib549/gofer/internal/agent"
	"github.com/danib549/gofer/internal/mode"
	"github.com/danib549/gofer/internal/plan"
)

// handleCommand dispatches a slash command.
func (a *App) handleCommand(input string) {
	fields := strings.Fields(input)
	command := fields[0]
	args := fields[1:]

	switch command {
	case "/help":
		a.cmdHelp()
	case "/plan":
		a.cmdPlan(args, strings.TrimSpace(strings.TrimPrefix(input, "/plan")))
	case "/build":
		a.modes.ToBuild()
		a.client.SetSystemInstruction(a.buildSystemInstruction())
		fmt.Println(a.styles.Info.Render("Switched to BUILD mode."))
	case "/review":
		a.modes.ToReview()
		a.client.SetSystemInstruction(a.buildSystemInstruction())
		fmt.Println(a.styles.Info.Render("Switched to REVIEW mode. Tools are read-only."))
	case "/auto":
		a.SetAutoMode()
		fmt.Println(a.styles.Warning.Render("Auto mode on: permission prompts are bypassed."))
	case "/interactive":
		a.modes.ToInteractive()
		a.gate.SetAutoMode(false)
		fmt.Println(a.styles.Info.Render("Interactive mode on: mutations require approval."))
	case "/copy":
		a.cmdCopy()
	case "/reset":
		a.session.Clear()
		a.guard.Reset()
		fmt.Println(a.styles.Info.Render("Conversation and exploration state cleared."))
	case "/export":
		a.cmdExport(args)
	case "/sessions":
		a.cmdSessions()
	case "/checkpoints":
		a.cmdCheckpoints()
	case "/restore":
		a.cmdRestore(args)
	case "/audit":
		a.cmdAudit()
	case "/status":
		a.cmdStatus()
	case "/tools":
		a.cmdTools()
	case "/model":
		fmt.Println(a.styles.Info.Render("Model: " + a.client.GetModel()))
	case "/quit", "/exit":
		a.quit = true
	default:
		fmt.Println(a.styles.Error.Render("Unknown command: " + command + " (try /help)"))
	}
}

func (a *App) cmdHelp() {
	help := `Commands:
  /plan              Switch to PLAN mode (read-only tools)
  /plan build <req>  Ask the model for a step plan and load it
  /plan show         Show the current plan
  /plan add <title>  Append a step to the current plan
  /plan skip <id>    Mark a step skipped
  /plan run          Execute the current plan step by step
  /plan cancel       Discard the current plan
  /build             Switch to BUILD mode
  /review            Switch to REVIEW mode (read-only tools)
  /auto              Bypass permission prompts
  /interactive       Restore permission prompts
  /copy              Copy the last reply to the clipboard
  /reset             Clear conversation history
  /export [file]     Export the conversation as markdown
  /sessions          List saved sessions
  /checkpoints       List git checkpoints
  /restore <hash>    Restore files to a checkpoint
  /audit             Show recent tool executions and decisions
  /status            Show mode, session, and exploration state
  /tools             List available tools
  /model             Show the active model
  /quit              Exit

  !<command>         Run a shell command directly`
	fmt.Println(a.styles.Muted.Render(help))
}

// cmdPlan handles the /plan subcommands. rest is everything after
// "/plan" with whitespace trimmed, preserving the request text.
func (a *App) cmdPlan(args []string, rest string) {
	if len(args) == 0 {
		a.modes.ToPlan()
		a.client.SetSystemInstruction(a.buildSystemInstruction())
		fmt.Println(a.styles.Info.Render("Switched to PLAN mode. Tools are read-only."))
		return
	}

	switch args[0] {
	case "build":
		request := strings.TrimSpace(strings.TrimPrefix(rest, "build"))
		if request == "" {
			fmt.Println(a.styles.Error.Render("Usage: /plan build <request>"))
			return
		}
		a.buildPlan(request)
	case "show":
		p := a.planManager.GetCurrentPlan()
		if p == nil {
			fmt.Println(a.styles.Muted.Render("No active plan."))
			return
		}
		fmt.Println(a.markdown.Render(p.RenderTree()))
	case "add":
		title := strings.TrimSpace(strings.TrimPrefix(rest, "add"))
		if title == "" {
			fmt.Println(a.styles.Error.Render("Usage: /plan add <title>"))
			return
		}
		if a.planManager.GetCurrentPlan() == nil {
			a.planManager.CreatePlan("Manual plan", "", title)
		}
		step := a.planManager.AddStep(title, "")
		fmt.Println(a.styles.Info.Render(fmt.Sprintf("Added step %d: %s", step.ID, step.Title)))
	case "skip":
		if len(args) < 2 {
			fmt.Println(a.styles.Error.Render("Usage: /plan skip <id>"))
			return
		}
		id, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Println(a.styles.Error.Render("Step id must be a number."))
			return
		}
		a.planManager.SkipStep(id)
		fmt.Println(a.styles.Info.Render(fmt.Sprintf("Step %d skipped.", id)))
	case "run":
		a.runPlan()
	case "cancel", "clear":
		if a.planManager.ClearPlan() != nil {
			fmt.Println(a.styles.Info.Render("Plan discarded."))
		} else {
			fmt.Println(a.styles.Muted.Render("No active plan."))
		}
	default:
		fmt.Println(a.styles.Error.Render("Unknown /plan subcommand: " + args[0]))
	}
}

var planStepPattern = regexp.MustCompile(`^\s*(\d+)[.)]\s+(.+)$`)

// buildPlan asks the model for a numbered step list in plan mode and
// parses it into an executable plan.
func (a *App) buildPlan(request string) {
	prevMode := a.modes.Mode()
	a.modes.ToPlan()
	a.client.SetSystemInstruction(a.buildSystemInstruction())

	prompt := fmt.Sprintf(
		"Investigate the following request and produce a numbered step plan for it. "+
			"Each step must be on its own line in the form \"N. title: description\". "+
			"Do not make any changes.\n\nRequest: %s", request)
	a.processMessage(prompt)

	a.modes.SetMode(prevMode)
	a.client.SetSystemInstruction(a.buildSystemInstruction())

	steps := parsePlanSteps(a.lastResponse)
	if len(steps) == 0 {
		fmt.Println(a.styles.Warning.Render("Could not find numbered steps in the response; no plan created."))
		return
	}

	a.planManager.CreatePlan(request, "", request)
	for _, s := range steps {
		a.planManager.AddStep(s.title, s.description)
	}
	p := a.planManager.GetCurrentPlan()
	fmt.Println(a.markdown.Render(p.RenderTree()))
	fmt.Println(a.styles.Muted.Render("Run it with /plan run."))
}

type parsedStep struct {
	title       string
	description string
}

// parsePlanSteps extracts "N. title: description" lines from model
// output.
func parsePlanSteps(text string) []parsedStep {
	var steps []parsedStep
	for _, line := range strings.Split(text, "\n") {
		m := planStepPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		title := strings.TrimSpace(m[2])
		description := ""
		if idx := strings.Index(title, ":"); idx > 0 {
			description = strings.TrimSpace(title[idx+1:])
			title = strings.TrimSpace(title[:idx])
		}
		steps = append(steps, parsedStep{title: title, description: description})
	}
	return steps
}

// runPlan executes the current plan, prompting for approval first
// when configured to.
func (a *App) runPlan() {
	p := a.planManager.GetCurrentPlan()
	if p == nil {
		fmt.Println(a.styles.Muted.Render("No active plan. Create one with /plan build <request>."))
		return
	}

	a.planManager.SetApprovalHandler(a.promptPlanApproval)
	a.planManager.SetProgressHandler(func(update *plan.ProgressUpdate) {
		fmt.Println(a.styles.Muted.Render(fmt.Sprintf(
			"  plan %.0f%% | step %d/%d %s [%s]",
			update.Progress*100, update.CurrentStepID, update.TotalSteps, update.CurrentTitle, update.Status)))
	})

	// Ctrl-C aborts the run, not the process; completed step state is
	// kept so the plan can be resumed.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	decision, err := a.planManager.RequestApproval(ctx)
	if err != nil {
		fmt.Println(a.styles.Error.Render("Approval failed: " + err.Error()))
		return
	}
	if decision != plan.ApprovalApproved {
		fmt.Println(a.styles.Muted.Render("Plan not approved."))
		return
	}

	// Steps mutate files, so the run happens in build mode.
	prevMode := a.modes.Mode()
	a.modes.ToBuild()
	a.client.SetSystemInstruction(a.buildSystemInstruction())
	defer func() {
		a.modes.SetMode(prevMode)
		a.client.SetSystemInstruction(a.buildSystemInstruction())
	}()

	start := time.Now()
	err = a.agent.RunPlan(ctx, a.planManager, a.stepFailureDecision)
	if err != nil {
		fmt.Println(a.styles.Error.Render("Plan run stopped: " + err.Error()))
	} else {
		fmt.Println(a.styles.Info.Render(fmt.Sprintf("Plan finished in %s.", time.Since(start).Round(time.Second))))
	}
	fmt.Println(a.markdown.Render(a.planManager.GetCurrentPlan().RenderTree()))
}

// promptPlanApproval shows the plan and reads a yes/no answer.
func (a *App) promptPlanApproval(ctx context.Context, p *plan.Plan) (plan.ApprovalDecision, error) {
	fmt.Println(a.markdown.Render(p.RenderTree()))
	fmt.Print(a.styles.Prompt.Render("Execute this plan? [y/N] "))

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return plan.ApprovalRejected, nil
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return plan.ApprovalApproved, nil
	default:
		return plan.ApprovalRejected, nil
	}
}

// stepFailureDecision resolves a failed step. Interactive runs ask
// the user; auto runs follow the configured abort policy.
func (a *App) stepFailureDecision(step *plan.Step, reason string) agent.StepFailureDecision {
	fmt.Println(a.styles.Error.Render(fmt.Sprintf("Step %d failed: %s", step.ID, reason)))

	if a.modes.Execution() == mode.Auto {
		if a.cfg.Plan.AbortOnStepFailure {
			return agent.StepAbort
		}
		return agent.StepSkip
	}

	fmt.Print(a.styles.Prompt.Render("[r]etry, [s]kip, or [a]bort? "))
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return agent.StepAbort
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "r", "retry":
		return agent.StepRetry
	case "s", "skip":
		return agent.StepSkip
	default:
		return agent.StepAbort
	}
}

func (a *App) cmdCopy() {
	if a.lastResponse == "" {
		fmt.Println(a.styles.Muted.Render("Nothing to copy yet."))
		return
	}
	if err := clipboard.WriteAll(a.lastResponse); err != nil {
		fmt.Println(a.styles.Error.Render("Clipboard unavailable: " + err.Error()))
		return
	}
	fmt.Println(a.styles.Info.Render("Last reply copied to clipboard."))
}

func (a *App) cmdExport(args []string) {
	path := fmt.Sprintf("gofer-session-%s.md", time.Now().Format("20060102-150405"))
	if len(args) > 0 {
		path = args[0]
	}
	if err := os.WriteFile(path, []byte(a.session.ExportMarkdown()), 0o644); err != nil {
		fmt.Println(a.styles.Error.Render("Export failed: " + err.Error()))
		return
	}
	fmt.Println(a.styles.Info.Render("Conversation exported to " + path))
}

func (a *App) cmdSessions() {
	if a.store == nil {
		fmt.Println(a.styles.Muted.Render("Session persistence is disabled."))
		return
	}
	infos, err := a.store.List()
	if err != nil {
		fmt.Println(a.styles.Error.Render("Could not list sessions: " + err.Error()))
		return
	}
	if len(infos) == 0 {
		fmt.Println(a.styles.Muted.Render("No saved sessions."))
		return
	}
	for _, info := range infos {
		fmt.Printf("  %s  %s  %3d msgs  %s\n",
			a.styles.Info.Render(info.ID),
			info.LastActive.Format("2006-01-02 15:04"),
			info.MessageCount,
			a.styles.Muted.Render(info.Summary))
	}
}

func (a *App) cmdCheckpoints() {
	if !a.checkpointer.Enabled() {
		fmt.Println(a.styles.Muted.Render("Checkpointing is disabled."))
		return
	}
	checkpoints := a.checkpointer.ListCheckpoints(10)
	if len(checkpoints) == 0 {
		fmt.Println(a.styles.Muted.Render("No checkpoints yet."))
		return
	}
	for _, cp := range checkpoints {
		fmt.Printf("  %s  %s  %s\n",
			a.styles.Info.Render(cp.Hash),
			a.styles.Muted.Render(cp.Time),
			cp.Message)
	}
}

func (a *App) cmdRestore(args []string) {
	if len(args) == 0 {
		fmt.Println(a.styles.Error.Render("Usage: /restore <hash> (see /checkpoints)"))
		return
	}
	result := a.checkpointer.Restore(args[0])
	if !result.Success {
		fmt.Println(a.styles.Error.Render("Restore failed: " + result.Err))
		return
	}
	// Restored files no longer match what the model read.
	a.guard.Reset()
	fmt.Println(a.styles.Info.Render("Restored to checkpoint " + args[0]))
}

func (a *App) cmdAudit() {
	records := a.trail.Recent(20)
	if len(records) == 0 {
		fmt.Println(a.styles.Muted.Render("No audited activity this session."))
		return
	}
	for _, r := range records {
		line := fmt.Sprintf("  %s  %-10s %-8s %s",
			r.Timestamp.Format("15:04:05"), r.ToolName, r.Outcome, r.Detail)
		if len(line) > 120 {
			line = line[:120]
		}
		switch r.Outcome {
		case "ok", "allowed":
			fmt.Println(a.styles.Muted.Render(line))
		default:
			fmt.Println(a.styles.Warning.Render(line))
		}
	}
	if path := a.trail.Path(); path != "" {
		fmt.Println(a.styles.Muted.Render("  Full log: " + path))
	}
}

func (a *App) cmdStatus() {
	fmt.Println(a.styles.Info.Render("Mode: " + a.modes.Status()))
	fmt.Printf("  Model:       %s\n", a.client.GetModel())
	fmt.Printf("  Workdir:     %s\n", a.workDir)
	fmt.Printf("  Messages:    %d\n", a.session.MessageCount())
	fmt.Printf("  Tokens:      %d\n", a.session.TokenCount())
	fmt.Printf("  Exploration: %s\n", a.guard.FormatStatus())
	if p := a.planManager.GetCurrentPlan(); p != nil {
		current, total, percent := a.planManager.GetProgress()
		fmt.Printf("  Plan:        %s (%d/%d, %.0f%%)\n", p.Title, current, total, percent*100)
	}
}

func (a *App) cmdTools() {
	readOnly := a.modes.IsReadOnly()
	for _, tool := range a.registry.List() {
		marker := " "
		if tool.RequiresBuildMode() {
			marker = "*"
			if readOnly {
				marker = a.styles.Muted.Render("x")
			}
		}
		fmt.Printf("  %s %-10s %s\n", marker, tool.Name(), a.styles.Muted.Render(tool.Description()))
	}
	if readOnly {
		fmt.Println(a.styles.Muted.Render("  x = unavailable in the current read-only mode"))
	} else {
		fmt.Println(a.styles.Muted.Render("  * = requires build mode"))
	}
}

// runShellPassthrough executes a !command directly through the bash
// tool, outside the model loop but inside the permission gate.
func (a *App) runShellPassthrough(command string) {
	outcome := a.gate.CheckShell(context.Background(), command)
	if !outcome.Allowed() {
		fmt.Println(a.styles.Error.Render("Denied: " + outcome.Reason))
		return
	}

	tool, ok := a.registry.Get("bash")
	if !ok {
		fmt.Println(a.styles.Error.Render("bash tool unavailable"))
		return
	}
	result, err := tool.Execute(context.Background(), map[string]any{"command": command})
	if err != nil {
		fmt.Println(a.styles.Error.Render(err.Error()))
		return
	}
	if !result.Success {
		fmt.Println(a.styles.Error.Render(result.Error))
		return
	}
	fmt.Println(result.Content)
}
