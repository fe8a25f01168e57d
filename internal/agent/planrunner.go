package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/danib549/gofer/internal/logging"
	"github.com/danib549/gofer/internal/plan"
)

// StepFailureDecision is the operator's choice after a plan step
// fails.
type StepFailureDecision int

const (
	// StepRetry resets the step to pending and re-runs it without
	// advancing.
	StepRetry StepFailureDecision = iota
	// StepSkip marks the step skipped and moves on.
	StepSkip
	// StepAbort terminates the whole plan run.
	StepAbort
)

// StepFailureHandler decides how to proceed after a failed step.
type StepFailureHandler func(step *plan.Step, reason string) StepFailureDecision

// RunPlan executes every pending step of the manager's current plan.
// Each step runs as its own instruction through the round-trip loop.
// When a step fails the handler chooses retry, skip, or abort; a nil
// handler aborts on first failure.
func (a *Agent) RunPlan(ctx context.Context, manager *plan.Manager, onFailure StepFailureHandler) error {
	p := manager.GetCurrentPlan()
	if p == nil {
		return fmt.Errorf("no active plan")
	}

	for {
		step := manager.NextStep()
		if step == nil {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		manager.StartStep(step.ID)
		logging.Info("executing plan step", "plan", p.ID, "step", step.ID, "title", step.Title)

		output, failReason, err := a.runStep(ctx, manager, step)
		if err != nil {
			manager.FailStep(step.ID, err.Error())
			return err
		}

		if failReason == "" {
			manager.CompleteStep(step.ID, output)
			continue
		}

		manager.FailStep(step.ID, failReason)

		decision := StepAbort
		if onFailure != nil {
			decision = onFailure(step, failReason)
		}
		switch decision {
		case StepRetry:
			// Back to pending; the next iteration picks it up again.
			manager.ResetStep(step.ID)
		case StepSkip:
			manager.SkipStep(step.ID)
		default:
			return fmt.Errorf("plan aborted at step %d: %s", step.ID, failReason)
		}
	}
	return nil
}

// runStep drives one step to completion. A non-empty failReason with
// a nil error marks a recoverable step failure.
func (a *Agent) runStep(ctx context.Context, manager *plan.Manager, step *plan.Step) (output, failReason string, err error) {
	// Each step is an independent instruction with a fresh exploration
	// window.
	a.guard.Reset()
	a.checkpointed = false

	text, allDenied, err := a.runLoop(ctx, buildStepPrompt(manager, step), MaxStepRounds)
	if err != nil {
		return text, "", err
	}
	if allDenied {
		return text, "every tool call in the step was blocked or denied", nil
	}
	return text, "", nil
}

// buildStepPrompt frames a step as a standalone instruction, carrying
// a compact record of what earlier steps produced.
func buildStepPrompt(manager *plan.Manager, step *plan.Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Execute step %d of the plan: %s\n", step.ID, step.Title)
	if step.Description != "" {
		b.WriteString(step.Description)
		b.WriteString("\n")
	}

	if summary := manager.PreviousStepsSummary(step.ID, 300); summary != "" {
		b.WriteString("\nResults of earlier steps:\n")
		b.WriteString(summary)
	}

	b.WriteString("\nComplete only this step. Do not start work that belongs to later steps.")
	return b.String()
}
