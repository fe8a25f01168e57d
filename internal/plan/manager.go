package plan

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ApprovalDecision is the user's verdict on a proposed plan.
type ApprovalDecision int

const (
	ApprovalPending ApprovalDecision = iota
	ApprovalApproved
	ApprovalRejected
	ApprovalModified
)

// ApprovalHandler prompts the user to approve a plan before
// execution.
type ApprovalHandler func(ctx context.Context, plan *Plan) (ApprovalDecision, error)

// StepHandler observes step lifecycle events.
type StepHandler func(step *Step)

// ProgressUpdate describes plan execution progress for display.
type ProgressUpdate struct {
	PlanID        string
	CurrentStepID int
	CurrentTitle  string
	TotalSteps    int
	Completed     int
	Progress      float64
	Status        string
}

// Manager holds the active plan and drives its approval and step
// lifecycle.
type Manager struct {
	requireApproval bool

	currentPlan      *Plan
	lastRejectedPlan *Plan
	lastFeedback     string

	approvalHandler ApprovalHandler
	onStepStart     StepHandler
	onStepComplete  StepHandler
	onProgress      func(update *ProgressUpdate)

	mu sync.RWMutex
}

// NewManager creates a plan manager. When requireApproval is false,
// plans execute without prompting.
func NewManager(requireApproval bool) *Manager {
	return &Manager{requireApproval: requireApproval}
}

// SetApprovalHandler sets the plan approval prompt.
func (m *Manager) SetApprovalHandler(handler ApprovalHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approvalHandler = handler
}

// SetStepHandlers sets the step lifecycle observers.
func (m *Manager) SetStepHandlers(onStart, onComplete StepHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStepStart = onStart
	m.onStepComplete = onComplete
}

// SetProgressHandler sets the progress update observer.
func (m *Manager) SetProgressHandler(handler func(update *ProgressUpdate)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onProgress = handler
}

// IsActive reports whether a plan exists and has not finished.
func (m *Manager) IsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentPlan != nil && !m.currentPlan.IsComplete()
}

// GetCurrentPlan returns the active plan, or nil.
func (m *Manager) GetCurrentPlan() *Plan {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentPlan
}

// CreatePlan creates a plan and makes it current.
func (m *Manager) CreatePlan(title, description, request string) *Plan {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := NewPlan(title, description)
	p.Request = request
	m.currentPlan = p
	return p
}

// SetPlan replaces the current plan.
func (m *Manager) SetPlan(p *Plan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentPlan = p
}

// ClearPlan drops the current plan and returns it.
func (m *Manager) ClearPlan() *Plan {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.currentPlan
	m.currentPlan = nil
	return p
}

// SaveRejectedPlan keeps a rejected plan around so a revised one can
// reference it.
func (m *Manager) SaveRejectedPlan(p *Plan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRejectedPlan = p
}

// GetLastRejectedPlan returns the most recently rejected plan.
func (m *Manager) GetLastRejectedPlan() *Plan {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRejectedPlan
}

// SetFeedback stores user feedback attached to a rejection.
func (m *Manager) SetFeedback(feedback string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFeedback = feedback
}

// TakeFeedback returns pending feedback and clears it.
func (m *Manager) TakeFeedback() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	feedback := m.lastFeedback
	m.lastFeedback = ""
	return feedback
}

// HasFeedback reports whether rejection feedback is pending.
func (m *Manager) HasFeedback() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastFeedback != ""
}

// RequestApproval asks the user to approve the current plan. Without
// a handler or with approval disabled, plans are auto-approved.
func (m *Manager) RequestApproval(ctx context.Context) (ApprovalDecision, error) {
	m.mu.RLock()
	p := m.currentPlan
	handler := m.approvalHandler
	m.mu.RUnlock()

	if p == nil {
		return ApprovalRejected, nil
	}
	if !m.requireApproval || handler == nil {
		return ApprovalApproved, nil
	}
	return handler(ctx, p)
}

// StartStep transitions a step to in-progress and notifies observers.
func (m *Manager) StartStep(stepID int) {
	p, onStart, _, onProgress := m.handlers()
	if p == nil {
		return
	}

	p.StartStep(stepID)
	m.notifyProgress(onProgress, p, stepID, "in_progress")

	if onStart != nil {
		if step := p.GetStep(stepID); step != nil {
			onStart(step)
		}
	}
}

// CompleteStep transitions a step to completed and notifies
// observers.
func (m *Manager) CompleteStep(stepID int, output string) {
	p, _, onComplete, onProgress := m.handlers()
	if p == nil {
		return
	}

	p.CompleteStep(stepID, output)

	status := "in_progress"
	if p.Progress() >= 1.0 {
		status = "completed"
	}
	m.notifyProgress(onProgress, p, stepID, status)

	if onComplete != nil {
		if step := p.GetStep(stepID); step != nil {
			onComplete(step)
		}
	}
}

// FailStep transitions a step to failed and notifies observers.
func (m *Manager) FailStep(stepID int, errMsg string) {
	p, _, _, onProgress := m.handlers()
	if p == nil {
		return
	}
	p.FailStep(stepID, errMsg)
	m.notifyProgress(onProgress, p, stepID, "failed")
}

// ResetStep transitions a failed step back to pending and notifies
// observers.
func (m *Manager) ResetStep(stepID int) {
	p, _, _, onProgress := m.handlers()
	if p == nil {
		return
	}
	p.ResetStep(stepID)
	m.notifyProgress(onProgress, p, stepID, "pending")
}

// SkipStep transitions a step to skipped and notifies observers.
func (m *Manager) SkipStep(stepID int) {
	p, _, _, onProgress := m.handlers()
	if p == nil {
		return
	}
	p.SkipStep(stepID)
	m.notifyProgress(onProgress, p, stepID, "skipped")
}

func (m *Manager) handlers() (*Plan, StepHandler, StepHandler, func(*ProgressUpdate)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentPlan, m.onStepStart, m.onStepComplete, m.onProgress
}

func (m *Manager) notifyProgress(onProgress func(*ProgressUpdate), p *Plan, stepID int, status string) {
	if onProgress == nil {
		return
	}
	step := p.GetStep(stepID)
	if step == nil {
		return
	}
	onProgress(&ProgressUpdate{
		PlanID:        p.ID,
		CurrentStepID: stepID,
		CurrentTitle:  step.Title,
		TotalSteps:    p.StepCount(),
		Completed:     p.CompletedCount(),
		Progress:      p.Progress(),
		Status:        status,
	})
}

// NextStep returns the next pending step of the current plan.
func (m *Manager) NextStep() *Step {
	m.mu.RLock()
	p := m.currentPlan
	m.mu.RUnlock()

	if p == nil {
		return nil
	}
	return p.NextStep()
}

// AddStep appends a step to the current plan.
func (m *Manager) AddStep(title, description string) *Step {
	m.mu.RLock()
	p := m.currentPlan
	m.mu.RUnlock()

	if p == nil {
		return nil
	}
	return p.AddStep(title, description)
}

// GetProgress returns completed count, total count, and fraction.
func (m *Manager) GetProgress() (current, total int, percent float64) {
	m.mu.RLock()
	p := m.currentPlan
	m.mu.RUnlock()

	if p == nil {
		return 0, 0, 0
	}
	return p.CompletedCount(), p.StepCount(), p.Progress()
}

// PreviousStepsSummary builds a compact record of earlier steps for
// injecting into the prompt of the current one. Outputs are truncated
// to maxLen characters.
func (m *Manager) PreviousStepsSummary(currentStepID, maxLen int) string {
	m.mu.RLock()
	p := m.currentPlan
	m.mu.RUnlock()

	if p == nil {
		return ""
	}

	var sb strings.Builder
	for _, step := range p.Steps {
		if step.ID >= currentStepID {
			break
		}
		switch step.Status {
		case StatusCompleted:
			output := step.Output
			if len(output) > maxLen {
				output = output[:maxLen] + "..."
			}
			if output == "" {
				output = "completed"
			}
			sb.WriteString(fmt.Sprintf("Step %d (%s): %s\n", step.ID, step.Title, output))
		case StatusFailed:
			sb.WriteString(fmt.Sprintf("Step %d (%s): FAILED\n", step.ID, step.Title))
		}
	}
	return sb.String()
}
