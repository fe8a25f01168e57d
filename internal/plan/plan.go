// Package plan models multi-step execution plans: building them in
// plan mode, approving them, and tracking step progress during
// execution.
package plan

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Status is the lifecycle state of a plan or step.
type Status int

const (
	StatusPending Status = iota
	StatusInProgress
	StatusCompleted
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Icon returns the display glyph for a status.
func (s Status) Icon() string {
	switch s {
	case StatusPending:
		return "○"
	case StatusInProgress:
		return "→"
	case StatusCompleted:
		return "✓"
	case StatusFailed:
		return "✗"
	case StatusSkipped:
		return "⊘"
	default:
		return "?"
	}
}

// Step is a single unit of work in a plan. IDs are 1-based and
// assigned in insertion order.
type Step struct {
	ID          int       `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Output      string    `json:"output"`
	Error       string    `json:"error"`
	StartTime   time.Time `json:"start_time,omitempty"`
	EndTime     time.Time `json:"end_time,omitempty"`
}

// Duration returns how long the step ran, or has been running.
func (s *Step) Duration() time.Duration {
	if s.StartTime.IsZero() {
		return 0
	}
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Plan is an ordered list of steps derived from a user request.
type Plan struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Steps       []*Step   `json:"steps"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Request     string    `json:"request"`

	mu sync.RWMutex
}

// NewPlan creates an empty plan.
func NewPlan(title, description string) *Plan {
	now := time.Now()
	return &Plan{
		ID:          fmt.Sprintf("plan_%d", now.UnixNano()),
		Title:       title,
		Description: description,
		Steps:       make([]*Step, 0),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AddStep appends a step and returns it.
func (p *Plan) AddStep(title, description string) *Step {
	p.mu.Lock()
	defer p.mu.Unlock()

	step := &Step{
		ID:          len(p.Steps) + 1,
		Title:       title,
		Description: description,
		Status:      StatusPending,
	}
	p.Steps = append(p.Steps, step)
	p.UpdatedAt = time.Now()
	return step
}

// GetStep returns the step with the given ID, or nil.
func (p *Plan) GetStep(id int) *Step {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stepLocked(id)
}

func (p *Plan) stepLocked(id int) *Step {
	for _, step := range p.Steps {
		if step.ID == id {
			return step
		}
	}
	return nil
}

// CurrentStep returns the in-progress step, or the next pending one.
func (p *Plan) CurrentStep() *Step {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, step := range p.Steps {
		if step.Status == StatusInProgress {
			return step
		}
	}
	for _, step := range p.Steps {
		if step.Status == StatusPending {
			return step
		}
	}
	return nil
}

// NextStep returns the next pending step, or nil when none remain.
func (p *Plan) NextStep() *Step {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, step := range p.Steps {
		if step.Status == StatusPending {
			return step
		}
	}
	return nil
}

// StartStep marks a step in progress and the plan with it.
func (p *Plan) StartStep(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if step := p.stepLocked(id); step != nil {
		step.Status = StatusInProgress
		step.StartTime = time.Now()
		p.Status = StatusInProgress
		p.UpdatedAt = time.Now()
	}
}

// CompleteStep marks a step completed. When every step is completed
// or skipped the plan itself completes.
func (p *Plan) CompleteStep(id int, output string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if step := p.stepLocked(id); step != nil {
		step.Status = StatusCompleted
		step.Output = output
		step.EndTime = time.Now()
		p.UpdatedAt = time.Now()
	}

	for _, step := range p.Steps {
		if step.Status != StatusCompleted && step.Status != StatusSkipped {
			return
		}
	}
	p.Status = StatusCompleted
}

// FailStep marks a step and the plan as failed.
func (p *Plan) FailStep(id int, errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if step := p.stepLocked(id); step != nil {
		step.Status = StatusFailed
		step.Error = errMsg
		step.EndTime = time.Now()
		p.Status = StatusFailed
		p.UpdatedAt = time.Now()
	}
}

// ResetStep returns a failed step to pending so it can run again. The
// plan leaves the failed state with it.
func (p *Plan) ResetStep(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if step := p.stepLocked(id); step != nil {
		step.Status = StatusPending
		step.Error = ""
		step.StartTime = time.Time{}
		step.EndTime = time.Time{}
		p.Status = StatusInProgress
		p.UpdatedAt = time.Now()
	}
}

// SkipStep marks a step as skipped.
func (p *Plan) SkipStep(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if step := p.stepLocked(id); step != nil {
		step.Status = StatusSkipped
		p.UpdatedAt = time.Now()
	}
}

// Progress returns completion from 0.0 to 1.0. Skipped steps count
// as done.
func (p *Plan) Progress() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.progressLocked()
}

func (p *Plan) progressLocked() float64 {
	if len(p.Steps) == 0 {
		return 0
	}
	return float64(p.doneLocked()) / float64(len(p.Steps))
}

func (p *Plan) doneLocked() int {
	done := 0
	for _, step := range p.Steps {
		if step.Status == StatusCompleted || step.Status == StatusSkipped {
			done++
		}
	}
	return done
}

// IsComplete reports whether execution has finished, successfully or
// not.
func (p *Plan) IsComplete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Status == StatusCompleted || p.Status == StatusFailed
}

// StepCount returns the number of steps.
func (p *Plan) StepCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.Steps)
}

// CompletedCount returns the number of completed steps.
func (p *Plan) CompletedCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, step := range p.Steps {
		if step.Status == StatusCompleted {
			count++
		}
	}
	return count
}

// PendingCount returns the number of steps still runnable.
func (p *Plan) PendingCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, step := range p.Steps {
		if step.Status == StatusPending || step.Status == StatusFailed {
			count++
		}
	}
	return count
}

// RenderTree renders the plan as a status-annotated step list.
func (p *Plan) RenderTree() string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var b strings.Builder
	b.WriteString(fmt.Sprintf("## %s\n", p.Title))
	if p.Description != "" {
		b.WriteString(p.Description + "\n")
	}
	b.WriteString("\n")

	for _, step := range p.Steps {
		b.WriteString(fmt.Sprintf("%s Step %d: %s\n", step.Status.Icon(), step.ID, step.Title))
	}

	b.WriteString(fmt.Sprintf("\nProgress: %.0f%% (%d/%d steps)\n",
		p.progressLocked()*100, p.doneLocked(), len(p.Steps)))
	return b.String()
}

// Format returns the display representation of the plan.
func (p *Plan) Format() string {
	return p.RenderTree()
}
