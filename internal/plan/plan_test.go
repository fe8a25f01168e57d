package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeStepPlan() *Plan {
	p := NewPlan("Add caching", "wire an LRU cache into the loader")
	p.AddStep("Add cache type", "define the cache struct")
	p.AddStep("Wire into loader", "call the cache from Load")
	p.AddStep("Add tests", "cover hit and miss paths")
	return p
}

func TestStepIDsAreOneBased(t *testing.T) {
	p := threeStepPlan()
	assert.Equal(t, 1, p.Steps[0].ID)
	assert.Equal(t, 3, p.Steps[2].ID)
}

func TestStepLifecycle(t *testing.T) {
	p := threeStepPlan()

	p.StartStep(1)
	assert.Equal(t, StatusInProgress, p.GetStep(1).Status)
	assert.Equal(t, StatusInProgress, p.Status)
	assert.Same(t, p.GetStep(1), p.CurrentStep())

	p.CompleteStep(1, "done")
	assert.Equal(t, StatusCompleted, p.GetStep(1).Status)
	assert.Equal(t, "done", p.GetStep(1).Output)
	assert.Same(t, p.GetStep(2), p.NextStep())
}

func TestPlanCompletesWhenAllStepsDoneOrSkipped(t *testing.T) {
	p := threeStepPlan()

	p.CompleteStep(1, "")
	p.SkipStep(2)
	assert.False(t, p.IsComplete())

	p.CompleteStep(3, "")
	assert.True(t, p.IsComplete())
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, 1.0, p.Progress())
}

func TestFailStepFailsPlan(t *testing.T) {
	p := threeStepPlan()

	p.FailStep(2, "compile error")
	assert.Equal(t, StatusFailed, p.Status)
	assert.Equal(t, "compile error", p.GetStep(2).Error)
	assert.True(t, p.IsComplete())
	// Failed steps remain runnable for retry.
	assert.Equal(t, 3, p.PendingCount())
}

func TestResetStepReturnsFailedStepToPending(t *testing.T) {
	p := threeStepPlan()

	p.StartStep(2)
	p.FailStep(2, "compile error")
	p.ResetStep(2)

	step := p.GetStep(2)
	assert.Equal(t, StatusPending, step.Status)
	assert.Empty(t, step.Error)
	assert.True(t, step.StartTime.IsZero())
	assert.True(t, step.EndTime.IsZero())
	// The plan leaves the failed state so the run can continue.
	assert.Equal(t, StatusInProgress, p.Status)
}

func TestManagerResetStepNotifiesProgress(t *testing.T) {
	m := NewManager(false)
	m.CreatePlan("x", "", "")
	m.AddStep("one", "")

	var statuses []string
	m.SetProgressHandler(func(u *ProgressUpdate) {
		statuses = append(statuses, u.Status)
	})

	m.StartStep(1)
	m.FailStep(1, "boom")
	m.ResetStep(1)

	assert.Equal(t, []string{"in_progress", "failed", "pending"}, statuses)
	assert.Equal(t, StatusPending, m.GetCurrentPlan().GetStep(1).Status)
}

func TestProgressCountsSkippedAsDone(t *testing.T) {
	p := threeStepPlan()
	p.SkipStep(1)
	assert.InDelta(t, 1.0/3.0, p.Progress(), 0.001)
	assert.Equal(t, 0, p.CompletedCount())
}

func TestRenderTree(t *testing.T) {
	p := threeStepPlan()
	p.CompleteStep(1, "")
	p.StartStep(2)

	out := p.RenderTree()
	assert.Contains(t, out, "## Add caching")
	assert.Contains(t, out, "✓ Step 1: Add cache type")
	assert.Contains(t, out, "→ Step 2: Wire into loader")
	assert.Contains(t, out, "○ Step 3: Add tests")
	assert.Contains(t, out, "(1/3 steps)")
}

func TestManagerCreateAndClear(t *testing.T) {
	m := NewManager(true)
	assert.False(t, m.IsActive())
	assert.Nil(t, m.NextStep())

	p := m.CreatePlan("Refactor", "", "refactor the parser")
	m.AddStep("Step one", "")
	assert.True(t, m.IsActive())
	assert.Same(t, p, m.GetCurrentPlan())
	assert.Equal(t, "refactor the parser", p.Request)

	cleared := m.ClearPlan()
	assert.Same(t, p, cleared)
	assert.Nil(t, m.GetCurrentPlan())
}

func TestManagerApprovalDisabledAutoApproves(t *testing.T) {
	m := NewManager(false)
	m.CreatePlan("x", "", "")
	m.SetApprovalHandler(func(ctx context.Context, p *Plan) (ApprovalDecision, error) {
		t.Fatal("handler should not be called when approval is disabled")
		return ApprovalRejected, nil
	})

	decision, err := m.RequestApproval(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, decision)
}

func TestManagerApprovalWithoutHandlerAutoApproves(t *testing.T) {
	m := NewManager(true)
	m.CreatePlan("x", "", "")

	decision, err := m.RequestApproval(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, decision)
}

func TestManagerApprovalWithoutPlanRejects(t *testing.T) {
	m := NewManager(true)

	decision, err := m.RequestApproval(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ApprovalRejected, decision)
}

func TestManagerApprovalHandlerDecides(t *testing.T) {
	m := NewManager(true)
	m.CreatePlan("x", "", "")

	var seen *Plan
	m.SetApprovalHandler(func(ctx context.Context, p *Plan) (ApprovalDecision, error) {
		seen = p
		return ApprovalRejected, nil
	})

	decision, err := m.RequestApproval(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ApprovalRejected, decision)
	assert.Same(t, m.GetCurrentPlan(), seen)
}

func TestManagerProgressNotifications(t *testing.T) {
	m := NewManager(false)
	m.CreatePlan("x", "", "")
	m.AddStep("one", "")
	m.AddStep("two", "")

	var updates []*ProgressUpdate
	m.SetProgressHandler(func(u *ProgressUpdate) {
		updates = append(updates, u)
	})

	m.StartStep(1)
	m.CompleteStep(1, "out")
	m.StartStep(2)
	m.CompleteStep(2, "out")

	require.Len(t, updates, 4)
	assert.Equal(t, "in_progress", updates[0].Status)
	assert.Equal(t, "completed", updates[3].Status)
	assert.Equal(t, 1.0, updates[3].Progress)
	assert.Equal(t, 2, updates[3].TotalSteps)
}

func TestManagerStepHandlers(t *testing.T) {
	m := NewManager(false)
	m.CreatePlan("x", "", "")
	m.AddStep("one", "")

	var started, completed []int
	m.SetStepHandlers(
		func(s *Step) { started = append(started, s.ID) },
		func(s *Step) { completed = append(completed, s.ID) },
	)

	m.StartStep(1)
	m.CompleteStep(1, "")

	assert.Equal(t, []int{1}, started)
	assert.Equal(t, []int{1}, completed)
}

func TestManagerFeedback(t *testing.T) {
	m := NewManager(true)
	assert.False(t, m.HasFeedback())

	m.SetFeedback("split step 2 in half")
	assert.True(t, m.HasFeedback())
	assert.Equal(t, "split step 2 in half", m.TakeFeedback())
	assert.False(t, m.HasFeedback())
	assert.Empty(t, m.TakeFeedback())
}

func TestPreviousStepsSummary(t *testing.T) {
	m := NewManager(false)
	m.CreatePlan("x", "", "")
	m.AddStep("first", "")
	m.AddStep("second", "")
	m.AddStep("third", "")

	m.CompleteStep(1, "added the cache type")
	m.FailStep(2, "boom")

	summary := m.PreviousStepsSummary(3, 100)
	assert.Contains(t, summary, "Step 1 (first): added the cache type")
	assert.Contains(t, summary, "Step 2 (second): FAILED")
	assert.NotContains(t, summary, "third")
}

func TestPreviousStepsSummaryTruncatesOutput(t *testing.T) {
	m := NewManager(false)
	m.CreatePlan("x", "", "")
	m.AddStep("first", "")
	m.AddStep("second", "")

	m.CompleteStep(1, "aaaaaaaaaaaaaaaaaaaa")

	summary := m.PreviousStepsSummary(2, 5)
	assert.Contains(t, summary, "aaaaa...")
	assert.NotContains(t, summary, "aaaaaa...")
}
