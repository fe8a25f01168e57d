package mode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAndTransitions(t *testing.T) {
	m := NewManager(Build, Interactive)

	assert.True(t, m.IsBuild())
	assert.True(t, m.IsInteractive())
	assert.False(t, m.IsReadOnly())

	m.ToPlan()
	assert.True(t, m.IsPlan())
	assert.True(t, m.IsReadOnly())

	m.ToReview()
	assert.True(t, m.IsReview())
	assert.True(t, m.IsReadOnly())

	m.ToAuto()
	assert.True(t, m.IsAuto())
	// Execution mode is independent of the operating mode.
	assert.True(t, m.IsReview())
}

func TestRequireBuild(t *testing.T) {
	m := NewManager(Plan, Interactive)

	err := m.RequireBuild("write")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires build mode")
	assert.Contains(t, err.Error(), "plan")

	m.ToBuild()
	assert.NoError(t, m.RequireBuild("write"))
}

func TestListenersFireOnlyOnRealTransitions(t *testing.T) {
	m := NewManager(Build, Interactive)

	var seen []OperatingMode
	m.OnModeChange(func(mode OperatingMode) {
		seen = append(seen, mode)
	})

	m.ToBuild() // no-op
	m.ToPlan()
	m.ToPlan() // no-op
	m.ToBuild()

	assert.Equal(t, []OperatingMode{Plan, Build}, seen)
}

func TestExecutionListener(t *testing.T) {
	m := NewManager(Build, Interactive)

	var fired int
	m.OnExecutionChange(func(ExecutionMode) { fired++ })

	m.ToAuto()
	m.ToAuto()
	m.ToInteractive()

	assert.Equal(t, 2, fired)
}

func TestStatusStrings(t *testing.T) {
	m := NewManager(Plan, Interactive)
	assert.Equal(t, "[plan]", m.StatusShort())
	assert.Equal(t, "mode: plan | execution: interactive", m.Status())

	m.ToAuto()
	assert.Equal(t, "[plan/auto]", m.StatusShort())
}
