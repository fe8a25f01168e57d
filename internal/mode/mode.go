package mode

import (
	"fmt"
	"sync"
)

// OperatingMode controls what the agent is allowed to do.
type OperatingMode int

const (
	// Plan is a read-only mode for investigating and drafting plans.
	Plan OperatingMode = iota
	// Build is the full read/write/execute mode.
	Build
	// Review is a read-only mode for architectural analysis.
	Review
)

func (m OperatingMode) String() string {
	switch m {
	case Plan:
		return "plan"
	case Build:
		return "build"
	case Review:
		return "review"
	default:
		return "unknown"
	}
}

// ExecutionMode controls whether unsafe actions prompt the user.
type ExecutionMode int

const (
	// Interactive prompts before unsafe actions.
	Interactive ExecutionMode = iota
	// Auto never prompts.
	Auto
)

func (m ExecutionMode) String() string {
	switch m {
	case Interactive:
		return "interactive"
	case Auto:
		return "auto"
	default:
		return "unknown"
	}
}

// Listener is invoked after a mode transition, observing the new value.
type OperatingListener func(OperatingMode)

// ExecutionListener is invoked after an execution-mode transition.
type ExecutionListener func(ExecutionMode)

// Manager is a two-axis state machine over operating and execution modes.
// The axes are independent; no combination is illegal. Listeners fire
// synchronously in registration order, and only on real transitions.
type Manager struct {
	operating OperatingMode
	execution ExecutionMode

	operatingListeners []OperatingListener
	executionListeners []ExecutionListener

	mu sync.Mutex
}

// NewManager creates a Manager with the given initial state.
func NewManager(operating OperatingMode, execution ExecutionMode) *Manager {
	return &Manager{
		operating: operating,
		execution: execution,
	}
}

// OnModeChange registers a listener for operating-mode transitions.
func (m *Manager) OnModeChange(fn OperatingListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.operatingListeners = append(m.operatingListeners, fn)
}

// OnExecutionChange registers a listener for execution-mode transitions.
func (m *Manager) OnExecutionChange(fn ExecutionListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executionListeners = append(m.executionListeners, fn)
}

// SetMode transitions the operating mode. Setting the current mode again
// is a no-op and fires no listeners.
func (m *Manager) SetMode(target OperatingMode) {
	m.mu.Lock()
	if m.operating == target {
		m.mu.Unlock()
		return
	}
	m.operating = target
	listeners := append([]OperatingListener(nil), m.operatingListeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(target)
	}
}

// SetExecutionMode transitions the execution mode. Idempotent like SetMode.
func (m *Manager) SetExecutionMode(target ExecutionMode) {
	m.mu.Lock()
	if m.execution == target {
		m.mu.Unlock()
		return
	}
	m.execution = target
	listeners := append([]ExecutionListener(nil), m.executionListeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(target)
	}
}

// ToPlan switches to plan mode.
func (m *Manager) ToPlan() { m.SetMode(Plan) }

// ToBuild switches to build mode.
func (m *Manager) ToBuild() { m.SetMode(Build) }

// ToReview switches to review mode.
func (m *Manager) ToReview() { m.SetMode(Review) }

// ToInteractive switches to interactive execution.
func (m *Manager) ToInteractive() { m.SetExecutionMode(Interactive) }

// ToAuto switches to auto execution.
func (m *Manager) ToAuto() { m.SetExecutionMode(Auto) }

// Mode returns the current operating mode.
func (m *Manager) Mode() OperatingMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.operating
}

// Execution returns the current execution mode.
func (m *Manager) Execution() ExecutionMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.execution
}

// IsPlan reports whether the operating mode is plan.
func (m *Manager) IsPlan() bool { return m.Mode() == Plan }

// IsBuild reports whether the operating mode is build.
func (m *Manager) IsBuild() bool { return m.Mode() == Build }

// IsReview reports whether the operating mode is review.
func (m *Manager) IsReview() bool { return m.Mode() == Review }

// IsReadOnly reports whether the current mode forbids mutation.
func (m *Manager) IsReadOnly() bool {
	mode := m.Mode()
	return mode == Plan || mode == Review
}

// IsInteractive reports whether execution is interactive.
func (m *Manager) IsInteractive() bool { return m.Execution() == Interactive }

// IsAuto reports whether execution is auto.
func (m *Manager) IsAuto() bool { return m.Execution() == Auto }

// RequireBuild returns an error unless the current mode is build. Tools
// with filesystem or shell side effects call this before executing.
func (m *Manager) RequireBuild(operation string) error {
	if current := m.Mode(); current != Build {
		return fmt.Errorf("%s requires build mode (currently in %s mode, use /build to switch)", operation, current)
	}
	return nil
}

// Status returns a human-readable description of the current state.
func (m *Manager) Status() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fmt.Sprintf("mode: %s | execution: %s", m.operating, m.execution)
}

// StatusShort returns a compact status for the prompt line.
func (m *Manager) StatusShort() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.execution == Auto {
		return fmt.Sprintf("[%s/auto]", m.operating)
	}
	return fmt.Sprintf("[%s]", m.operating)
}
