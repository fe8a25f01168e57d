package ui

import (
	"os"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Spinner shows an animated wait indicator on its own line while the
// model is thinking. It is inert when stdout is not a terminal.
type Spinner struct {
	program *tea.Program
	mu      sync.Mutex
	running bool
	done    chan struct{}
}

type spinnerModel struct {
	spinner spinner.Model
	message string
}

type spinnerStopMsg struct{}

type spinnerTextMsg string

func newSpinnerModel(message string) spinnerModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	return spinnerModel{spinner: sp, message: message}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinnerStopMsg:
		return m, tea.Quit
	case spinnerTextMsg:
		m.message = string(msg)
		return m, nil
	case tea.KeyMsg:
		// Swallow keystrokes; input resumes after the spinner stops.
		return m, nil
	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

func (m spinnerModel) View() string {
	return m.spinner.View() + " " + m.message
}

// NewSpinner creates a spinner with the given message.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		program: tea.NewProgram(newSpinnerModel(message)),
		done:    make(chan struct{}),
	}
}

// Start begins the animation. No-op outside a terminal.
func (s *Spinner) Start() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		_, _ = s.program.Run()
	}()
}

// SetMessage updates the message shown next to the spinner.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		s.program.Send(spinnerTextMsg(message))
	}
}

// Stop ends the animation and waits for the terminal to be released.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.program.Send(spinnerStopMsg{})
	<-s.done
}
