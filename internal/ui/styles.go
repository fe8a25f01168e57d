// Package ui is the terminal presentation layer: styled output,
// markdown rendering, progress spinners, and diff previews.
package ui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used across the REPL.
type Styles struct {
	Prompt    lipgloss.Style
	UserInput lipgloss.Style
	Assistant lipgloss.Style
	ToolCall  lipgloss.Style
	ToolOk    lipgloss.Style
	ToolErr   lipgloss.Style
	Error     lipgloss.Style
	Warning   lipgloss.Style
	Info      lipgloss.Style
	Muted     lipgloss.Style
	Banner    lipgloss.Style
	StatusBar lipgloss.Style
	ModePlan  lipgloss.Style
	ModeBuild lipgloss.Style
	ModeRev   lipgloss.Style
}

// DefaultStyles returns the standard dark-terminal palette.
func DefaultStyles() *Styles {
	return &Styles{
		Prompt:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		UserInput: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Assistant: lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		ToolCall:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		ToolOk:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		ToolErr:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		Warning:   lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		Info:      lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Banner:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		StatusBar: lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Background(lipgloss.Color("236")),
		ModePlan:  lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true),
		ModeBuild: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		ModeRev:   lipgloss.NewStyle().Foreground(lipgloss.Color("45")).Bold(true),
	}
}

// ModeStyle returns the style for a mode name ("plan", "build",
// "review").
func (s *Styles) ModeStyle(mode string) lipgloss.Style {
	switch mode {
	case "plan":
		return s.ModePlan
	case "review":
		return s.ModeRev
	default:
		return s.ModeBuild
	}
}
