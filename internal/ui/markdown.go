package ui

import (
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// MarkdownRenderer renders model output as terminal markdown. When
// rendering is unavailable it passes text through unchanged.
type MarkdownRenderer struct {
	renderer *glamour.TermRenderer
	enabled  bool
}

// NewMarkdownRenderer creates a renderer. Rendering is disabled when
// stdout is not a terminal or glamour fails to initialize.
func NewMarkdownRenderer(enabled bool) *MarkdownRenderer {
	if !enabled || !term.IsTerminal(int(os.Stdout.Fd())) {
		return &MarkdownRenderer{}
	}

	width := 100
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
		if width > 120 {
			width = 120
		}
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return &MarkdownRenderer{}
	}
	return &MarkdownRenderer{renderer: renderer, enabled: true}
}

// Enabled reports whether markdown rendering is active.
func (r *MarkdownRenderer) Enabled() bool {
	return r.enabled
}

// Render converts markdown to styled terminal text.
func (r *MarkdownRenderer) Render(text string) string {
	if r.renderer == nil {
		return text
	}
	rendered, err := r.renderer.Render(text)
	if err != nil {
		return text
	}
	return rendered
}
