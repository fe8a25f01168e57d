package ui

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
	"golang.org/x/term"

	"github.com/danib549/gofer/internal/highlight"
)

// UnifiedDiff produces unified-style diff text between two versions
// of a file.
func UnifiedDiff(filePath, oldContent, newContent string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldContent, newContent, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("--- %s\n", filePath))
	b.WriteString(fmt.Sprintf("+++ %s\n", filePath))

	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}

		lines := strings.Split(d.Text, "\n")
		for i, line := range lines {
			if i == len(lines)-1 && line == "" {
				continue
			}
			b.WriteString(prefix)
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// DiffStats counts added and removed lines between two versions.
func DiffStats(oldContent, newContent string) (added, removed int) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldContent, newContent, true)
	diffs = dmp.DiffCleanupSemantic(diffs)

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += strings.Count(d.Text, "\n") + 1
		case diffmatchpatch.DiffDelete:
			removed += strings.Count(d.Text, "\n") + 1
		}
	}
	return added, removed
}

// DiffPrompter previews file changes and asks for approval. It
// implements the diff handler interface used by the write and edit
// tools.
type DiffPrompter struct {
	styles      *Styles
	highlighter *highlight.Highlighter
	maxPreview  int
}

// NewDiffPrompter creates a prompter using the given styles.
func NewDiffPrompter(styles *Styles, highlighter *highlight.Highlighter) *DiffPrompter {
	return &DiffPrompter{
		styles:      styles,
		highlighter: highlighter,
		maxPreview:  200,
	}
}

// PromptDiff shows the change and reads a yes/no answer. Non-TTY
// stdin auto-approves so scripted runs do not hang.
func (p *DiffPrompter) PromptDiff(ctx context.Context, filePath, oldContent, newContent, toolName string, isNewFile bool) (bool, error) {
	fmt.Println()
	if isNewFile {
		fmt.Println(p.styles.Info.Render(fmt.Sprintf("── %s wants to create %s ──", toolName, filePath)))
	} else {
		added, removed := DiffStats(oldContent, newContent)
		fmt.Println(p.styles.Info.Render(fmt.Sprintf("── %s wants to change %s (+%d/-%d) ──", toolName, filePath, added, removed)))
	}

	diff := UnifiedDiff(filePath, oldContent, newContent)
	lines := strings.Split(diff, "\n")
	truncated := false
	if len(lines) > p.maxPreview {
		lines = lines[:p.maxPreview]
		truncated = true
	}
	fmt.Println(p.highlighter.HighlightDiff(strings.Join(lines, "\n")))
	if truncated {
		fmt.Println(p.styles.Muted.Render("  [diff truncated]"))
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Println(p.styles.Muted.Render("  [Auto-approving in non-interactive mode]"))
		return true, nil
	}

	fmt.Print(p.styles.Prompt.Render("  Apply this change? [y/N] "))
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, nil
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
