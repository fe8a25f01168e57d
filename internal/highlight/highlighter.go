// Package highlight renders code and diffs with terminal colors.
package highlight

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
)

var (
	diffAddStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)
	diffRemoveStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	diffHeaderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4")).Bold(true)
	diffHunkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA"))
	diffContextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	lineNumStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// Highlighter colorizes source code using chroma.
type Highlighter struct {
	style     string
	formatter chroma.Formatter
}

// New creates a highlighter. An empty style selects monokai.
func New(style string) *Highlighter {
	if style == "" {
		style = "monokai"
	}
	return &Highlighter{
		style:     style,
		formatter: formatters.Get("terminal256"),
	}
}

// Highlight colorizes code for the given language. On any failure the
// input is returned unchanged.
func (h *Highlighter) Highlight(code, lang string) string {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get(h.style)
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, style, iterator); err != nil {
		return code
	}
	return buf.String()
}

// HighlightWithLineNumbers colorizes code and prefixes each line with
// its number starting at startLine.
func (h *Highlighter) HighlightWithLineNumbers(code, lang string, startLine int) string {
	lines := strings.Split(h.Highlight(code, lang), "\n")

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(lineNumStyle.Render(fmt.Sprintf("%4d", startLine+i)))
		b.WriteString(" │ ")
		b.WriteString(line)
	}
	return b.String()
}

// HighlightDiff colorizes unified diff text line by line.
func (h *Highlighter) HighlightDiff(diff string) string {
	lines := strings.Split(diff, "\n")

	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteString("\n")
		}
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			b.WriteString(diffHeaderStyle.Render(line))
		case strings.HasPrefix(line, "@@"):
			b.WriteString(diffHunkStyle.Render(line))
		case strings.HasPrefix(line, "+"):
			b.WriteString(diffAddStyle.Render(line))
		case strings.HasPrefix(line, "-"):
			b.WriteString(diffRemoveStyle.Render(line))
		default:
			b.WriteString(diffContextStyle.Render(line))
		}
	}
	return b.String()
}

// extLanguages maps file extensions to chroma language names where
// chroma's own matching is unreliable or slow.
var extLanguages = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".tsx":  "tsx",
	".jsx":  "jsx",
	".rs":   "rust",
	".rb":   "ruby",
	".java": "java",
	".c":    "c",
	".h":    "c",
	".cpp":  "cpp",
	".hpp":  "cpp",
	".cs":   "csharp",
	".sh":   "bash",
	".bash": "bash",
	".zsh":  "bash",
	".sql":  "sql",
	".html": "html",
	".css":  "css",
	".json": "json",
	".yaml": "yaml",
	".yml":  "yaml",
	".toml": "toml",
	".xml":  "xml",
	".md":   "markdown",
	".lua":  "lua",
	".ex":   "elixir",
	".hs":   "haskell",
	".tf":   "terraform",
}

var nameLanguages = map[string]string{
	"dockerfile": "docker",
	"makefile":   "makefile",
	"gemfile":    "ruby",
	".gitignore": "gitignore",
	"go.mod":     "gomod",
}

// DetectLanguage guesses the language from a filename.
func (h *Highlighter) DetectLanguage(filename string) string {
	if lang, ok := extLanguages[strings.ToLower(filepath.Ext(filename))]; ok {
		return lang
	}
	if lang, ok := nameLanguages[strings.ToLower(filepath.Base(filename))]; ok {
		return lang
	}
	if lexer := lexers.Match(filename); lexer != nil {
		return lexer.Config().Name
	}
	return "text"
}
