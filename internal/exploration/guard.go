// Package exploration enforces read-before-write discipline: the model
// must demonstrate it has investigated the codebase before any
// modification tool is allowed to run.
package exploration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// MinExplorationActions is the baseline number of exploration actions
// required before any modification is allowed.
const MinExplorationActions = 2

// maxAncestorHops bounds the upward walk when checking whether an
// ancestor directory has been explored.
const maxAncestorHops = 20

// explorationTools are read-only, understanding-focused tools. Each
// invocation counts toward the minimum threshold.
var explorationTools = map[string]bool{
	"read":            true,
	"glob":            true,
	"grep":            true,
	"tree":            true,
	"list_dir":        true,
	"outline":         true,
	"find_definition": true,
	"find_references": true,
	"find_symbols":    true,
}

// modificationTools require prior exploration before they may execute.
var modificationTools = map[string]bool{
	"write":         true,
	"edit":          true,
	"rename_symbol": true,
}

// State tracks what has been explored during the current task.
type State struct {
	FilesRead       map[string]bool
	DirsExplored    map[string]bool
	PatternsGrepped map[string]bool
	PathsGrepped    map[string]bool
	Count           int
}

func newState() *State {
	return &State{
		FilesRead:       make(map[string]bool),
		DirsExplored:    make(map[string]bool),
		PatternsGrepped: make(map[string]bool),
		PathsGrepped:    make(map[string]bool),
	}
}

// Violation describes why a modification was blocked. It is constructed
// fresh per check and never stored.
type Violation struct {
	Blocked         bool
	Reason          string
	RequiredActions []string
	TeachingMessage string
}

func allowed(reason string) Violation {
	return Violation{Blocked: false, Reason: reason}
}

// Guard blocks modification tools until the model has explored enough.
// Rules:
//  1. Before any write/edit, at least MinExplorationActions exploration
//     actions must have been performed (with lenience, see CheckModification).
//  2. Before edit, the target file must have been read.
//  3. Before overwriting an existing file, it must have been read.
//  4. Before creating a new file, its directory must have been explored.
type Guard struct {
	enabled bool
	state   *State
	mu      sync.Mutex
}

// NewGuard creates a Guard. A disabled guard never blocks.
func NewGuard(enabled bool) *Guard {
	return &Guard{
		enabled: enabled,
		state:   newState(),
	}
}

// Enabled reports whether enforcement is on.
func (g *Guard) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enabled
}

// SetEnabled turns enforcement on or off.
func (g *Guard) SetEnabled(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.enabled = enabled
}

// Reset discards all exploration state. Called at the start of a new
// task so stale exploration credit does not carry across unrelated work.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = newState()
}

// Invalidate drops a single file from the known set, for example when
// the file changed on disk outside the agent.
func (g *Guard) Invalidate(path string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.state.FilesRead, normalizePath(path))
}

// RecordExploration records a tool invocation in the exploration state.
// Write/edit invocations mark their target as known without counting as
// exploration: the model just produced the contents, it does not need to
// re-read them to edit again.
func (g *Guard) RecordExploration(toolName string, args map[string]any) {
	g.mu.Lock()
	defer g.mu.Unlock()

	tool := strings.ToLower(toolName)

	if tool == "write" || tool == "edit" {
		if path := pathArg(args); path != "" {
			normalized := normalizePath(path)
			g.state.FilesRead[normalized] = true
			g.state.DirsExplored[filepath.Dir(normalized)] = true
		}
		return
	}

	if !explorationTools[tool] {
		return
	}
	g.state.Count++

	switch tool {
	case "read", "outline", "find_definition", "find_references", "find_symbols":
		if path := pathArg(args); path != "" {
			normalized := normalizePath(path)
			g.state.FilesRead[normalized] = true
			// Reading a file implies light awareness of its directory.
			g.state.DirsExplored[filepath.Dir(normalized)] = true
		}

	case "glob":
		pattern, _ := args["pattern"].(string)
		path := pathArg(args)
		if pattern == "" {
			return
		}
		baseDir := extractBaseDir(pattern)
		fullDir := baseDir
		if path != "" && !filepath.IsAbs(baseDir) {
			if baseDir == "." {
				fullDir = path
			} else {
				fullDir = filepath.Join(path, baseDir)
			}
		}
		g.state.DirsExplored[normalizePath(fullDir)] = true

	case "grep":
		pattern, _ := args["pattern"].(string)
		path := pathArg(args)
		if path == "" {
			path = "."
		}
		if pattern != "" {
			g.state.PatternsGrepped[pattern] = true
		}
		normalized := normalizePath(path)
		g.state.PathsGrepped[normalized] = true
		g.state.DirsExplored[normalized] = true

	case "tree", "list_dir":
		path := pathArg(args)
		if path == "" {
			path = "."
		}
		g.state.DirsExplored[normalizePath(path)] = true
	}
}

// CheckModification decides whether a modification tool may run given
// the exploration performed so far. All deficiencies are reported at
// once so the model can satisfy them in one pass.
func (g *Guard) CheckModification(toolName string, args map[string]any) Violation {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.enabled {
		return allowed("exploration guard disabled")
	}

	tool := strings.ToLower(toolName)
	if !modificationTools[tool] {
		return allowed("not a modification tool")
	}

	path := pathArg(args)
	if path == "" {
		return Violation{
			Blocked:         true,
			Reason:          "no path provided",
			RequiredActions: []string{"Provide a path argument"},
			TeachingMessage: "You must specify which file to modify.",
		}
	}

	normalized := normalizePath(path)
	parentDir := filepath.Dir(normalized)
	_, statErr := os.Stat(normalized)
	fileExists := statErr == nil

	dirExplored := g.directoryExplored(parentDir)
	fileKnown := g.state.FilesRead[normalized]

	// Lenience: a single exploration action is enough when creating a new
	// file in an explored directory, or when touching a file already known.
	minRequired := MinExplorationActions
	switch {
	case tool == "write" && !fileExists && dirExplored:
		minRequired = 1
	case tool == "write" && fileExists && fileKnown:
		minRequired = 1
	case tool == "edit" && fileKnown:
		minRequired = 1
	}

	var required []string

	if g.state.Count < minRequired {
		remaining := minRequired - g.state.Count
		required = append(required, fmt.Sprintf(
			"Perform at least %d more exploration action(s) (read, glob, grep, tree, outline) before modifying files",
			remaining))
	}

	if tool == "edit" && !fileKnown {
		required = append(required, fmt.Sprintf("Read the file first: read(%q)", path))
	}

	if tool == "write" && fileExists && !fileKnown {
		required = append(required, fmt.Sprintf(
			"You're overwriting an EXISTING file! Read it first to understand what you're replacing: read(%q)", path))
	}

	if tool == "write" && !fileExists && !dirExplored {
		required = append(required, fmt.Sprintf(
			"Explore the target directory first to understand existing patterns: glob(%q) or tree(%q)",
			parentDir+"/*", parentDir))
	}

	if len(required) > 0 {
		return Violation{
			Blocked:         true,
			Reason:          "insufficient exploration before modification",
			RequiredActions: required,
			TeachingMessage: buildTeachingMessage(toolName, path, required),
		}
	}

	return allowed("exploration requirements met")
}

// directoryExplored checks the directory and its ancestors (bounded)
// against explored and grepped paths. Allows creating files in brand-new
// subdirectories of an already-explored parent.
func (g *Guard) directoryExplored(dir string) bool {
	normalized := normalizePath(dir)

	if g.state.DirsExplored[normalized] || g.state.PathsGrepped[normalized] {
		return true
	}

	current := normalized
	for i := 0; i < maxAncestorHops; i++ {
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		if g.state.DirsExplored[parent] || g.state.PathsGrepped[parent] {
			return true
		}
		current = parent
	}
	return false
}

// Summary is a read-only snapshot of exploration state.
type Summary struct {
	FilesRead        []string
	DirsExplored     []string
	PatternsGrepped  []string
	ExplorationCount int
	MinRequired      int
	CanModify        bool
}

// GetSummary returns a snapshot of the exploration state.
func (g *Guard) GetSummary() Summary {
	g.mu.Lock()
	defer g.mu.Unlock()

	return Summary{
		FilesRead:        keys(g.state.FilesRead),
		DirsExplored:     keys(g.state.DirsExplored),
		PatternsGrepped:  keys(g.state.PatternsGrepped),
		ExplorationCount: g.state.Count,
		MinRequired:      MinExplorationActions,
		CanModify:        g.state.Count >= MinExplorationActions,
	}
}

// FormatStatus returns a brief status line for display.
func (g *Guard) FormatStatus() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	count := g.state.Count
	files := len(g.state.FilesRead)
	if count >= MinExplorationActions {
		return fmt.Sprintf("[Explored: %d actions, %d files - OK to modify]", count, files)
	}
	return fmt.Sprintf("[Explored: %d/%d actions - NEED MORE before modifying]", count, MinExplorationActions)
}

// pathArg extracts the target path from tool arguments. Tools use either
// "path" or "file_path" for their primary target.
func pathArg(args map[string]any) string {
	if p, ok := args["path"].(string); ok && p != "" {
		return p
	}
	if p, ok := args["file_path"].(string); ok && p != "" {
		return p
	}
	return ""
}

// normalizePath resolves a path to an absolute canonical form, falling
// back to lexical cleaning when resolution fails.
func normalizePath(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return filepath.Clean(abs)
}

// extractBaseDir returns the longest non-wildcard prefix of a glob
// pattern, splitting on "/" and stopping at the first segment containing
// a metacharacter. The result is lexical; callers join it with the
// search path before normalizing.
func extractBaseDir(pattern string) string {
	parts := strings.Split(strings.ReplaceAll(pattern, "\\", "/"), "/")
	var base []string
	for _, part := range parts {
		if strings.ContainsAny(part, "*?[") {
			break
		}
		base = append(base, part)
	}
	if len(base) == 0 {
		return "."
	}
	return strings.Join(base, "/")
}

func buildTeachingMessage(toolName, path string, requiredActions []string) string {
	var actions strings.Builder
	for i, action := range requiredActions {
		fmt.Fprintf(&actions, "  %d. %s\n", i+1, action)
	}

	return fmt.Sprintf(`
================================================================================
                         EXPLORATION REQUIRED
================================================================================

You attempted to use %s on %q WITHOUT proper exploration.

This is NOT allowed. You MUST understand code before modifying it.

REQUIRED ACTIONS BEFORE YOU CAN PROCEED:
%s
WHY THIS MATTERS:
- Blindly writing code leads to bugs and inconsistencies
- You might duplicate existing functionality
- You might break existing patterns or conventions
- You might introduce security vulnerabilities
- You CANNOT write good code without reading existing code first

WHAT TO DO NOW:
1. Stop trying to modify files
2. Use read, glob, grep, tree, or outline to explore the codebase
3. Understand the existing patterns and conventions
4. THEN and ONLY THEN, proceed with your modification

This is non-negotiable. Explore first, modify second.
================================================================================
`, toolName, path, actions.String())
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
