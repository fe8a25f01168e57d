// Package git provides gitignore matching for search tools and
// best-effort checkpoint commits before mutating operations.
package git

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Ignore matches paths against the workspace root .gitignore. The .git
// directory is always ignored.
type Ignore struct {
	workDir  string
	patterns []ignorePattern
	loaded   bool
	mu       sync.RWMutex
}

type ignorePattern struct {
	glob     string
	negation bool
	dirOnly  bool
	anchored bool
}

// NewIgnore creates an Ignore for the given workspace root.
func NewIgnore(workDir string) *Ignore {
	return &Ignore{workDir: workDir}
}

// Load parses the root .gitignore. A missing file is not an error.
func (ig *Ignore) Load() error {
	ig.mu.Lock()
	defer ig.mu.Unlock()

	ig.patterns = ig.patterns[:0]
	ig.loaded = true

	f, err := os.Open(filepath.Join(ig.workDir, ".gitignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if p, ok := parseIgnoreLine(scanner.Text()); ok {
			ig.patterns = append(ig.patterns, p)
		}
	}
	return scanner.Err()
}

func parseIgnoreLine(line string) (ignorePattern, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return ignorePattern{}, false
	}

	var p ignorePattern
	if strings.HasPrefix(line, "!") {
		p.negation = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		line = line[1:]
		p.anchored = true
	} else if strings.Contains(line, "/") {
		p.anchored = true
	}
	p.glob = line
	return p, true
}

// IsIgnored reports whether a path is excluded by the loaded patterns.
func (ig *Ignore) IsIgnored(path string) bool {
	ig.mu.RLock()
	defer ig.mu.RUnlock()

	if !ig.loaded {
		return false
	}

	rel, err := filepath.Rel(ig.workDir, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	if rel == ".git" || strings.HasPrefix(rel, ".git/") || strings.Contains(rel, "/.git/") {
		return true
	}

	info, err := os.Stat(path)
	isDir := err == nil && info.IsDir()

	// Last matching pattern wins, as in git itself.
	ignored := false
	for _, p := range ig.patterns {
		if p.dirOnly && !isDir && !matchGlob(p.glob+"/**", rel) && !matchGlob("**/"+p.glob+"/**", rel) {
			continue
		}
		if ig.matches(p, rel) {
			ignored = !p.negation
		}
	}
	return ignored
}

func (ig *Ignore) matches(p ignorePattern, rel string) bool {
	if p.anchored {
		return matchGlob(p.glob, rel) || matchGlob(p.glob+"/**", rel)
	}
	if matchGlob("**/"+p.glob, rel) || matchGlob("**/"+p.glob+"/**", rel) {
		return true
	}
	return matchGlob(p.glob, filepath.Base(rel))
}

func matchGlob(pattern, path string) bool {
	ok, err := doublestar.Match(pattern, path)
	return err == nil && ok
}
