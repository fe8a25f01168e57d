package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"google.golang.org/genai"

	"github.com/danib549/gofer/internal/git"
	"github.com/danib549/gofer/internal/security"
)

// GlobTool finds files matching a glob pattern.
type GlobTool struct {
	workDir       string
	ignore        *git.Ignore
	pathValidator *security.PathValidator
}

// NewGlobTool creates a GlobTool rooted at workDir.
func NewGlobTool(workDir string) *GlobTool {
	ignore := git.NewIgnore(workDir)
	_ = ignore.Load() // gitignore is optional

	return &GlobTool{
		workDir:       workDir,
		ignore:        ignore,
		pathValidator: security.NewPathValidator([]string{workDir}),
	}
}

func (t *GlobTool) Name() string {
	return "glob"
}

func (t *GlobTool) RequiresBuildMode() bool {
	return false
}

func (t *GlobTool) Description() string {
	return `Finds files matching a glob pattern. Returns file paths sorted by modification time (newest first).

PARAMETERS:
- pattern (required): Glob pattern to match files
- path (optional): Directory to search in (default: workspace root)

PATTERN SYNTAX:
- *: Matches any characters except /
- **: Matches any characters including / (recursive)
- ?: Matches single character
- [abc]: Matches any character in brackets
- {a,b}: Matches either a or b

COMMON PATTERNS:
- "**/*.go" - All Go files recursively
- "src/**/*" - All files in src directory
- "**/*_test.go" - All Go test files

LIMITATIONS:
- Maximum 1000 results returned
- Gitignored files are excluded
- Directories are not included (files only)`
}

func (t *GlobTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"pattern": {
					Type:        genai.TypeString,
					Description: "The glob pattern to match (e.g., '**/*.go', 'src/**/*.ts')",
				},
				"path": {
					Type:        genai.TypeString,
					Description: "The directory to search in. Defaults to the workspace root.",
				},
			},
			Required: []string{"pattern"},
		},
	}
}

func (t *GlobTool) Validate(args map[string]any) error {
	pattern, ok := GetString(args, "pattern")
	if !ok || pattern == "" {
		return NewValidationError("pattern", "is required")
	}
	return nil
}

func (t *GlobTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	pattern, _ := GetString(args, "pattern")
	searchPath := GetStringDefault(args, "path", t.workDir)
	searchPath = resolveWithin(t.workDir, searchPath)

	validPath, err := t.pathValidator.ValidateDir(searchPath)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("path validation failed: %s", err)), nil
	}
	searchPath = validPath

	matches, err := doublestar.FilepathGlob(filepath.Join(searchPath, pattern))
	if err != nil {
		return NewErrorResult(fmt.Sprintf("invalid pattern: %s", err)), nil
	}

	type fileInfo struct {
		path    string
		modTime int64
	}
	var files []fileInfo
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		if t.ignore.IsIgnored(match) {
			continue
		}
		files = append(files, fileInfo{path: match, modTime: info.ModTime().Unix()})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime > files[j].modTime
	})

	const maxResults = 1000
	totalFound := len(files)
	if len(files) > maxResults {
		files = files[:maxResults]
	}

	if len(files) == 0 {
		return NewSuccessResult("(no matches)"), nil
	}

	var builder strings.Builder
	if totalFound > maxResults {
		builder.WriteString(fmt.Sprintf("(showing %d of %d)\n", maxResults, totalFound))
	}
	for _, f := range files {
		relPath, err := filepath.Rel(t.workDir, f.path)
		if err != nil {
			relPath = f.path
		}
		builder.WriteString(relPath)
		builder.WriteString("\n")
	}

	return NewSuccessResultWithData(builder.String(), map[string]any{
		"pattern": pattern,
		"count":   len(files),
	}), nil
}
