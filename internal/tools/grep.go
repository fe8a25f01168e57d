package tools

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"google.golang.org/genai"

	"github.com/danib549/gofer/internal/git"
	"github.com/danib549/gofer/internal/security"
)

// GrepTool searches for patterns in files.
type GrepTool struct {
	workDir       string
	ignore        *git.Ignore
	pathValidator *security.PathValidator
}

// NewGrepTool creates a GrepTool rooted at workDir.
func NewGrepTool(workDir string) *GrepTool {
	ignore := git.NewIgnore(workDir)
	_ = ignore.Load() // gitignore is optional

	return &GrepTool{
		workDir:       workDir,
		ignore:        ignore,
		pathValidator: security.NewPathValidator([]string{workDir}),
	}
}

func (t *GrepTool) Name() string {
	return "grep"
}

func (t *GrepTool) RequiresBuildMode() bool {
	return false
}

func (t *GrepTool) Description() string {
	return `Searches for a regex pattern in files. Returns matching lines with file paths and line numbers.

PARAMETERS:
- pattern (required): Regex pattern to search for (e.g., "func.*Error", "TODO:")
- path (optional): File or directory to search in (default: workspace root)
- glob (optional): Filter files by pattern (e.g., "*.go", "**/*.ts")
- case_insensitive (optional): If true, ignore case (default: false)
- context_lines (optional): Number of lines to show before/after matches (default: 0)

REGEX TIPS:
- Literal search: "functionName" - finds exact text
- Wildcards: "handle.*Error" - matches handleError, handleUserError, etc.
- Word boundary: "\bfunc\b" - matches "func" but not "function"
- Alternatives: "(error|Error|ERROR)" - matches any case

LIMITATIONS:
- Maximum 500 matches returned
- Files >10MB are skipped
- Binary files are skipped
- Gitignored files are excluded`
}

func (t *GrepTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"pattern": {
					Type:        genai.TypeString,
					Description: "The regex pattern to search for",
				},
				"path": {
					Type:        genai.TypeString,
					Description: "File or directory to search in. Defaults to the workspace root.",
				},
				"glob": {
					Type:        genai.TypeString,
					Description: "Glob pattern to filter files (e.g., '*.go', '**/*.ts')",
				},
				"case_insensitive": {
					Type:        genai.TypeBoolean,
					Description: "If true, search is case-insensitive",
				},
				"context_lines": {
					Type:        genai.TypeInteger,
					Description: "Number of context lines to show before and after matches",
				},
			},
			Required: []string{"pattern"},
		},
	}
}

func (t *GrepTool) Validate(args map[string]any) error {
	pattern, ok := GetString(args, "pattern")
	if !ok || pattern == "" {
		return NewValidationError("pattern", "is required")
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return NewValidationError("pattern", fmt.Sprintf("invalid regex: %s", err))
	}
	return nil
}

func (t *GrepTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	pattern, _ := GetString(args, "pattern")
	searchPath := GetStringDefault(args, "path", t.workDir)
	globPattern := GetStringDefault(args, "glob", "")
	caseInsensitive := GetBoolDefault(args, "case_insensitive", false)
	contextLines := GetIntDefault(args, "context_lines", 0)

	searchPath = resolveWithin(t.workDir, searchPath)
	validPath, err := t.pathValidator.Validate(searchPath)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("path validation failed: %s", err)), nil
	}
	searchPath = validPath

	regexPattern := pattern
	if caseInsensitive {
		regexPattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(regexPattern)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("invalid regex: %s", err)), nil
	}

	files, err := t.getFiles(searchPath, globPattern)
	if err != nil {
		return NewErrorResult(err.Error()), nil
	}

	fileMatches := t.searchParallel(ctx, files, re, contextLines)

	const maxMatches = 500
	var results strings.Builder
	matchCount := 0
	fileCount := 0

	for _, fm := range fileMatches {
		if matchCount >= maxMatches {
			break
		}
		fileCount++
		relPath, _ := filepath.Rel(t.workDir, fm.path)
		if relPath == "" {
			relPath = fm.path
		}
		for _, match := range fm.matches {
			if matchCount >= maxMatches {
				break
			}
			results.WriteString(fmt.Sprintf("%s:%d: %s\n", relPath, match.lineNum, match.line))
			matchCount++
		}
	}

	if matchCount == 0 {
		return NewSuccessResult("No matches found."), nil
	}

	summary := fmt.Sprintf("Found %d match(es) in %d file(s):\n\n", matchCount, fileCount)
	if matchCount >= maxMatches {
		summary = fmt.Sprintf("Found %d+ match(es) in %d file(s) (capped at %d, refine pattern for complete results):\n\n",
			matchCount, fileCount, maxMatches)
	}
	return NewSuccessResultWithData(summary+results.String(), map[string]any{
		"pattern":     pattern,
		"match_count": matchCount,
		"file_count":  fileCount,
	}), nil
}

// searchParallel searches files concurrently with a bounded worker pool.
func (t *GrepTool) searchParallel(ctx context.Context, files []string, re *regexp.Regexp, contextLines int) []fileMatch {
	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make([]fileMatch, 0)

	semaphore := make(chan struct{}, 10)

searchLoop:
	for _, file := range files {
		select {
		case <-ctx.Done():
			break searchLoop
		default:
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(f string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			matches := t.searchFile(f, re, contextLines)
			if len(matches) > 0 {
				mu.Lock()
				results = append(results, fileMatch{path: f, matches: matches})
				mu.Unlock()
			}
		}(file)
	}

	wg.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].path < results[j].path
	})
	return results
}

type grepMatch struct {
	lineNum int
	line    string
}

type fileMatch struct {
	path    string
	matches []grepMatch
}

func (t *GrepTool) getFiles(searchPath, globPattern string) ([]string, error) {
	info, err := os.Stat(searchPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("path not found: %s", searchPath)
		}
		return nil, fmt.Errorf("error accessing path: %w", err)
	}
	if !info.IsDir() {
		return []string{searchPath}, nil
	}

	if globPattern == "" {
		globPattern = "**/*"
	}
	matches, err := doublestar.FilepathGlob(filepath.Join(searchPath, globPattern))
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern: %w", err)
	}

	var files []string
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Size() >= 10*1024*1024 || hasBinaryExt(match) {
			continue
		}
		if t.ignore.IsIgnored(match) {
			continue
		}
		files = append(files, match)
	}
	return files, nil
}

func (t *GrepTool) searchFile(filePath string, re *regexp.Regexp, contextLines int) []grepMatch {
	file, err := os.Open(filePath)
	if err != nil {
		return nil
	}
	defer file.Close()

	var allLines []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		allLines = append(allLines, scanner.Text())
	}

	var matches []grepMatch
	included := make(map[int]bool)

	for lineNum, line := range allLines {
		if !re.MatchString(line) {
			continue
		}
		start := lineNum - contextLines
		if start < 0 {
			start = 0
		}
		end := lineNum + contextLines
		if end >= len(allLines) {
			end = len(allLines) - 1
		}
		for i := start; i <= end; i++ {
			if included[i] {
				continue
			}
			included[i] = true

			text := allLines[i]
			if len(text) > 500 {
				text = text[:500] + "..."
			}
			matches = append(matches, grepMatch{lineNum: i + 1, line: text})
		}
	}
	return matches
}

// hasBinaryExt checks common binary file extensions.
func hasBinaryExt(path string) bool {
	binaryExts := map[string]bool{
		".exe": true, ".dll": true, ".so": true, ".dylib": true,
		".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
		".pdf": true, ".zip": true, ".tar": true, ".gz": true, ".rar": true,
		".mp3": true, ".mp4": true, ".avi": true, ".mov": true,
		".bin": true, ".dat": true, ".db": true, ".sqlite": true,
		".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	}
	return binaryExts[strings.ToLower(filepath.Ext(path))]
}
