package tools

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"google.golang.org/genai"

	"github.com/danib549/gofer/internal/security"
)

// maxListDirEntries limits directory listing output size.
const maxListDirEntries = 2000

// ListDirTool lists the contents of a directory.
type ListDirTool struct {
	workDir       string
	pathValidator *security.PathValidator
}

// NewListDirTool creates a ListDirTool rooted at workDir.
func NewListDirTool(workDir string) *ListDirTool {
	return &ListDirTool{
		workDir:       workDir,
		pathValidator: security.NewPathValidator([]string{workDir}),
	}
}

func (t *ListDirTool) Name() string {
	return "list_dir"
}

func (t *ListDirTool) RequiresBuildMode() bool {
	return false
}

func (t *ListDirTool) Description() string {
	return "Lists the contents of a directory, including files and subdirectories."
}

func (t *ListDirTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "The path to the directory to list. Defaults to the workspace root.",
				},
			},
			Required: []string{},
		},
	}
}

func (t *ListDirTool) Validate(args map[string]any) error {
	return nil
}

func (t *ListDirTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	dirPath := GetStringDefault(args, "path", ".")

	absPath := resolveWithin(t.workDir, dirPath)
	validPath, err := t.pathValidator.ValidateDir(absPath)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("path validation failed: %s", err)), nil
	}
	absPath = validPath

	entries, err := os.ReadDir(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return NewErrorResult(fmt.Sprintf("directory not found: %s", dirPath)), nil
		}
		return NewErrorResult(fmt.Sprintf("error reading directory: %s", err)), nil
	}

	if len(entries) == 0 {
		return NewSuccessResult("(empty)"), nil
	}

	// Directories first, then alphabetically.
	sort.Slice(entries, func(i, j int) bool {
		di := entries[i].IsDir()
		dj := entries[j].IsDir()
		if di != dj {
			return di
		}
		return entries[i].Name() < entries[j].Name()
	})

	truncated := false
	if len(entries) > maxListDirEntries {
		truncated = true
		entries = entries[:maxListDirEntries]
	}

	var builder strings.Builder
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		builder.WriteString(name)
		builder.WriteByte('\n')
	}
	if truncated {
		builder.WriteString(fmt.Sprintf("\n... (output truncated: showing %d entries)", maxListDirEntries))
	}

	return NewSuccessResultWithData(builder.String(), map[string]any{
		"path":  absPath,
		"count": len(entries),
	}), nil
}
