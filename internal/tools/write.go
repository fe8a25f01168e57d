package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/genai"

	"github.com/danib549/gofer/internal/security"
)

// WriteTool writes content to files.
type WriteTool struct {
	workDir       string
	diffHandler   DiffHandler
	diffEnabled   bool
	pathValidator *security.PathValidator
}

// NewWriteTool creates a WriteTool rooted at workDir.
func NewWriteTool(workDir string) *WriteTool {
	return &WriteTool{
		workDir:       workDir,
		pathValidator: security.NewPathValidator([]string{workDir}),
	}
}

// SetDiffHandler sets the diff handler for preview approval.
func (t *WriteTool) SetDiffHandler(handler DiffHandler) {
	t.diffHandler = handler
}

// SetDiffEnabled enables or disables diff preview.
func (t *WriteTool) SetDiffEnabled(enabled bool) {
	t.diffEnabled = enabled
}

// SetAllowedDirs sets additional allowed directories for path validation.
func (t *WriteTool) SetAllowedDirs(dirs []string) {
	allDirs := append([]string{t.workDir}, dirs...)
	t.pathValidator = security.NewPathValidator(allDirs)
}

func (t *WriteTool) Name() string {
	return "write"
}

func (t *WriteTool) RequiresBuildMode() bool {
	return true
}

func (t *WriteTool) Description() string {
	return "Writes content to a file. Creates the file if it doesn't exist, or overwrites if it does. Read existing files before overwriting them."
}

func (t *WriteTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"file_path": {
					Type:        genai.TypeString,
					Description: "The path to the file to write",
				},
				"content": {
					Type:        genai.TypeString,
					Description: "The content to write to the file",
				},
			},
			Required: []string{"file_path", "content"},
		},
	}
}

func (t *WriteTool) Validate(args map[string]any) error {
	filePath, ok := GetString(args, "file_path")
	if !ok || filePath == "" {
		return NewValidationError("file_path", "is required")
	}
	if _, ok := GetString(args, "content"); !ok {
		return NewValidationError("content", "is required")
	}
	return nil
}

func (t *WriteTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	filePath, _ := GetString(args, "file_path")
	content, _ := GetString(args, "content")

	validPath, err := t.pathValidator.Validate(resolveWithin(t.workDir, filePath))
	if err != nil {
		return NewErrorResult(fmt.Sprintf("path validation failed: %s", err)), nil
	}
	filePath = validPath

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return NewErrorResult(fmt.Sprintf("error creating directories: %s", err)), nil
	}

	var oldContent []byte
	_, existErr := os.Stat(filePath)
	isNew := os.IsNotExist(existErr)
	if !isNew {
		oldContent, err = os.ReadFile(filePath)
		if err != nil {
			return NewErrorResult(fmt.Sprintf("error reading existing file: %s", err)), nil
		}
	}

	if t.diffEnabled && t.diffHandler != nil && !ShouldSkipDiff(ctx) {
		approved, err := t.diffHandler.PromptDiff(ctx, filePath, string(oldContent), content, "write", isNew)
		if err != nil {
			return NewErrorResult(fmt.Sprintf("diff preview error: %s", err)), nil
		}
		if !approved {
			return NewErrorResult("changes rejected by user"), nil
		}
	}

	if err := AtomicWrite(filePath, []byte(content), 0644); err != nil {
		return NewErrorResult(fmt.Sprintf("error writing file: %s", err)), nil
	}

	var status string
	if isNew {
		status = fmt.Sprintf("Created new file: %s (%d bytes)", filePath, len(content))
	} else {
		status = fmt.Sprintf("Updated file: %s (%d bytes)", filePath, len(content))
	}

	return NewSuccessResultWithData(status, map[string]any{
		"file_path": filePath,
		"created":   isNew,
		"bytes":     len(content),
	}), nil
}
