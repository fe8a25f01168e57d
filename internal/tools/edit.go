package tools

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"github.com/danib549/gofer/internal/security"
)

// EditTool performs search/replace operations in files.
type EditTool struct {
	workDir       string
	diffHandler   DiffHandler
	diffEnabled   bool
	pathValidator *security.PathValidator
}

// NewEditTool creates an EditTool rooted at workDir.
func NewEditTool(workDir string) *EditTool {
	return &EditTool{
		workDir:       workDir,
		pathValidator: security.NewPathValidator([]string{workDir}),
	}
}

// SetDiffHandler sets the diff handler for preview approval.
func (t *EditTool) SetDiffHandler(handler DiffHandler) {
	t.diffHandler = handler
}

// SetDiffEnabled enables or disables diff preview.
func (t *EditTool) SetDiffEnabled(enabled bool) {
	t.diffEnabled = enabled
}

// SetAllowedDirs sets additional allowed directories for path validation.
func (t *EditTool) SetAllowedDirs(dirs []string) {
	allDirs := append([]string{t.workDir}, dirs...)
	t.pathValidator = security.NewPathValidator(allDirs)
}

func (t *EditTool) Name() string {
	return "edit"
}

func (t *EditTool) RequiresBuildMode() bool {
	return true
}

func (t *EditTool) Description() string {
	return "Performs string replacement in a file. The old_string must be unique in the file unless replace_all is true. Use regex=true to treat old_string as a regular expression. Read the file before editing it."
}

func (t *EditTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"file_path": {
					Type:        genai.TypeString,
					Description: "The path to the file to edit",
				},
				"old_string": {
					Type:        genai.TypeString,
					Description: "The text to find and replace",
				},
				"new_string": {
					Type:        genai.TypeString,
					Description: "The text to replace with (must be different from old_string)",
				},
				"replace_all": {
					Type:        genai.TypeBoolean,
					Description: "If true, replace all occurrences. If false (default), old_string must be unique.",
				},
				"regex": {
					Type:        genai.TypeBoolean,
					Description: "If true, treat old_string as a regular expression pattern.",
				},
			},
			Required: []string{"file_path", "old_string", "new_string"},
		},
	}
}

func (t *EditTool) Validate(args map[string]any) error {
	filePath, ok := GetString(args, "file_path")
	if !ok || filePath == "" {
		return NewValidationError("file_path", "is required")
	}
	oldStr, ok := GetString(args, "old_string")
	if !ok || oldStr == "" {
		return NewValidationError("old_string", "is required")
	}
	newStr, ok := GetString(args, "new_string")
	if !ok {
		return NewValidationError("new_string", "is required")
	}
	if oldStr == newStr {
		return NewValidationError("new_string", "must be different from old_string")
	}
	return nil
}

func (t *EditTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	filePath, _ := GetString(args, "file_path")
	oldStr, _ := GetString(args, "old_string")
	newStr, _ := GetString(args, "new_string")
	replaceAll := GetBoolDefault(args, "replace_all", false)
	useRegex := GetBoolDefault(args, "regex", false)

	validPath, err := t.pathValidator.ValidateFile(resolveWithin(t.workDir, filePath))
	if err != nil {
		return NewErrorResult(fmt.Sprintf("path validation failed: %s", err)), nil
	}
	filePath = validPath

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return NewErrorResult(fmt.Sprintf("file not found: %s", filePath)), nil
		}
		return NewErrorResult(fmt.Sprintf("error reading file: %s", err)), nil
	}

	// Null bytes in the first 512 bytes mean binary content.
	checkLen := len(data)
	if checkLen > 512 {
		checkLen = 512
	}
	for _, b := range data[:checkLen] {
		if b == 0 {
			return NewErrorResult(fmt.Sprintf("cannot edit binary file: %s", filePath)), nil
		}
	}

	content := string(data)

	var newContent string
	var count int

	if useRegex {
		re, err := regexp.Compile(oldStr)
		if err != nil {
			return NewErrorResult(fmt.Sprintf("invalid regex pattern: %s", err)), nil
		}

		matches := re.FindAllStringIndex(content, -1)
		count = len(matches)
		if count == 0 {
			return NewErrorResult(fmt.Sprintf("regex pattern not found in file: %s", filePath)), nil
		}
		if count > 1 && !replaceAll {
			return NewErrorResult(fmt.Sprintf("regex pattern matches %d times in %s%s. Set replace_all=true to replace all.",
				count, filePath, matchLineInfo(content, matches))), nil
		}

		if replaceAll {
			newContent = re.ReplaceAllString(content, newStr)
		} else {
			loc := re.FindStringIndex(content)
			newContent = content[:loc[0]] + re.ReplaceAllString(content[loc[0]:loc[1]], newStr) + content[loc[1]:]
		}
	} else {
		count = strings.Count(content, oldStr)
		if count == 0 {
			return NewErrorResult(fmt.Sprintf("old_string not found in file: %s", filePath)), nil
		}
		if count > 1 && !replaceAll {
			lines := strings.Split(content, "\n")
			var lineNums []string
			for i, line := range lines {
				if strings.Contains(line, oldStr) {
					lineNums = append(lineNums, fmt.Sprintf("%d", i+1))
				}
			}
			lineInfo := ""
			if len(lineNums) > 0 {
				lineInfo = fmt.Sprintf(" (lines: %s)", strings.Join(lineNums, ", "))
			}
			return NewErrorResult(fmt.Sprintf("old_string appears %d times in %s%s. Provide more surrounding context to make it unique, or set replace_all=true.",
				count, filePath, lineInfo)), nil
		}

		if replaceAll {
			newContent = strings.ReplaceAll(content, oldStr, newStr)
		} else {
			newContent = strings.Replace(content, oldStr, newStr, 1)
		}
	}

	if t.diffEnabled && t.diffHandler != nil && !ShouldSkipDiff(ctx) {
		approved, err := t.diffHandler.PromptDiff(ctx, filePath, content, newContent, "edit", false)
		if err != nil {
			return NewErrorResult(fmt.Sprintf("diff preview error: %s", err)), nil
		}
		if !approved {
			return NewErrorResult("changes rejected by user"), nil
		}
	}

	if err := AtomicWrite(filePath, []byte(newContent), 0644); err != nil {
		return NewErrorResult(fmt.Sprintf("error writing file: %s", err)), nil
	}

	var status string
	if replaceAll {
		status = fmt.Sprintf("Replaced %d occurrence(s) in %s", count, filePath)
	} else {
		status = fmt.Sprintf("Replaced 1 occurrence in %s", filePath)
	}

	return NewSuccessResultWithData(status, map[string]any{
		"file_path":    filePath,
		"replacements": count,
	}), nil
}

// matchLineInfo maps regex match offsets back to 1-indexed line numbers
// for error messages.
func matchLineInfo(content string, matches [][]int) string {
	lines := strings.Split(content, "\n")
	var lineNums []string
	pos := 0
	for i, line := range lines {
		lineEnd := pos + len(line)
		for _, match := range matches {
			if match[0] >= pos && match[0] < lineEnd {
				lineNums = append(lineNums, fmt.Sprintf("%d", i+1))
				break
			}
		}
		pos = lineEnd + 1
	}
	if len(lineNums) == 0 {
		return ""
	}
	return fmt.Sprintf(" (lines: %s)", strings.Join(lineNums, ", "))
}
