package tools

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"github.com/danib549/gofer/internal/security"
)

const (
	// DefaultReadLimit is the maximum number of lines returned per call.
	DefaultReadLimit = 2000
	// MaxLineLength truncates individual lines longer than this.
	MaxLineLength = 2000
)

// ReadTool reads files and returns their contents with line numbers.
type ReadTool struct {
	workDir       string
	pathValidator *security.PathValidator
}

// NewReadTool creates a ReadTool rooted at workDir.
func NewReadTool(workDir string) *ReadTool {
	return &ReadTool{
		workDir:       workDir,
		pathValidator: security.NewPathValidator([]string{workDir}),
	}
}

// SetAllowedDirs adds directories beyond the workspace root that reads
// may touch.
func (t *ReadTool) SetAllowedDirs(dirs []string) {
	allDirs := append([]string{t.workDir}, dirs...)
	t.pathValidator = security.NewPathValidator(allDirs)
}

func (t *ReadTool) Name() string {
	return "read"
}

func (t *ReadTool) RequiresBuildMode() bool {
	return false
}

func (t *ReadTool) Description() string {
	return `Reads a file from the filesystem and returns its contents with line numbers.

PARAMETERS:
- path (required): Path to the file to read
- offset (optional): Line number to start reading from (1-indexed, default: 1)
- limit (optional): Maximum number of lines to read (default: 2000)

LIMITATIONS:
- Lines longer than 2000 characters are truncated
- Maximum 2000 lines per request (use offset for more)
- Binary files are rejected

USAGE TIPS:
- Always read files BEFORE editing them
- Use offset/limit for large files
- Use glob or grep first when you are not sure of the file path`
}

func (t *ReadTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "The path to the file to read",
				},
				"offset": {
					Type:        genai.TypeInteger,
					Description: "The line number to start reading from (1-indexed). Optional.",
				},
				"limit": {
					Type:        genai.TypeInteger,
					Description: "The maximum number of lines to read. Optional, defaults to 2000.",
				},
			},
			Required: []string{"path"},
		},
	}
}

func (t *ReadTool) Validate(args map[string]any) error {
	path, ok := GetString(args, "path")
	if !ok || path == "" {
		return NewValidationError("path", "is required")
	}
	return nil
}

func (t *ReadTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	path, _ := GetString(args, "path")

	validPath, err := t.pathValidator.ValidateFile(resolveWithin(t.workDir, path))
	if err != nil {
		return NewErrorResult(fmt.Sprintf("path validation failed: %s", err)), nil
	}
	path = validPath

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewErrorResult(fmt.Sprintf("file not found: %s", path)), nil
		}
		return NewErrorResult(fmt.Sprintf("error accessing file: %s", err)), nil
	}
	if info.IsDir() {
		return NewErrorResult(fmt.Sprintf("%s is a directory, not a file", path)), nil
	}

	if binary, err := isBinaryFile(path); err == nil && binary {
		return NewErrorResult(fmt.Sprintf("%s appears to be a binary file", path)), nil
	}

	return t.readText(path, args)
}

// readText reads a text file with cat -n style line numbers.
func (t *ReadTool) readText(path string, args map[string]any) (ToolResult, error) {
	offset := GetIntDefault(args, "offset", 1)
	limit := GetIntDefault(args, "limit", DefaultReadLimit)
	if offset < 1 {
		offset = 1
	}
	if limit <= 0 || limit > DefaultReadLimit {
		limit = DefaultReadLimit
	}

	file, err := os.Open(path)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("error opening file: %s", err)), nil
	}
	defer file.Close()

	var builder strings.Builder
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	lineNum := 0
	linesRead := 0
	truncated := false

	for scanner.Scan() {
		lineNum++
		if lineNum < offset {
			continue
		}
		if linesRead >= limit {
			truncated = true
			break
		}

		line := scanner.Text()
		if len(line) > MaxLineLength {
			line = line[:MaxLineLength] + "..."
		}
		builder.WriteString(fmt.Sprintf("%6d\t%s\n", lineNum, line))
		linesRead++
	}
	if err := scanner.Err(); err != nil {
		return NewErrorResult(fmt.Sprintf("error reading file: %s", err)), nil
	}

	content := builder.String()
	if content == "" {
		if offset > 1 && lineNum > 0 {
			content = fmt.Sprintf("(offset %d is beyond end of file, file has %d lines)", offset, lineNum)
		} else {
			content = "(empty file)"
		}
	}
	if truncated {
		content += fmt.Sprintf("\n[Showing lines %d-%d. Use offset=%d to continue reading.]\n",
			offset, offset+linesRead-1, offset+linesRead)
	}

	return NewSuccessResultWithData(content, map[string]any{
		"file_path":  path,
		"start_line": offset,
		"lines_read": linesRead,
		"truncated":  truncated,
	}), nil
}

// isBinaryFile checks the first 8KB for null bytes.
func isBinaryFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, 8192)
	n, err := f.Read(buf)
	if n == 0 {
		return false, nil
	}
	if err != nil && n <= 0 {
		return false, err
	}
	return bytes.IndexByte(buf[:n], 0) != -1, nil
}
