package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"google.golang.org/genai"

	"github.com/danib549/gofer/internal/git"
	"github.com/danib549/gofer/internal/security"
)

// TreeTool displays directory structure as a tree.
type TreeTool struct {
	workDir       string
	ignore        *git.Ignore
	pathValidator *security.PathValidator
}

// NewTreeTool creates a TreeTool rooted at workDir.
func NewTreeTool(workDir string) *TreeTool {
	ignore := git.NewIgnore(workDir)
	_ = ignore.Load() // gitignore is optional

	return &TreeTool{
		workDir:       workDir,
		ignore:        ignore,
		pathValidator: security.NewPathValidator([]string{workDir}),
	}
}

func (t *TreeTool) Name() string {
	return "tree"
}

func (t *TreeTool) RequiresBuildMode() bool {
	return false
}

func (t *TreeTool) Description() string {
	return "Displays the directory structure as a tree. Useful for understanding project layout. Gitignored entries are excluded."
}

func (t *TreeTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "The directory path to display (default: workspace root)",
				},
				"depth": {
					Type:        genai.TypeInteger,
					Description: "Maximum depth to traverse (default: 3)",
				},
				"pattern": {
					Type:        genai.TypeString,
					Description: "Glob pattern to filter files (e.g., '*.go')",
				},
				"show_hidden": {
					Type:        genai.TypeBoolean,
					Description: "Show hidden files and directories (default: false)",
				},
				"dirs_only": {
					Type:        genai.TypeBoolean,
					Description: "Show only directories (default: false)",
				},
			},
		},
	}
}

func (t *TreeTool) Validate(args map[string]any) error {
	depth, hasDepth := GetInt(args, "depth")
	if hasDepth && depth < 1 {
		return NewValidationError("depth", "must be at least 1")
	}
	return nil
}

const (
	treeBranch     = "├── "
	treeLastBranch = "└── "
	treeVertical   = "│   "
	treeSpace      = "    "
)

func (t *TreeTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	path := GetStringDefault(args, "path", t.workDir)
	depth := GetIntDefault(args, "depth", 3)
	pattern := GetStringDefault(args, "pattern", "")
	showHidden := GetBoolDefault(args, "show_hidden", false)
	dirsOnly := GetBoolDefault(args, "dirs_only", false)

	path = resolveWithin(t.workDir, path)
	validPath, err := t.pathValidator.ValidateDir(path)
	if err != nil {
		return NewErrorResult(fmt.Sprintf("path validation failed: %s", err)), nil
	}
	path = validPath

	var builder strings.Builder
	builder.WriteString(path + "\n")

	stats := &treeStats{}
	if err := t.buildTree(ctx, &builder, path, "", depth, pattern, showHidden, dirsOnly, stats); err != nil {
		return NewErrorResult(fmt.Sprintf("error building tree: %s", err)), nil
	}

	builder.WriteString(fmt.Sprintf("\n%d directories, %d files", stats.dirs, stats.files))
	return NewSuccessResultWithData(builder.String(), map[string]any{
		"path":  path,
		"dirs":  stats.dirs,
		"files": stats.files,
	}), nil
}

type treeStats struct {
	dirs  int
	files int
}

func (t *TreeTool) buildTree(ctx context.Context, builder *strings.Builder, path, prefix string, depth int, pattern string, showHidden, dirsOnly bool, stats *treeStats) error {
	if depth <= 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return err
	}

	var filtered []os.DirEntry
	for _, entry := range entries {
		name := entry.Name()
		if !showHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if dirsOnly && !entry.IsDir() {
			continue
		}
		if t.ignore.IsIgnored(filepath.Join(path, name)) {
			continue
		}
		if pattern != "" && !entry.IsDir() {
			matched, _ := filepath.Match(pattern, name)
			if !matched {
				continue
			}
		}
		filtered = append(filtered, entry)
	}

	// Directories first, then alphabetically.
	sort.Slice(filtered, func(i, j int) bool {
		di := filtered[i].IsDir()
		dj := filtered[j].IsDir()
		if di != dj {
			return di
		}
		return filtered[i].Name() < filtered[j].Name()
	})

	for i, entry := range filtered {
		isLast := i == len(filtered)-1
		connector := treeBranch
		childPrefix := prefix + treeVertical
		if isLast {
			connector = treeLastBranch
			childPrefix = prefix + treeSpace
		}

		name := entry.Name()
		if entry.IsDir() {
			name += "/"
			stats.dirs++
		} else {
			stats.files++
		}

		builder.WriteString(prefix + connector + name + "\n")

		if entry.IsDir() {
			childPath := filepath.Join(path, entry.Name())
			if err := t.buildTree(ctx, builder, childPath, childPrefix, depth-1, pattern, showHidden, dirsOnly, stats); err != nil {
				return err
			}
		}
	}
	return nil
}
