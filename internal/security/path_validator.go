// Package security provides path validation for tool file access,
// confining operations to the workspace and preventing traversal and
// symlink escapes.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator validates file paths against a set of allowed roots.
type PathValidator struct {
	allowedDirs []string
}

// NewPathValidator creates a validator for the given allowed roots.
// With no roots, every path is allowed.
func NewPathValidator(allowedDirs []string) *PathValidator {
	normalized := make([]string, len(allowedDirs))
	for i, dir := range allowedDirs {
		normalized[i] = filepath.Clean(dir)
	}
	return &PathValidator{allowedDirs: normalized}
}

// Validate resolves a path (following symlinks) and checks it is inside
// an allowed root. Returns the resolved absolute path.
func (v *PathValidator) Validate(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	if strings.Contains(path, "\x00") {
		return "", fmt.Errorf("null byte in path")
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	// Resolve symlinks so a link inside the workspace cannot point out of
	// it. For paths that do not exist yet, resolve the parent instead.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to resolve symlinks: %w", err)
		}
		parentDir := filepath.Dir(absPath)
		resolvedParent, parentErr := filepath.EvalSymlinks(parentDir)
		if parentErr != nil && !os.IsNotExist(parentErr) {
			return "", fmt.Errorf("failed to resolve parent path: %w", parentErr)
		}
		if resolvedParent != "" {
			resolvedPath = filepath.Join(resolvedParent, filepath.Base(absPath))
		} else {
			resolvedPath = absPath
		}
	}

	if !v.isAllowed(resolvedPath) {
		return "", fmt.Errorf("path %q is outside allowed directories", path)
	}
	return resolvedPath, nil
}

// ValidateFile validates a file path, requiring the parent directory to
// exist.
func (v *PathValidator) ValidateFile(path string) (string, error) {
	absPath, err := v.Validate(path)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(absPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return "", fmt.Errorf("parent directory does not exist: %s", dir)
	}
	return absPath, nil
}

// ValidateDir validates a path that must be an existing directory.
func (v *PathValidator) ValidateDir(path string) (string, error) {
	absPath, err := v.Validate(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", fmt.Errorf("cannot access path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", path)
	}
	return absPath, nil
}

func (v *PathValidator) isAllowed(absPath string) bool {
	if len(v.allowedDirs) == 0 {
		return true
	}
	for _, dir := range v.allowedDirs {
		if isPathWithin(absPath, dir) {
			return true
		}
	}
	return false
}

func isPathWithin(target, base string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
