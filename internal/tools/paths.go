package tools

import "path/filepath"

// resolveWithin joins a relative path to the workspace root. Absolute
// paths pass through unchanged.
func resolveWithin(workDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workDir, path)
}
