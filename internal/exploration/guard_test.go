package exploration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDisabledGuardNeverBlocks(t *testing.T) {
	g := NewGuard(false)
	v := g.CheckModification("write", map[string]any{"path": "/tmp/whatever.go"})
	assert.False(t, v.Blocked)
}

func TestBlocksModificationWithoutExploration(t *testing.T) {
	dir := t.TempDir()
	target := writeTempFile(t, dir, "main.go", "package main")

	g := NewGuard(true)
	v := g.CheckModification("edit", map[string]any{"file_path": target})

	require.True(t, v.Blocked)
	assert.Contains(t, v.TeachingMessage, "EXPLORATION REQUIRED")
	assert.NotEmpty(t, v.RequiredActions)
}

func TestNonModificationToolIsNotChecked(t *testing.T) {
	g := NewGuard(true)
	v := g.CheckModification("read", map[string]any{"path": "/tmp/x.go"})
	assert.False(t, v.Blocked)
}

func TestMissingPathIsBlocked(t *testing.T) {
	g := NewGuard(true)
	v := g.CheckModification("write", map[string]any{})
	require.True(t, v.Blocked)
	assert.Equal(t, "no path provided", v.Reason)
}

func TestEditAllowedAfterReadingTarget(t *testing.T) {
	dir := t.TempDir()
	target := writeTempFile(t, dir, "main.go", "package main")

	g := NewGuard(true)
	g.RecordExploration("read", map[string]any{"path": target})

	// One action plus a known file satisfies the lenient threshold.
	v := g.CheckModification("edit", map[string]any{"file_path": target})
	assert.False(t, v.Blocked, "reason: %s", v.Reason)
}

func TestEditOfUnreadFileRequiresRead(t *testing.T) {
	dir := t.TempDir()
	read := writeTempFile(t, dir, "a.go", "package a")
	other := writeTempFile(t, dir, "b.go", "package b")

	g := NewGuard(true)
	g.RecordExploration("read", map[string]any{"path": read})
	g.RecordExploration("list_dir", map[string]any{"path": dir})

	v := g.CheckModification("edit", map[string]any{"file_path": other})
	require.True(t, v.Blocked)
	assert.Contains(t, v.TeachingMessage, "Read the file first")
}

func TestOverwriteExistingFileRequiresRead(t *testing.T) {
	dir := t.TempDir()
	target := writeTempFile(t, dir, "config.yaml", "a: 1")

	g := NewGuard(true)
	g.RecordExploration("list_dir", map[string]any{"path": dir})
	g.RecordExploration("tree", map[string]any{"path": dir})

	v := g.CheckModification("write", map[string]any{"file_path": target})
	require.True(t, v.Blocked)
	assert.Contains(t, v.TeachingMessage, "EXISTING file")
}

func TestNewFileInExploredDirectoryIsLenient(t *testing.T) {
	dir := t.TempDir()

	g := NewGuard(true)
	g.RecordExploration("list_dir", map[string]any{"path": dir})

	v := g.CheckModification("write", map[string]any{"file_path": filepath.Join(dir, "new.go")})
	assert.False(t, v.Blocked, "reason: %s", v.Reason)
}

func TestNewFileInUnexploredDirectoryIsBlocked(t *testing.T) {
	dir := t.TempDir()

	g := NewGuard(true)
	g.RecordExploration("grep", map[string]any{"pattern": "func", "path": t.TempDir()})
	g.RecordExploration("grep", map[string]any{"pattern": "type", "path": t.TempDir()})

	v := g.CheckModification("write", map[string]any{"file_path": filepath.Join(dir, "new.go")})
	require.True(t, v.Blocked)
	assert.Contains(t, v.TeachingMessage, "Explore the target directory")
}

func TestAncestorExplorationCoversNewSubdirectories(t *testing.T) {
	dir := t.TempDir()

	g := NewGuard(true)
	g.RecordExploration("tree", map[string]any{"path": dir})

	nested := filepath.Join(dir, "internal", "deep", "new.go")
	v := g.CheckModification("write", map[string]any{"file_path": nested})
	assert.False(t, v.Blocked, "reason: %s", v.Reason)
}

func TestGrepCountsPathAsExplored(t *testing.T) {
	dir := t.TempDir()

	g := NewGuard(true)
	g.RecordExploration("grep", map[string]any{"pattern": "TODO", "path": dir})

	v := g.CheckModification("write", map[string]any{"file_path": filepath.Join(dir, "new.go")})
	assert.False(t, v.Blocked, "reason: %s", v.Reason)
}

func TestGlobRecordsBaseDirectory(t *testing.T) {
	dir := t.TempDir()

	g := NewGuard(true)
	g.RecordExploration("glob", map[string]any{"pattern": "*.go", "path": dir})

	v := g.CheckModification("write", map[string]any{"file_path": filepath.Join(dir, "new.go")})
	assert.False(t, v.Blocked, "reason: %s", v.Reason)
}

func TestGlobRelativePatternResolvesAgainstSearchPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))

	g := NewGuard(true)
	g.RecordExploration("glob", map[string]any{"pattern": "sub/*.go", "path": dir})

	// The recorded directory is the search path joined with the
	// pattern's literal prefix, not a path relative to the process cwd.
	v := g.CheckModification("write", map[string]any{"file_path": filepath.Join(dir, "sub", "new.go")})
	assert.False(t, v.Blocked, "reason: %s", v.Reason)
	assert.Contains(t, g.GetSummary().DirsExplored, normalizePath(filepath.Join(dir, "sub")))
}

func TestWriteMarksFileKnownWithoutExplorationCredit(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "made.go")

	g := NewGuard(true)
	g.RecordExploration("write", map[string]any{"file_path": target})

	assert.Equal(t, 0, g.GetSummary().ExplorationCount)

	// The written file counts as known, so with one real exploration
	// action the lenient threshold is met and edit goes through.
	require.NoError(t, os.WriteFile(target, []byte("package made"), 0o644))
	g.RecordExploration("read", map[string]any{"path": filepath.Join(dir, "made.go")})
	v := g.CheckModification("edit", map[string]any{"file_path": target})
	assert.False(t, v.Blocked, "reason: %s", v.Reason)
}

func TestResetClearsState(t *testing.T) {
	dir := t.TempDir()
	target := writeTempFile(t, dir, "main.go", "package main")

	g := NewGuard(true)
	g.RecordExploration("read", map[string]any{"path": target})
	g.Reset()

	v := g.CheckModification("edit", map[string]any{"file_path": target})
	assert.True(t, v.Blocked)
	assert.Equal(t, 0, g.GetSummary().ExplorationCount)
}

func TestInvalidateDropsSingleFile(t *testing.T) {
	dir := t.TempDir()
	target := writeTempFile(t, dir, "main.go", "package main")

	g := NewGuard(true)
	g.RecordExploration("read", map[string]any{"path": target})
	g.RecordExploration("read", map[string]any{"path": target})
	g.Invalidate(target)

	v := g.CheckModification("edit", map[string]any{"file_path": target})
	require.True(t, v.Blocked)
	assert.Contains(t, v.TeachingMessage, "Read the file first")
}

func TestFormatStatus(t *testing.T) {
	g := NewGuard(true)
	assert.Contains(t, g.FormatStatus(), "NEED MORE")

	g.RecordExploration("tree", map[string]any{"path": "."})
	g.RecordExploration("tree", map[string]any{"path": ".."})
	assert.Contains(t, g.FormatStatus(), "OK to modify")
}

func TestExtractBaseDir(t *testing.T) {
	assert.Equal(t, "src/app", extractBaseDir("src/app/**/*.go"))
	assert.Equal(t, ".", extractBaseDir("*.go"))
}
