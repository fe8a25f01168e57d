package git

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGitignore(t *testing.T, dir, content string) *Ignore {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(content), 0o644))
	ig := NewIgnore(dir)
	require.NoError(t, ig.Load())
	return ig
}

func TestIgnoreWithoutGitignoreFile(t *testing.T) {
	dir := t.TempDir()
	ig := NewIgnore(dir)
	require.NoError(t, ig.Load())

	assert.False(t, ig.IsIgnored(filepath.Join(dir, "main.go")))
	// .git itself is always excluded.
	assert.True(t, ig.IsIgnored(filepath.Join(dir, ".git", "HEAD")))
}

func TestIgnoreUnloadedMatchesNothing(t *testing.T) {
	ig := NewIgnore(t.TempDir())
	assert.False(t, ig.IsIgnored("anything"))
}

func TestIgnoreBasenamePatterns(t *testing.T) {
	dir := t.TempDir()
	ig := writeGitignore(t, dir, "*.log\nsecret.txt\n")

	assert.True(t, ig.IsIgnored(filepath.Join(dir, "debug.log")))
	assert.True(t, ig.IsIgnored(filepath.Join(dir, "nested", "deep", "trace.log")))
	assert.True(t, ig.IsIgnored(filepath.Join(dir, "secret.txt")))
	assert.False(t, ig.IsIgnored(filepath.Join(dir, "main.go")))
}

func TestIgnoreDirectoryContents(t *testing.T) {
	dir := t.TempDir()
	ig := writeGitignore(t, dir, "node_modules/\n")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules", "pkg"), 0o755))
	file := filepath.Join(dir, "node_modules", "pkg", "index.js")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.True(t, ig.IsIgnored(filepath.Join(dir, "node_modules")))
	assert.True(t, ig.IsIgnored(file))
}

func TestIgnoreAnchoredPattern(t *testing.T) {
	dir := t.TempDir()
	ig := writeGitignore(t, dir, "/build\n")

	assert.True(t, ig.IsIgnored(filepath.Join(dir, "build")))
	assert.False(t, ig.IsIgnored(filepath.Join(dir, "src", "build.go")))
}

func TestIgnoreNegation(t *testing.T) {
	dir := t.TempDir()
	ig := writeGitignore(t, dir, "*.log\n!keep.log\n")

	assert.True(t, ig.IsIgnored(filepath.Join(dir, "other.log")))
	assert.False(t, ig.IsIgnored(filepath.Join(dir, "keep.log")))
}

func TestIgnoreCommentsAndBlankLines(t *testing.T) {
	dir := t.TempDir()
	ig := writeGitignore(t, dir, "# comment\n\n*.tmp\n")

	assert.True(t, ig.IsIgnored(filepath.Join(dir, "a.tmp")))
	assert.False(t, ig.IsIgnored(filepath.Join(dir, "# comment")))
}

func TestCheckpointDisabledIsNoOp(t *testing.T) {
	c := NewCheckpointer(t.TempDir(), false)

	result := c.Checkpoint("edit main.go")
	assert.True(t, result.Success)
	assert.Equal(t, "checkpointing disabled", result.Message)
}

func TestCheckpointOutsideRepoIsNoOp(t *testing.T) {
	c := NewCheckpointer(t.TempDir(), true)

	assert.False(t, c.IsRepo())
	result := c.Checkpoint("edit main.go")
	assert.True(t, result.Success)
	assert.Equal(t, "not a git repository", result.Message)
}

func TestRestoreOutsideRepoFails(t *testing.T) {
	c := NewCheckpointer(t.TempDir(), true)

	result := c.Restore("abc1234")
	assert.False(t, result.Success)
	assert.Equal(t, "not a git repository", result.Err)
}
