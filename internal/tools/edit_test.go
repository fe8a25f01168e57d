package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEditFixture(t *testing.T, content string) (*EditTool, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "target.go")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return NewEditTool(dir), path
}

func editArgs(path, oldStr, newStr string) map[string]any {
	return map[string]any{
		"file_path":  path,
		"old_string": oldStr,
		"new_string": newStr,
	}
}

func readBack(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestEditValidate(t *testing.T) {
	tool := NewEditTool(t.TempDir())

	assert.Error(t, tool.Validate(map[string]any{}))
	assert.Error(t, tool.Validate(map[string]any{"file_path": "a", "old_string": "x"}))
	assert.Error(t, tool.Validate(editArgs("a", "same", "same")))
	assert.NoError(t, tool.Validate(editArgs("a", "old", "new")))
	// Empty new_string is a deletion and is valid.
	assert.NoError(t, tool.Validate(editArgs("a", "old", "")))
}

func TestEditReplacesUniqueString(t *testing.T) {
	tool, path := newEditFixture(t, "package main\n\nvar answer = 41\n")

	result, err := tool.Execute(context.Background(), editArgs(path, "var answer = 41", "var answer = 42"))
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	assert.Contains(t, readBack(t, path), "var answer = 42")
}

func TestEditMissingStringFails(t *testing.T) {
	tool, path := newEditFixture(t, "package main\n")

	result, err := tool.Execute(context.Background(), editArgs(path, "does not exist", "x"))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not found")
}

func TestEditAmbiguousStringFailsWithLineNumbers(t *testing.T) {
	tool, path := newEditFixture(t, "a\nfoo\nb\nfoo\n")

	result, err := tool.Execute(context.Background(), editArgs(path, "foo", "bar"))
	require.NoError(t, err)
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "2 times")
	assert.Contains(t, result.Error, "lines: 2, 4")
}

func TestEditReplaceAll(t *testing.T) {
	tool, path := newEditFixture(t, "foo\nfoo\nfoo\n")

	args := editArgs(path, "foo", "bar")
	args["replace_all"] = true

	result, err := tool.Execute(context.Background(), args)
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	assert.Equal(t, "bar\nbar\nbar\n", readBack(t, path))
}

func TestEditRegex(t *testing.T) {
	tool, path := newEditFixture(t, "port := 8080\n")

	args := editArgs(path, `port := \d+`, "port := 9090")
	args["regex"] = true

	result, err := tool.Execute(context.Background(), args)
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	assert.Equal(t, "port := 9090\n", readBack(t, path))
}

func TestEditInvalidRegexFails(t *testing.T) {
	tool, path := newEditFixture(t, "content\n")

	args := editArgs(path, "(unclosed", "x")
	args["regex"] = true

	result, err := tool.Execute(context.Background(), args)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid regex")
}

func TestEditNonexistentFileFails(t *testing.T) {
	dir := t.TempDir()
	tool := NewEditTool(dir)

	result, err := tool.Execute(context.Background(), editArgs(filepath.Join(dir, "missing.go"), "a", "b"))
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestEditRefusesPathOutsideWorkspace(t *testing.T) {
	tool, _ := newEditFixture(t, "content\n")

	outside := filepath.Join(t.TempDir(), "outside.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o644))

	result, err := tool.Execute(context.Background(), editArgs(outside, "x", "y"))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "path validation failed")
}

func TestEditRefusesBinaryFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 'a', 'b'}, 0o644))

	tool := NewEditTool(dir)
	result, err := tool.Execute(context.Background(), editArgs(path, "a", "b"))
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "binary")
}
