package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSampleSource = `package sample

type Config struct {
	Name string
}

func NewConfig() *Config {
	return &Config{}
}

func (c *Config) Load() error {
	return nil
}
`

func writeSourceFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOutlineListsGoSymbols(t *testing.T) {
	dir := t.TempDir()
	path := writeSourceFile(t, dir, "config.go", goSampleSource)

	tool := NewOutlineTool(dir)
	result, err := tool.Execute(context.Background(), map[string]any{"path": path})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	assert.Contains(t, result.Content, "Outline of config.go (go):")
	assert.Contains(t, result.Content, "[S] Config ::3")
	assert.Contains(t, result.Content, "[F] NewConfig ::7")
	assert.Contains(t, result.Content, "[M] Load ::11")
}

func TestOutlinePythonMethodsAreNested(t *testing.T) {
	dir := t.TempDir()
	path := writeSourceFile(t, dir, "app.py", "class App:\n    def run(self):\n        pass\n")

	tool := NewOutlineTool(dir)
	result, err := tool.Execute(context.Background(), map[string]any{"path": path})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	assert.Contains(t, result.Content, "[C] App ::1")
	assert.Contains(t, result.Content, "[F] run ::2")
}

func TestOutlineUnsupportedExtensionFails(t *testing.T) {
	dir := t.TempDir()
	path := writeSourceFile(t, dir, "notes.txt", "just text\n")

	tool := NewOutlineTool(dir)
	result, err := tool.Execute(context.Background(), map[string]any{"path": path})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unsupported file type")
}

func TestOutlineNoSymbols(t *testing.T) {
	dir := t.TempDir()
	path := writeSourceFile(t, dir, "doc.go", "// Package sample does nothing.\npackage sample\n")

	tool := NewOutlineTool(dir)
	result, err := tool.Execute(context.Background(), map[string]any{"path": path})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)
	assert.Contains(t, result.Content, "No symbols found in")
}

func TestOutlineValidate(t *testing.T) {
	tool := NewOutlineTool(t.TempDir())
	assert.Error(t, tool.Validate(map[string]any{}))
	assert.NoError(t, tool.Validate(map[string]any{"path": "main.go"}))
}

func TestFindSymbolsWildcardQuery(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "config.go", goSampleSource)
	writeSourceFile(t, dir, "server.go", "package sample\n\nfunc NewServer() {}\n")

	tool := NewFindSymbolsTool(dir)
	result, err := tool.Execute(context.Background(), map[string]any{"query": "New*"})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	assert.Contains(t, result.Content, "NewConfig")
	assert.Contains(t, result.Content, "NewServer")
	assert.NotContains(t, result.Content, "Load")
}

func TestFindSymbolsKindFilter(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "config.go", goSampleSource)

	tool := NewFindSymbolsTool(dir)
	result, err := tool.Execute(context.Background(), map[string]any{"query": "*", "kind": "struct"})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	assert.Contains(t, result.Content, "Config")
	assert.NotContains(t, result.Content, "NewConfig")
}

func TestFindSymbolsSkipsVendoredCode(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "config.go", goSampleSource)
	writeSourceFile(t, dir, filepath.Join("vendor", "dep.go"), "package dep\n\nfunc NewVendored() {}\n")

	tool := NewFindSymbolsTool(dir)
	result, err := tool.Execute(context.Background(), map[string]any{"query": "New*"})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	assert.Contains(t, result.Content, "NewConfig")
	assert.NotContains(t, result.Content, "NewVendored")
}

func TestFindSymbolsNoMatches(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "config.go", goSampleSource)

	tool := NewFindSymbolsTool(dir)
	result, err := tool.Execute(context.Background(), map[string]any{"query": "Nonexistent*"})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)
	assert.Contains(t, result.Content, "No symbols matching")
}

func TestFindDefinitionOrdersByKind(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "config.go", goSampleSource)
	writeSourceFile(t, dir, "helpers.go", "package sample\n\nfunc helper() {\n\tconfig := NewConfig()\n\t_ = config\n}\n")

	tool := NewFindDefinitionTool(dir)
	result, err := tool.Execute(context.Background(), map[string]any{"symbol": "Config"})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	assert.Contains(t, result.Content, "[struct] config.go:3")
	// Definitions, not call sites.
	assert.NotContains(t, result.Content, "helpers.go")
}

func TestFindDefinitionNotFound(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "config.go", goSampleSource)

	tool := NewFindDefinitionTool(dir)
	result, err := tool.Execute(context.Background(), map[string]any{"symbol": "Missing"})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)
	assert.Contains(t, result.Content, "No definition of")
}

func TestFindReferencesWholeWordMatch(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "config.go", goSampleSource)
	writeSourceFile(t, dir, "main.go", "package sample\n\nfunc run() {\n\tcfg := NewConfig()\n\t_ = cfg\n}\n")

	tool := NewFindReferencesTool(dir)
	result, err := tool.Execute(context.Background(), map[string]any{"symbol": "NewConfig"})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)

	assert.Contains(t, result.Content, "config.go:7")
	assert.Contains(t, result.Content, "main.go:4")
	// "Config" alone is a different word and must not count.
	assert.NotContains(t, result.Content, "config.go:3")
}

func TestFindReferencesNoneFound(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "config.go", goSampleSource)

	tool := NewFindReferencesTool(dir)
	result, err := tool.Execute(context.Background(), map[string]any{"symbol": "Untouched"})
	require.NoError(t, err)
	require.True(t, result.Success, result.Error)
	assert.Contains(t, result.Content, "No references to")
}

func TestWildcardRegexp(t *testing.T) {
	re, err := wildcardRegexp("Handle*")
	require.NoError(t, err)
	assert.True(t, re.MatchString("HandleRequest"))
	assert.True(t, re.MatchString("handleRequest"))
	assert.False(t, re.MatchString("MyHandleRequest"))

	re, err = wildcardRegexp("?onfig")
	require.NoError(t, err)
	assert.True(t, re.MatchString("Config"))
	assert.False(t, re.MatchString("MyConfig"))
}
