package audit

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readRecords(t *testing.T, path string) []Record {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		records = append(records, r)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestTrailAppendsRecords(t *testing.T) {
	dir := t.TempDir()
	trail, err := NewTrail(dir, "sess1")
	require.NoError(t, err)
	defer trail.Close()

	trail.Tool("read", map[string]any{"file_path": "main.go"}, "ok", "120 lines", 5*time.Millisecond)
	trail.Permission("write", "denied", "the user denied this action")

	records := readRecords(t, trail.Path())
	require.Len(t, records, 2)

	assert.Equal(t, "tool", records[0].Kind)
	assert.Equal(t, "read", records[0].ToolName)
	assert.Equal(t, "ok", records[0].Outcome)
	assert.Equal(t, "sess1", records[0].SessionID)
	assert.Equal(t, int64(5), records[0].DurationMs)
	assert.NotEmpty(t, records[0].ID)
	assert.False(t, records[0].Timestamp.IsZero())

	assert.Equal(t, "permission", records[1].Kind)
	assert.Equal(t, "denied", records[1].Outcome)
}

func TestTrailRecentNewestFirst(t *testing.T) {
	trail, err := NewTrail(t.TempDir(), "sess1")
	require.NoError(t, err)
	defer trail.Close()

	trail.Tool("read", nil, "ok", "", 0)
	trail.Tool("grep", nil, "ok", "", 0)
	trail.Tool("write", nil, "error", "", 0)

	recent := trail.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "write", recent[0].ToolName)
	assert.Equal(t, "grep", recent[1].ToolName)

	assert.Len(t, trail.Recent(100), 3)
	assert.Nil(t, trail.Recent(0))
}

func TestTrailRedactsSensitiveArgs(t *testing.T) {
	trail, err := NewTrail(t.TempDir(), "sess1")
	require.NoError(t, err)
	defer trail.Close()

	trail.Tool("web_fetch", map[string]any{
		"url":     "https://example.com",
		"api_key": "sk-abc123",
		"Token":   "xyz",
	}, "ok", "", 0)

	records := readRecords(t, trail.Path())
	require.Len(t, records, 1)
	assert.Equal(t, "https://example.com", records[0].Args["url"])
	assert.Equal(t, "[REDACTED]", records[0].Args["api_key"])
	// Key matching is case-insensitive.
	assert.Equal(t, "[REDACTED]", records[0].Args["Token"])
}

func TestTrailTruncatesLongValues(t *testing.T) {
	trail, err := NewTrail(t.TempDir(), "sess1")
	require.NoError(t, err)
	defer trail.Close()

	long := strings.Repeat("x", 2000)
	trail.Tool("bash", map[string]any{"command": long}, "ok", long, 0)

	records := readRecords(t, trail.Path())
	require.Len(t, records, 1)

	cmd := records[0].Args["command"].(string)
	assert.True(t, strings.HasSuffix(cmd, "...[truncated]"))
	assert.Less(t, len(cmd), 400)
	assert.True(t, strings.HasSuffix(records[0].Detail, "...[truncated]"))
	assert.Less(t, len(records[0].Detail), 1100)
}

func TestNilTrailIsSafe(t *testing.T) {
	var trail *Trail

	trail.Tool("read", nil, "ok", "", 0)
	trail.Permission("write", "denied", "")
	assert.Nil(t, trail.Recent(5))
	assert.Empty(t, trail.Path())
	assert.NoError(t, trail.Close())
}

func TestTrailSweepRemovesOldFiles(t *testing.T) {
	dir := t.TempDir()
	auditDir := filepath.Join(dir, "audit")
	require.NoError(t, os.MkdirAll(auditDir, 0o700))

	old := filepath.Join(auditDir, "ancient.jsonl")
	require.NoError(t, os.WriteFile(old, []byte("{}\n"), 0o600))
	past := time.Now().AddDate(0, 0, -40)
	require.NoError(t, os.Chtimes(old, past, past))

	trail, err := NewTrail(dir, "sess1")
	require.NoError(t, err)
	defer trail.Close()

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
}
