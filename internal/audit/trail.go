// Package audit records what the agent actually did: every tool
// execution and every permission decision, appended to a per-session
// JSONL file so a run can be reconstructed after the fact.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is one audited event.
type Record struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	SessionID  string         `json:"session_id"`
	Kind       string         `json:"kind"` // "tool" or "permission"
	ToolName   string         `json:"tool_name"`
	Args       map[string]any `json:"args,omitempty"`
	Outcome    string         `json:"outcome"` // ok, error, denied, blocked, allowed, feedback
	Detail     string         `json:"detail,omitempty"`
	DurationMs int64          `json:"duration_ms,omitempty"`
}

// Trail is an append-only audit log. Writes are synchronous; entries
// are short and the file is line-buffered.
type Trail struct {
	sessionID string
	path      string
	maxDetail int

	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	recent []Record
}

const (
	maxDetailLen  = 1000
	recentKept    = 200
	retentionDays = 30
)

// NewTrail opens the audit file for a session under dir/audit/. A nil
// Trail is valid and records nothing.
func NewTrail(dir, sessionID string) (*Trail, error) {
	auditDir := filepath.Join(dir, "audit")
	// Owner-only: records include command lines and file paths.
	if err := os.MkdirAll(auditDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	path := filepath.Join(auditDir, sessionID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	t := &Trail{
		sessionID: sessionID,
		path:      path,
		maxDetail: maxDetailLen,
		file:      f,
		writer:    bufio.NewWriter(f),
	}
	t.sweep(auditDir)
	return t, nil
}

// Tool records a finished tool execution.
func (t *Trail) Tool(toolName string, args map[string]any, outcome, detail string, duration time.Duration) {
	t.append(Record{
		Kind:       "tool",
		ToolName:   toolName,
		Args:       sanitizeArgs(args),
		Outcome:    outcome,
		Detail:     truncate(detail, maxDetailLen),
		DurationMs: duration.Milliseconds(),
	})
}

// Permission records a gate decision.
func (t *Trail) Permission(toolName, outcome, reason string) {
	t.append(Record{
		Kind:     "permission",
		ToolName: toolName,
		Outcome:  outcome,
		Detail:   truncate(reason, maxDetailLen),
	})
}

func (t *Trail) append(r Record) {
	if t == nil {
		return
	}
	r.ID = uuid.NewString()
	r.Timestamp = time.Now()
	r.SessionID = t.sessionID

	t.mu.Lock()
	defer t.mu.Unlock()

	t.recent = append(t.recent, r)
	if len(t.recent) > recentKept {
		t.recent = t.recent[len(t.recent)-recentKept:]
	}

	line, err := json.Marshal(r)
	if err != nil {
		return
	}
	t.writer.Write(line)
	t.writer.WriteByte('\n')
	t.writer.Flush()
}

// Recent returns up to n records from this session, newest first.
func (t *Trail) Recent(n int) []Record {
	if t == nil || n <= 0 {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if n > len(t.recent) {
		n = len(t.recent)
	}
	out := make([]Record, n)
	for i := 0; i < n; i++ {
		out[i] = t.recent[len(t.recent)-1-i]
	}
	return out
}

// Path returns the session's audit file location.
func (t *Trail) Path() string {
	if t == nil {
		return ""
	}
	return t.path
}

// Close flushes and closes the audit file.
func (t *Trail) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.writer.Flush()
	return t.file.Close()
}

// sweep deletes audit files past the retention window.
func (t *Trail) sweep(auditDir string) {
	entries, err := os.ReadDir(auditDir)
	if err != nil {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(auditDir, entry.Name()))
		}
	}
}

var sensitiveArgKeys = map[string]bool{
	"password": true, "secret": true, "token": true,
	"api_key": true, "apikey": true, "credentials": true, "auth": true,
}

// sanitizeArgs copies args with credential-like values redacted and
// long values shortened.
func sanitizeArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if sensitiveArgKeys[strings.ToLower(k)] {
			out[k] = "[REDACTED]"
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = truncate(s, 300)
			continue
		}
		out[k] = v
	}
	return out
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...[truncated]"
}
