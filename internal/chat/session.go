// Package chat manages conversation sessions: in-memory history,
// persistence to disk, and export.
package chat

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

// DefaultMaxMessages is the history cap applied when no limit is
// configured.
const DefaultMaxMessages = 100

// Session is a single conversation with the model.
type Session struct {
	ID                string
	StartTime         time.Time
	WorkDir           string
	SystemInstruction string

	history     []*genai.Content
	maxMessages int
	tokenCounts []int
	totalTokens int
	mu          sync.RWMutex
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{
		ID:          generateSessionID(),
		StartTime:   time.Now(),
		history:     make([]*genai.Content, 0),
		maxMessages: DefaultMaxMessages,
	}
}

// generateSessionID produces a sortable, collision-free session ID.
func generateSessionID() string {
	return time.Now().Format("20060102-150405") + "-" + uuid.NewString()[:8]
}

// SetMaxMessages sets the history cap. Values below 1 restore the
// default.
func (s *Session) SetMaxMessages(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n < 1 {
		n = DefaultMaxMessages
	}
	s.maxMessages = n
}

// SetWorkDir records the working directory for this session.
func (s *Session) SetWorkDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.WorkDir = dir
}

// AddUserMessage appends a user text message.
func (s *Session) AddUserMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, genai.NewContentFromText(message, genai.RoleUser))
	s.trimLocked()
}

// AddModelMessage appends a model text message.
func (s *Session) AddModelMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, genai.NewContentFromText(message, genai.RoleModel))
	s.trimLocked()
}

// AddContent appends raw content, preserving function call and
// response parts exactly as the API produced them.
func (s *Session) AddContent(content *genai.Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, content)
	s.trimLocked()
}

// AddContentWithTokens appends content and records its token count.
func (s *Session) AddContentWithTokens(content *genai.Content, tokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, content)
	s.tokenCounts = append(s.tokenCounts, tokens)
	s.totalTokens += tokens
	s.trimLocked()
}

// GetHistory returns a copy of the conversation history.
func (s *Session) GetHistory() []*genai.Content {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := make([]*genai.Content, len(s.history))
	copy(history, s.history)
	return history
}

// SetHistory replaces the history, applying the sliding window.
func (s *Session) SetHistory(history []*genai.Content) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = history
	s.tokenCounts = nil
	s.totalTokens = 0
	s.trimLocked()
}

// Clear empties the session history.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = s.history[:0]
	s.tokenCounts = nil
	s.totalTokens = 0
}

// MessageCount returns the number of messages in the session.
func (s *Session) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// TokenCount returns the recorded total token count.
func (s *Session) TokenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalTokens
}

// trimLocked applies a sliding window over the history. The first two
// messages are pinned so the opening exchange survives trimming.
// Caller must hold s.mu.
func (s *Session) trimLocked() {
	max := s.maxMessages
	if max < 1 {
		max = DefaultMaxMessages
	}
	if len(s.history) <= max {
		return
	}

	pinned := 2
	if pinned > len(s.history) {
		pinned = 0
	}
	remaining := max - pinned
	if remaining < 0 {
		remaining = 0
	}
	start := len(s.history) - remaining
	if start < pinned {
		start = pinned
	}
	s.history = append(s.history[:pinned], s.history[start:]...)

	if len(s.tokenCounts) > 0 {
		if start < len(s.tokenCounts) {
			tcPinned := pinned
			if tcPinned > len(s.tokenCounts) {
				tcPinned = 0
			}
			s.tokenCounts = append(s.tokenCounts[:tcPinned], s.tokenCounts[start:]...)
		}
		s.totalTokens = 0
		for _, count := range s.tokenCounts {
			s.totalTokens += count
		}
	}
}

// GetState snapshots the session for serialization.
func (s *Session) GetState() *SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]SerializedContent, len(s.history))
	for i, content := range s.history {
		history[i] = SerializeContent(content)
	}

	state := &SessionState{
		ID:                s.ID,
		StartTime:         s.StartTime,
		LastActive:        time.Now(),
		WorkDir:           s.WorkDir,
		History:           history,
		TokenCounts:       append([]int(nil), s.tokenCounts...),
		TotalTokens:       s.totalTokens,
		SystemInstruction: s.SystemInstruction,
	}
	state.Summary = state.GenerateSummary()
	return state
}

// RestoreFromState loads a saved state into this session.
func (s *Session) RestoreFromState(state *SessionState) error {
	history := make([]*genai.Content, len(state.History))
	for i, sc := range state.History {
		content, err := DeserializeContent(sc)
		if err != nil {
			return err
		}
		history[i] = content
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ID = state.ID
	s.StartTime = state.StartTime
	s.WorkDir = state.WorkDir
	s.history = history
	s.tokenCounts = append([]int(nil), state.TokenCounts...)
	s.totalTokens = state.TotalTokens
	s.SystemInstruction = state.SystemInstruction
	return nil
}

// sensitivePatterns match credentials that must not leak into exports.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`AIza[A-Za-z0-9_-]{20,}`),
	regexp.MustCompile(`AKIA[A-Z0-9]{16}`),
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9_\-.]+`),
	regexp.MustCompile(`(?i)(?:password|passwd|token|secret|api_key|apikey|api-key|access_key|auth)\s*[=:]\s*["']?([^\s"']{8,})["']?`),
}

// redactSensitiveData replaces credential-shaped substrings with a
// placeholder.
func redactSensitiveData(text string) string {
	result := text
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, "[REDACTED]")
	}
	return result
}

// ExportMarkdown renders the conversation as markdown with sensitive
// data redacted.
func (s *Session) ExportMarkdown() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# Session %s\n\n", s.ID))
	sb.WriteString(fmt.Sprintf("**Started:** %s\n\n", s.StartTime.Format("2006-01-02 15:04:05")))
	if s.WorkDir != "" {
		sb.WriteString(fmt.Sprintf("**Working Directory:** %s\n\n", s.WorkDir))
	}
	sb.WriteString("---\n\n")

	for _, content := range s.history {
		role := "Assistant"
		if content.Role == string(genai.RoleUser) {
			role = "User"
		}
		sb.WriteString(fmt.Sprintf("## %s\n\n", role))

		for _, part := range content.Parts {
			switch {
			case part.FunctionCall != nil:
				sb.WriteString(fmt.Sprintf("**Tool Call:** `%s`\n\n", part.FunctionCall.Name))
				writeJSONBlock(&sb, part.FunctionCall.Args)
			case part.FunctionResponse != nil:
				sb.WriteString(fmt.Sprintf("**Tool Response:** `%s`\n\n", part.FunctionResponse.Name))
				writeJSONBlock(&sb, part.FunctionResponse.Response)
			case part.Text != "":
				sb.WriteString(redactSensitiveData(part.Text))
				sb.WriteString("\n\n")
			}
		}
	}
	return sb.String()
}

func writeJSONBlock(sb *strings.Builder, m map[string]any) {
	if m == nil {
		return
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return
	}
	sb.WriteString("```json\n")
	sb.WriteString(redactSensitiveData(string(data)))
	sb.WriteString("\n```\n\n")
}
