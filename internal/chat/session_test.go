package chat

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestSessionIDsAreUnique(t *testing.T) {
	a := NewSession()
	b := NewSession()
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotEmpty(t, a.ID)
}

func TestAddMessagesAndHistoryCopy(t *testing.T) {
	s := NewSession()
	s.AddUserMessage("hello")
	s.AddModelMessage("hi there")

	history := s.GetHistory()
	require.Len(t, history, 2)
	assert.Equal(t, string(genai.RoleUser), history[0].Role)
	assert.Equal(t, string(genai.RoleModel), history[1].Role)

	// Mutating the returned slice must not affect the session.
	history[0] = nil
	assert.NotNil(t, s.GetHistory()[0])
}

func TestTrimPinsOpeningExchange(t *testing.T) {
	s := NewSession()
	s.SetMaxMessages(4)

	s.AddUserMessage("first user")
	s.AddModelMessage("first model")
	for i := 0; i < 10; i++ {
		s.AddUserMessage("filler")
	}

	history := s.GetHistory()
	require.Len(t, history, 4)
	assert.Equal(t, "first user", history[0].Parts[0].Text)
	assert.Equal(t, "first model", history[1].Parts[0].Text)
	assert.Equal(t, "filler", history[2].Parts[0].Text)
}

func TestClear(t *testing.T) {
	s := NewSession()
	s.AddUserMessage("hello")
	s.Clear()
	assert.Equal(t, 0, s.MessageCount())
	assert.Equal(t, 0, s.TokenCount())
}

func TestTokenAccounting(t *testing.T) {
	s := NewSession()
	s.AddContentWithTokens(genai.NewContentFromText("a", genai.RoleUser), 10)
	s.AddContentWithTokens(genai.NewContentFromText("b", genai.RoleModel), 25)
	assert.Equal(t, 35, s.TokenCount())
}

func TestStateRoundTrip(t *testing.T) {
	s := NewSession()
	s.SetWorkDir("/tmp/project")
	s.AddUserMessage("refactor the parser")
	s.AddContent(&genai.Content{
		Role: string(genai.RoleModel),
		Parts: []*genai.Part{
			{FunctionCall: &genai.FunctionCall{Name: "read", Args: map[string]any{"path": "parser.go"}}},
		},
	})

	state := s.GetState()
	require.NotNil(t, state)

	restored := NewSession()
	require.NoError(t, restored.RestoreFromState(state))

	assert.Equal(t, s.ID, restored.ID)
	assert.Equal(t, "/tmp/project", restored.WorkDir)

	history := restored.GetHistory()
	require.Len(t, history, 2)
	require.NotNil(t, history[1].Parts[0].FunctionCall)
	assert.Equal(t, "read", history[1].Parts[0].FunctionCall.Name)
	assert.Equal(t, "parser.go", history[1].Parts[0].FunctionCall.Args["path"])
}

func TestGenerateSummarySkipsOpeningContext(t *testing.T) {
	s := NewSession()
	s.AddUserMessage("project context blob")
	s.AddModelMessage("understood")
	s.AddUserMessage("fix the race in the watcher")

	state := s.GetState()
	assert.Equal(t, "fix the race in the watcher", state.Summary)
}

func TestExportMarkdownRedactsCredentials(t *testing.T) {
	s := NewSession()
	s.AddUserMessage("my key is AIzaSyA1234567890abcdefghijklm please use it")
	s.AddModelMessage("The header is Authorization: Bearer abc123def456")

	md := s.ExportMarkdown()
	assert.Contains(t, md, "[REDACTED]")
	assert.NotContains(t, md, "AIzaSyA1234567890abcdefghijklm")
	assert.NotContains(t, md, "Bearer abc123def456")
}

func TestExportMarkdownIncludesToolCalls(t *testing.T) {
	s := NewSession()
	s.AddContent(&genai.Content{
		Role: string(genai.RoleModel),
		Parts: []*genai.Part{
			{FunctionCall: &genai.FunctionCall{Name: "grep", Args: map[string]any{"pattern": "TODO"}}},
		},
	})

	md := s.ExportMarkdown()
	assert.Contains(t, md, "**Tool Call:** `grep`")
	assert.Contains(t, md, "```json")
}

func TestStoreSaveLoadList(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	store, err := NewStore()
	require.NoError(t, err)

	s := NewSession()
	s.AddUserMessage("hello")
	require.NoError(t, store.Save(s))

	state, err := store.Load(s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, state.ID)
	require.Len(t, state.History, 1)

	infos, err := store.List()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, s.ID, infos[0].ID)
	assert.Equal(t, 1, infos[0].MessageCount)
}

func TestStoreDelete(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	store, err := NewStore()
	require.NoError(t, err)

	s := NewSession()
	require.NoError(t, store.Save(s))
	require.NoError(t, store.Delete(s.ID))

	_, err = store.Load(s.ID)
	assert.Error(t, err)
}

func TestSerializeEmptyTextBecomesSpace(t *testing.T) {
	content := &genai.Content{
		Role:  string(genai.RoleModel),
		Parts: []*genai.Part{{Text: ""}},
	}
	sc := SerializeContent(content)
	restored, err := DeserializeContent(sc)
	require.NoError(t, err)
	require.Len(t, restored.Parts, 1)
	assert.Equal(t, " ", restored.Parts[0].Text)
}

func TestSessionsDirHonorsXDG(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_DATA_HOME", base)

	store, err := NewStore()
	require.NoError(t, err)
	_ = store

	info, err := os.Stat(filepath.Join(base, "gofer", "sessions"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
