package chat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danib549/gofer/internal/fileutil"
	"github.com/danib549/gofer/internal/logging"
)

// Store persists session state as JSON files under the user data
// directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at the default sessions directory.
func NewStore() (*Store, error) {
	dir, err := sessionsDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// sessionsDir resolves the session storage directory, honoring
// XDG_DATA_HOME.
func sessionsDir() (string, error) {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "gofer", "sessions"), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".local", "share", "gofer", "sessions"), nil
}

// Save writes a session snapshot to disk.
func (st *Store) Save(session *Session) error {
	state := session.GetState()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return fileutil.AtomicWrite(filepath.Join(st.dir, state.ID+".json"), data, 0o644)
}

// Load reads a saved session state by ID.
func (st *Store) Load(sessionID string) (*SessionState, error) {
	data, err := os.ReadFile(filepath.Join(st.dir, sessionID+".json"))
	if err != nil {
		return nil, err
	}
	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("corrupt session file %s: %w", sessionID, err)
	}
	return &state, nil
}

// List returns info for all saved sessions, newest first.
func (st *Store) List() ([]SessionInfo, error) {
	entries, err := os.ReadDir(st.dir)
	if err != nil {
		return nil, err
	}

	var sessions []SessionInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		state, err := st.Load(id)
		if err != nil {
			// Skip unreadable files rather than failing the listing.
			continue
		}
		sessions = append(sessions, SessionInfo{
			ID:           state.ID,
			StartTime:    state.StartTime,
			LastActive:   state.LastActive,
			Summary:      state.Summary,
			MessageCount: len(state.History),
			WorkDir:      state.WorkDir,
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActive.After(sessions[j].LastActive)
	})
	return sessions, nil
}

// Delete removes a saved session.
func (st *Store) Delete(sessionID string) error {
	err := os.Remove(filepath.Join(st.dir, sessionID+".json"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// AutoSaver periodically persists a session and prunes old ones.
type AutoSaver struct {
	session  *Session
	store    *Store
	interval time.Duration
	maxAge   time.Duration
	maxCount int

	mu       sync.Mutex
	timer    *time.Timer
	stopOnce sync.Once
	stopChan chan struct{}
}

// AutoSaverOptions configures persistence behavior. Zero values fall
// back to the defaults.
type AutoSaverOptions struct {
	Interval time.Duration
	MaxAge   time.Duration
	MaxCount int
}

// NewAutoSaver creates an auto-saver for the session.
func NewAutoSaver(session *Session, store *Store, opts AutoSaverOptions) *AutoSaver {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Minute
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 30 * 24 * time.Hour
	}
	if opts.MaxCount <= 0 {
		opts.MaxCount = 50
	}
	return &AutoSaver{
		session:  session,
		store:    store,
		interval: opts.Interval,
		maxAge:   opts.MaxAge,
		maxCount: opts.MaxCount,
		stopChan: make(chan struct{}),
	}
}

// Start begins periodic saving and kicks off a background cleanup of
// old sessions.
func (a *AutoSaver) Start() {
	go a.cleanup()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.timer = time.AfterFunc(a.interval, a.tick)
}

// Stop halts periodic saving and performs a final save.
func (a *AutoSaver) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopChan)
		a.mu.Lock()
		if a.timer != nil {
			a.timer.Stop()
		}
		a.mu.Unlock()

		if err := a.Save(); err != nil {
			logging.Warn("failed to save session on shutdown", "error", err)
		}
	})
}

// Save persists the current session state immediately.
func (a *AutoSaver) Save() error {
	if err := a.store.Save(a.session); err != nil {
		return err
	}
	logging.Debug("session saved", "session_id", a.session.ID, "messages", a.session.MessageCount())
	return nil
}

func (a *AutoSaver) tick() {
	select {
	case <-a.stopChan:
		return
	default:
	}

	if err := a.Save(); err != nil {
		logging.Warn("periodic session save failed", "error", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Reset(a.interval)
	}
}

// LoadLast returns the most recently active saved session state, or
// nil if none exist.
func (a *AutoSaver) LoadLast() (*SessionState, error) {
	sessions, err := a.store.List()
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return a.store.Load(sessions[0].ID)
}

// cleanup removes sessions past the age or count limits. The current
// session is always kept.
func (a *AutoSaver) cleanup() {
	sessions, err := a.store.List()
	if err != nil {
		logging.Debug("session cleanup skipped", "error", err)
		return
	}

	cutoff := time.Now().Add(-a.maxAge)
	deleted := 0
	for i, sess := range sessions {
		if sess.ID == a.session.ID {
			continue
		}
		if !sess.LastActive.Before(cutoff) && i < a.maxCount {
			continue
		}
		if err := a.store.Delete(sess.ID); err != nil {
			logging.Debug("failed to delete old session", "session_id", sess.ID, "error", err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		logging.Info("cleaned up old sessions", "deleted", deleted)
	}
}
