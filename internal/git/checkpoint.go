package git

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/danib549/gofer/internal/logging"
)

// checkpointPrefix marks commits created by the agent so they can be
// listed and restored separately from user commits.
const checkpointPrefix = "[gofer-checkpoint]"

// CheckpointResult reports the outcome of a checkpoint operation.
type CheckpointResult struct {
	Success    bool
	CommitHash string
	Message    string
	Err        string
}

// Checkpointer creates snapshot commits before mutating tool executions
// so file changes can be rolled back. All failures are best-effort: they
// are logged as warnings, never fatal.
type Checkpointer struct {
	repoPath string
	enabled  bool
}

// NewCheckpointer creates a Checkpointer rooted at repoPath.
func NewCheckpointer(repoPath string, enabled bool) *Checkpointer {
	return &Checkpointer{repoPath: repoPath, enabled: enabled}
}

// Enabled reports whether checkpointing is on.
func (c *Checkpointer) Enabled() bool { return c.enabled }

// IsRepo reports whether the workspace is a git repository.
func (c *Checkpointer) IsRepo() bool {
	info, err := os.Stat(filepath.Join(c.repoPath, ".git"))
	return err == nil && info.IsDir()
}

// Checkpoint stages everything and commits with the checkpoint prefix.
// No-op when disabled, outside a repository, or with nothing to commit.
func (c *Checkpointer) Checkpoint(description string) CheckpointResult {
	if !c.enabled {
		return CheckpointResult{Success: true, Message: "checkpointing disabled"}
	}
	if !c.IsRepo() {
		return CheckpointResult{Success: true, Message: "not a git repository"}
	}

	status, err := c.runGit("status", "--porcelain")
	if err != nil {
		logging.Warn("checkpoint status failed", "error", err)
		return CheckpointResult{Err: err.Error()}
	}
	if strings.TrimSpace(status) == "" {
		return CheckpointResult{Success: true, Message: "no changes to checkpoint"}
	}

	if _, err := c.runGit("add", "-A"); err != nil {
		logging.Warn("checkpoint add failed", "error", err)
		return CheckpointResult{Err: err.Error()}
	}

	msg := fmt.Sprintf("%s %s", checkpointPrefix, description)
	if _, err := c.runGit("commit", "-m", msg, "--no-verify"); err != nil {
		logging.Warn("checkpoint commit failed", "error", err)
		return CheckpointResult{Err: err.Error()}
	}

	hash, err := c.runGit("rev-parse", "--short", "HEAD")
	if err != nil {
		hash = ""
	}
	hash = strings.TrimSpace(hash)
	logging.Debug("checkpoint created", "hash", hash, "description", description)
	return CheckpointResult{
		Success:    true,
		CommitHash: hash,
		Message:    "checkpoint created: " + hash,
	}
}

// Checkpoint describes one prior snapshot commit.
type Checkpoint struct {
	Hash    string
	Message string
	Time    string
}

// ListCheckpoints returns recent checkpoint commits, newest first.
func (c *Checkpointer) ListCheckpoints(limit int) []Checkpoint {
	if limit <= 0 {
		limit = 10
	}
	out, err := c.runGit("log",
		"--grep="+checkpointPrefix,
		fmt.Sprintf("-n%d", limit),
		"--pretty=format:%h|%s|%cr")
	if err != nil {
		return nil
	}

	var checkpoints []Checkpoint
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		parts := strings.SplitN(line, "|", 3)
		if len(parts) < 3 {
			continue
		}
		checkpoints = append(checkpoints, Checkpoint{
			Hash:    parts[0],
			Message: strings.TrimSpace(strings.ReplaceAll(parts[1], checkpointPrefix, "")),
			Time:    parts[2],
		})
	}
	return checkpoints
}

// Restore checks out the given checkpoint's tree over the working copy,
// snapshotting current changes first.
func (c *Checkpointer) Restore(commitHash string) CheckpointResult {
	if !c.IsRepo() {
		return CheckpointResult{Err: "not a git repository"}
	}

	// Preserve whatever is in flight so a restore is itself undoable.
	c.Checkpoint("before restore to " + commitHash)

	if _, err := c.runGit("checkout", commitHash, "--", "."); err != nil {
		return CheckpointResult{Err: err.Error()}
	}
	return CheckpointResult{
		Success:    true,
		CommitHash: commitHash,
		Message:    "restored to " + commitHash,
	}
}

func (c *Checkpointer) runGit(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = c.repoPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return "", fmt.Errorf("git %s: %s", args[0], strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("git %s: %w", args[0], err)
	}
	return stdout.String(), nil
}
