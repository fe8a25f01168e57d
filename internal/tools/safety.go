package tools

import (
	"fmt"
	"strings"
)

// DefaultSafeCommands is the default first-token whitelist for shell
// commands that may auto-execute without a permission prompt.
var DefaultSafeCommands = []string{
	"ls", "pwd", "cat", "head", "tail", "wc", "echo", "which",
	"whoami", "date", "grep", "find", "file", "stat", "du", "df",
	"tree", "env", "uname",
}

// safeGitPrefixes are read-only git subcommands matched by prefix.
var safeGitPrefixes = []string{
	"git status",
	"git log",
	"git diff",
	"git branch",
}

// dangerousPatterns are command fragments that are rejected outright,
// regardless of permission settings.
var dangerousPatterns = []string{
	"rm -rf /",
	"rm -rf /*",
	"mkfs",
	"dd if=",
	":(){ :|:& };:",
	"> /dev/sda",
	"chmod -R 777 /",
}

// downloaders fetch remote content; shellInterpreters execute whatever
// they are fed. A pipeline from the first set into the second runs
// unreviewed remote code and is rejected structurally in ValidateCommand.
var downloaders = map[string]bool{
	"curl": true,
	"wget": true,
}

var shellInterpreters = map[string]bool{
	"sh":   true,
	"bash": true,
	"zsh":  true,
	"dash": true,
}

// SafeCommandChecker decides whether a shell command is safe to run
// without an interactive prompt. The whitelist comes from configuration.
type SafeCommandChecker struct {
	whitelist map[string]bool
}

// NewSafeCommandChecker builds a checker from a whitelist. An empty list
// uses DefaultSafeCommands.
func NewSafeCommandChecker(whitelist []string) *SafeCommandChecker {
	if len(whitelist) == 0 {
		whitelist = DefaultSafeCommands
	}
	set := make(map[string]bool, len(whitelist))
	for _, cmd := range whitelist {
		set[strings.ToLower(cmd)] = true
	}
	return &SafeCommandChecker{whitelist: set}
}

// IsSafe reports whether the command's first token is whitelisted or the
// command is a read-only git subcommand. Matching is case-insensitive.
func (c *SafeCommandChecker) IsSafe(command string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(command))
	if trimmed == "" {
		return false
	}

	for _, prefix := range safeGitPrefixes {
		if trimmed == prefix || strings.HasPrefix(trimmed, prefix+" ") {
			return true
		}
	}

	fields := strings.Fields(trimmed)
	return c.whitelist[fields[0]]
}

// ValidateCommand rejects commands matching known destructive patterns.
// This check runs before any permission prompt; a match is never
// user-overridable.
func ValidateCommand(command string) error {
	normalized := strings.Join(strings.Fields(command), " ")
	for _, pattern := range dangerousPatterns {
		if strings.Contains(normalized, pattern) {
			return fmt.Errorf("command blocked for safety: matches dangerous pattern %q", pattern)
		}
	}
	if pipesDownloadToShell(normalized) {
		return fmt.Errorf("command blocked for safety: pipes downloaded content into a shell")
	}
	return nil
}

// pipesDownloadToShell detects a pipeline where a download command feeds
// a shell interpreter, in any form (curl ... | sh, wget -qO- ... | bash,
// curl ... | tee log | sh).
func pipesDownloadToShell(command string) bool {
	segments := strings.Split(command, "|")
	if len(segments) < 2 {
		return false
	}

	downloaded := false
	for _, segment := range segments {
		fields := strings.Fields(segment)
		if len(fields) == 0 {
			continue
		}
		name := strings.ToLower(fields[0])
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		if downloaders[name] {
			downloaded = true
			continue
		}
		if downloaded && shellInterpreters[name] {
			return true
		}
	}
	return false
}
