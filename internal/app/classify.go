package app

import (
	"regexp"
	"strings"
)

// inputKind is the routing decision for one line of REPL input.
type inputKind int

const (
	inputChat inputKind = iota
	inputCommand
	inputShell
)

// shellBinaries are first tokens recognized as shell commands when
// typed bare, without the ! prefix.
var shellBinaries = map[string]bool{
	"ls": true, "cd": true, "pwd": true, "cat": true, "head": true,
	"tail": true, "less": true, "more": true, "cp": true, "mv": true,
	"rm": true, "mkdir": true, "rmdir": true, "touch": true,
	"chmod": true, "chown": true, "find": true, "tree": true,
	"file": true, "stat": true, "du": true, "df": true,

	"grep": true, "rg": true, "awk": true, "sed": true, "cut": true,
	"sort": true, "uniq": true, "wc": true, "diff": true, "tr": true,
	"tee": true,

	"tar": true, "zip": true, "unzip": true, "gzip": true, "gunzip": true,

	"curl": true, "wget": true, "ssh": true, "scp": true, "rsync": true,
	"ping": true,

	"git": true, "svn": true, "hg": true,

	"npm": true, "yarn": true, "pnpm": true, "pip": true, "pip3": true,
	"cargo": true, "go": true, "gem": true, "bundle": true,
	"apt": true, "apt-get": true, "brew": true,

	"python": true, "python3": true, "node": true, "deno": true,
	"bun": true, "ruby": true, "perl": true, "java": true,
	"javac": true, "gcc": true, "g++": true, "clang": true,
	"make": true, "cmake": true,

	"docker": true, "docker-compose": true, "podman": true,
	"kubectl": true, "helm": true,

	"echo": true, "printf": true, "date": true, "which": true,
	"whoami": true, "env": true, "man": true, "xargs": true,
}

// shellOperators are characters that only make sense in a shell.
var shellOperators = regexp.MustCompile("[|><;&`$()]")

// shellPatterns strongly indicate a shell command regardless of the
// first word.
var shellPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\s*\./`),  // ./script
	regexp.MustCompile(`^\s*~/`),   // ~/path
	regexp.MustCompile(`\s+--?\w`), // -f or --flag
	regexp.MustCompile(`^\s*\w+=`), // VAR=value
}

// naturalLanguageMarkers veto shell classification: "make a calculator"
// is a request, "make build" is a command.
var naturalLanguageMarkers = map[string]bool{
	"a": true, "an": true, "the": true,
	"for": true, "with": true, "to": true, "from": true, "in": true,
	"on": true, "at": true, "by": true, "about": true,
	"i": true, "me": true, "my": true, "we": true, "us": true,
	"our": true, "you": true, "your": true,
	"please": true, "can": true, "could": true, "would": true,
	"should": true, "want": true, "need": true, "help": true,
	"show": true, "explain": true, "tell": true, "give": true,
	"create": true, "build": true,
	"what": true, "how": true, "why": true, "where": true,
	"when": true, "which": true, "who": true,
}

// classifyInput decides how a REPL line is routed.
func classifyInput(input string) inputKind {
	text := strings.TrimSpace(input)
	if text == "" {
		return inputChat
	}
	if strings.HasPrefix(text, "/") {
		return inputCommand
	}
	if looksLikeShellCommand(text) {
		return inputShell
	}
	return inputChat
}

// looksLikeShellCommand reports whether bare input should run as a
// shell command instead of being sent to the model.
func looksLikeShellCommand(text string) bool {
	if shellOperators.MatchString(text) {
		return true
	}
	for _, pattern := range shellPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return false
	}

	first := strings.ToLower(words[0])
	if idx := strings.LastIndex(first, "/"); idx >= 0 {
		first = first[idx+1:]
	}
	if !shellBinaries[first] {
		return false
	}

	for _, word := range words[1:] {
		if naturalLanguageMarkers[strings.ToLower(word)] {
			return false
		}
	}
	return true
}

// complexitySignal weights a phrasing pattern that suggests a
// multi-step task.
type complexitySignal struct {
	re     *regexp.Regexp
	weight float64
}

var complexitySignals = []complexitySignal{
	// Restructuring
	{regexp.MustCompile(`(?i)\brefactor\b`), 0.35},
	{regexp.MustCompile(`(?i)\brestructure\b`), 0.35},
	{regexp.MustCompile(`(?i)\bmigrate\b`), 0.35},
	{regexp.MustCompile(`(?i)\brewrite\b`), 0.30},
	{regexp.MustCompile(`(?i)\bredesign\b`), 0.30},

	// Scope
	{regexp.MustCompile(`(?i)\ball\s+files?\b`), 0.30},
	{regexp.MustCompile(`(?i)\bentire\b`), 0.25},
	{regexp.MustCompile(`(?i)\bevery\s+\w+`), 0.25},
	{regexp.MustCompile(`(?i)\bacross\s+the\b`), 0.25},
	{regexp.MustCompile(`(?i)\bthroughout\b`), 0.20},
	{regexp.MustCompile(`(?i)\bwhole\s+\w+`), 0.20},

	// Multi-step phrasing
	{regexp.MustCompile(`(?i)\bfirst\b.*\bthen\b`), 0.25},
	{regexp.MustCompile(`(?i)\bstep\s+\d+`), 0.20},
	{regexp.MustCompile(`(?i)\band\s+then\b`), 0.15},
	{regexp.MustCompile(`(?i)\bafter\s+that\b`), 0.15},
	{regexp.MustCompile(`(?i)\bfinally\b`), 0.15},

	// Creation
	{regexp.MustCompile(`(?i)\bcreate\s+a\s+new\b`), 0.20},
	{regexp.MustCompile(`(?i)\bbuild\s+a\b`), 0.20},
	{regexp.MustCompile(`(?i)\bimplement\s+a\b`), 0.20},
	{regexp.MustCompile(`(?i)\bset\s*up\b`), 0.15},

	// Ambiguous scope
	{regexp.MustCompile(`(?i)\bfix\s+(?:the\s+)?bugs?\b`), 0.20},
	{regexp.MustCompile(`(?i)\boptimize\b`), 0.20},
	{regexp.MustCompile(`(?i)\bimprove\b`), 0.15},

	// Weak signals that add up
	{regexp.MustCompile(`(?i)\bmultiple\b`), 0.15},
	{regexp.MustCompile(`(?i)\bseveral\b`), 0.15},
	{regexp.MustCompile(`(?i)\bintegrate\b`), 0.15},
	{regexp.MustCompile(`(?i)\bfeature\b`), 0.15},
	{regexp.MustCompile(`(?i)\bsystem\b`), 0.15},
	{regexp.MustCompile(`(?i)\bmodule\b`), 0.10},
	{regexp.MustCompile(`(?i)\bcomponent\b`), 0.10},
	{regexp.MustCompile(`(?i)\bservice\b`), 0.10},
}

// analyzeComplexity scores how multi-step a request looks, capped at
// 1.0.
func analyzeComplexity(text string) float64 {
	score := 0.0
	for _, signal := range complexitySignals {
		if signal.re.MatchString(text) {
			score += signal.weight
		}
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
