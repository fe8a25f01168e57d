package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifySlashCommand(t *testing.T) {
	assert.Equal(t, inputCommand, classifyInput("/help"))
	assert.Equal(t, inputCommand, classifyInput("  /plan build add caching"))
}

func TestClassifyBareShellCommands(t *testing.T) {
	for _, input := range []string{
		"ls -la",
		"git status",
		"go test ./...",
		"npm install",
		"docker ps",
		"bin/python3 script.py",
		"./run.sh",
		"~/scripts/deploy.sh",
		"FOO=bar make",
		"cat main.go | wc -l",
	} {
		assert.Equal(t, inputShell, classifyInput(input), "expected %q to classify as shell", input)
	}
}

func TestClassifyNaturalLanguage(t *testing.T) {
	for _, input := range []string{
		"make a calculator",
		"find the bug in the parser",
		"can you rename this function",
		"git is confusing, explain rebase to me",
		"why does the build fail",
	} {
		assert.Equal(t, inputChat, classifyInput(input), "expected %q to classify as chat", input)
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	assert.Equal(t, inputChat, classifyInput(""))
	assert.Equal(t, inputChat, classifyInput("   "))
}

func TestAnalyzeComplexityScoresMultiStepRequests(t *testing.T) {
	low := analyzeComplexity("rename the foo variable")
	high := analyzeComplexity("refactor the entire storage module and then migrate every caller")

	assert.Less(t, low, 0.6)
	assert.GreaterOrEqual(t, high, 0.6)
}

func TestAnalyzeComplexityIsCapped(t *testing.T) {
	score := analyzeComplexity(
		"refactor and restructure and migrate and rewrite the entire system across the whole codebase, " +
			"first do this and then that, finally optimize every module")
	assert.Equal(t, 1.0, score)
}
