// Package config loads and persists application configuration from
// ~/.config/gofer/config.yaml with environment variable overrides.
package config

import "time"

// Config represents the main application configuration.
type Config struct {
	API         APIConfig         `yaml:"api"`
	Model       ModelConfig       `yaml:"model"`
	Tools       ToolsConfig       `yaml:"tools"`
	Permission  PermissionConfig  `yaml:"permission"`
	Exploration ExplorationConfig `yaml:"exploration"`
	Checkpoint  CheckpointConfig  `yaml:"checkpoint"`
	Session     SessionConfig     `yaml:"session"`
	Plan        PlanConfig        `yaml:"plan"`
	Watcher     WatcherConfig     `yaml:"watcher"`
	UI          UIConfig          `yaml:"ui"`
	Logging     LoggingConfig     `yaml:"logging"`

	// Runtime version information
	Version string `yaml:"-"`
}

// APIConfig holds provider credentials and endpoints.
type APIConfig struct {
	GeminiKey     string `yaml:"gemini_key,omitempty"`
	OllamaBaseURL string `yaml:"ollama_base_url,omitempty"`

	// Active provider: gemini or ollama (default: gemini)
	ActiveProvider string `yaml:"active_provider"`

	Retry RetryConfig `yaml:"retry"`
}

// GetActiveProvider returns the active provider name.
func (c *APIConfig) GetActiveProvider() string {
	if c.ActiveProvider != "" {
		return c.ActiveProvider
	}
	return "gemini"
}

// GetActiveKey returns the API key for the active provider. Ollama does
// not require one.
func (c *APIConfig) GetActiveKey() string {
	switch c.GetActiveProvider() {
	case "gemini":
		return c.GeminiKey
	}
	return ""
}

// RetryConfig holds retry settings for API calls.
type RetryConfig struct {
	MaxRetries  int           `yaml:"max_retries"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
}

// ModelConfig holds model-related settings.
type ModelConfig struct {
	Name            string  `yaml:"name"`
	Temperature     float32 `yaml:"temperature"`
	MaxOutputTokens int32   `yaml:"max_output_tokens"`
}

// ToolsConfig holds tool-related settings.
type ToolsConfig struct {
	BashTimeout time.Duration `yaml:"bash_timeout"`
	// Additional allowed directories besides the workspace root.
	AllowedDirs []string `yaml:"allowed_dirs"`
	// First-token whitelist for shell commands that may auto-execute.
	SafeCommands []string `yaml:"safe_commands"`
	// Skip permission prompts for whitelisted shell commands.
	AutoApproveSafe bool `yaml:"auto_approve_safe"`
}

// PermissionConfig holds permission gate settings.
type PermissionConfig struct {
	DefaultPolicy string            `yaml:"default_policy"` // "allow", "ask", "deny"
	Rules         map[string]string `yaml:"rules"`          // per-tool overrides
}

// ExplorationConfig holds the exploration guard settings.
type ExplorationConfig struct {
	Enabled bool `yaml:"enabled"`
}

// CheckpointConfig holds git checkpoint settings.
type CheckpointConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SessionConfig holds conversation persistence settings.
type SessionConfig struct {
	AutoSave   bool `yaml:"auto_save"`
	MaxHistory int  `yaml:"max_history"`
}

// PlanConfig holds plan mode settings.
type PlanConfig struct {
	RequireApproval    bool `yaml:"require_approval"`
	AbortOnStepFailure bool `yaml:"abort_on_step_failure"`
	// Switch to plan mode automatically when a request looks complex.
	AutoPlan bool `yaml:"auto_plan"`
	// Complexity score (0.0-1.0) at which auto-plan triggers.
	ComplexityThreshold float64 `yaml:"complexity_threshold"`
}

// WatcherConfig holds file watcher settings.
type WatcherConfig struct {
	Enabled bool `yaml:"enabled"`
}

// UIConfig holds terminal rendering settings.
type UIConfig struct {
	MarkdownRendering bool `yaml:"markdown_rendering"`
	SyntaxHighlight   bool `yaml:"syntax_highlight"`
	ShowToolCalls     bool `yaml:"show_tool_calls"`
	Spinner           bool `yaml:"spinner"`
}

// LoggingConfig holds file logging settings.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Dir     string `yaml:"dir,omitempty"`
}
