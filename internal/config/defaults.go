package config

import "time"

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-2.0-flash"

	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultHTTPTimeout = 120 * time.Second

	DefaultBashTimeout = 30 * time.Second

	DefaultMaxSessionHistory = 100
)

// DefaultConfig returns the configuration used before any file or
// environment overrides are applied.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			ActiveProvider: "gemini",
			OllamaBaseURL:  "http://localhost:11434",
			Retry: RetryConfig{
				MaxRetries:  DefaultMaxRetries,
				RetryDelay:  DefaultRetryDelay,
				HTTPTimeout: DefaultHTTPTimeout,
			},
		},
		Model: ModelConfig{
			Name:            DefaultModel,
			Temperature:     0.2,
			MaxOutputTokens: 8192,
		},
		Tools: ToolsConfig{
			BashTimeout:     DefaultBashTimeout,
			AutoApproveSafe: true,
		},
		Permission: PermissionConfig{
			DefaultPolicy: "ask",
		},
		Exploration: ExplorationConfig{
			Enabled: true,
		},
		Checkpoint: CheckpointConfig{
			Enabled: true,
		},
		Session: SessionConfig{
			AutoSave:   true,
			MaxHistory: DefaultMaxSessionHistory,
		},
		Plan: PlanConfig{
			RequireApproval:     true,
			AbortOnStepFailure:  true,
			AutoPlan:            true,
			ComplexityThreshold: 0.6,
		},
		Watcher: WatcherConfig{
			Enabled: true,
		},
		UI: UIConfig{
			MarkdownRendering: true,
			SyntaxHighlight:   true,
			ShowToolCalls:     true,
			Spinner:           true,
		},
		Logging: LoggingConfig{
			Enabled: false,
			Level:   "info",
		},
	}
}
