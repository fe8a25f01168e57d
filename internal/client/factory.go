package client

import (
	"context"
	"strings"

	"github.com/danib549/gofer/internal/config"
	"github.com/danib549/gofer/internal/logging"
)

// NewClient creates a client for the configured provider. This is the
// main entry point for client creation.
func NewClient(ctx context.Context, cfg *config.Config, modelID string) (Client, error) {
	if modelID == "" {
		modelID = cfg.Model.Name
	}

	provider := cfg.API.GetActiveProvider()
	logging.Debug("creating client", "provider", provider, "model", modelID)

	switch provider {
	case "ollama":
		return newOllamaClient(cfg, modelID)
	case "gemini":
		return NewGeminiClient(ctx, cfg)
	}

	// Common open-source model prefixes run via Ollama.
	ollamaPrefixes := []string{
		"llama", "qwen", "deepseek", "codellama", "mistral", "phi",
		"gemma", "starcoder", "tinyllama",
	}
	modelLower := strings.ToLower(modelID)
	for _, prefix := range ollamaPrefixes {
		if strings.HasPrefix(modelLower, prefix) {
			return newOllamaClient(cfg, modelID)
		}
	}

	return NewGeminiClient(ctx, cfg)
}

func newOllamaClient(cfg *config.Config, modelID string) (Client, error) {
	return NewOllamaClient(OllamaConfig{
		BaseURL:     cfg.API.OllamaBaseURL,
		Model:       modelID,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxOutputTokens,
		HTTPTimeout: cfg.API.Retry.HTTPTimeout,
		MaxRetries:  cfg.API.Retry.MaxRetries,
		RetryDelay:  cfg.API.Retry.RetryDelay,
	})
}
