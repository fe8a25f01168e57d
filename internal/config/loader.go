package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := getConfigPath()
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			// Config file is optional.
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	loadFromEnv(cfg)
	return cfg, nil
}

// getConfigPath returns the path to the config file.
func getConfigPath() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "gofer", "config.yaml")
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", "gofer", "config.yaml")
}

// GetConfigPath returns the path to the config file.
func GetConfigPath() string {
	return getConfigPath()
}

// loadFromFile loads configuration from a YAML file. Environment
// variables in the file are expanded before parsing.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadFromEnv applies environment variable overrides.
func loadFromEnv(cfg *Config) {
	if apiKey := os.Getenv("GOFER_API_KEY"); apiKey != "" {
		cfg.API.GeminiKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		cfg.API.GeminiKey = apiKey
	}

	if model := os.Getenv("GOFER_MODEL"); model != "" {
		cfg.Model.Name = model
	}
	if provider := os.Getenv("GOFER_PROVIDER"); provider != "" {
		cfg.API.ActiveProvider = provider
	}
	if baseURL := os.Getenv("OLLAMA_HOST"); baseURL != "" {
		cfg.API.OllamaBaseURL = baseURL
	}
}

// ConfigError is a configuration validation error.
type ConfigError string

func (e ConfigError) Error() string {
	return string(e)
}

// ErrMissingAuth is returned when no API credentials are configured.
const ErrMissingAuth ConfigError = "missing authentication: set GEMINI_API_KEY environment variable or add gemini_key to the config file"

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.API.GetActiveProvider() == "gemini" && c.API.GetActiveKey() == "" {
		return ErrMissingAuth
	}
	return nil
}

// Save writes the configuration to the config file. The file may
// contain API keys, so it is written with owner-only permissions.
func (c *Config) Save() error {
	configPath := getConfigPath()
	if configPath == "" {
		return fmt.Errorf("could not determine config path")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := configPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmpPath, configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
