// Package setup is the first-run configuration wizard. It collects
// provider credentials interactively and writes the config file.
package setup

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/danib549/gofer/internal/config"
)

const welcomeMessage = `
Welcome to gofer.

gofer is a terminal coding assistant:
  - read, create, and edit files
  - run shell commands
  - search your project (glob, grep, tree)

Choose an AI provider to get started.
`

const providerMessage = `Providers:

  [1] Gemini (API key)   Get a key at https://aistudio.google.com/apikey
  [2] Ollama (local)     Runs models on your own machine, no key needed
`

// RunWizard walks the user through provider selection and writes the
// resulting configuration. Existing settings are preserved where the
// wizard does not touch them.
func RunWizard() error {
	cfg, err := config.Load()
	if err != nil {
		cfg = config.DefaultConfig()
	}

	fmt.Print(welcomeMessage)
	fmt.Print(providerMessage)

	reader := bufio.NewReader(os.Stdin)
	choice := prompt(reader, "Provider [1/2]: ")

	switch choice {
	case "2":
		if err := configureOllama(reader, cfg); err != nil {
			return err
		}
	default:
		if err := configureGemini(reader, cfg); err != nil {
			return err
		}
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	fmt.Printf("\nConfiguration written to %s\n\n", config.GetConfigPath())
	return nil
}

func configureGemini(reader *bufio.Reader, cfg *config.Config) error {
	key := prompt(reader, "Gemini API key: ")
	if key == "" {
		return fmt.Errorf("no API key entered")
	}
	if !strings.HasPrefix(key, "AIza") {
		fmt.Println("Warning: Gemini keys normally start with \"AIza\"; saving it anyway.")
	}

	cfg.API.GeminiKey = key
	cfg.API.ActiveProvider = "gemini"
	return nil
}

func configureOllama(reader *bufio.Reader, cfg *config.Config) error {
	baseURL := prompt(reader, "Ollama URL [http://localhost:11434]: ")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid Ollama URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := api.NewClient(parsed, &http.Client{Timeout: 5 * time.Second})
	models, err := client.List(ctx)
	if err != nil {
		fmt.Printf("Warning: could not reach Ollama at %s (%v); saving the URL anyway.\n", baseURL, err)
	} else {
		fmt.Printf("Connected. %d model(s) available locally.\n", len(models.Models))
		if len(models.Models) > 0 {
			name := prompt(reader, fmt.Sprintf("Model [%s]: ", models.Models[0].Name))
			if name == "" {
				name = models.Models[0].Name
			}
			cfg.Model.Name = name
		}
	}

	cfg.API.OllamaBaseURL = baseURL
	cfg.API.ActiveProvider = "ollama"
	return nil
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}
