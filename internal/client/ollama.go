package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
	"google.golang.org/genai"

	"github.com/danib549/gofer/internal/logging"
)

// OllamaConfig holds configuration for the Ollama API client.
type OllamaConfig struct {
	BaseURL     string // default: "http://localhost:11434"
	Model       string // e.g. "llama3.2", "qwen2.5-coder"
	Temperature float32
	MaxTokens   int32
	HTTPTimeout time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

// OllamaClient implements Client for a local or remote Ollama server.
type OllamaClient struct {
	client            *api.Client
	config            OllamaConfig
	tools             []*genai.Tool
	systemInstruction string
	mu                sync.RWMutex
}

// NewOllamaClient creates an Ollama API client.
func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 8192
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 120 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 1 * time.Second
	}

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid BaseURL: %w", err)
	}
	if baseURL.Scheme == "http" {
		host := baseURL.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			logging.Warn("Ollama connection uses unencrypted HTTP to remote host", "host", host)
		}
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	return &OllamaClient{
		client: api.NewClient(baseURL, httpClient),
		config: cfg,
	}, nil
}

// SetSystemInstruction sets the system-level instruction for the model.
func (c *OllamaClient) SetSystemInstruction(instruction string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.systemInstruction = instruction
}

// SetTools sets the tools available for function calling.
func (c *OllamaClient) SetTools(tools []*genai.Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools = tools
}

// SendMessage sends a message and returns a streaming response.
func (c *OllamaClient) SendMessage(ctx context.Context, message string) (*StreamingResponse, error) {
	return c.SendMessageWithHistory(ctx, nil, message)
}

// SendMessageWithHistory sends a message with conversation history.
func (c *OllamaClient) SendMessageWithHistory(ctx context.Context, history []*genai.Content, message string) (*StreamingResponse, error) {
	messages := c.convertHistoryToMessages(history)
	if message != "" {
		messages = append(messages, api.Message{Role: "user", Content: message})
	}
	return c.streamChat(ctx, c.buildRequest(messages))
}

// SendFunctionResponse sends function call results back to the model.
func (c *OllamaClient) SendFunctionResponse(ctx context.Context, history []*genai.Content, results []*genai.FunctionResponse) (*StreamingResponse, error) {
	messages := c.convertHistoryToMessages(history)
	for _, result := range results {
		messages = append(messages, api.Message{
			Role:       "tool",
			Content:    functionResponseText(result),
			ToolName:   result.Name,
			ToolCallID: result.ID,
		})
	}
	return c.streamChat(ctx, c.buildRequest(messages))
}

func (c *OllamaClient) buildRequest(messages []api.Message) *api.ChatRequest {
	req := &api.ChatRequest{
		Model:    c.config.Model,
		Messages: messages,
		Stream:   Ptr(true),
		Options: map[string]interface{}{
			"num_predict": c.config.MaxTokens,
		},
	}
	if c.config.Temperature > 0 {
		req.Options["temperature"] = c.config.Temperature
	}

	c.mu.RLock()
	if len(c.tools) > 0 {
		req.Tools = c.convertToolsToOllama()
	}
	c.mu.RUnlock()
	return req
}

// streamChat performs a streaming chat request with retries.
func (c *OllamaClient) streamChat(ctx context.Context, req *api.ChatRequest) (*StreamingResponse, error) {
	var lastErr error
	maxDelay := 30 * time.Second

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := CalculateBackoff(c.config.RetryDelay, attempt-1, maxDelay)
			logging.Info("retrying Ollama request", "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		response, err := c.doStreamChat(ctx, req)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return nil, c.wrapOllamaError(err)
		}
		logging.Warn("Ollama request failed, will retry", "attempt", attempt, "error", err)
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.config.MaxRetries, c.wrapOllamaError(lastErr))
}

// doStreamChat performs a single streaming chat request.
func (c *OllamaClient) doStreamChat(ctx context.Context, req *api.ChatRequest) (*StreamingResponse, error) {
	chunks := make(chan ResponseChunk, 10)
	done := make(chan struct{})

	go func() {
		defer close(chunks)
		defer close(done)

		err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			chunk := ResponseChunk{}

			if resp.Message.Content != "" {
				chunk.Text = resp.Message.Content
			}
			for i, tc := range resp.Message.ToolCalls {
				chunk.FunctionCalls = append(chunk.FunctionCalls, convertOllamaToolCall(tc, i))
			}
			if resp.Done {
				chunk.Done = true
				chunk.FinishReason = genai.FinishReasonStop
				chunk.InputTokens = resp.PromptEvalCount
				chunk.OutputTokens = resp.EvalCount
			}

			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})

		if err != nil {
			select {
			case chunks <- ResponseChunk{Error: c.wrapOllamaError(err), Done: true}:
			case <-ctx.Done():
			}
		}
	}()

	return &StreamingResponse{Chunks: chunks, Done: done}, nil
}

// convertHistoryToMessages converts genai history to Ollama messages.
func (c *OllamaClient) convertHistoryToMessages(history []*genai.Content) []api.Message {
	messages := make([]api.Message, 0, len(history)+2)

	c.mu.RLock()
	sysInstruction := c.systemInstruction
	c.mu.RUnlock()
	if sysInstruction != "" {
		messages = append(messages, api.Message{Role: "system", Content: sysInstruction})
	}

	for _, content := range history {
		if content == nil {
			continue
		}

		msg := api.Message{}
		switch content.Role {
		case genai.RoleUser:
			msg.Role = "user"
		case genai.RoleModel:
			msg.Role = "assistant"
		default:
			msg.Role = string(content.Role)
		}

		var textParts []string
		for _, part := range content.Parts {
			if part.Text != "" {
				textParts = append(textParts, part.Text)
			}
			if part.FunctionCall != nil {
				msg.ToolCalls = append(msg.ToolCalls, convertGenaiToolCall(part.FunctionCall))
			}
			// Function responses replayed from history become tool
			// messages of their own.
			if part.FunctionResponse != nil {
				messages = append(messages, api.Message{
					Role:       "tool",
					Content:    functionResponseText(part.FunctionResponse),
					ToolName:   part.FunctionResponse.Name,
					ToolCallID: part.FunctionResponse.ID,
				})
			}
		}
		msg.Content = strings.Join(textParts, "\n")

		if msg.Content != "" || len(msg.ToolCalls) > 0 {
			messages = append(messages, msg)
		}
	}
	return messages
}

func functionResponseText(result *genai.FunctionResponse) string {
	if result.Response == nil {
		return "Operation completed"
	}
	if errStr, ok := result.Response["error"].(string); ok && errStr != "" {
		return "Error: " + errStr
	}
	if val, ok := result.Response["content"].(string); ok && val != "" {
		return val
	}
	if data, ok := result.Response["data"]; ok {
		if jsonBytes, err := json.Marshal(data); err == nil {
			return string(jsonBytes)
		}
	}
	return "Operation completed"
}

// convertToolsToOllama converts genai tools to the Ollama format.
func (c *OllamaClient) convertToolsToOllama() []api.Tool {
	var tools []api.Tool
	for _, tool := range c.tools {
		for _, decl := range tool.FunctionDeclarations {
			params := api.ToolFunctionParameters{
				Type:       "object",
				Properties: api.NewToolPropertiesMap(),
			}
			if decl.Parameters != nil {
				if len(decl.Parameters.Required) > 0 {
					params.Required = decl.Parameters.Required
				}
				for name, propSchema := range decl.Parameters.Properties {
					prop := api.ToolProperty{
						Description: propSchema.Description,
					}
					if propSchema.Type != "" {
						prop.Type = api.PropertyType{strings.ToLower(string(propSchema.Type))}
					}
					params.Properties.Set(name, prop)
				}
			}
			tools = append(tools, api.Tool{
				Type: "function",
				Function: api.ToolFunction{
					Name:        decl.Name,
					Description: decl.Description,
					Parameters:  params,
				},
			})
		}
	}
	return tools
}

func convertOllamaToolCall(tc api.ToolCall, index int) *genai.FunctionCall {
	id := tc.ID
	if id == "" {
		id = fmt.Sprintf("call_%d", index)
	}
	return &genai.FunctionCall{
		ID:   id,
		Name: tc.Function.Name,
		Args: tc.Function.Arguments.ToMap(),
	}
}

func convertGenaiToolCall(fc *genai.FunctionCall) api.ToolCall {
	args := api.NewToolCallFunctionArguments()
	for k, v := range fc.Args {
		args.Set(k, v)
	}
	return api.ToolCall{
		ID: fc.ID,
		Function: api.ToolCallFunction{
			Name:      fc.Name,
			Arguments: args,
		},
	}
}

// GetModel returns the model name.
func (c *OllamaClient) GetModel() string {
	return c.config.Model
}

// SetModel changes the model for this client.
func (c *OllamaClient) SetModel(modelName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.config.Model = modelName
}

// Close closes the client connection.
func (c *OllamaClient) Close() error {
	return nil
}

// ListModels returns the models installed on the Ollama server.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, c.wrapOllamaError(err)
	}
	models := make([]string, 0, len(resp.Models))
	for _, model := range resp.Models {
		models = append(models, model.Name)
	}
	return models, nil
}

// Healthcheck verifies that the Ollama server is reachable.
func (c *OllamaClient) Healthcheck(ctx context.Context) error {
	if _, err := c.client.List(ctx); err != nil {
		return c.wrapOllamaError(err)
	}
	return nil
}

// wrapOllamaError rewrites common failures with actionable messages.
func (c *OllamaClient) wrapOllamaError(err error) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return fmt.Errorf("Ollama server is not running (start it with 'ollama serve'): %w", err)
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return fmt.Errorf("Ollama request timed out (first request loads the model and can be slow): %w", err)
	}

	var statusErr *api.StatusError
	notFound := errors.As(err, &statusErr) && statusErr.StatusCode == 404
	if notFound || (strings.Contains(errStr, "model") && strings.Contains(errStr, "not found")) {
		return fmt.Errorf("model %q is not installed (run 'ollama pull %s'): %w", c.config.Model, c.config.Model, err)
	}
	return err
}
