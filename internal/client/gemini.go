package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/danib549/gofer/internal/config"
	"github.com/danib549/gofer/internal/logging"
)

// GeminiClient wraps the Google Gemini API.
type GeminiClient struct {
	client            *genai.Client
	model             string
	config            *genai.GenerateContentConfig
	tools             []*genai.Tool
	maxRetries        int
	retryDelay        time.Duration
	systemInstruction string
}

// NewGeminiClient creates a Gemini API client.
func NewGeminiClient(ctx context.Context, cfg *config.Config) (Client, error) {
	apiKey := cfg.API.GeminiKey
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key required: get one at https://aistudio.google.com/apikey and set GEMINI_API_KEY")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	maxRetries := cfg.API.Retry.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	retryDelay := cfg.API.Retry.RetryDelay
	if retryDelay == 0 {
		retryDelay = 1 * time.Second
	}

	return &GeminiClient{
		client: client,
		model:  cfg.Model.Name,
		config: &genai.GenerateContentConfig{
			Temperature:     Ptr(cfg.Model.Temperature),
			MaxOutputTokens: cfg.Model.MaxOutputTokens,
		},
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}, nil
}

// SetSystemInstruction sets the system-level instruction for the model.
func (c *GeminiClient) SetSystemInstruction(instruction string) {
	c.systemInstruction = instruction
}

// SetTools sets the tools available for function calling.
func (c *GeminiClient) SetTools(tools []*genai.Tool) {
	c.tools = tools
}

// SendMessage sends a user message and returns a streaming response.
func (c *GeminiClient) SendMessage(ctx context.Context, message string) (*StreamingResponse, error) {
	return c.SendMessageWithHistory(ctx, nil, message)
}

// SendMessageWithHistory sends a message with conversation history.
func (c *GeminiClient) SendMessageWithHistory(ctx context.Context, history []*genai.Content, message string) (*StreamingResponse, error) {
	contents := make([]*genai.Content, len(history)+1)
	copy(contents, history)
	contents[len(contents)-1] = genai.NewContentFromText(message, genai.RoleUser)

	return c.generateContentStream(ctx, contents)
}

// SendFunctionResponse sends function call results back to the model.
func (c *GeminiClient) SendFunctionResponse(ctx context.Context, history []*genai.Content, results []*genai.FunctionResponse) (*StreamingResponse, error) {
	var parts []*genai.Part
	for _, result := range results {
		part := genai.NewPartFromFunctionResponse(result.Name, result.Response)
		part.FunctionResponse.ID = result.ID
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		parts = append(parts, genai.NewPartFromText(" "))
	}

	contents := make([]*genai.Content, len(history)+1)
	copy(contents, history)
	contents[len(contents)-1] = &genai.Content{
		Role:  genai.RoleUser,
		Parts: parts,
	}

	return c.generateContentStream(ctx, contents)
}

// sanitizeContents validates contents before sending to the API. Each
// part must have text, a function call, or a function response.
func sanitizeContents(contents []*genai.Content) []*genai.Content {
	var result []*genai.Content

	for _, content := range contents {
		if content == nil {
			continue
		}

		var validParts []*genai.Part
		for _, part := range content.Parts {
			if part == nil {
				continue
			}
			if part.FunctionCall != nil || part.FunctionResponse != nil || part.Text != "" {
				validParts = append(validParts, part)
			}
		}
		if len(validParts) == 0 {
			validParts = []*genai.Part{genai.NewPartFromText(" ")}
		}

		result = append(result, &genai.Content{
			Role:  content.Role,
			Parts: validParts,
		})
	}

	if len(result) == 0 {
		result = []*genai.Content{{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{genai.NewPartFromText(" ")},
		}}
	}
	return result
}

// generateContentStream runs a streaming request with retries.
func (c *GeminiClient) generateContentStream(ctx context.Context, contents []*genai.Content) (*StreamingResponse, error) {
	contents = sanitizeContents(contents)

	var lastErr error
	maxDelay := 30 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := CalculateBackoff(c.retryDelay, attempt-1, maxDelay)
			logging.Info("retrying Gemini request", "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		response, err := c.doGenerateContentStream(ctx, contents)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if !isRetryableError(err) {
			return nil, err
		}
		logging.Warn("Gemini request failed, will retry", "attempt", attempt, "error", err)
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// doGenerateContentStream performs a single streaming request attempt.
func (c *GeminiClient) doGenerateContentStream(ctx context.Context, contents []*genai.Content) (*StreamingResponse, error) {
	cfg := *c.config
	if c.systemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(c.systemInstruction, genai.RoleUser)
	}
	if len(c.tools) > 0 {
		cfg.Tools = c.tools
	}

	iter := c.client.Models.GenerateContentStream(ctx, c.model, contents, &cfg)

	chunks := make(chan ResponseChunk, 10)
	done := make(chan struct{})

	go func() {
		defer close(chunks)
		defer close(done)

		for resp, err := range iter {
			select {
			case <-ctx.Done():
				select {
				case chunks <- ResponseChunk{Error: ctx.Err(), Done: true}:
				default:
				}
				return
			default:
			}

			if err != nil {
				select {
				case chunks <- ResponseChunk{Error: err, Done: true}:
				case <-ctx.Done():
				}
				return
			}
			if resp == nil {
				return
			}

			chunk := processResponse(resp)
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}
			if chunk.Done {
				return
			}
		}
	}()

	return &StreamingResponse{Chunks: chunks, Done: done}, nil
}

// processResponse converts a Gemini response to a ResponseChunk.
func processResponse(resp *genai.GenerateContentResponse) ResponseChunk {
	chunk := ResponseChunk{}

	if resp.UsageMetadata != nil {
		chunk.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		chunk.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	if len(resp.Candidates) == 0 {
		chunk.Done = true
		return chunk
	}

	candidate := resp.Candidates[0]
	chunk.FinishReason = candidate.FinishReason

	if candidate.Content != nil {
		chunk.Parts = candidate.Content.Parts
		for _, part := range candidate.Content.Parts {
			if part.Text != "" && !part.Thought {
				chunk.Text += part.Text
			}
			if part.FunctionCall != nil {
				chunk.FunctionCalls = append(chunk.FunctionCalls, part.FunctionCall)
			}
		}
	}

	if candidate.FinishReason != "" {
		chunk.Done = true
	}
	return chunk
}

// GetModel returns the model name.
func (c *GeminiClient) GetModel() string {
	return c.model
}

// SetModel changes the model for this client.
func (c *GeminiClient) SetModel(modelName string) {
	c.model = modelName
}

// Close closes the client connection.
func (c *GeminiClient) Close() error {
	// The genai client has no explicit close.
	return nil
}
