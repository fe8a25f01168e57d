// Package client provides LLM provider clients behind a common
// streaming interface.
package client

import (
	"context"

	"google.golang.org/genai"
)

// ModelInfo describes an available model.
type ModelInfo struct {
	ID          string
	Name        string
	Description string
	Provider    string // "gemini" or "ollama"
}

// AvailableModels is the list of supported models across providers.
var AvailableModels = []ModelInfo{
	{
		ID:          "gemini-2.0-flash",
		Name:        "Gemini 2.0 Flash",
		Description: "Fast general-purpose model",
		Provider:    "gemini",
	},
	{
		ID:          "gemini-2.5-flash",
		Name:        "Gemini 2.5 Flash",
		Description: "Fast model with improved reasoning",
		Provider:    "gemini",
	},
	{
		ID:          "gemini-2.5-pro",
		Name:        "Gemini 2.5 Pro",
		Description: "Most capable Gemini model",
		Provider:    "gemini",
	},
	{
		ID:          "ollama",
		Name:        "Ollama (Local)",
		Description: "Local LLM. Use --model <name> from 'ollama list'",
		Provider:    "ollama",
	},
}

// GetModelInfo returns information about a specific model.
func GetModelInfo(modelID string) (ModelInfo, bool) {
	for _, m := range AvailableModels {
		if m.ID == modelID {
			return m, true
		}
	}
	return ModelInfo{}, false
}

// Client defines the interface for AI model interactions.
type Client interface {
	// SendMessage sends a message and returns a streaming response.
	SendMessage(ctx context.Context, message string) (*StreamingResponse, error)

	// SendMessageWithHistory sends a message with conversation history.
	SendMessageWithHistory(ctx context.Context, history []*genai.Content, message string) (*StreamingResponse, error)

	// SendFunctionResponse sends function call results back to the model.
	SendFunctionResponse(ctx context.Context, history []*genai.Content, results []*genai.FunctionResponse) (*StreamingResponse, error)

	// SetTools sets the tools available for the model to use.
	SetTools(tools []*genai.Tool)

	// SetSystemInstruction sets the system-level instruction for the
	// model, passed via the API's native system parameter rather than
	// injected into the conversation history.
	SetSystemInstruction(instruction string)

	// GetModel returns the model name.
	GetModel() string

	// SetModel changes the model for this client.
	SetModel(modelName string)

	// Close closes the client connection.
	Close() error
}

// StreamingResponse represents a streaming response from the model.
type StreamingResponse struct {
	// Chunks receives response chunks.
	Chunks <-chan ResponseChunk

	// Done is closed when the response is complete.
	Done <-chan struct{}
}

// ResponseChunk is a single chunk in a streaming response.
type ResponseChunk struct {
	Text          string
	FunctionCalls []*genai.FunctionCall

	// Parts are the original response parts, preserved so they can be
	// replayed into history verbatim.
	Parts []*genai.Part

	Error        error
	Done         bool
	FinishReason genai.FinishReason

	InputTokens  int
	OutputTokens int
}

// Response is a complete, collected model response.
type Response struct {
	Text          string
	FunctionCalls []*genai.FunctionCall
	Parts         []*genai.Part
	FinishReason  genai.FinishReason
	InputTokens   int
	OutputTokens  int
}

// Collect drains a streaming response into a single Response.
func (sr *StreamingResponse) Collect() (*Response, error) {
	resp := &Response{}

	for chunk := range sr.Chunks {
		if chunk.Error != nil {
			return nil, chunk.Error
		}

		resp.Text += chunk.Text
		resp.FunctionCalls = append(resp.FunctionCalls, chunk.FunctionCalls...)
		resp.Parts = append(resp.Parts, chunk.Parts...)

		if chunk.Done {
			resp.FinishReason = chunk.FinishReason
		}
		if chunk.InputTokens > 0 {
			resp.InputTokens = chunk.InputTokens
		}
		if chunk.OutputTokens > 0 {
			resp.OutputTokens += chunk.OutputTokens
		}
	}
	return resp, nil
}

// Ptr returns a pointer to the given value.
func Ptr[T any](v T) *T {
	return &v
}
