package chat

import (
	"strings"
	"time"

	"google.golang.org/genai"
)

// SessionState is the on-disk form of a session.
type SessionState struct {
	ID                string              `json:"id"`
	StartTime         time.Time           `json:"start_time"`
	LastActive        time.Time           `json:"last_active"`
	WorkDir           string              `json:"work_dir,omitempty"`
	History           []SerializedContent `json:"history"`
	TokenCounts       []int               `json:"token_counts,omitempty"`
	TotalTokens       int                 `json:"total_tokens"`
	Summary           string              `json:"summary,omitempty"`
	SystemInstruction string              `json:"system_instruction,omitempty"`
}

// SerializedContent is one conversation turn in serializable form.
type SerializedContent struct {
	Role  string           `json:"role"`
	Parts []SerializedPart `json:"parts"`
}

// SerializedPart is one content part. Type is "text",
// "function_call", or "function_response".
type SerializedPart struct {
	Type             string          `json:"type"`
	Text             string          `json:"text,omitempty"`
	FunctionCall     *SerializedFunc `json:"function_call,omitempty"`
	FunctionResp     *SerializedFunc `json:"function_response,omitempty"`
	Thought          bool            `json:"thought,omitempty"`
	ThoughtSignature []byte          `json:"thought_signature,omitempty"`
}

// SerializedFunc holds a function call or its response.
type SerializedFunc struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Args     map[string]any `json:"args,omitempty"`
	Response map[string]any `json:"response,omitempty"`
}

// SessionInfo summarizes a saved session for listings.
type SessionInfo struct {
	ID           string    `json:"id"`
	StartTime    time.Time `json:"start_time"`
	LastActive   time.Time `json:"last_active"`
	Summary      string    `json:"summary"`
	MessageCount int       `json:"message_count"`
	WorkDir      string    `json:"work_dir,omitempty"`
}

// SerializeContent converts genai content to its serializable form.
func SerializeContent(content *genai.Content) SerializedContent {
	parts := make([]SerializedPart, len(content.Parts))
	for i, part := range content.Parts {
		parts[i] = serializePart(part)
	}
	return SerializedContent{
		Role:  string(content.Role),
		Parts: parts,
	}
}

func serializePart(part *genai.Part) SerializedPart {
	sp := SerializedPart{
		Thought:          part.Thought,
		ThoughtSignature: part.ThoughtSignature,
	}

	switch {
	case part.FunctionCall != nil:
		sp.Type = "function_call"
		sp.FunctionCall = &SerializedFunc{
			ID:   part.FunctionCall.ID,
			Name: part.FunctionCall.Name,
			Args: part.FunctionCall.Args,
		}
	case part.FunctionResponse != nil:
		sp.Type = "function_response"
		sp.FunctionResp = &SerializedFunc{
			ID:       part.FunctionResponse.ID,
			Name:     part.FunctionResponse.Name,
			Response: part.FunctionResponse.Response,
		}
	default:
		sp.Type = "text"
		sp.Text = part.Text
		if sp.Text == "" {
			// The API rejects fully empty text parts.
			sp.Text = " "
		}
	}
	return sp
}

// DeserializeContent converts serialized content back to genai form.
func DeserializeContent(sc SerializedContent) (*genai.Content, error) {
	parts := make([]*genai.Part, len(sc.Parts))
	for i, sp := range sc.Parts {
		part, err := deserializePart(sp)
		if err != nil {
			return nil, err
		}
		parts[i] = part
	}
	return &genai.Content{
		Role:  sc.Role,
		Parts: parts,
	}, nil
}

func deserializePart(sp SerializedPart) (*genai.Part, error) {
	var part *genai.Part

	switch sp.Type {
	case "function_call":
		if sp.FunctionCall == nil {
			part = genai.NewPartFromText(" ")
			break
		}
		part = &genai.Part{
			FunctionCall: &genai.FunctionCall{
				ID:   sp.FunctionCall.ID,
				Name: sp.FunctionCall.Name,
				Args: sp.FunctionCall.Args,
			},
		}
	case "function_response":
		if sp.FunctionResp == nil {
			part = genai.NewPartFromText(" ")
			break
		}
		part = genai.NewPartFromFunctionResponse(sp.FunctionResp.Name, sp.FunctionResp.Response)
		part.FunctionResponse.ID = sp.FunctionResp.ID
	default:
		text := sp.Text
		if text == "" {
			text = " "
		}
		part = genai.NewPartFromText(text)
	}

	part.Thought = sp.Thought
	part.ThoughtSignature = sp.ThoughtSignature
	return part, nil
}

// GenerateSummary derives a short summary from the first substantive
// user message.
func (s *SessionState) GenerateSummary() string {
	for i, content := range s.History {
		if i < 2 {
			continue
		}
		if content.Role != "user" {
			continue
		}
		for _, part := range content.Parts {
			if part.Type == "text" && strings.TrimSpace(part.Text) != "" {
				text := part.Text
				if len(text) > 100 {
					return text[:97] + "..."
				}
				return text
			}
		}
	}
	return ""
}
