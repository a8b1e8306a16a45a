package model

import (
	"context"

	"github.com/hupe1980/wingman/core"
)

// Request captures the normalized model input produced by the engine.
type Request struct {
	Instructions string         `json:"instructions"` // System prompt
	Contents     []core.Content `json:"contents"`     // Conversation history plus the new user turn
	Stream       bool           `json:"stream,omitempty"`
	// APIKey is resolved by the engine right before the call. It may be
	// core.NoCredential when none is configured.
	APIKey string `json:"-"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
// Partial chunks carry only the new text; the final chunk carries the whole text.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "google", "ollama"
}

// Model is the minimal interface required by the engine to drive generation.
// Both channels are closed when generation ends; at most one error is sent.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Descriptor identifies a concrete model and the knobs used to build it.
type Descriptor struct {
	Provider    string
	ID          string
	BaseURL     string // Endpoint override; empty means the provider default
	Temperature float64
	MaxTokens   int64
}

// String renders provider/id.
func (d Descriptor) String() string { return d.Provider + "/" + d.ID }

// UsableKey reports whether key is a real credential (not empty, not the sentinel).
func UsableKey(key string) bool {
	return key != "" && key != core.NoCredential
}

// Emit sends resp on out unless ctx is done first. It reports whether the
// response was delivered.
func Emit(ctx context.Context, out chan<- Response, resp Response) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- resp:
		return true
	}
}

// PartialText builds a partial assistant text chunk.
func PartialText(text string) Response {
	return Response{Partial: true, Content: core.NewTextContent(core.RoleAssistant, text)}
}

// FinalText builds the final assistant chunk carrying the aggregated text.
func FinalText(text, finishReason string) Response {
	if finishReason == "" {
		finishReason = "stop"
	}
	return Response{Content: core.NewTextContent(core.RoleAssistant, text), FinishReason: finishReason}
}
