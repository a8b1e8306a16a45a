// Package gemini provides a model wrapper for the Google Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/wingman/core"
	"github.com/hupe1980/wingman/model"
	"google.golang.org/genai"
)

// Options configures the Gemini model adapter.
type Options struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int32
	BaseURL         string
	// APIKey is used when the request carries no usable key. Empty falls
	// back to the GOOGLE_API_KEY / GEMINI_API_KEY environment variables.
	APIKey string
}

// Model wraps the genai Models service behind model.Model. A client is
// created per request because the API key is bound at client creation.
type Model struct {
	opts Options
}

// NewModel creates a new Gemini model.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:           "gemini-2.5-flash",
		Temperature:     0.2,
		MaxOutputTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{opts: opts}
}

func (m *Model) newClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	cfg := &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  m.opts.APIKey,
	}
	if model.UsableKey(apiKey) {
		cfg.APIKey = apiKey
	}
	if m.opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: m.opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}

// Generate streams (or collects) a completion from Gemini.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		client, err := m.newClient(ctx, req.APIKey)
		if err != nil {
			errCh <- err
			return
		}

		config := &genai.GenerateContentConfig{
			Temperature:     genai.Ptr(float32(m.opts.Temperature)),
			MaxOutputTokens: m.opts.MaxOutputTokens,
		}
		if system := systemInstruction(req); system != "" {
			config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
		}

		var text strings.Builder
		finishReason := ""
		for resp, err := range client.Models.GenerateContentStream(ctx, m.opts.Model, buildContents(req.Contents), config) {
			if err != nil {
				errCh <- fmt.Errorf("gemini streaming error: %w", err)
				return
			}
			delta, reason := chunkText(resp)
			if reason != "" {
				finishReason = reason
			}
			if delta == "" {
				continue
			}
			text.WriteString(delta)
			if req.Stream && !model.Emit(ctx, out, model.PartialText(delta)) {
				errCh <- ctx.Err()
				return
			}
		}

		model.Emit(ctx, out, model.FinalText(text.String(), strings.ToLower(finishReason)))
	}()

	return out, errCh
}

// chunkText extracts the visible text of the first candidate, skipping
// thought parts.
func chunkText(resp *genai.GenerateContentResponse) (string, string) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ""
	}
	candidate := resp.Candidates[0]
	var sb strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), string(candidate.FinishReason)
}

func systemInstruction(req model.Request) string {
	parts := []string{}
	if req.Instructions != "" {
		parts = append(parts, req.Instructions)
	}
	for _, c := range req.Contents {
		if c.Role == core.RoleSystem {
			if t := c.Text(); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, "\n\n")
}

// buildContents maps conversation turns to genai contents. Gemini names the
// assistant role "model".
func buildContents(contents []core.Content) []*genai.Content {
	var result []*genai.Content
	for _, c := range contents {
		text := c.Text()
		if c.Role == core.RoleSystem || text == "" {
			continue
		}
		if c.Role == core.RoleAssistant {
			result = append(result, genai.NewContentFromText(text, genai.RoleModel))
			continue
		}
		result = append(result, genai.NewContentFromText(text, genai.RoleUser))
	}
	return result
}

// Info returns metadata describing this Gemini model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "google"}
}
