// Package ollama provides a model wrapper for Ollama and Ollama-compatible
// servers.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hupe1980/wingman/core"
	"github.com/hupe1980/wingman/model"
	"github.com/ollama/ollama/api"
)

// DefaultBaseURL is the local Ollama endpoint.
const DefaultBaseURL = core.DefaultBackendURL

// Options configures the Ollama model adapter.
type Options struct {
	Model       string
	Temperature float64
	BaseURL     string
	// APIKey is sent as a bearer token when set. A usable per-request key
	// takes precedence.
	APIKey string
}

// Model wraps the Ollama chat API behind model.Model.
type Model struct {
	client *api.Client
	opts   Options
}

type keyCtxKey struct{}

// authTransport adds an Authorization header when a key is available.
type authTransport struct {
	base   http.RoundTripper
	apiKey string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	key := t.apiKey
	if k, ok := req.Context().Value(keyCtxKey{}).(string); ok {
		key = k
	}
	if key == "" {
		return t.base.RoundTrip(req)
	}
	reqClone := req.Clone(req.Context())
	reqClone.Header.Set("Authorization", "Bearer "+key)
	return t.base.RoundTrip(reqClone)
}

// NewModel creates a new Ollama model. An invalid base URL is reported here
// rather than at generation time.
func NewModel(optFns ...func(o *Options)) (*Model, error) {
	opts := Options{
		BaseURL:     DefaultBaseURL,
		Temperature: 0.2,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	baseURL, err := url.Parse(opts.BaseURL)
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", opts.BaseURL)
	}

	httpClient := &http.Client{
		Transport: &authTransport{base: http.DefaultTransport, apiKey: opts.APIKey},
	}

	return &Model{client: api.NewClient(baseURL, httpClient), opts: opts}, nil
}

// Generate streams a chat completion from the Ollama server.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		reqCtx := ctx
		if model.UsableKey(req.APIKey) {
			reqCtx = context.WithValue(ctx, keyCtxKey{}, req.APIKey)
		}

		stream := req.Stream
		chatReq := &api.ChatRequest{
			Model:    m.opts.Model,
			Messages: buildMessages(req),
			Stream:   &stream,
			Options:  map[string]any{"temperature": m.opts.Temperature},
		}

		var text strings.Builder
		doneReason := ""
		err := m.client.Chat(reqCtx, chatReq, func(resp api.ChatResponse) error {
			if resp.Done {
				doneReason = resp.DoneReason
			}
			delta := resp.Message.Content
			if delta == "" {
				return nil
			}
			text.WriteString(delta)
			if req.Stream && !model.Emit(ctx, out, model.PartialText(delta)) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			errCh <- fmt.Errorf("ollama chat error: %w", err)
			return
		}

		model.Emit(ctx, out, model.FinalText(text.String(), doneReason))
	}()

	return out, errCh
}

func buildMessages(req model.Request) []api.Message {
	var messages []api.Message
	if req.Instructions != "" {
		messages = append(messages, api.Message{Role: core.RoleSystem, Content: req.Instructions})
	}
	for _, c := range req.Contents {
		if text := c.Text(); text != "" {
			messages = append(messages, api.Message{Role: c.Role, Content: text})
		}
	}
	return messages
}

// Info returns metadata describing this Ollama model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "ollama"}
}
