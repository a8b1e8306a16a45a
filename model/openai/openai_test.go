package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hupe1980/wingman/core"
	"github.com/hupe1980/wingman/model"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(content, finish string) string {
	fr := "null"
	if finish != "" {
		fr = fmt.Sprintf("%q", finish)
	}
	return fmt.Sprintf(`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"gpt-4.1-mini","choices":[{"index":0,"delta":{"content":%q},"finish_reason":%s}]}`, content, fr)
}

type captured struct {
	auth string
	body map[string]any
}

func newStreamingServer(t *testing.T, cap *captured, chunks ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		cap.auth = r.Header.Get("Authorization")
		cap.body = map[string]any{}
		_ = json.Unmarshal(raw, &cap.body)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func newTestModel(srv *httptest.Server) *Model {
	client := openai.NewClient(
		option.WithBaseURL(srv.URL+"/v1/"),
		option.WithAPIKey("env-key"),
		option.WithMaxRetries(0),
	)
	return NewModelFromClient(&client, func(o *Options) { o.Model = "gpt-4.1-mini" })
}

func drain(respCh <-chan model.Response, errCh <-chan error) ([]model.Response, error) {
	var out []model.Response
	for r := range respCh {
		out = append(out, r)
	}
	return out, <-errCh
}

func TestModel_StreamsDeltasAndFinal(t *testing.T) {
	cap := &captured{}
	srv := newStreamingServer(t, cap, chunk("Hel", ""), chunk("lo", ""), chunk("", "stop"))
	defer srv.Close()

	m := newTestModel(srv)
	resps, err := drain(m.Generate(context.Background(), model.Request{
		Instructions: "be brief",
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, "hi")},
		Stream:       true,
		APIKey:       "sk-test",
	}))
	require.NoError(t, err)
	require.Len(t, resps, 3)
	assert.Equal(t, "Hel", resps[0].Content.Text())
	assert.Equal(t, "lo", resps[1].Content.Text())
	assert.False(t, resps[2].Partial)
	assert.Equal(t, "Hello", resps[2].Content.Text())
	assert.Equal(t, "stop", resps[2].FinishReason)

	assert.Equal(t, "Bearer sk-test", cap.auth)
	msgs, ok := cap.body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestModel_SentinelKeyKeepsClientDefault(t *testing.T) {
	cap := &captured{}
	srv := newStreamingServer(t, cap, chunk("x", "stop"))
	defer srv.Close()

	m := newTestModel(srv)
	_, err := drain(m.Generate(context.Background(), model.Request{
		Contents: []core.Content{core.NewTextContent(core.RoleUser, "hi")},
		Stream:   true,
		APIKey:   core.NoCredential,
	}))
	require.NoError(t, err)
	assert.Equal(t, "Bearer env-key", cap.auth)
}

func TestModel_StreamingError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad model","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	m := newTestModel(srv)
	resps, err := drain(m.Generate(context.Background(), model.Request{
		Contents: []core.Content{core.NewTextContent(core.RoleUser, "hi")},
		Stream:   true,
	}))
	assert.Empty(t, resps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai streaming error")
}

func TestBuildMessages_Roles(t *testing.T) {
	msgs := buildMessages(model.Request{
		Contents: []core.Content{
			core.NewTextContent(core.RoleUser, "q"),
			core.NewTextContent(core.RoleAssistant, "a"),
			core.NewTextContent(core.RoleUser, ""),
		},
	})
	require.Len(t, msgs, 2)
	assert.NotNil(t, msgs[0].OfUser)
	assert.NotNil(t, msgs[1].OfAssistant)
}

func TestModel_Info(t *testing.T) {
	m := NewModel(func(o *Options) { o.Model = "gpt-4.1" })
	assert.Equal(t, model.Info{Name: "gpt-4.1", Provider: "openai"}, m.Info())
}
