package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hupe1980/wingman/core"
	"github.com/hupe1980/wingman/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	auth string
	body map[string]any
}

func newChatServer(t *testing.T, cap *captured) *httptest.Server {
	t.Helper()
	lines := []string{
		`{"model":"qwen2.5-coder","message":{"role":"assistant","content":"Hel"},"done":false}`,
		`{"model":"qwen2.5-coder","message":{"role":"assistant","content":"lo"},"done":false}`,
		`{"model":"qwen2.5-coder","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}`,
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		cap.auth = r.Header.Get("Authorization")
		cap.body = map[string]any{}
		_ = json.Unmarshal(raw, &cap.body)
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, l := range lines {
			fmt.Fprintln(w, l)
		}
	}))
}

func drain(respCh <-chan model.Response, errCh <-chan error) ([]model.Response, error) {
	var out []model.Response
	for r := range respCh {
		out = append(out, r)
	}
	return out, <-errCh
}

func TestModel_StreamsChat(t *testing.T) {
	cap := &captured{}
	srv := newChatServer(t, cap)
	defer srv.Close()

	m, err := NewModel(func(o *Options) {
		o.Model = "qwen2.5-coder"
		o.BaseURL = srv.URL
	})
	require.NoError(t, err)

	resps, err := drain(m.Generate(context.Background(), model.Request{
		Instructions: "sys",
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, "hi")},
		Stream:       true,
		APIKey:       "remote-key",
	}))
	require.NoError(t, err)
	require.Len(t, resps, 3)
	assert.Equal(t, "Hel", resps[0].Content.Text())
	assert.Equal(t, "lo", resps[1].Content.Text())
	assert.Equal(t, "Hello", resps[2].Content.Text())
	assert.Equal(t, "stop", resps[2].FinishReason)

	assert.Equal(t, "Bearer remote-key", cap.auth)
	msgs, ok := cap.body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
}

func TestModel_NoKeyNoAuthHeader(t *testing.T) {
	cap := &captured{}
	srv := newChatServer(t, cap)
	defer srv.Close()

	m, err := NewModel(func(o *Options) {
		o.Model = "qwen2.5-coder"
		o.BaseURL = srv.URL
	})
	require.NoError(t, err)

	_, err = drain(m.Generate(context.Background(), model.Request{
		Contents: []core.Content{core.NewTextContent(core.RoleUser, "hi")},
		Stream:   true,
		APIKey:   core.NoCredential,
	}))
	require.NoError(t, err)
	assert.Empty(t, cap.auth)
}

func TestModel_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":"model \"nope\" not found"}`)
	}))
	defer srv.Close()

	m, err := NewModel(func(o *Options) {
		o.Model = "nope"
		o.BaseURL = srv.URL
	})
	require.NoError(t, err)

	_, err = drain(m.Generate(context.Background(), model.Request{
		Contents: []core.Content{core.NewTextContent(core.RoleUser, "hi")},
		Stream:   true,
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestNewModel_Validation(t *testing.T) {
	_, err := NewModel()
	require.Error(t, err)

	_, err = NewModel(func(o *Options) {
		o.Model = "m"
		o.BaseURL = "not a url"
	})
	require.Error(t, err)
}
