package settings

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/hupe1980/wingman/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	for _, env := range envBindings {
		t.Setenv(env, "")
	}
	path := filepath.Join(t.TempDir(), "cfg", FileName)
	s, err := New(func(o *Options) {
		o.Path = path
		o.Debounce = 20 * time.Millisecond
	})
	require.NoError(t, err)
	return s
}

func writeFile(t *testing.T, s *Store, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0o700))
	require.NoError(t, os.WriteFile(s.Path(), []byte(content), 0o600))
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	s := newTestStore(t)

	cfg, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.DefaultAgentConfiguration(), cfg)
}

func TestLoad_MergesFileWithDefaults(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s, `{"provider":"openai","modelId":"gpt-4.1-mini","temperature":7}`)

	cfg, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "gpt-4.1-mini", cfg.ModelID)
	assert.Equal(t, core.DefaultBackendURL, cfg.BackendURL)
	assert.Equal(t, "", cfg.APIKey)
	assert.Equal(t, 1.0, cfg.Temperature)
}

func TestLoad_NonNumericTemperatureFallsBack(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s, `{"provider":"ollama","modelId":"llama3","temperature":"hot"}`)

	cfg, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.DefaultTemperature, cfg.Temperature)
}

func TestLoad_CorruptFileYieldsDefaults(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s, `{"provider":`)

	cfg, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.DefaultAgentConfiguration(), cfg)
}

func TestLoad_EnvOverrides(t *testing.T) {
	s := newTestStore(t)
	writeFile(t, s, `{"provider":"openai","modelId":"gpt-4o"}`)
	t.Setenv("WINGMAN_PROVIDER", "anthropic")
	t.Setenv("WINGMAN_MODEL_ID", "claude-sonnet-4-0")
	t.Setenv("WINGMAN_API_KEY", "sk-env")
	t.Setenv("WINGMAN_TEMPERATURE", "0.7")

	cfg, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "claude-sonnet-4-0", cfg.ModelID)
	assert.Equal(t, "sk-env", cfg.APIKey)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
}

func TestLoad_CancelledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Load(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSave_NormalizesAndRoundTrips(t *testing.T) {
	s := newTestStore(t)

	saved, err := s.Save(context.Background(), core.AgentConfiguration{
		Provider:    "google",
		ModelID:     "gemini-2.5-flash",
		APIKey:      "g-key",
		Temperature: -3,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, saved.Temperature)

	raw, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	var onDisk map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, "gemini-2.5-flash", onDisk["modelId"])
	assert.Equal(t, 0.0, onDisk["temperature"])

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(s.Path())
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(settingsMode), info.Mode().Perm())
	}

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWatch_ReportsSavedSettings(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan core.AgentConfiguration, 8)
	require.NoError(t, s.Watch(ctx, func(cfg core.AgentConfiguration) { got <- cfg }))

	_, err := s.Save(context.Background(), core.AgentConfiguration{Provider: "ollama", ModelID: "qwen2.5-coder", Temperature: 0.4})
	require.NoError(t, err)

	select {
	case cfg := <-got:
		assert.Equal(t, "ollama", cfg.Provider)
		assert.Equal(t, "qwen2.5-coder", cfg.ModelID)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not report the change")
	}
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan core.AgentConfiguration, 8)
	require.NoError(t, s.Watch(ctx, func(cfg core.AgentConfiguration) { got <- cfg }))

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(s.Path()), "other.json"), []byte("{}"), 0o600))

	select {
	case <-got:
		t.Fatal("unexpected reload for unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDefaultDir_XDG(t *testing.T) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		t.Skip("XDG layout applies to other platforms")
	}
	t.Setenv("XDG_CONFIG_HOME", "/xdg")

	dir, err := DefaultDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg", "wingman"), dir)

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg", "wingman", FileName), path)
}
