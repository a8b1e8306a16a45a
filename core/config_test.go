package core

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampTemperature(t *testing.T) {
	assert.Equal(t, 0.0, ClampTemperature(-3))
	assert.Equal(t, 1.0, ClampTemperature(7))
	assert.Equal(t, 0.5, ClampTemperature(0.5))
	assert.Equal(t, DefaultTemperature, ClampTemperature(math.NaN()))
}

func TestAgentConfiguration(t *testing.T) {
	cfg := DefaultAgentConfiguration()
	assert.Equal(t, DefaultBackendURL, cfg.BackendURL)
	assert.Equal(t, DefaultTemperature, cfg.Temperature)
	assert.False(t, cfg.HasIdentity())
	assert.Equal(t, NoCredential, cfg.Credential())

	cfg.Provider = "openai"
	assert.False(t, cfg.HasIdentity())
	cfg.ModelID = "gpt-4.1-mini"
	assert.True(t, cfg.HasIdentity())

	cfg.APIKey = "sk-secret"
	cfg.Temperature = 2
	assert.Equal(t, "sk-secret", cfg.Credential())
	assert.Equal(t, 1.0, cfg.Normalize().Temperature)

	red := cfg.Redacted()
	assert.NotEqual(t, "sk-secret", red.APIKey)
	assert.Equal(t, "sk-secret", cfg.APIKey)
	assert.Equal(t, "", DefaultAgentConfiguration().Redacted().APIKey)
}

func TestErrors(t *testing.T) {
	verr := NewValidationError("prompt", "Prompt is required.")
	assert.Equal(t, "Prompt is required.", verr.Error())
	assert.ErrorIs(t, fmt.Errorf("wrap: %w", verr), ErrValidation)

	cause := errors.New("upstream 500")
	eerr := NewEngineError(cause)
	assert.ErrorIs(t, eerr, ErrEngineFailure)
	assert.ErrorIs(t, eerr, cause)
	assert.Equal(t, "upstream 500", eerr.Error())
	assert.NoError(t, NewEngineError(nil))

	cerr := &ConfigurationError{Provider: "acme", Reason: "unknown provider"}
	assert.Equal(t, `provider "acme": unknown provider`, cerr.Error())
	cerr.ModelID = "m1"
	assert.Equal(t, `model "m1" (provider "acme"): unknown provider`, cerr.Error())
}

func TestPortFilePath(t *testing.T) {
	path := PortFilePath()
	assert.Equal(t, PortFileName, filepath.Base(path))
	assert.Equal(t, filepath.Clean(os.TempDir()), filepath.Dir(path))
}

func TestEvents(t *testing.T) {
	start := NewEvent("run-1", EventRunStart)
	require.NotEmpty(t, start.ID)
	assert.Equal(t, "run-1", start.RunID)
	assert.False(t, start.Timestamp.IsZero())
	assert.False(t, start.IsTerminal())

	delta := NewTextDeltaEvent("run-1", "Hel")
	assert.True(t, delta.IsTextDelta())
	assert.Equal(t, "Hel", delta.Delta)
	assert.NotEqual(t, start.ID, delta.ID)

	end := NewRunEndEvent("run-1", ErrAborted)
	assert.True(t, end.IsTerminal())
	assert.ErrorIs(t, end.Err, ErrAborted)
	assert.Greater(t, end.UnixSeconds(), 0.0)
}

func TestContent(t *testing.T) {
	c := Content{Role: RoleUser, Parts: []Part{TextPart{Text: "a"}, TextPart{Text: "b"}}}
	assert.Equal(t, "ab", c.Text())

	clone := c.Clone()
	clone.Parts[0] = TextPart{Text: "z"}
	assert.Equal(t, "ab", c.Text())

	assert.Equal(t, "hi", NewTextContent(RoleSystem, "hi").Text())
}
