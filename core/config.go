package core

import "math"

// Settings defaults applied to unset fields.
const (
	DefaultBackendURL  = "http://localhost:11434"
	DefaultTemperature = 0.2
)

// AgentConfiguration drives the engine's identity.
type AgentConfiguration struct {
	Provider    string  `json:"provider" yaml:"provider" mapstructure:"provider"`
	ModelID     string  `json:"modelId" yaml:"modelId" mapstructure:"modelid"`
	BackendURL  string  `json:"backendUrl" yaml:"backendUrl" mapstructure:"backendurl"`
	APIKey      string  `json:"apiKey" yaml:"apiKey" mapstructure:"apikey"`
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
}

// DefaultAgentConfiguration returns the unconfigured defaults.
func DefaultAgentConfiguration() AgentConfiguration {
	return AgentConfiguration{BackendURL: DefaultBackendURL, Temperature: DefaultTemperature}
}

// HasIdentity reports whether both provider and model are set.
func (c AgentConfiguration) HasIdentity() bool {
	return c.Provider != "" && c.ModelID != ""
}

// Credential returns the API key or NoCredential when none is set.
func (c AgentConfiguration) Credential() string {
	if c.APIKey == "" {
		return NoCredential
	}
	return c.APIKey
}

// Normalize clamps the temperature into [0,1]; NaN falls back to the default.
func (c AgentConfiguration) Normalize() AgentConfiguration {
	c.Temperature = ClampTemperature(c.Temperature)
	return c
}

// Redacted returns a copy safe for display.
func (c AgentConfiguration) Redacted() AgentConfiguration {
	if c.APIKey != "" {
		c.APIKey = "********"
	}
	return c
}

// ClampTemperature clamps t into [0,1].
func ClampTemperature(t float64) float64 {
	if math.IsNaN(t) {
		return DefaultTemperature
	}
	return math.Max(0, math.Min(1, t))
}

// ConfiguredState is the engine identity status read by every request guard.
// An empty LastError means no error.
type ConfiguredState struct {
	Configured bool   `json:"configured"`
	LastError  string `json:"lastError,omitempty"`
}
