// Package catalog maps (provider, model id) pairs to model descriptors and
// builds provider-backed models from them.
package catalog

import (
	"fmt"
	"slices"
	"sort"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/wingman/core"
	"github.com/hupe1980/wingman/model"
	"github.com/hupe1980/wingman/model/anthropic"
	"github.com/hupe1980/wingman/model/gemini"
	"github.com/hupe1980/wingman/model/ollama"
	"github.com/hupe1980/wingman/model/openai"
)

// Provider ids accepted in AgentConfiguration.Provider.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// DefaultMaxTokens bounds completion length for every provider.
const DefaultMaxTokens = 4096

var knownModels = map[string][]string{
	ProviderOpenAI: {
		"gpt-4.1",
		"gpt-4.1-mini",
		"gpt-4.1-nano",
		"gpt-4o",
		"gpt-4o-mini",
		"o3-mini",
		"o4-mini",
	},
	ProviderAnthropic: {
		"claude-opus-4-0",
		"claude-sonnet-4-0",
		"claude-3-7-sonnet-latest",
		"claude-3-5-sonnet-latest",
		"claude-3-5-haiku-latest",
	},
	ProviderGoogle: {
		"gemini-2.5-pro",
		"gemini-2.5-flash",
		"gemini-2.5-flash-lite",
		"gemini-2.0-flash",
	},
}

// Providers lists the supported provider ids in sorted order.
func Providers() []string {
	ids := []string{ProviderOllama}
	for id := range knownModels {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Models lists the known model ids of a provider. Ollama accepts any id and
// returns nil.
func Models(provider string) []string {
	return slices.Clone(knownModels[provider])
}

// Resolve looks up provider and modelID. An unknown pair yields a
// *core.ConfigurationError.
func Resolve(provider, modelID string) (model.Descriptor, error) {
	d := model.Descriptor{
		Provider:    provider,
		ID:          modelID,
		Temperature: core.DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}

	if provider == ProviderOllama {
		if modelID == "" {
			return model.Descriptor{}, &core.ConfigurationError{Provider: provider, ModelID: modelID, Reason: "model id is required"}
		}
		d.BaseURL = ollama.DefaultBaseURL
		return d, nil
	}

	models, ok := knownModels[provider]
	if !ok {
		return model.Descriptor{}, &core.ConfigurationError{Provider: provider, Reason: "unknown provider"}
	}
	if !slices.Contains(models, modelID) {
		return model.Descriptor{}, &core.ConfigurationError{Provider: provider, ModelID: modelID, Reason: "unknown model"}
	}
	return d, nil
}

// Build creates the provider model for d. Failures are reported as
// *core.ConfigurationError.
func Build(d model.Descriptor) (model.Model, error) {
	switch d.Provider {
	case ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.Model = d.ID
			o.Temperature = d.Temperature
			o.MaxCompletionTokens = d.MaxTokens
			o.BaseURL = d.BaseURL
		}), nil
	case ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(d.ID)
			o.Temperature = d.Temperature
			o.MaxTokens = d.MaxTokens
			o.BaseURL = d.BaseURL
		}), nil
	case ProviderGoogle:
		return gemini.NewModel(func(o *gemini.Options) {
			o.Model = d.ID
			o.Temperature = d.Temperature
			o.MaxOutputTokens = int32(d.MaxTokens)
			o.BaseURL = d.BaseURL
		}), nil
	case ProviderOllama:
		m, err := ollama.NewModel(func(o *ollama.Options) {
			o.Model = d.ID
			o.Temperature = d.Temperature
			if d.BaseURL != "" {
				o.BaseURL = d.BaseURL
			}
		})
		if err != nil {
			return nil, &core.ConfigurationError{Provider: d.Provider, ModelID: d.ID, Reason: err.Error()}
		}
		return m, nil
	default:
		return nil, &core.ConfigurationError{Provider: d.Provider, Reason: fmt.Sprintf("no builder for %s", d)}
	}
}
