package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/wingman/core"
	"github.com/hupe1980/wingman/logging"
	"github.com/hupe1980/wingman/model"
	"github.com/hupe1980/wingman/model/catalog"
)

// Engine is the part of *engine.Engine the configurator drives.
type Engine interface {
	SetModel(m model.Model)
	SetCredentials(fn func() string)
}

// ContextResetter rebuilds the engine's system prompt from the current editor
// context and clears its history. *editor.Store satisfies it.
type ContextResetter interface {
	ResetEngine()
}

// ConfiguratorOptions configures a Configurator.
type ConfiguratorOptions struct {
	// Resolve maps a provider/model pair to a descriptor. Defaults to catalog.Resolve.
	Resolve func(provider, modelID string) (model.Descriptor, error)
	// Build creates the model for a descriptor. Defaults to catalog.Build.
	Build func(d model.Descriptor) (model.Model, error)
	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger
}

// Configurator turns an AgentConfiguration into the engine's active model and
// tracks whether the engine is usable.
//
// Reconfigure is total: every failure is captured in Status().LastError and
// the state becomes unconfigured. Calls are serialized; state reads may run
// concurrently.
//
// Reconfiguring does not abort a generation in flight. The run keeps the
// model and credential it captured at submission and its turn is not added
// to the reset history.
type Configurator struct {
	engine   Engine
	contexts ContextResetter
	resolve  func(provider, modelID string) (model.Descriptor, error)
	build    func(d model.Descriptor) (model.Model, error)
	logger   logging.Logger

	reconfigureMu sync.Mutex

	mu      sync.RWMutex
	state   core.ConfiguredState
	modelID string
}

// NewConfigurator creates an unconfigured Configurator.
func NewConfigurator(engine Engine, contexts ContextResetter, optFns ...func(o *ConfiguratorOptions)) *Configurator {
	opts := ConfiguratorOptions{
		Resolve: catalog.Resolve,
		Build:   catalog.Build,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Configurator{
		engine:   engine,
		contexts: contexts,
		resolve:  opts.Resolve,
		build:    opts.Build,
		logger:   logging.OrNoOp(opts.Logger),
		state:    core.ConfiguredState{},
	}
}

// Reconfigure applies cfg. It never returns an error and never panics.
func (c *Configurator) Reconfigure(ctx context.Context, cfg core.AgentConfiguration) {
	c.reconfigureMu.Lock()
	defer c.reconfigureMu.Unlock()

	cfg = cfg.Normalize()

	if !cfg.HasIdentity() {
		c.fail(core.NotConfiguredMessage)
		return
	}

	m, err := c.buildModel(cfg)
	if err != nil {
		c.logger.Warn("reconfiguration failed",
			"provider", cfg.Provider,
			"model", cfg.ModelID,
			"error", err,
		)
		c.fail(err.Error())
		return
	}

	credential := cfg.Credential()
	c.engine.SetCredentials(func() string { return credential })
	c.engine.SetModel(m)
	c.contexts.ResetEngine()

	c.mu.Lock()
	c.state = core.ConfiguredState{Configured: true}
	c.modelID = cfg.ModelID
	c.mu.Unlock()

	c.logger.Info("engine configured",
		"provider", cfg.Provider,
		"model", cfg.ModelID,
		"backend_url", cfg.BackendURL,
		"has_api_key", cfg.APIKey != "",
	)
}

// buildModel resolves and builds the model, converting provider panics into
// configuration errors.
func (c *Configurator) buildModel(cfg core.AgentConfiguration) (m model.Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &core.ConfigurationError{Provider: cfg.Provider, ModelID: cfg.ModelID, Reason: fmt.Sprint(r)}
		}
	}()

	d, err := c.resolve(cfg.Provider, cfg.ModelID)
	if err != nil {
		return nil, err
	}
	if cfg.BackendURL != "" {
		d.BaseURL = cfg.BackendURL
	}
	d.Temperature = cfg.Temperature

	return c.build(d)
}

func (c *Configurator) fail(message string) {
	c.mu.Lock()
	c.state = core.ConfiguredState{Configured: false, LastError: message}
	c.modelID = ""
	c.mu.Unlock()

	c.contexts.ResetEngine()
}

// Status returns the current configured state.
func (c *Configurator) Status() core.ConfiguredState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Configured reports whether the engine has a usable model.
func (c *Configurator) Configured() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.Configured
}

// ModelID returns the active model id when configured.
func (c *Configurator) ModelID() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.state.Configured {
		return "", false
	}
	return c.modelID, true
}
