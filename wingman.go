// Package wingman wires the generation relay: one single-flight engine, the
// editor context it is prompted with, the writeback mailbox, the
// configuration manager and the coordinator/relay pair that streams
// generations to callers.
//
// Most applications interact with this package by:
//  1. Creating a Wingman via New()
//  2. Applying settings via Reconfigure or ReloadConfig
//  3. Streaming generations via Generate or Inline into a runner.Sink
//
// The HTTP façade in package server is a thin layer over these methods.
package wingman

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hupe1980/wingman/agent"
	"github.com/hupe1980/wingman/core"
	"github.com/hupe1980/wingman/editor"
	"github.com/hupe1980/wingman/engine"
	"github.com/hupe1980/wingman/logging"
	"github.com/hupe1980/wingman/model"
	"github.com/hupe1980/wingman/runner"
	"github.com/hupe1980/wingman/writeback"
)

// Client-facing validation messages.
const (
	PromptRequiredMessage = "Prompt is required."
	NoContextMessage      = "No context. Call POST /context first."
)

// SettingsLoader supplies the configuration applied by ReloadConfig.
// *settings.Store satisfies it.
type SettingsLoader interface {
	Load(ctx context.Context) (core.AgentConfiguration, error)
}

// Options configures the Wingman instance.
type Options struct {
	// EngineConfig tunes the engine (subscriber buffer size).
	EngineConfig engine.Config

	// GracePeriod is how long a new generation waits for a preempted one.
	// Defaults to runner.AbortGracePeriod.
	GracePeriod time.Duration

	// Settings is read by ReloadConfig. Without it ReloadConfig applies the
	// defaults, which leaves Wingman unconfigured.
	Settings SettingsLoader

	// Resolve and Build override the model catalog. Used by tests.
	Resolve func(provider, modelID string) (model.Descriptor, error)
	Build   func(d model.Descriptor) (model.Model, error)

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Wingman is the façade aggregating the engine and its mailboxes.
type Wingman struct {
	opts        Options
	engine      *engine.Engine
	contexts    *editor.Store
	writebacks  *writeback.Mailbox
	config      *agent.Configurator
	coordinator *runner.Coordinator
	relay       *runner.Relay
	logger      logging.Logger
}

// generationLogger is implemented by *logging.StructuredLogger.
type generationLogger interface {
	LogGeneration(model string, chars int, dur time.Duration, success bool, err error)
}

// New creates an unconfigured Wingman.
func New(optFns ...func(o *Options)) *Wingman {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		GracePeriod:  runner.AbortGracePeriod,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	logger := logging.OrNoOp(opts.Logger)

	eng := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Logger = logger
	})
	registerRunLogging(eng, logger)

	contexts := editor.NewStore(eng, func(o *editor.StoreOptions) { o.Logger = logger })

	config := agent.NewConfigurator(eng, contexts, func(o *agent.ConfiguratorOptions) {
		if opts.Resolve != nil {
			o.Resolve = opts.Resolve
		}
		if opts.Build != nil {
			o.Build = opts.Build
		}
		o.Logger = logger
	})

	runnerOpts := func(o *runner.Options) {
		o.GracePeriod = opts.GracePeriod
		o.Logger = logger
	}

	return &Wingman{
		opts:        opts,
		engine:      eng,
		contexts:    contexts,
		writebacks:  writeback.NewMailbox(),
		config:      config,
		coordinator: runner.NewCoordinator(eng, runnerOpts),
		relay:       runner.NewRelay(eng, config, runnerOpts),
		logger:      logger,
	}
}

func registerRunLogging(eng *engine.Engine, logger logging.Logger) {
	if gl, ok := logger.(generationLogger); ok {
		eng.Callbacks().RegisterCallback(engine.NewFunctionCallback(engine.CallbackAfterRun,
			func(_ context.Context, c *engine.CallbackContext) error {
				success := c.Err == nil || errors.Is(c.Err, core.ErrAborted)
				gl.LogGeneration(c.Model, len(c.Text), c.Duration, success, c.Err)
				return nil
			}))
		return
	}

	eng.Callbacks().RegisterCallback(engine.NewLoggingCallback(engine.CallbackAfterRun, func(msg string) {
		logger.Debug(msg)
	}))
}

// Engine returns the underlying engine.
func (w *Wingman) Engine() *engine.Engine { return w.engine }

// Contexts returns the editor context store.
func (w *Wingman) Contexts() *editor.Store { return w.contexts }

// Writebacks returns the writeback mailbox.
func (w *Wingman) Writebacks() *writeback.Mailbox { return w.writebacks }

// Status returns the current configuration state.
func (w *Wingman) Status() core.ConfiguredState { return w.config.Status() }

// ModelID returns the active model id when configured.
func (w *Wingman) ModelID() (string, bool) { return w.config.ModelID() }

// SetContext replaces the editor context. It rebuilds the system prompt and
// clears history; a generation in flight is not affected.
func (w *Wingman) SetContext(c core.EditorContext) core.EditorContext {
	return w.contexts.Set(c)
}

// Context returns the current editor context.
func (w *Wingman) Context() core.EditorContext { return w.contexts.Get() }

// PutWriteback stores p for its file, replacing any pending payload.
func (w *Wingman) PutWriteback(p core.WritebackPayload) error { return w.writebacks.Put(p) }

// TakeWriteback removes and returns the pending payload for file.
func (w *Wingman) TakeWriteback(file string) core.WritebackPayload {
	return w.writebacks.Take(file)
}

// Reconfigure applies cfg. Failures are recorded in Status().
func (w *Wingman) Reconfigure(ctx context.Context, cfg core.AgentConfiguration) {
	w.config.Reconfigure(ctx, cfg)
}

// ReloadConfig loads the settings and applies them.
func (w *Wingman) ReloadConfig(ctx context.Context) error {
	cfg := core.DefaultAgentConfiguration()
	if w.opts.Settings != nil {
		loaded, err := w.opts.Settings.Load(ctx)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	w.config.Reconfigure(ctx, cfg)
	return nil
}

// Abort stops the active generation, if any.
func (w *Wingman) Abort() { w.engine.Abort() }

// Generate streams a free-form prompt into sink.
//
// It fails before anything is written with a validation error for a blank
// prompt, core.ErrNotConfigured, or core.ErrBusy when the preempted
// generation did not stop within the grace period.
func (w *Wingman) Generate(ctx context.Context, prompt string, sink runner.Sink) error {
	if strings.TrimSpace(prompt) == "" {
		return core.NewValidationError("prompt", PromptRequiredMessage)
	}
	return w.stream(ctx, prompt, sink)
}

// Inline streams a completion for the code around the cursor into sink. The
// editor context must carry a file and surrounding code.
func (w *Wingman) Inline(ctx context.Context, sink runner.Sink) error {
	c := w.contexts.Get()
	if !editor.HasInlineContext(c) {
		return core.NewValidationError("context", NoContextMessage)
	}
	return w.stream(ctx, editor.BuildCompletionPrompt(c), sink)
}

func (w *Wingman) stream(ctx context.Context, prompt string, sink runner.Sink) error {
	if !w.config.Configured() {
		return core.ErrNotConfigured
	}

	if err := w.coordinator.Admit(ctx); err != nil {
		return err
	}

	return w.relay.Relay(ctx, prompt, sink)
}
