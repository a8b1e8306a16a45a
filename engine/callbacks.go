package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CallbackType defines the lifecycle points of a run where callbacks execute.
//
// Available callback types:
//   - BeforeRun: after admission, before the provider is called
//   - AfterRun: after a run terminated, successful or not
//   - OnError: when a run failed (aborts are not errors)
type CallbackType string

const (
	// CallbackBeforeRun is triggered before the model is asked to generate.
	// Returning an error fails the run before any provider traffic.
	CallbackBeforeRun CallbackType = "before_run"

	// CallbackAfterRun is triggered once per run after it terminated.
	CallbackAfterRun CallbackType = "after_run"

	// CallbackOnError is triggered when a run failed with a provider error.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext provides information about the run to callbacks.
type CallbackContext struct {
	// RunID identifies the run.
	RunID string

	// Model is the provider model name captured at submission.
	Model string

	// Prompt is the user prompt of the run.
	Prompt string

	// Text is the generated text so far. Empty for BeforeRun.
	Text string

	// Err is the terminal error. Nil for BeforeRun and successful runs.
	Err error

	// Duration is the run's wall time. Zero for BeforeRun.
	Duration time.Duration

	// CallbackType indicates which callback type triggered this execution.
	CallbackType CallbackType
}

// Callback defines the interface for run lifecycle hooks.
//
// Callbacks run synchronously on the run goroutine and should be fast.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	cb := NewFunctionCallback(
//	    CallbackAfterRun,
//	    func(ctx context.Context, callbackCtx *CallbackContext) error {
//	        log.Printf("run %s took %s", callbackCtx.RunID, callbackCtx.Duration)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager holds callbacks per type and executes them in registration
// order. Registration and execution are safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates a new callback manager instance.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback to the manager for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks executes all registered callbacks for the specified type.
// The first error stops execution and is returned.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback forwards run lifecycle events to a logging function.
//
// Example:
//
//	callback := NewLoggingCallback(CallbackAfterRun, func(message string) {
//	    log.Printf("[ENGINE] %s", message)
//	})
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the run with its model, size and outcome.
func (c *LoggingCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	if c.logger != nil {
		message := fmt.Sprintf("[%s] run=%s model=%s chars=%d err=%v",
			c.callbackType, callbackCtx.RunID, callbackCtx.Model, len(callbackCtx.Text), callbackCtx.Err)
		c.logger(message)
	}
	return nil
}
