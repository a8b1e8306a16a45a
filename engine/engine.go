package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/wingman/core"
	"github.com/hupe1980/wingman/logging"
	"github.com/hupe1980/wingman/model"
)

// Config defines tuning parameters for the Engine.
type Config struct {
	// EventBufferSize is the channel capacity of each subscriber. When a
	// subscriber's buffer is full the run waits for it, which slows the
	// consumption of the provider stream instead of growing memory.
	EventBufferSize int
}

// DefaultConfig provides the default engine configuration.
var DefaultConfig = Config{
	EventBufferSize: 64,
}

// Options configures an Engine instance using the functional options pattern.
//
// Example:
//
//	eng := New(func(o *Options) {
//	    o.Logger = logger
//	    o.Config.EventBufferSize = 16
//	})
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Callbacks receives run lifecycle hooks. Defaults to an empty manager.
	Callbacks *CallbackManager

	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger
}

// Engine is the single-flight generation engine. It owns the active model,
// the system prompt and the conversation history, runs at most one
// generation at a time and fans the run's events out to subscribers.
//
// Concurrency Model:
//   - State (model, prompt, history, active run) is guarded by one mutex
//   - Each run executes on its own goroutine against a snapshot of the state
//     taken at submission
//   - Subscribers get bounded channels; publishing waits for slow readers
//     until the run is aborted or the subscriber leaves
//
// History is versioned by an epoch counter. Reset and ClearMessages bump the
// epoch, and a run only appends its turn when the epoch it captured is still
// current.
type Engine struct {
	mu           sync.Mutex
	model        model.Model
	systemPrompt string
	messages     []core.Content
	epoch        uint64
	credentials  func() string
	active       *Run
	idle         chan struct{}

	subsMu  sync.RWMutex
	subs    map[uint64]*subscriber
	nextSub uint64

	config    Config
	callbacks *CallbackManager
	logger    logging.Logger
}

// New creates a new Engine with no model. Submit fails with
// core.ErrNotConfigured until SetModel is called.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:    DefaultConfig,
		Callbacks: NewCallbackManager(),
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config.EventBufferSize <= 0 {
		opts.Config.EventBufferSize = DefaultConfig.EventBufferSize
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}

	idle := make(chan struct{})
	close(idle)

	return &Engine{
		idle:        idle,
		subs:        make(map[uint64]*subscriber),
		credentials: func() string { return core.NoCredential },
		config:      opts.Config,
		callbacks:   opts.Callbacks,
		logger:      logging.OrNoOp(opts.Logger),
	}
}

// Callbacks returns the engine's callback manager.
func (e *Engine) Callbacks() *CallbackManager { return e.callbacks }

// SetModel installs the model used by subsequent runs. A run in flight keeps
// the model it started with.
func (e *Engine) SetModel(m model.Model) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.model = m
}

// Model returns the current model or nil.
func (e *Engine) Model() model.Model {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.model
}

// SetSystemPrompt replaces the system prompt used by subsequent runs.
func (e *Engine) SetSystemPrompt(prompt string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.systemPrompt = prompt
}

// SystemPrompt returns the current system prompt.
func (e *Engine) SystemPrompt() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.systemPrompt
}

// ClearMessages drops the conversation history.
func (e *Engine) ClearMessages() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.messages = nil
	e.epoch++
}

// Reset replaces the system prompt and clears the history in one step.
func (e *Engine) Reset(systemPrompt string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.systemPrompt = systemPrompt
	e.messages = nil
	e.epoch++
}

// SetCredentials installs the resolver consulted at each submission for the
// provider credential. A nil resolver yields core.NoCredential.
func (e *Engine) SetCredentials(fn func() string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if fn == nil {
		fn = func() string { return core.NoCredential }
	}
	e.credentials = fn
}

// Messages returns a copy of the conversation history.
func (e *Engine) Messages() []core.Content {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]core.Content, len(e.messages))
	for i, m := range e.messages {
		out[i] = m.Clone()
	}
	return out
}

// IsStreaming reports whether a run is active.
func (e *Engine) IsStreaming() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil
}

// WaitForIdle blocks until no run is active or ctx is done.
func (e *Engine) WaitForIdle(ctx context.Context) error {
	e.mu.Lock()
	idle := e.idle
	e.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Abort cancels the active run. It is a no-op when idle and safe to call
// repeatedly.
func (e *Engine) Abort() {
	e.mu.Lock()
	run := e.active
	e.mu.Unlock()

	if run != nil {
		run.Abort()
		e.logger.Debug("run abort requested", "run_id", run.id)
	}
}

// Submit starts a run for prompt and returns immediately. It fails with
// core.ErrBusy while another run is active and core.ErrNotConfigured when no
// model is installed.
//
// The run is detached from ctx cancellation but keeps its values; use Abort
// to stop it.
func (e *Engine) Submit(ctx context.Context, prompt string) (*Run, error) {
	run, _, _, err := e.start(ctx, prompt, false)
	return run, err
}

// Stream is Submit with a subscription bound to the new run. The channel
// receives only that run's events, and a reader that stops consuming it
// never delays later runs. The returned function unsubscribes.
func (e *Engine) Stream(ctx context.Context, prompt string) (*Run, <-chan core.Event, func(), error) {
	return e.start(ctx, prompt, true)
}

func (e *Engine) start(ctx context.Context, prompt string, bind bool) (*Run, <-chan core.Event, func(), error) {
	e.mu.Lock()
	if e.active != nil {
		e.mu.Unlock()
		return nil, nil, nil, core.ErrBusy
	}
	if e.model == nil {
		e.mu.Unlock()
		return nil, nil, nil, core.ErrNotConfigured
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := newRun(prompt, cancel)
	snap := snapshot{
		model:        e.model,
		systemPrompt: e.systemPrompt,
		history:      append([]core.Content(nil), e.messages...),
		epoch:        e.epoch,
		credential:   e.credentials(),
	}
	e.active = run
	e.idle = make(chan struct{})
	e.mu.Unlock()

	var (
		events      <-chan core.Event
		unsubscribe func()
	)
	if bind {
		events, unsubscribe = e.subscribe(run.id)
	}

	e.logger.Debug("run submitted", "run_id", run.id, "model", snap.model.Info().Name)

	go e.execute(runCtx, run, snap)

	return run, events, unsubscribe, nil
}

// Prompt submits prompt and waits for the run to finish. Cancelling ctx
// aborts the run.
func (e *Engine) Prompt(ctx context.Context, prompt string) error {
	run, err := e.Submit(ctx, prompt)
	if err != nil {
		return err
	}

	select {
	case <-run.Done():
	case <-ctx.Done():
		run.Abort()
		<-run.Done()
	}

	return run.Err()
}

// Subscribe registers a subscriber for the events of every run. The returned
// function unsubscribes and closes the channel; it is idempotent. A
// subscriber that stops reading holds up every run until it unsubscribes;
// use Stream to follow a single run.
func (e *Engine) Subscribe() (<-chan core.Event, func()) {
	return e.subscribe("")
}

func (e *Engine) subscribe(runID string) (<-chan core.Event, func()) {
	sub := &subscriber{
		runID: runID,
		ch:    make(chan core.Event, e.config.EventBufferSize),
		done:  make(chan struct{}),
	}

	e.subsMu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = sub
	e.subsMu.Unlock()

	unsubscribe := func() {
		sub.once.Do(func() {
			close(sub.done)
			e.subsMu.Lock()
			delete(e.subs, id)
			close(sub.ch)
			e.subsMu.Unlock()
		})
	}

	return sub.ch, unsubscribe
}

type subscriber struct {
	runID string // empty follows every run
	ch    chan core.Event
	done  chan struct{}
	once  sync.Once
}

type snapshot struct {
	model        model.Model
	systemPrompt string
	history      []core.Content
	epoch        uint64
	credential   string
}

// publish delivers ev to every subscriber following its run. It waits for
// each of them until it accepts the event, unsubscribes, or stop is closed.
func (e *Engine) publish(ev core.Event, stop <-chan struct{}) {
	e.subsMu.RLock()
	defer e.subsMu.RUnlock()

	for _, sub := range e.subs {
		if sub.runID != "" && sub.runID != ev.RunID {
			continue
		}
		select {
		case sub.ch <- ev:
		case <-sub.done:
		case <-stop:
		}
	}
}

func (e *Engine) execute(ctx context.Context, run *Run, snap snapshot) {
	start := time.Now()
	info := snap.model.Info()

	err := e.generate(ctx, run, snap, info)

	if run.aborted.Load() || ctx.Err() != nil {
		err = core.ErrAborted
	}

	if err == nil {
		e.mu.Lock()
		if e.epoch == snap.epoch {
			e.messages = append(e.messages,
				core.NewTextContent(core.RoleUser, run.prompt),
				core.NewTextContent(core.RoleAssistant, run.Text()),
			)
		}
		e.mu.Unlock()
	}

	// An aborted run must not wait on slow subscribers for its last event.
	e.publish(core.NewRunEndEvent(run.id, err), ctx.Done())

	cbCtx := &CallbackContext{
		RunID:    run.id,
		Model:    info.Name,
		Prompt:   run.prompt,
		Text:     run.Text(),
		Err:      err,
		Duration: time.Since(start),
	}
	if err != nil && !errors.Is(err, core.ErrAborted) {
		if cbErr := e.callbacks.ExecuteCallbacks(ctx, CallbackOnError, cbCtx); cbErr != nil {
			e.logger.Warn("on_error callback failed", "run_id", run.id, "error", cbErr)
		}
	}
	if cbErr := e.callbacks.ExecuteCallbacks(ctx, CallbackAfterRun, cbCtx); cbErr != nil {
		e.logger.Warn("after_run callback failed", "run_id", run.id, "error", cbErr)
	}

	e.mu.Lock()
	if e.active == run {
		e.active = nil
		close(e.idle)
	}
	e.mu.Unlock()

	run.finish(err)
	run.cancel()

	e.logger.Debug("run finished", "run_id", run.id, "duration", time.Since(start), "error", err)
}

// generate streams the provider response into run events. Panics from the
// provider are reported as engine failures.
func (e *Engine) generate(ctx context.Context, run *Run, snap snapshot, info model.Info) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.NewEngineError(fmt.Errorf("model %s panicked: %v", info.Name, r))
		}
	}()

	if cbErr := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeRun, &CallbackContext{
		RunID:  run.id,
		Model:  info.Name,
		Prompt: run.prompt,
	}); cbErr != nil {
		return core.NewEngineError(cbErr)
	}

	e.publish(core.NewEvent(run.id, core.EventRunStart), ctx.Done())

	req := model.Request{
		Instructions: snap.systemPrompt,
		Contents:     append(snap.history, core.NewTextContent(core.RoleUser, run.prompt)),
		Stream:       true,
		APIKey:       snap.credential,
	}

	respCh, errCh := snap.model.Generate(ctx, req)

	streamed := false
	final := ""
	for resp := range respCh {
		text := resp.Content.Text()
		if !resp.Partial {
			final = text
			continue
		}
		if text == "" {
			continue
		}
		streamed = true
		run.appendText(text)
		e.publish(core.NewTextDeltaEvent(run.id, text), ctx.Done())
	}

	if genErr := <-errCh; genErr != nil {
		return core.NewEngineError(genErr)
	}

	// Providers that do not stream deliver the whole text in the final chunk.
	if !streamed && final != "" {
		run.appendText(final)
		e.publish(core.NewTextDeltaEvent(run.id, final), ctx.Done())
	}

	return nil
}

// Run is a handle to one generation.
type Run struct {
	id      string
	prompt  string
	cancel  context.CancelFunc
	done    chan struct{}
	aborted atomic.Bool

	mu   sync.Mutex
	text strings.Builder
	err  error
}

func newRun(prompt string, cancel context.CancelFunc) *Run {
	return &Run{
		id:     core.NewID(),
		prompt: prompt,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID returns the run identifier carried by its events.
func (r *Run) ID() string { return r.id }

// Prompt returns the user prompt of the run.
func (r *Run) Prompt() string { return r.prompt }

// Done is closed after the run terminated and all its events were published.
func (r *Run) Done() <-chan struct{} { return r.done }

// Err returns the terminal error once Done is closed: nil on success,
// core.ErrAborted when aborted, an error matching core.ErrEngineFailure when
// the provider failed.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Text returns the text generated so far.
func (r *Run) Text() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.text.String()
}

func (r *Run) appendText(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.text.WriteString(s)
}

// Abort cancels this run only. It is a no-op once the run finished.
func (r *Run) Abort() {
	r.aborted.Store(true)
	r.cancel()
}

func (r *Run) finish(err error) {
	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
	close(r.done)
}
