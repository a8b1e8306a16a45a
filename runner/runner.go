package runner

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/wingman/core"
	"github.com/hupe1980/wingman/engine"
	"github.com/hupe1980/wingman/logging"
	"github.com/hupe1980/wingman/sse"
)

// AbortGracePeriod is how long Admit waits for an aborted run to finish.
const AbortGracePeriod = 2000 * time.Millisecond

// Engine is the part of *engine.Engine used for admission and relaying.
type Engine interface {
	IsStreaming() bool
	Abort()
	WaitForIdle(ctx context.Context) error
	Stream(ctx context.Context, prompt string) (*engine.Run, <-chan core.Event, func(), error)
}

// Status reports whether the engine has a usable model.
type Status interface {
	Configured() bool
}

// Sink receives the data of each stream chunk. A write error means the
// client is gone.
type Sink interface {
	WriteChunk(data string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(data string) error

// WriteChunk implements Sink.
func (f SinkFunc) WriteChunk(data string) error { return f(data) }

// Options configures a Coordinator and a Relay.
type Options struct {
	// GracePeriod overrides AbortGracePeriod.
	GracePeriod time.Duration
	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger
}

func buildOptions(optFns []func(o *Options)) Options {
	opts := Options{
		GracePeriod: AbortGracePeriod,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = AbortGracePeriod
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return opts
}

// Coordinator admits new generations by preempting the active one.
type Coordinator struct {
	engine Engine
	grace  time.Duration
	logger logging.Logger
}

// NewCoordinator creates a Coordinator for engine.
func NewCoordinator(engine Engine, optFns ...func(o *Options)) *Coordinator {
	opts := buildOptions(optFns)
	return &Coordinator{engine: engine, grace: opts.GracePeriod, logger: opts.Logger}
}

// Admit returns nil when a new generation may start. A busy engine is
// aborted and given the grace period to become idle; otherwise Admit returns
// core.ErrBusy. If ctx ends first its error is returned.
//
// Admit does not reserve the engine. Two callers admitted at once race in
// Submit, where the loser gets core.ErrBusy.
func (c *Coordinator) Admit(ctx context.Context) error {
	if !c.engine.IsStreaming() {
		return nil
	}

	c.logger.Debug("preempting active generation")
	c.engine.Abort()

	waitCtx, cancel := context.WithTimeout(ctx, c.grace)
	defer cancel()

	if err := c.engine.WaitForIdle(waitCtx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		c.logger.Warn("active generation did not stop in time", "grace_period", c.grace)
		return core.ErrBusy
	}

	return nil
}

// Relay streams one generation into a Sink.
type Relay struct {
	engine Engine
	status Status
	logger logging.Logger
}

// NewRelay creates a Relay. status gates every relay on the engine being
// configured.
func NewRelay(engine Engine, status Status, optFns ...func(o *Options)) *Relay {
	opts := buildOptions(optFns)
	return &Relay{engine: engine, status: status, logger: opts.Logger}
}

// Relay submits prompt and writes the run's text deltas to sink in order,
// followed by sse.Done on success or an error payload on failure.
//
// Before anything is written it fails with core.ErrNotConfigured or
// core.ErrBusy. Once streaming has started it returns nil: failures are
// reported in-band, and an aborted run or a cancelled ctx ends the stream
// without a terminator. A sink write error is treated like a cancelled ctx.
func (r *Relay) Relay(ctx context.Context, prompt string, sink Sink) error {
	if !r.status.Configured() {
		return core.ErrNotConfigured
	}

	run, events, unsubscribe, err := r.engine.Stream(ctx, prompt)
	if err != nil {
		return err
	}
	defer unsubscribe()

	logger := logging.ForRun(r.logger, run.ID())
	logger.Debug("relay started")

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				run.Abort()
				return nil
			}
			if !r.forward(run, ev, sink) {
				run.Abort()
				logger.Debug("relay sink closed")
				return nil
			}
		case <-run.Done():
			// Every event of the run is already buffered.
		drain:
			for {
				select {
				case ev, ok := <-events:
					if !ok || !r.forward(run, ev, sink) {
						return nil
					}
				default:
					break drain
				}
			}
			finish(ctx, run, sink, logger)
			return nil
		case <-ctx.Done():
			run.Abort()
			logger.Debug("relay client disconnected")
			return nil
		}
	}
}

// forward writes a text delta of run. It reports false when the sink failed.
func (r *Relay) forward(run *engine.Run, ev core.Event, sink Sink) bool {
	if ev.RunID != run.ID() || !ev.IsTextDelta() {
		return true
	}
	return sink.WriteChunk(ev.Delta) == nil
}

func finish(ctx context.Context, run *engine.Run, sink Sink, logger logging.Logger) {
	err := run.Err()
	switch {
	case err == nil:
		_ = sink.WriteChunk(sse.Done)
		logger.Debug("relay completed")
	case errors.Is(err, core.ErrAborted) || ctx.Err() != nil:
		logger.Debug("relay aborted")
	default:
		logger.Warn("generation failed", "error", err)
		_ = sink.WriteChunk(sse.EncodeError(err.Error()))
	}
}
