// Package engine implements the single-flight generation engine behind
// Wingman.
//
// The Engine owns the active model, the system prompt and the conversation
// history. It runs at most one generation (a Run) at a time and publishes the
// run's events to any number of subscribers.
//
// # Runs
//
// Submit starts a run and returns a *Run handle right away:
//
//	run, err := eng.Submit(ctx, "explain this function")
//	if errors.Is(err, core.ErrBusy) {
//	    // another run is still active
//	}
//	<-run.Done()
//	if err := run.Err(); err != nil { ... }
//
// A run snapshots the model, system prompt, history and credential at
// submission. Changing any of them afterwards affects only later runs. A
// successful run appends its user and assistant turns to the history unless
// the history was reset in the meantime.
//
// # Events
//
// Every run publishes, in order:
//
//	run_start → text_delta* → run_end
//
// All events of a run are published before Run.Done is closed, so a
// subscriber that observes Done can drain its channel without waiting.
// Subscriber channels are bounded; a slow subscriber slows the run down
// rather than growing an unbounded queue.
//
// # Cancellation
//
// Runs are detached from the submitting context. Abort cancels the active
// run; the run then ends with core.ErrAborted. WaitForIdle lets callers wait
// for the engine to settle after an abort.
//
// # Callbacks
//
// A CallbackManager receives before_run, after_run and on_error hooks, which
// the application uses for generation logging.
package engine
