// Package runner admits and relays generations.
//
// A Coordinator decides whether a new generation may start. When the engine
// is busy it aborts the current run and waits up to AbortGracePeriod for the
// engine to become idle; if the engine does not settle in time the request is
// rejected with core.ErrBusy.
//
// A Relay submits a prompt and forwards the run's text deltas to a Sink, then
// terminates the stream with sse.Done on success or an in-band error payload
// on failure. An aborted run ends the stream without a terminator, and a
// client disconnect aborts the run.
//
// Handlers use both in sequence:
//
//	if err := coord.Admit(ctx); err != nil {
//	    return err // core.ErrBusy → 409
//	}
//	return relay.Relay(ctx, prompt, sink)
package runner
