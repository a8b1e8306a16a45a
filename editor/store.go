// Package editor holds the editor context pushed by IDE integrations and
// renders the prompts derived from it.
package editor

import (
	"sync"

	"github.com/hupe1980/wingman/core"
	"github.com/hupe1980/wingman/logging"
)

// Resetter receives the rebuilt system prompt whenever the context changes.
// *engine.Engine satisfies it.
type Resetter interface {
	Reset(systemPrompt string)
}

// StoreOptions configures a Store.
type StoreOptions struct {
	Logger logging.Logger
}

// Store is the process-wide editor context. Every write rebuilds the engine's
// system prompt and clears its history in the same critical section, so
// concurrent writers and reconfiguration cannot interleave a stale prompt.
type Store struct {
	mu      sync.RWMutex
	current core.EditorContext
	engine  Resetter
	logger  logging.Logger
}

// NewStore creates an empty store bound to engine.
func NewStore(engine Resetter, optFns ...func(o *StoreOptions)) *Store {
	opts := StoreOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{engine: engine, logger: logging.OrNoOp(opts.Logger)}
}

// Set replaces the whole context; fields absent from next stay nil. It
// returns a copy of the stored value. A stream already in flight is not
// affected.
func (s *Store) Set(next core.EditorContext) core.EditorContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = next.Clone()
	s.engine.Reset(BuildSystemPrompt(s.current))

	s.logger.Debug("editor context updated",
		"file", core.Deref(s.current.File),
		"has_selection", core.Deref(s.current.Selection) != "",
	)

	return s.current.Clone()
}

// Get returns a copy of the last written context.
func (s *Store) Get() core.EditorContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// ResetEngine rebuilds the engine's system prompt from the current context
// and clears its history.
func (s *Store) ResetEngine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Reset(BuildSystemPrompt(s.current))
}
