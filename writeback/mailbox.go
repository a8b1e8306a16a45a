package writeback

import (
	"sync"

	"github.com/hupe1980/wingman/core"
)

// Mailbox is an in-process map of pending writebacks guarded by a mutex.
// Payloads are copied on Put and Take so callers cannot mutate stored
// values.
type Mailbox struct {
	mu      sync.Mutex
	pending map[string]core.WritebackPayload // file -> payload
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox {
	return &Mailbox{pending: make(map[string]core.WritebackPayload)}
}

// Put stores p under its file, replacing any pending payload. A nil or empty
// file is a validation error.
func (m *Mailbox) Put(p core.WritebackPayload) error {
	file := core.Deref(p.File)
	if file == "" {
		return core.NewValidationError("file", "file is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[file] = p.Clone()
	return nil
}

// Take returns and removes the payload pending for file. When nothing is
// pending it returns the all-null payload.
func (m *Mailbox) Take(file string) core.WritebackPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[file]
	if !ok {
		return core.EmptyWriteback()
	}
	delete(m.pending, file)
	return p
}

// Len returns the number of pending payloads.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
