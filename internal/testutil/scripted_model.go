package testutil

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/wingman/model"
)

// ScriptedModel is a model.Model that streams a fixed list of chunks.
//
// Example:
//
//	m := NewScriptedModel("Hel", "lo").Hold()
//	eng.SetModel(m)
//	run, _ := eng.Submit(ctx, "hi")
//	<-m.Started()
//	m.Release()
//
// Hold makes every call block after its chunks until Release or
// cancellation. Stubborn additionally ignores cancellation while held, which
// simulates a provider that is slow to shut down.
type ScriptedModel struct {
	name     string
	chunks   []string
	err      error
	hold     bool
	stubborn bool

	mu       sync.Mutex
	requests []model.Request
	gate     chan struct{}
	once     sync.Once
	started  chan struct{}

	active    atomic.Int32
	maxActive atomic.Int32
}

// NewScriptedModel creates a model streaming chunks in order.
func NewScriptedModel(chunks ...string) *ScriptedModel {
	return &ScriptedModel{
		name:    "scripted",
		chunks:  chunks,
		gate:    make(chan struct{}),
		started: make(chan struct{}, 64),
	}
}

// Named sets the model name reported by Info (chainable).
func (m *ScriptedModel) Named(name string) *ScriptedModel { m.name = name; return m }

// FailWith makes every call fail with err after its chunks (chainable).
func (m *ScriptedModel) FailWith(err error) *ScriptedModel { m.err = err; return m }

// Hold blocks every call after its chunks until Release (chainable).
func (m *ScriptedModel) Hold() *ScriptedModel { m.hold = true; return m }

// Stubborn makes a held call ignore cancellation (chainable).
func (m *ScriptedModel) Stubborn() *ScriptedModel { m.hold = true; m.stubborn = true; return m }

// Release unblocks held calls, current and future. Safe to call repeatedly.
func (m *ScriptedModel) Release() { m.once.Do(func() { close(m.gate) }) }

// Started receives one value per Generate call once the call has emitted all
// of its chunks.
func (m *ScriptedModel) Started() <-chan struct{} { return m.started }

// MaxConcurrent returns the highest number of Generate calls that were
// streaming at the same time.
func (m *ScriptedModel) MaxConcurrent() int { return int(m.maxActive.Load()) }

// Requests returns the requests received so far.
func (m *ScriptedModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.requests...)
}

// Generate implements model.Model.
func (m *ScriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	n := m.active.Add(1)
	for {
		peak := m.maxActive.Load()
		if n <= peak || m.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}

	go func() {
		defer close(out)
		defer close(errCh)
		defer m.active.Add(-1)

		for _, c := range m.chunks {
			if !model.Emit(ctx, out, model.PartialText(c)) {
				errCh <- ctx.Err()
				return
			}
		}

		select {
		case m.started <- struct{}{}:
		default:
		}

		if m.hold {
			if m.stubborn {
				<-m.gate
			} else {
				select {
				case <-m.gate:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
		}

		if m.err != nil {
			errCh <- m.err
			return
		}

		if !model.Emit(ctx, out, model.FinalText(strings.Join(m.chunks, ""), "stop")) {
			errCh <- ctx.Err()
		}
	}()

	return out, errCh
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info {
	return model.Info{Name: m.name, Provider: "scripted"}
}
