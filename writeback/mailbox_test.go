package writeback

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/wingman/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(file string, line int, code string) core.WritebackPayload {
	return core.WritebackPayload{File: core.String(file), Line: core.Int(line), Code: core.String(code)}
}

func TestMailbox_PutTakeOnce(t *testing.T) {
	m := NewMailbox()
	require.NoError(t, m.Put(payload("a.ts", 3, "x()")))
	assert.Equal(t, 1, m.Len())

	got := m.Take("a.ts")
	assert.Equal(t, "x()", core.Deref(got.Code))
	assert.Equal(t, 3, *got.Line)

	assert.True(t, m.Take("a.ts").IsEmpty())
	assert.Equal(t, 0, m.Len())
}

func TestMailbox_PutReplaces(t *testing.T) {
	m := NewMailbox()
	require.NoError(t, m.Put(payload("a.ts", 1, "old")))
	require.NoError(t, m.Put(payload("a.ts", 2, "new")))

	assert.Equal(t, "new", core.Deref(m.Take("a.ts").Code))
	assert.True(t, m.Take("a.ts").IsEmpty())
}

func TestMailbox_PutRequiresFile(t *testing.T) {
	m := NewMailbox()

	err := m.Put(core.WritebackPayload{Code: core.String("x")})
	require.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, "file is required", err.Error())

	err = m.Put(payload("", 1, "x"))
	require.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, 0, m.Len())
}

func TestMailbox_KeysAreIndependent(t *testing.T) {
	m := NewMailbox()
	require.NoError(t, m.Put(payload("a", 1, "A")))
	require.NoError(t, m.Put(payload("b", 1, "B")))
	assert.Equal(t, 2, m.Len())

	assert.Equal(t, "B", core.Deref(m.Take("b").Code))
	assert.Equal(t, "A", core.Deref(m.Take("a").Code))
}

func TestMailbox_StoredPayloadIsCopied(t *testing.T) {
	m := NewMailbox()
	p := payload("a", 1, "orig")
	require.NoError(t, m.Put(p))
	*p.Code = "mutated"

	assert.Equal(t, "orig", core.Deref(m.Take("a").Code))
}

func TestMailbox_ConcurrentTakeDeliversOnce(t *testing.T) {
	m := NewMailbox()
	require.NoError(t, m.Put(payload("a", 1, "x")))

	var delivered atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !m.Take("a").IsEmpty() {
				delivered.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), delivered.Load())
}
