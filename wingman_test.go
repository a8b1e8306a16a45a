package wingman

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/wingman/core"
	"github.com/hupe1980/wingman/internal/testutil"
	"github.com/hupe1980/wingman/model"
	"github.com/hupe1980/wingman/runner"
	"github.com/hupe1980/wingman/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = core.AgentConfiguration{Provider: "openai", ModelID: "gpt-4.1-mini", Temperature: 0.2}

type chunkSink struct {
	mu     sync.Mutex
	chunks []string
}

func (s *chunkSink) WriteChunk(data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, data)
	return nil
}

func (s *chunkSink) Chunks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.chunks...)
}

type staticSettings struct {
	cfg core.AgentConfiguration
	err error
}

func (s staticSettings) Load(context.Context) (core.AgentConfiguration, error) { return s.cfg, s.err }

func newTestWingman(m *testutil.ScriptedModel, optFns ...func(o *Options)) *Wingman {
	fns := append([]func(o *Options){func(o *Options) {
		o.Build = func(model.Descriptor) (model.Model, error) { return m, nil }
		o.GracePeriod = 50 * time.Millisecond
	}}, optFns...)
	return New(fns...)
}

func TestNew_Unconfigured(t *testing.T) {
	w := newTestWingman(testutil.NewScriptedModel("x"))

	assert.Equal(t, core.ConfiguredState{}, w.Status())

	sink := &chunkSink{}
	require.ErrorIs(t, w.Generate(context.Background(), "hi", sink), core.ErrNotConfigured)
	assert.Empty(t, sink.Chunks())
}

func TestGenerate_BlankPromptIsValidationError(t *testing.T) {
	w := newTestWingman(testutil.NewScriptedModel("x"))
	w.Reconfigure(context.Background(), testConfig)

	err := w.Generate(context.Background(), "  \n\t", &chunkSink{})
	require.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, PromptRequiredMessage, err.Error())
}

func TestGenerate_ValidationBeforeConfiguration(t *testing.T) {
	w := newTestWingman(testutil.NewScriptedModel("x"))

	err := w.Generate(context.Background(), "", &chunkSink{})
	require.ErrorIs(t, err, core.ErrValidation)
}

func TestGenerate_Streams(t *testing.T) {
	m := testutil.NewScriptedModel("func ", "main()")
	w := newTestWingman(m)
	w.Reconfigure(context.Background(), testConfig)

	sink := &chunkSink{}
	require.NoError(t, w.Generate(context.Background(), "write main", sink))
	assert.Equal(t, []string{"func ", "main()", sse.Done}, sink.Chunks())

	id, ok := w.ModelID()
	require.True(t, ok)
	assert.Equal(t, "gpt-4.1-mini", id)
}

func TestInline_RequiresFileAndSurroundingCode(t *testing.T) {
	w := newTestWingman(testutil.NewScriptedModel("x"))
	w.Reconfigure(context.Background(), testConfig)
	w.SetContext(testutil.NewContextBuilder().File("main.go").Build())

	err := w.Inline(context.Background(), &chunkSink{})
	require.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, NoContextMessage, err.Error())
}

func TestInline_UsesCompletionPrompt(t *testing.T) {
	m := testutil.NewScriptedModel("return nil")
	w := newTestWingman(m)
	w.Reconfigure(context.Background(), testConfig)
	w.SetContext(testutil.NewContextBuilder().
		File("main.go").
		Line(3).
		Surrounding("func f() error {\n\t\n}").
		Build())

	sink := &chunkSink{}
	require.NoError(t, w.Inline(context.Background(), sink))
	assert.Equal(t, []string{"return nil", sse.Done}, sink.Chunks())

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Contents, 1)
	prompt := reqs[0].Contents[0].Text()
	assert.True(t, strings.HasPrefix(prompt, "Complete the code at the cursor position."))
	assert.Contains(t, prompt, "func f() error {")
	assert.Contains(t, reqs[0].Instructions, "- File: main.go")
}

func TestGenerate_BusyWhenPreemptedRunIgnoresAbort(t *testing.T) {
	m := testutil.NewScriptedModel("a").Stubborn()
	w := newTestWingman(m)
	w.Reconfigure(context.Background(), testConfig)

	run, err := w.Engine().Submit(context.Background(), "first")
	require.NoError(t, err)
	<-m.Started()

	sink := &chunkSink{}
	require.ErrorIs(t, w.Generate(context.Background(), "second", sink), core.ErrBusy)
	assert.Empty(t, sink.Chunks())

	m.Release()
	<-run.Done()
	require.ErrorIs(t, run.Err(), core.ErrAborted)
}

func TestAbort_StopsGeneration(t *testing.T) {
	m := testutil.NewScriptedModel("a").Hold()
	w := newTestWingman(m)
	w.Reconfigure(context.Background(), testConfig)

	done := make(chan error, 1)
	sink := &chunkSink{}
	go func() { done <- w.Generate(context.Background(), "hi", sink) }()
	<-m.Started()

	w.Abort()
	w.Abort()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("generate did not return after abort")
	}
	assert.NotContains(t, sink.Chunks(), sse.Done)
}

func TestSetContext_ResetsHistory(t *testing.T) {
	m := testutil.NewScriptedModel("ok")
	w := newTestWingman(m)
	w.Reconfigure(context.Background(), testConfig)

	require.NoError(t, w.Generate(context.Background(), "hi", &chunkSink{}))
	require.Len(t, w.Engine().Messages(), 2)

	got := w.SetContext(testutil.NewContextBuilder().File("a.go").Build())
	assert.Equal(t, "a.go", core.Deref(got.File))
	assert.Empty(t, w.Engine().Messages())
	assert.Contains(t, w.Engine().SystemPrompt(), "- File: a.go")
	assert.Equal(t, got, w.Context())
}

func TestReloadConfig(t *testing.T) {
	m := testutil.NewScriptedModel("x")

	w := newTestWingman(m, func(o *Options) { o.Settings = staticSettings{cfg: testConfig} })
	require.NoError(t, w.ReloadConfig(context.Background()))
	assert.True(t, w.Status().Configured)

	boom := errors.New("disk gone")
	failing := newTestWingman(m, func(o *Options) { o.Settings = staticSettings{err: boom} })
	require.ErrorIs(t, failing.ReloadConfig(context.Background()), boom)

	bare := newTestWingman(m)
	bare.Reconfigure(context.Background(), testConfig)
	require.NoError(t, bare.ReloadConfig(context.Background()))
	assert.False(t, bare.Status().Configured)
}

func TestWriteback_DeliveredOnce(t *testing.T) {
	w := newTestWingman(testutil.NewScriptedModel("x"))

	require.ErrorIs(t, w.PutWriteback(core.WritebackPayload{}), core.ErrValidation)
	require.NoError(t, w.PutWriteback(core.WritebackPayload{File: core.String("a.go"), Line: core.Int(4), Code: core.String("x := 1")}))

	got := w.TakeWriteback("a.go")
	assert.Equal(t, "x := 1", core.Deref(got.Code))
	assert.Equal(t, core.EmptyWriteback(), w.TakeWriteback("a.go"))
}

// stalledSink accepts one chunk and then blocks like a client that stays
// connected but stopped reading.
type stalledSink struct {
	once    sync.Once
	first   chan struct{}
	release chan struct{}
}

func newStalledSink() *stalledSink {
	return &stalledSink{first: make(chan struct{}), release: make(chan struct{})}
}

func (s *stalledSink) WriteChunk(string) error {
	s.once.Do(func() { close(s.first) })
	<-s.release
	return errors.New("client gone")
}

func TestGenerate_StalledClientDoesNotBlockNextGeneration(t *testing.T) {
	chunks := make([]string, 20)
	for i := range chunks {
		chunks[i] = "x"
	}
	w := newTestWingman(testutil.NewScriptedModel(chunks...), func(o *Options) {
		o.EngineConfig.EventBufferSize = 2
	})
	w.Reconfigure(context.Background(), testConfig)

	stalled := newStalledSink()
	firstDone := make(chan error, 1)
	go func() { firstDone <- w.Generate(context.Background(), "first", stalled) }()
	<-stalled.first

	sink := &chunkSink{}
	secondDone := make(chan error, 1)
	go func() { secondDone <- w.Generate(context.Background(), "second", sink) }()

	select {
	case err := <-secondDone:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatalf("second generation stalled after %d chunks", len(sink.Chunks()))
	}

	got := sink.Chunks()
	require.Len(t, got, len(chunks)+1)
	assert.Equal(t, sse.Done, got[len(got)-1])
	assert.False(t, w.Engine().IsStreaming())

	close(stalled.release)
	select {
	case err := <-firstDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stalled generation did not return after its client went away")
	}
}

func TestGenerate_ConcurrentCallersAreSingleFlight(t *testing.T) {
	m := testutil.NewScriptedModel("a", "b", "c")
	w := newTestWingman(m)
	w.Reconfigure(context.Background(), testConfig)
	w.SetContext(testutil.NewContextBuilder().File("main.go").Surrounding("func f() {}").Build())

	const callers = 12

	type result struct {
		chunks []string
		err    error
	}
	results := make(chan result, callers)
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start

			sink := &chunkSink{}
			var err error
			if i%2 == 0 {
				err = w.Generate(context.Background(), "hi", sink)
			} else {
				err = w.Inline(context.Background(), sink)
			}
			results <- result{chunks: sink.Chunks(), err: err}
		}(i)
	}
	close(start)
	wg.Wait()
	close(results)

	completed := 0
	for r := range results {
		if r.err != nil {
			assert.ErrorIs(t, r.err, core.ErrBusy)
			assert.Empty(t, r.chunks)
			continue
		}
		for i, c := range r.chunks {
			if c == sse.Done {
				assert.Equal(t, len(r.chunks)-1, i, "[DONE] must be the last chunk")
				completed++
			}
			assert.NotContains(t, c, `"error"`)
		}
	}

	assert.LessOrEqual(t, m.MaxConcurrent(), 1)
	assert.GreaterOrEqual(t, completed, 1)
	assert.False(t, w.Engine().IsStreaming())
}

var _ runner.Sink = (*chunkSink)(nil)
