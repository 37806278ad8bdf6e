package agent

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dontdude/scanprint/internal/config"
	"github.com/dontdude/scanprint/internal/domain"
	"github.com/dontdude/scanprint/internal/platform/keyboard"
	"github.com/dontdude/scanprint/internal/platform/queue"
	"github.com/dontdude/scanprint/internal/platform/relay"
	"github.com/dontdude/scanprint/internal/platform/web"
)

type submitted struct {
	mu       sync.Mutex
	payloads []string
	sources  []domain.Source
}

func (s *submitted) submit(ctx context.Context, payload string, src domain.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	s.sources = append(s.sources, src)
	return nil
}

func (s *submitted) Payloads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.payloads...)
}

func TestPollLoop_DrainsQueueThenWaits(t *testing.T) {
	p := &scriptedPoller{results: []pollResult{{payload: "a"}, {payload: "b"}, {payload: "c"}}}
	var got submitted

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pollLoop(ctx, p, time.Hour, time.Hour, got.submit, func(string) {})
		close(done)
	}()

	require.Eventually(t, func() bool { return p.Calls() == 4 }, time.Second, 5*time.Millisecond)
	// The fourth poll found the queue empty; the loop now sleeps for the interval.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 4, p.Calls())
	assert.Equal(t, []string{"a", "b", "c"}, got.Payloads())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pollLoop ignored cancellation")
	}
}

func TestPollLoop_RetriesAfterTransportError(t *testing.T) {
	p := &scriptedPoller{results: []pollResult{
		{err: domain.Wrap(domain.KindTransport, "poll", errors.New("connection refused"))},
		{payload: "after-retry"},
	}}
	var got submitted
	status := &statusRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pollLoop(ctx, p, time.Hour, 10*time.Millisecond, got.submit, status.record)

	require.Eventually(t, func() bool { return len(got.Payloads()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "after-retry", got.Payloads()[0])
	require.NotEmpty(t, status.Messages())
	assert.Contains(t, status.Messages()[0], "server unreachable")
}

func TestPushLoop_ReconnectsAfterDrop(t *testing.T) {
	l := &flakyListener{payloads: []string{"pushed"}}
	var got submitted

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pushLoop(ctx, l, 10*time.Millisecond, got.submit, func(string) {})
		close(done)
	}()

	require.Eventually(t, func() bool { return len(got.Payloads()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, l.Attempts())
	got.mu.Lock()
	assert.Equal(t, domain.SourcePush, got.sources[0])
	got.mu.Unlock()

	cancel()
	<-done
}

func TestNew_ValidatesMode(t *testing.T) {
	deps := newFixture().pipeline.deps
	p := &scriptedPoller{}
	l := &flakyListener{}

	_, err := New(Options{Mode: config.ModePush}, deps, p, nil, nil)
	assert.Error(t, err)
	_, err = New(Options{Mode: config.ModePoll}, deps, nil, l, nil)
	assert.Error(t, err)
	_, err = New(Options{Mode: config.ModeBoth}, deps, p, nil, nil)
	assert.Error(t, err)
	_, err = New(Options{Mode: "carrier-pigeon"}, deps, p, l, nil)
	assert.Error(t, err)

	a, err := New(Options{}, deps, nil, l, nil)
	require.NoError(t, err)
	assert.Equal(t, config.ModePush, a.opts.Mode)
}

func TestAgent_KeyboardInterruptStopsRun(t *testing.T) {
	f := newFixture()
	keys := funcKeySource(func(ctx context.Context, emit func(string)) error {
		emit("0104601234567890215")
		return keyboard.ErrInterrupted
	})

	a, err := New(Options{Mode: config.ModePush}, f.pipeline.deps, nil, &flakyListener{}, keys)
	require.NoError(t, err)

	err = a.Run(context.Background())
	assert.ErrorIs(t, err, keyboard.ErrInterrupted)
	// Run drains the pipeline before returning.
	assert.Len(t, f.printer.Printed(), 1)
	recs := f.audit.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, domain.SourceKeyboard, recs[0].Source)
}

func TestAgent_BothModesPrintOnce(t *testing.T) {
	q := queue.NewMemoryQueue()
	srv := httptest.NewServer(web.NewRouter(web.RouterConfig{Queue: q}))
	defer srv.Close()

	sub, err := relay.NewSubscriber(srv.URL, time.Second)
	require.NoError(t, err)
	client := relay.NewClient(srv.URL, time.Second)

	f := newFixture()
	a, err := New(Options{
		Mode:           config.ModeBoth,
		PollInterval:   10 * time.Millisecond,
		ReconnectDelay: 10 * time.Millisecond,
	}, f.pipeline.deps, client, sub, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return q.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, client.Submit(context.Background(), "LOT-2026-0001"))

	// Push delivers it and poll drains the same job; dedup keeps one print.
	require.Eventually(t, func() bool { return q.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(f.printer.Printed()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, f.printer.Printed(), 1)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
