package statussync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upqueue/internal/models"
	"upqueue/internal/render"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   atomic.Int32
	items   []models.StateItem
	err     error
	gate    chan struct{}
	started chan struct{}
}

func (f *fakeFetcher) GetState(ctx context.Context) ([]models.StateItem, error) {
	n := f.calls.Add(1)
	if n == 1 && f.gate != nil {
		close(f.started)
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items, f.err
}

func (f *fakeFetcher) set(items []models.StateItem, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items, f.err = items, err
}

type fakeStream struct {
	signals chan struct{}
	closed  chan struct{}
	once    sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{signals: make(chan struct{}), closed: make(chan struct{})}
}

func (s *fakeStream) Next() error {
	select {
	case <-s.signals:
		return nil
	case <-s.closed:
		return errors.New("connection closed")
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type fakePush struct {
	mu       sync.Mutex
	streams  chan *fakeStream
	failures int
	connects int
}

func (p *fakePush) Connect(ctx context.Context) (Stream, error) {
	p.mu.Lock()
	p.connects++
	if p.failures > 0 {
		p.failures--
		p.mu.Unlock()
		return nil, errors.New("dial refused")
	}
	p.mu.Unlock()

	s := newFakeStream()
	p.streams <- s
	return s, nil
}

func (p *fakePush) connectCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connects
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) get() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func runSync(t *testing.T, s *Sync) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func pos(n int64) models.StateItem {
	return models.StateItem{FileName: "f", Status: "PENDING", QueuePosition: n}
}

func TestRefreshDebounce(t *testing.T) {
	f := &fakeFetcher{gate: make(chan struct{}), started: make(chan struct{})}
	s := New(f, nil, Options{})
	runSync(t, s)

	<-f.started
	for i := 0; i < 5; i++ {
		s.Refresh()
	}
	close(f.gate)

	require.Eventually(t, func() bool { return f.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.EqualValues(t, 2, f.calls.Load())
}

func TestApplyReplacesView(t *testing.T) {
	var changes atomic.Int32
	f := &fakeFetcher{items: []models.StateItem{
		{FileName: "a.png", Status: "PENDING", QueuePosition: 2},
		{FileName: "b.png", Status: "PROCESSED", QueuePosition: -1, Link: "https://x/b.png"},
	}}
	s := New(f, nil, Options{OnChange: func([]render.Row) { changes.Add(1) }})

	require.NoError(t, s.RefreshNow(context.Background()))
	rows := s.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "b.png", rows[0].FileName)
	require.NotNil(t, rows[0].Download)
	assert.Equal(t, "https://x/b.png", rows[0].Download.Href)
	assert.Equal(t, "2", rows[1].Secondary)

	t.Run("failed pull keeps the view", func(t *testing.T) {
		f.set(nil, errors.New("502"))
		assert.Error(t, s.RefreshNow(context.Background()))
		assert.Len(t, s.Rows(), 2)
		assert.EqualValues(t, 1, changes.Load())
	})

	t.Run("null clears", func(t *testing.T) {
		f.set(nil, nil)
		require.NoError(t, s.RefreshNow(context.Background()))
		assert.Empty(t, s.Rows())
		assert.Empty(t, s.Items())
		assert.EqualValues(t, 2, changes.Load())
	})
}

func TestNegativePositionIsAbsent(t *testing.T) {
	f := &fakeFetcher{items: []models.StateItem{pos(-1), pos(0)}}
	s := New(f, nil, Options{})
	require.NoError(t, s.RefreshNow(context.Background()))

	items := s.Items()
	assert.Nil(t, items[0].QueuePosition)
	require.NotNil(t, items[1].QueuePosition)
	assert.Equal(t, 0, *items[1].QueuePosition)
}

func TestPushLifecycle(t *testing.T) {
	f := &fakeFetcher{}
	push := &fakePush{streams: make(chan *fakeStream, 4)}
	rec := &stateRecorder{}

	s := New(f, push, Options{
		ReconnectAttempts: 0,
		OnStateChange:     rec.record,
	})
	assert.Equal(t, Disconnected, s.State())
	runSync(t, s)

	stream := <-push.streams
	require.Eventually(t, func() bool { return s.State() == Live }, time.Second, 5*time.Millisecond)
	// baseline pull on entering Live, plus the start-up refresh that may
	// have collapsed into it
	require.Eventually(t, func() bool { return f.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)

	before := f.calls.Load()
	stream.signals <- struct{}{}
	require.Eventually(t, func() bool { return f.calls.Load() > before }, time.Second, 5*time.Millisecond)

	stream.Close()
	require.Eventually(t, func() bool { return s.State() == Disconnected }, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, push.connectCount(), "no reconnect without attempts")
	assert.Equal(t, []State{Connecting, Live, Disconnected}, rec.get())

	// explicit refresh still works without the push channel
	before = f.calls.Load()
	s.Refresh()
	require.Eventually(t, func() bool { return f.calls.Load() > before }, time.Second, 5*time.Millisecond)
}

func TestPushReconnects(t *testing.T) {
	f := &fakeFetcher{}
	push := &fakePush{streams: make(chan *fakeStream, 4), failures: 1}

	s := New(f, push, Options{
		ReconnectInitial:  time.Millisecond,
		ReconnectMax:      5 * time.Millisecond,
		ReconnectAttempts: 3,
	})
	runSync(t, s)

	first := <-push.streams
	require.Eventually(t, func() bool { return s.State() == Live }, time.Second, time.Millisecond)
	first.Close()

	<-push.streams
	require.Eventually(t, func() bool { return s.State() == Live }, time.Second, time.Millisecond)
	assert.Equal(t, 3, push.connectCount())
}

func TestRunStopsOnCancel(t *testing.T) {
	push := &fakePush{streams: make(chan *fakeStream, 1)}
	s := New(&fakeFetcher{}, push, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- s.Run(ctx) }()

	stream := <-push.streams
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
	select {
	case <-stream.closed:
	default:
		t.Fatal("stream left open")
	}
	assert.Equal(t, Disconnected, s.State())
}

func TestPollInterval(t *testing.T) {
	f := &fakeFetcher{}
	s := New(f, nil, Options{PollInterval: 10 * time.Millisecond})
	runSync(t, s)

	require.Eventually(t, func() bool { return f.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestBackoffDelay(t *testing.T) {
	initial, maxDelay := 100*time.Millisecond, time.Second
	for attempt := 1; attempt <= 8; attempt++ {
		base := min(initial<<(attempt-1), maxDelay)
		for i := 0; i < 20; i++ {
			d := backoffDelay(attempt, initial, maxDelay)
			assert.GreaterOrEqual(t, d, base/2, "attempt %d", attempt)
			assert.LessOrEqual(t, d, base+base/2, "attempt %d", attempt)
		}
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "DISCONNECTED", Disconnected.String())
	assert.Equal(t, "CONNECTING", Connecting.String())
	assert.Equal(t, "LIVE", Live.String())
}
