// Package statussync keeps a local copy of the backend processing queue. The
// push channel only says "something changed"; every change is followed by a
// full pull that replaces the local snapshot.
package statussync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"upqueue/internal/models"
	"upqueue/internal/render"
	"upqueue/internal/websocket"
)

var ErrPushGaveUp = errors.New("statussync: push channel reconnect attempts exhausted")

type State int32

const (
	Disconnected State = iota
	Connecting
	Live
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Live:
		return "LIVE"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Fetcher pulls the current processing state.
type Fetcher interface {
	GetState(ctx context.Context) ([]models.StateItem, error)
}

// Stream is an open push connection.
type Stream interface {
	// Next blocks until the next dirty signal and fails once the
	// connection is gone.
	Next() error
	Close() error
}

type PushChannel interface {
	Connect(ctx context.Context) (Stream, error)
}

type websocketChannel struct {
	l *websocket.Listener
}

// WebsocketChannel adapts a websocket listener to a PushChannel.
func WebsocketChannel(l *websocket.Listener) PushChannel {
	return websocketChannel{l: l}
}

func (c websocketChannel) Connect(ctx context.Context) (Stream, error) {
	s, err := c.l.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type Options struct {
	// PollInterval adds a periodic pull on top of push signals. Zero disables it.
	PollInterval time.Duration

	ReconnectInitial  time.Duration
	ReconnectMax      time.Duration
	ReconnectAttempts int

	OnChange      func(rows []render.Row)
	OnStateChange func(state State)
	Logger        *slog.Logger
}

type Sync struct {
	fetcher Fetcher
	push    PushChannel
	opts    Options
	log     *slog.Logger

	state atomic.Int32
	dirty chan struct{}
	pull  sync.Mutex

	mu    sync.RWMutex
	items []models.QueueItem
	rows  []render.Row
}

// New returns a Sync. push may be nil, in which case only explicit refreshes
// and polling update the view.
func New(fetcher Fetcher, push PushChannel, opts Options) *Sync {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.ReconnectInitial <= 0 {
		opts.ReconnectInitial = 2 * time.Second
	}
	if opts.ReconnectMax < opts.ReconnectInitial {
		opts.ReconnectMax = opts.ReconnectInitial
	}
	return &Sync{
		fetcher: fetcher,
		push:    push,
		opts:    opts,
		log:     log,
		dirty:   make(chan struct{}, 1),
	}
}

func (s *Sync) State() State {
	return State(s.state.Load())
}

func (s *Sync) setState(state State) {
	if State(s.state.Swap(int32(state))) == state {
		return
	}
	s.log.Debug("Status sync state", "state", state)
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(state)
	}
}

// Refresh schedules a pull. Requests made while a pull is pending or running
// collapse into a single follow-up pull.
func (s *Sync) Refresh() {
	select {
	case s.dirty <- struct{}{}:
	default:
	}
}

// RefreshNow pulls and applies the state synchronously. On failure the
// current view is kept.
func (s *Sync) RefreshNow(ctx context.Context) error {
	s.pull.Lock()
	defer s.pull.Unlock()

	items, err := s.fetcher.GetState(ctx)
	if err != nil {
		s.log.Error("State pull failed, keeping current view", "error", err)
		return err
	}

	s.apply(items)
	return nil
}

func (s *Sync) apply(wire []models.StateItem) {
	var items []models.QueueItem
	if len(wire) > 0 {
		items = make([]models.QueueItem, len(wire))
		for i, w := range wire {
			items[i] = w.QueueItem()
		}
	}
	rows := render.Rows(items)

	s.mu.Lock()
	s.items = items
	s.rows = rows
	s.mu.Unlock()

	s.log.Debug("Queue view replaced", "items", len(items))
	if s.opts.OnChange != nil {
		s.opts.OnChange(append([]render.Row(nil), rows...))
	}
}

// Items returns the latest snapshot in backend order.
func (s *Sync) Items() []models.QueueItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.QueueItem(nil), s.items...)
}

// Rows returns the latest snapshot as display rows, most recent first.
func (s *Sync) Rows() []render.Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]render.Row(nil), s.rows...)
}

// Run serves refreshes until ctx is done. The push channel is kept connected
// while reconnect attempts remain; once they are exhausted the view still
// answers Refresh and polling.
func (s *Sync) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pullLoop(ctx)
	}()

	if s.opts.PollInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.pollLoop(ctx)
		}()
	}

	s.Refresh()

	if s.push != nil {
		if err := s.pushLoop(ctx); err != nil {
			s.log.Error("Push channel stopped", "error", err)
		}
	}

	<-ctx.Done()
	cancel()
	wg.Wait()
	return nil
}

func (s *Sync) pullLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.dirty:
			_ = s.RefreshNow(ctx)
		}
	}
}

func (s *Sync) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh()
		}
	}
}

func (s *Sync) pushLoop(ctx context.Context) error {
	attempt := 0
	for {
		s.setState(Connecting)
		stream, err := s.push.Connect(ctx)
		if err == nil {
			attempt = 0
			s.setState(Live)
			s.Refresh()
			err = s.consume(ctx, stream)
		}
		s.setState(Disconnected)

		if ctx.Err() != nil {
			return nil
		}

		attempt++
		if attempt > s.opts.ReconnectAttempts {
			return fmt.Errorf("%w: %w", ErrPushGaveUp, err)
		}

		delay := backoffDelay(attempt, s.opts.ReconnectInitial, s.opts.ReconnectMax)
		s.log.Warn("Push channel lost, reconnecting", "error", err, "attempt", attempt, "retryIn", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (s *Sync) consume(ctx context.Context, stream Stream) error {
	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer func() {
		if stop() {
			stream.Close()
		}
	}()

	for {
		if err := stream.Next(); err != nil {
			return err
		}
		s.Refresh()
	}
}
