package sensorflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
var ErrChannelSinkClosed = errors.New("sensorflow: channel sink closed")

// FlushHandler receives every flush produced by the pipeline.
type FlushHandler func(Flush) error

// NewCallbackSink adapts a FlushHandler into a full Sink implementation so callers
// can plug arbitrary functions without defining structs. It is always connected.
func NewCallbackSink(name string, fn FlushHandler) Sink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes flushes via a channel; it returns the sink, the read-only channel,
// and a close function that the caller should invoke during shutdown.
func NewChannelSink(name string, buffer int) (Sink, <-chan Flush, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Flush, buffer)
	s := &channelSink{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return s, ch, func() { s.close() }
}

type callbackSink struct {
	name string
	fn   FlushHandler
}

func (s *callbackSink) Name() string                  { return s.name }
func (s *callbackSink) Connect(context.Context) error { return nil }
func (s *callbackSink) Connected() bool               { return true }
func (s *callbackSink) Close() error                  { return nil }

func (s *callbackSink) Send(_ context.Context, f Flush) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	return s.fn(copyFlush(f))
}

type channelSink struct {
	name     string
	ch       chan Flush
	closed   chan struct{}
	once     sync.Once
	isClosed atomic.Bool

	// senders hold a read lock so ch is never closed under a pending send
	mu sync.RWMutex
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) Connect(context.Context) error {
	if s.isClosed.Load() {
		return ErrChannelSinkClosed
	}
	return nil
}

func (s *channelSink) Connected() bool { return !s.isClosed.Load() }

// Close is a no-op; the channel is closed by the function returned from NewChannelSink.
func (s *channelSink) Close() error { return nil }

func (s *channelSink) Send(ctx context.Context, f Flush) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	default:
	}

	select {
	case <-s.closed:
		return ErrChannelSinkClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.ch <- copyFlush(f):
		return nil
	}
}

func (s *channelSink) close() {
	s.once.Do(func() {
		s.isClosed.Store(true)
		close(s.closed)
		s.mu.Lock()
		close(s.ch)
		s.mu.Unlock()
	})
}

func copyFlush(f Flush) Flush {
	out := Flush{
		Time:   f.Time,
		Keys:   append([]string(nil), f.Keys...),
		Values: make(map[string]float64, len(f.Values)),
	}
	for k, v := range f.Values {
		out.Values[k] = v
	}
	return out
}
