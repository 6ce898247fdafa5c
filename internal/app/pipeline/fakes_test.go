package pipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/ghalamif/SensorFlow/internal/domain"
	"github.com/ghalamif/SensorFlow/internal/ports"
)

var t0 = time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

// fakeClock advances only when slept on. onSleep runs after every advance.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(now time.Time)
}

func newFakeClock() *fakeClock { return &fakeClock{now: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	now, hook := c.now, c.onSleep
	c.mu.Unlock()
	if hook != nil {
		hook(now)
	}
	return ctx.Err()
}

type logEntry struct {
	level  string
	msg    string
	err    error
	fields []ports.Field
}

func (e logEntry) field(key string) any {
	for _, f := range e.fields {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

type recordingObs struct {
	mu       sync.Mutex
	logs     []logEntry
	counters map[string]float64
	gauges   map[string]float64
	latency  map[string]int
}

func newRecordingObs() *recordingObs {
	return &recordingObs{
		counters: map[string]float64{},
		gauges:   map[string]float64{},
		latency:  map[string]int{},
	}
}

func (o *recordingObs) add(level, msg string, err error, fields []ports.Field) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logs = append(o.logs, logEntry{level: level, msg: msg, err: err, fields: fields})
}

func (o *recordingObs) LogInfo(msg string, f ...ports.Field) { o.add("info", msg, nil, f) }

func (o *recordingObs) LogWarn(msg string, f ...ports.Field) { o.add("warn", msg, nil, f) }

func (o *recordingObs) LogError(msg string, err error, f ...ports.Field) {
	o.add("error", msg, err, f)
}

func (o *recordingObs) LogCritical(msg string, err error, f ...ports.Field) {
	o.add("critical", msg, err, f)
}

func (o *recordingObs) IncCounter(name string, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.counters[name] += v
}

func (o *recordingObs) ObserveLatency(name string, _ float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.latency[name]++
}

func (o *recordingObs) SetGauge(name string, v float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gauges[name] = v
}

func (o *recordingObs) counter(name string) float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counters[name]
}

func (o *recordingObs) find(level, msg string) []logEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []logEntry
	for _, e := range o.logs {
		if e.level == level && e.msg == msg {
			out = append(out, e)
		}
	}
	return out
}

type alertCall struct {
	subject string
	body    string
}

type recordingAlerter struct {
	mu    sync.Mutex
	calls []alertCall
	err   error
}

func (a *recordingAlerter) Alert(_ context.Context, subject, body string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, alertCall{subject: subject, body: body})
	return a.err
}

// fakeSink fails the first connectFailures handshakes. A failing send drops the
// connection unless keepOnError is set.
type fakeSink struct {
	mu              sync.Mutex
	connected       bool
	connectFailures int
	connects        int
	sendErr         error
	sendErrCount    int
	keepOnError     bool
	skipEmpty       bool
	sends           int
	sent            []domain.Flush
	onSend          func(f domain.Flush)
}

func (s *fakeSink) Name() string { return "fake" }

func (s *fakeSink) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeSink) Connect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	if s.connects <= s.connectFailures {
		return errors.New("connection refused")
	}
	s.connected = true
	return nil
}

func (s *fakeSink) Send(_ context.Context, f domain.Flush) error {
	s.mu.Lock()
	s.sends++
	if s.skipEmpty && f.Empty() {
		s.mu.Unlock()
		return ports.ErrNothingToSend
	}
	hook := s.onSend
	fail := s.sendErr != nil && (s.sendErrCount == 0 || s.sends <= s.sendErrCount)
	if fail {
		if !s.keepOnError {
			s.connected = false
		}
		err := s.sendErr
		s.mu.Unlock()
		return err
	}
	s.sent = append(s.sent, f)
	s.mu.Unlock()
	if hook != nil {
		hook(f)
	}
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *fakeSink) flushes() []domain.Flush {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Flush(nil), s.sent...)
}

// fakeReader returns a fixed value per source; unknown sources fail.
type fakeReader struct {
	mu     sync.Mutex
	values map[string]float64
	delay  time.Duration
	reads  int
	onRead func(source string)
}

func (r *fakeReader) Read(ctx context.Context, source string) (float64, error) {
	r.mu.Lock()
	r.reads++
	v, ok := r.values[source]
	hook := r.onRead
	r.mu.Unlock()
	if hook != nil {
		hook(source)
	}
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if !ok {
		return 0, errors.New("no such device")
	}
	return v, nil
}

func (r *fakeReader) Close() error { return nil }

var nan = math.NaN()
