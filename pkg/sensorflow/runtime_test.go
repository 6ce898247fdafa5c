package sensorflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const testConfig = `
sensors:
  - {id: s1, source: "w1:1", metric_key: s1}
  - {id: s2, source: "w1:2", metric_key: s2}
  - {id: s3, source: "w1:3", metric_key: s3}
schedule:
  sample_interval: 10s
  flush_interval: 10s
sink:
  kind: rrd
  retry_attempts: 1
  retry_delay: 1s
  rrd: {address: "localhost:13900", file: weather.rrd}
metrics:
  disabled: true
`

func loadTestConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := ParseConfig([]byte(testConfig))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

type stubReader struct {
	values map[string]float64
	closed bool
}

func (s *stubReader) Read(_ context.Context, source string) (float64, error) {
	v, ok := s.values[source]
	if !ok {
		return 0, errors.New("no device")
	}
	return v, nil
}

func (s *stubReader) Close() error {
	s.closed = true
	return nil
}

// stepClock jumps forward on every sleep.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return ctx.Err()
}

type stubAlerter struct {
	mu       sync.Mutex
	subjects []string
}

func (a *stubAlerter) Alert(_ context.Context, subject, _ string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.subjects = append(a.subjects, subject)
	return nil
}

type creatorSink struct {
	Sink
	keys []string
}

func (c *creatorSink) Create(_ context.Context, keys []string) error {
	c.keys = keys
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRuntimeWithCustomAdapters(t *testing.T) {
	reader := &stubReader{}
	sink := NewCallbackSink("stub", func(Flush) error { return nil })
	alerter := &stubAlerter{}

	rt, err := NewRuntime(loadTestConfig(t),
		WithDeviceReader(reader),
		WithSink(sink),
		WithAlerter(alerter),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("NewRuntime returned error: %v", err)
	}
	if rt.reader != reader {
		t.Fatalf("expected custom reader to be used")
	}
	if rt.channel.Sink() != sink {
		t.Fatalf("expected custom sink to be used")
	}
	if rt.runID == "" {
		t.Fatalf("expected a run id")
	}
	if len(rt.Sensors()) != 3 {
		t.Fatalf("expected 3 sensors, got %d", len(rt.Sensors()))
	}
}

func TestRuntimeRunFlushesMeans(t *testing.T) {
	reader := &stubReader{values: map[string]float64{"w1:1": 20.0, "w1:3": 21.0}}
	sink, flushes, closeFlushes := NewChannelSink("test", 1)
	defer closeFlushes()

	rt, err := NewRuntime(loadTestConfig(t),
		WithDeviceReader(reader),
		WithSink(sink),
		WithClock(&stepClock{now: time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)}),
		WithLogger(quietLogger()),
		WithRegistry(prometheus.NewRegistry()),
	)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	var first Flush
	select {
	case first = <-flushes:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a flush")
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error after cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runtime did not stop")
	}

	if len(first.Values) != 2 || first.Values["s1"] != 20.0 || first.Values["s3"] != 21.0 {
		t.Fatalf("unexpected flush values %v", first.Values)
	}
	if _, ok := first.Value("s2"); ok {
		t.Fatalf("s2 must be absent from the flush")
	}
	if !reader.closed {
		t.Fatalf("expected readers to be closed on shutdown")
	}
}

func TestRuntimeRunFailsWhenSinkUnreachable(t *testing.T) {
	alerter := &stubAlerter{}
	rt, err := NewRuntime(loadTestConfig(t),
		WithDeviceReader(&stubReader{}),
		WithSink(&unreachableSink{}),
		WithAlerter(alerter),
		WithClock(&stepClock{}),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}

	err = rt.Run(context.Background())
	if !errors.Is(err, ErrConnectFailed) {
		t.Fatalf("expected ErrConnectFailed, got %v", err)
	}
	if len(alerter.subjects) != 1 || alerter.subjects[0] != "CRITICAL" {
		t.Fatalf("expected one critical alert, got %v", alerter.subjects)
	}
}

type unreachableSink struct{ attempts int }

func (u *unreachableSink) Name() string    { return "unreachable" }
func (u *unreachableSink) Connected() bool { return false }
func (u *unreachableSink) Close() error    { return nil }
func (u *unreachableSink) Connect(context.Context) error {
	u.attempts++
	return errors.New("connection refused")
}
func (u *unreachableSink) Send(context.Context, Flush) error { return ErrNotConnected }

func TestRuntimeReadSensors(t *testing.T) {
	rt, err := NewRuntime(loadTestConfig(t),
		WithDeviceReader(&stubReader{values: map[string]float64{"w1:1": 20.5}}),
		WithSink(NewCallbackSink("", nil)),
		WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}

	readings := rt.ReadSensors(context.Background())
	if len(readings) != 3 {
		t.Fatalf("expected 3 readings, got %d", len(readings))
	}
	if readings[0].Value != 20.5 {
		t.Fatalf("expected 20.5, got %v", readings[0].Value)
	}
	if !math.IsNaN(readings[1].Value) {
		t.Fatalf("expected NaN for unreadable sensor, got %v", readings[1].Value)
	}
}

func TestRuntimeCreateDatabase(t *testing.T) {
	cs := &creatorSink{Sink: NewCallbackSink("rrd", func(Flush) error { return nil })}
	rt, err := NewRuntime(loadTestConfig(t), WithSink(cs), WithDeviceReader(&stubReader{}), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	if err := rt.CreateDatabase(context.Background()); err != nil {
		t.Fatalf("CreateDatabase: %v", err)
	}
	if strings.Join(cs.keys, ",") != "s1,s2,s3" {
		t.Fatalf("unexpected keys %v", cs.keys)
	}

	rt, err = NewRuntime(loadTestConfig(t), WithSink(NewCallbackSink("cb", nil)), WithDeviceReader(&stubReader{}), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	if err := rt.CreateDatabase(context.Background()); err == nil {
		t.Fatalf("expected error for sink without create support")
	}
}

func TestRuntimeHandler(t *testing.T) {
	rt, err := NewRuntime(loadTestConfig(t),
		WithDeviceReader(&stubReader{}),
		WithSink(&unreachableSink{}),
		WithLogger(quietLogger()),
		WithRegistry(prometheus.NewRegistry()),
	)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	h := rt.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while disconnected, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	var st Status
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Sink != "unreachable" || st.State != "disconnected" || st.RunID == "" {
		t.Fatalf("unexpected status %+v", st)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "sensorflow_flushes_total") {
		t.Fatalf("expected pipeline metrics, got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/status", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST, got %d", rec.Code)
	}
}
