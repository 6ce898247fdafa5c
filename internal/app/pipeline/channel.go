package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ghalamif/SensorFlow/internal/domain"
	"github.com/ghalamif/SensorFlow/internal/ports"
)

// ConnState is the connection state of an OutputChannel.
type ConnState int32

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// OutputChannel owns the sink connection: bounded connect retries and a send that
// refuses to touch the network while disconnected. It is not safe for concurrent Send.
type OutputChannel struct {
	sink       ports.Sink
	clock      ports.Clock
	obs        ports.Observability
	connecting atomic.Bool
}

func NewOutputChannel(sink ports.Sink, clock ports.Clock, obs ports.Observability) *OutputChannel {
	if clock == nil {
		clock = WallClock
	}
	return &OutputChannel{sink: sink, clock: clock, obs: obs}
}

func (c *OutputChannel) Name() string { return c.sink.Name() }

// Sink exposes the underlying transport for sink-specific operations such as create.
func (c *OutputChannel) Sink() ports.Sink { return c.sink }

func (c *OutputChannel) State() ConnState {
	if c.connecting.Load() {
		return Connecting
	}
	if c.sink.Connected() {
		return Connected
	}
	return Disconnected
}

// Connect makes up to attempts+1 handshakes, waiting delay between them. A negative
// attempts value keeps trying until ctx is done. Connect is a no-op when connected.
func (c *OutputChannel) Connect(ctx context.Context, attempts int, delay time.Duration) error {
	if c.sink.Connected() {
		return nil
	}
	c.connecting.Store(true)
	defer c.connecting.Store(false)

	var (
		err   error
		tries int
	)
	for attempts < 0 || tries <= attempts {
		if tries > 0 {
			if serr := c.clock.Sleep(ctx, delay); serr != nil {
				return fmt.Errorf("%w: %s: %w", ports.ErrConnectFailed, c.sink.Name(), serr)
			}
		}
		tries++

		err = c.sink.Connect(ctx)
		if err == nil {
			c.obs.SetGauge(MetricSinkConnected, 1)
			c.obs.LogInfo("sink_connected",
				ports.Field{Key: "sink", Value: c.sink.Name()},
				ports.Field{Key: "attempt", Value: tries})
			return nil
		}
		c.obs.LogWarn("sink_connect_attempt_failed",
			ports.Field{Key: "sink", Value: c.sink.Name()},
			ports.Field{Key: "attempt", Value: tries},
			ports.Field{Key: "error", Value: err.Error()})

		if ctx.Err() != nil {
			break
		}
	}
	c.obs.SetGauge(MetricSinkConnected, 0)
	return fmt.Errorf("%w: %s after %d attempt(s): %w", ports.ErrConnectFailed, c.sink.Name(), tries, err)
}

// Send delivers one flush. A failure is returned as is; the caller decides whether to
// reconnect. Socket sinks drop their connection on failure, stateless sinks do not.
func (c *OutputChannel) Send(ctx context.Context, f domain.Flush) error {
	if !c.sink.Connected() {
		return ports.ErrNotConnected
	}

	start := c.clock.Now()
	if err := c.sink.Send(ctx, f); err != nil {
		if errors.Is(err, ports.ErrNothingToSend) {
			return err
		}
		c.obs.IncCounter(MetricUploadsFailed, 1)
		if !c.sink.Connected() {
			c.obs.SetGauge(MetricSinkConnected, 0)
		}
		return fmt.Errorf("send to %s: %w", c.sink.Name(), err)
	}
	c.obs.ObserveLatency(MetricUploadLatency, c.clock.Now().Sub(start).Seconds())
	return nil
}

func (c *OutputChannel) Close() error {
	c.obs.SetGauge(MetricSinkConnected, 0)
	return c.sink.Close()
}
