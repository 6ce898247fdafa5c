package sink

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ghalamif/SensorFlow/internal/domain"
	"github.com/ghalamif/SensorFlow/internal/ports"
)

// DefaultArchives are the round robin archives created for a new database.
var DefaultArchives = []string{
	"RRA:AVERAGE:0.5:6:1440",
	"RRA:MAX:0.5:360:438000",
	"RRA:MIN:0.5:360:438000",
	"RRA:AVERAGE:0.5:360:438000",
}

// RRDConfig describes an rrdtool server reachable over TCP (rrdcached or "rrdtool -" behind inetd).
type RRDConfig struct {
	Address      string        `yaml:"address"`
	File         string        `yaml:"file"`
	Step         time.Duration `yaml:"step"`
	Heartbeat    int           `yaml:"heartbeat"`
	Min          string        `yaml:"min"`
	Max          string        `yaml:"max"`
	Archives     []string      `yaml:"archives"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

func (c *RRDConfig) ApplyDefaults() {
	if c.Heartbeat == 0 {
		c.Heartbeat = 20
	}
	if c.Min == "" {
		c.Min = "-55"
	}
	if c.Max == "" {
		c.Max = "125"
	}
	if len(c.Archives) == 0 {
		c.Archives = append([]string(nil), DefaultArchives...)
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
}

func (c *RRDConfig) Validate() error {
	if c.Address == "" {
		return errors.New("address is required")
	}
	if c.File == "" {
		return errors.New("file is required")
	}
	if c.Step < time.Second {
		return fmt.Errorf("step must be at least 1s, got %s", c.Step)
	}
	for _, a := range c.Archives {
		if !strings.HasPrefix(a, "RRA:") {
			return fmt.Errorf("archive %q must start with RRA:", a)
		}
	}
	return nil
}

// DialFunc opens the TCP connection to the rrdtool server.
type DialFunc func(ctx context.Context, addr string) (net.Conn, error)

// RRDSink writes rrdtool commands, one per line, without reading responses.
// It is not meant to be used from multiple goroutines.
type RRDSink struct {
	cfg  RRDConfig
	dial DialFunc

	mu        sync.Mutex
	conn      net.Conn
	connected atomic.Bool
}

func NewRRDSink(cfg RRDConfig) *RRDSink {
	dialer := &net.Dialer{Timeout: cfg.DialTimeout}
	return &RRDSink{
		cfg: cfg,
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp", addr)
		},
	}
}

func (r *RRDSink) Name() string { return "rrd" }

func (r *RRDSink) Connected() bool { return r.connected.Load() }

func (r *RRDSink) Connect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn != nil {
		return nil
	}
	conn, err := r.dial(ctx, r.cfg.Address)
	if err != nil {
		return fmt.Errorf("dial rrdtool %s: %w", r.cfg.Address, err)
	}
	r.conn = conn
	r.connected.Store(true)
	return nil
}

func (r *RRDSink) Send(_ context.Context, f domain.Flush) error {
	return r.writeLine(UpdateCommand(r.cfg.File, f))
}

// Create sends the command that (re)creates the database file for keys.
func (r *RRDSink) Create(_ context.Context, keys []string) error {
	return r.writeLine(CreateCommand(r.cfg, keys))
}

func (r *RRDSink) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closeLocked()
}

func (r *RRDSink) writeLine(cmd string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return ports.ErrNotConnected
	}

	if err := r.conn.SetWriteDeadline(time.Now().Add(r.cfg.WriteTimeout)); err != nil {
		_ = r.closeLocked()
		return err
	}
	if _, err := r.conn.Write([]byte(cmd + "\n")); err != nil {
		_ = r.closeLocked()
		return err
	}
	return nil
}

func (r *RRDSink) closeLocked() error {
	r.connected.Store(false)
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

// UpdateCommand formats "update <file> -t k1:k2 N:v1:v2". Missing values are written as U.
func UpdateCommand(file string, f domain.Flush) string {
	vals := make([]string, len(f.Keys))
	for i, k := range f.Keys {
		v, ok := f.Value(k)
		if !ok {
			vals[i] = "U"
			continue
		}
		vals[i] = formatValue(v)
	}
	return fmt.Sprintf("update %s -t %s N:%s", file, strings.Join(f.Keys, ":"), strings.Join(vals, ":"))
}

// CreateCommand formats the rrdtool create command with one GAUGE data source per key.
func CreateCommand(cfg RRDConfig, keys []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "create %s --step %d", cfg.File, int64(cfg.Step/time.Second))
	for _, k := range keys {
		fmt.Fprintf(&b, " DS:%s:GAUGE:%d:%s:%s", k, cfg.Heartbeat, cfg.Min, cfg.Max)
	}
	for _, a := range cfg.Archives {
		b.WriteString(" ")
		b.WriteString(a)
	}
	return b.String()
}

func formatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "U"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var (
	_ ports.Sink    = (*RRDSink)(nil)
	_ ports.Creator = (*RRDSink)(nil)
)
