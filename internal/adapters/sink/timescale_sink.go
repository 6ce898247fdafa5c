package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	_ "github.com/lib/pq"

	"github.com/ghalamif/SensorFlow/internal/domain"
	"github.com/ghalamif/SensorFlow/internal/ports"
)

// TimescaleConfig points the sink at a PostgreSQL/TimescaleDB table.
type TimescaleConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

func (c *TimescaleConfig) ApplyDefaults() {
	if c.Table == "" {
		c.Table = "sensor_means"
	}
}

func (c *TimescaleConfig) Validate() error {
	if c.ConnString == "" {
		return errors.New("conn_string is required")
	}
	for _, r := range c.Table {
		if !(r == '_' || r == '.' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return fmt.Errorf("table %q contains invalid characters", c.Table)
		}
	}
	return nil
}

// OpenTimescale opens a lazy lib/pq handle; no connection is made until Connect.
func OpenTimescale(cfg TimescaleConfig) (*TimescaleSink, error) {
	db, err := sql.Open("postgres", cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("open timescale: %w", err)
	}
	return NewTimescaleSink(db, cfg.Table), nil
}

// TimescaleSink stores one row per flushed metric.
type TimescaleSink struct {
	db        *sql.DB
	tableName string
	connected atomic.Bool
}

func NewTimescaleSink(db *sql.DB, table string) *TimescaleSink {
	return &TimescaleSink{db: db, tableName: table}
}

func (t *TimescaleSink) Name() string { return "timescaledb" }

func (t *TimescaleSink) Connected() bool { return t.connected.Load() }

func (t *TimescaleSink) Connect(ctx context.Context) error {
	if err := t.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping timescale: %w", err)
	}
	t.connected.Store(true)
	return nil
}

func (t *TimescaleSink) Send(ctx context.Context, f domain.Flush) error {
	if f.Empty() {
		return ports.ErrNothingToSend
	}

	// INSERT ... ON CONFLICT DO NOTHING keeps a replayed flush idempotent.
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (metric_key, ts, value) VALUES ")

	args := make([]any, 0, len(f.Values)*3)
	for _, k := range f.Keys {
		v, ok := f.Value(k)
		if !ok {
			continue
		}
		if len(args) > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d)", len(args)+1, len(args)+2, len(args)+3))
		args = append(args, k, f.Time, v)
	}

	b.WriteString(" ON CONFLICT (metric_key, ts) DO NOTHING")

	if _, err := t.db.ExecContext(ctx, b.String(), args...); err != nil {
		t.connected.Store(false)
		return err
	}
	return nil
}

// Create makes sure the table exists. Existing rows are kept.
func (t *TimescaleSink) Create(ctx context.Context, _ []string) error {
	_, err := t.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+t.tableName+
		" (metric_key TEXT NOT NULL, ts TIMESTAMPTZ NOT NULL, value DOUBLE PRECISION NOT NULL, PRIMARY KEY (metric_key, ts))")
	return err
}

func (t *TimescaleSink) Close() error {
	t.connected.Store(false)
	return t.db.Close()
}

var (
	_ ports.Sink    = (*TimescaleSink)(nil)
	_ ports.Creator = (*TimescaleSink)(nil)
)
