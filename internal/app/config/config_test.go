package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimalRRD = `
sensors:
  - id: outdoor
    source: w1:28-000005e2fdc3
    metric_key: tempf
    unit: f
sink:
  kind: rrd
  rrd:
    address: localhost:13900
    file: /var/lib/rrd/weather.rrd
`

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(minimalRRD), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.DevicePath != "/sys/bus/w1/devices/$/w1_slave" {
		t.Fatalf("expected default device path, got %s", cfg.DevicePath)
	}
	if cfg.Schedule.SampleInterval != 10*time.Second || cfg.Schedule.FlushInterval != time.Minute {
		t.Fatalf("unexpected schedule defaults %+v", cfg.Schedule)
	}
	if cfg.Schedule.MinReadings != 1 {
		t.Fatalf("expected MinReadings default 1, got %d", cfg.Schedule.MinReadings)
	}
	if cfg.Sensors[0].Unit != "F" {
		t.Fatalf("expected unit to be upper-cased, got %s", cfg.Sensors[0].Unit)
	}
	if cfg.Sink.RRD.Step != time.Minute {
		t.Fatalf("expected rrd step to follow flush interval, got %s", cfg.Sink.RRD.Step)
	}
	if cfg.Sink.RRD.Heartbeat != 20 || len(cfg.Sink.RRD.Archives) != 4 {
		t.Fatalf("expected rrd create defaults, got %+v", cfg.Sink.RRD)
	}
	pol := cfg.Policy()
	if pol.RetryAttempts != 5 || pol.ReconnectAttempts != 5 || pol.RetryDelay != 10*time.Second {
		t.Fatalf("unexpected sink policy %+v", pol)
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Fatalf("expected default metrics addr :9100, got %s", cfg.Metrics.Addr)
	}
	if cfg.AlertCooldown() != time.Hour {
		t.Fatalf("expected alert cooldown 1h, got %s", cfg.AlertCooldown())
	}
	if cfg.BacklogWarnCooldown() != 5*time.Minute {
		t.Fatalf("expected backlog warn cooldown 5m, got %s", cfg.BacklogWarnCooldown())
	}
}

func TestParseHonoursExplicitZero(t *testing.T) {
	raw := minimalRRD + `  retry_attempts: 0
schedule:
  backlog_warn_cooldown: 0s
alert:
  cooldown: 0s
`
	cfg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	pol := cfg.Policy()
	if pol.RetryAttempts != 0 || pol.ReconnectAttempts != 0 {
		t.Fatalf("expected a single connect attempt, got %+v", pol)
	}
	if cfg.AlertCooldown() != 0 {
		t.Fatalf("expected alert suppression disabled, got %s", cfg.AlertCooldown())
	}
	if cfg.BacklogWarnCooldown() != 0 {
		t.Fatalf("expected backlog warning suppression disabled, got %s", cfg.BacklogWarnCooldown())
	}
}

func TestParseRejectsNegativeRetryAttempts(t *testing.T) {
	if _, err := Parse([]byte(minimalRRD + "  retry_attempts: -1\n")); err == nil {
		t.Fatalf("expected negative retry_attempts to be rejected")
	}
}

func TestParseStripsCommentLines(t *testing.T) {
	raw := `{
  // sensors are read every sample_interval
  "sensors": [
    {"id": "s1", "source": "w1:28-1", "metric_key": "tempf"},
    {"id": "s2", "source": "w1:28-2", "metric_key": "tempf"},
    {"id": "s3", "source": "opc.tcp://plc:4840#ns=2;s=Soil", "metric_key": "soiltempf"}
  ],
  // "sink": {"kind": "mqtt"},
  "sink": {"kind": "wunderground", "reconnect_attempts": -1,
           "wunderground": {"id": "KXX123", "password": "secret"}}
}`
	cfg, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Sink.Kind != "wunderground" {
		t.Fatalf("commented sink must be ignored, got %s", cfg.Sink.Kind)
	}
	if got := cfg.Policy().ReconnectAttempts; got != -1 {
		t.Fatalf("expected explicit reconnect_attempts -1, got %d", got)
	}
	if keys := cfg.MetricKeys(); strings.Join(keys, ",") != "tempf,soiltempf" {
		t.Fatalf("unexpected metric keys %v", keys)
	}
	specs := cfg.SensorSpecs()
	if len(specs) != 3 || specs[2].Source != "opc.tcp://plc:4840#ns=2;s=Soil" {
		t.Fatalf("unexpected specs %+v", specs)
	}
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("SENSORFLOW_SINK_ADDRESS", "rrd.internal:13900")
	t.Setenv("SENSORFLOW_ALERT_EMAIL", "ops@example.org")

	cfg, err := Parse([]byte(minimalRRD))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Sink.RRD.Address != "rrd.internal:13900" {
		t.Fatalf("expected env address override, got %s", cfg.Sink.RRD.Address)
	}
	if cfg.Alert.Email != "ops@example.org" {
		t.Fatalf("expected env alert email, got %s", cfg.Alert.Email)
	}
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"no sensors": `sink: {kind: rrd, rrd: {address: "a:1", file: f}}`,
		"duplicate id": `
sensors:
  - {id: a, source: w1:1}
  - {id: a, source: w1:2}
sink: {kind: rrd, rrd: {address: "a:1", file: f}}`,
		"bad unit": `
sensors: [{id: a, source: w1:1, unit: K}]
sink: {kind: rrd, rrd: {address: "a:1", file: f}}`,
		"flush shorter than sample": `
sensors: [{id: a, source: w1:1}]
schedule: {sample_interval: 30s, flush_interval: 10s}
sink: {kind: rrd, rrd: {address: "a:1", file: f}}`,
		"missing sink settings": `
sensors: [{id: a, source: w1:1}]
sink: {kind: wunderground}`,
		"unknown sink": `
sensors: [{id: a, source: w1:1}]
sink: {kind: kafka}`,
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}
