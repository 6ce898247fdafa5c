package sensorflow

import (
	"github.com/ghalamif/SensorFlow/internal/adapters/opcua"
	"github.com/ghalamif/SensorFlow/internal/adapters/sink"
	"github.com/ghalamif/SensorFlow/internal/app/config"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// SensorConfig describes one sensor entry.
	SensorConfig = config.SensorConfig
	// ScheduleConfig holds the sample and flush cadences.
	ScheduleConfig = config.ScheduleConfig
	// SinkConfig selects the sink and its retry policy.
	SinkConfig = config.SinkConfig
	// RRDConfig configures the rrdtool line protocol sink.
	RRDConfig = sink.RRDConfig
	// WundergroundConfig configures the HTTP weather upload sink.
	WundergroundConfig = sink.WundergroundConfig
	// TimescaleConfig configures the PostgreSQL sink.
	TimescaleConfig = sink.TimescaleConfig
	// MQTTConfig configures the MQTT sink.
	MQTTConfig = sink.MQTTConfig
	// OPCUAConfig holds the OPC UA session settings.
	OPCUAConfig = opcua.Config
	// AlertConfig configures mail alerts.
	AlertConfig = config.AlertConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// LogConfig configures the structured logger.
	LogConfig = config.LogConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseConfig decodes configuration held in memory.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw)
}

// WriteEnvReport prints the environment overrides in effect to stdout.
func WriteEnvReport() error {
	return config.WriteEnvReport()
}
