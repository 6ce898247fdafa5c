package sensorflow

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	base "github.com/ghalamif/SensorFlow/pkg/sensorflow"
)

// Re-exported errors for convenience.
var (
	ErrNotConnected      = base.ErrNotConnected
	ErrConnectFailed     = base.ErrConnectFailed
	ErrUploadRejected    = base.ErrUploadRejected
	ErrUnknownSensor     = base.ErrUnknownSensor
	ErrUnknownMetric     = base.ErrUnknownMetric
	ErrNothingToSend     = base.ErrNothingToSend
	ErrChannelSinkClosed = base.ErrChannelSinkClosed
)

// Connection states of the output channel.
const (
	Disconnected = base.Disconnected
	Connecting   = base.Connecting
	Connected    = base.Connected
)

// Type aliases so consumers can import github.com/ghalamif/SensorFlow directly.
type (
	Config             = base.Config
	SensorConfig       = base.SensorConfig
	ScheduleConfig     = base.ScheduleConfig
	SinkConfig         = base.SinkConfig
	RRDConfig          = base.RRDConfig
	WundergroundConfig = base.WundergroundConfig
	TimescaleConfig    = base.TimescaleConfig
	MQTTConfig         = base.MQTTConfig
	OPCUAConfig        = base.OPCUAConfig
	AlertConfig        = base.AlertConfig
	MetricsConfig      = base.MetricsConfig
	LogConfig          = base.LogConfig
	Flow               = base.Flow
	FlowOption         = base.FlowOption
	StreamInOption     = base.StreamInOption
	StreamOutOption    = base.StreamOutOption
	Runtime            = base.Runtime
	RuntimeOption      = base.RuntimeOption
	Status             = base.Status
	SensorSpec         = base.SensorSpec
	Reading            = base.Reading
	Flush              = base.Flush
	FlushHandler       = base.FlushHandler
	DeviceReader       = base.DeviceReader
	Sink               = base.Sink
	Creator            = base.Creator
	Alerter            = base.Alerter
	Clock              = base.Clock
	Observability      = base.Observability
	Field              = base.Field
	ConnState          = base.ConnState
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func ParseConfig(raw []byte) (*Config, error) {
	return base.ParseConfig(raw)
}

func WriteEnvReport() error {
	return base.WriteEnvReport()
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInReader(r DeviceReader) StreamInOption {
	return base.StreamInReader(r)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutSink(s Sink) StreamOutOption {
	return base.StreamOutSink(s)
}

func StreamOutAlerter(a Alerter) StreamOutOption {
	return base.StreamOutAlerter(a)
}

func StreamOutCallback(name string, fn FlushHandler) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithDeviceReader(r DeviceReader) RuntimeOption {
	return base.WithDeviceReader(r)
}

func WithSink(s Sink) RuntimeOption {
	return base.WithSink(s)
}

func WithAlerter(a Alerter) RuntimeOption {
	return base.WithAlerter(a)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithClock(c Clock) RuntimeOption {
	return base.WithClock(c)
}

func WithLogger(l *slog.Logger) RuntimeOption {
	return base.WithLogger(l)
}

func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return base.WithRegistry(reg)
}

// Sink adapters.
func NewCallbackSink(name string, fn FlushHandler) Sink {
	return base.NewCallbackSink(name, fn)
}

func NewChannelSink(name string, buffer int) (Sink, <-chan Flush, func()) {
	return base.NewChannelSink(name, buffer)
}
