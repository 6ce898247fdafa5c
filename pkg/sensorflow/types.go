package sensorflow

import (
	"github.com/ghalamif/SensorFlow/internal/app/pipeline"
	"github.com/ghalamif/SensorFlow/internal/domain"
	"github.com/ghalamif/SensorFlow/internal/ports"
)

// SensorSpec describes one configured sensor.
type SensorSpec = domain.SensorSpec

// Reading is one sampled value; Value is NaN when the sensor could not be read.
type Reading = domain.Reading

// Flush carries the per-metric means of one upload window.
type Flush = domain.Flush

// DeviceReader reads a raw value (degrees Celsius) from a sensor source descriptor.
type DeviceReader = ports.DeviceReader

// Sink receives flushes. Implementations own their connection state.
type Sink = ports.Sink

// Creator is implemented by sinks that can create their backing store.
type Creator = ports.Creator

// Observability emits logs and metrics about the pipeline.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// Alerter delivers critical notifications out of band.
type Alerter = ports.Alerter

// Clock provides time and cancellable sleeps; tests substitute a fake.
type Clock = ports.Clock

// ConnState is the output channel connection state.
type ConnState = pipeline.ConnState

const (
	Disconnected = pipeline.Disconnected
	Connecting   = pipeline.Connecting
	Connected    = pipeline.Connected
)

var (
	ErrNotConnected   = ports.ErrNotConnected
	ErrConnectFailed  = ports.ErrConnectFailed
	ErrUploadRejected = ports.ErrUploadRejected
	ErrUnknownSensor  = ports.ErrUnknownSensor
	ErrUnknownMetric  = ports.ErrUnknownMetric
	ErrNothingToSend  = ports.ErrNothingToSend
)
