package ports

import "errors"

var (
	// ErrNotConnected is returned by a send attempted on a disconnected channel.
	ErrNotConnected = errors.New("sensorflow: sink not connected")
	// ErrConnectFailed is returned once every connection attempt has failed.
	ErrConnectFailed = errors.New("sensorflow: sink connection failed")
	// ErrUploadRejected means the sink answered but did not accept the update.
	ErrUploadRejected = errors.New("sensorflow: upload rejected")
	// ErrNothingToSend is returned by sinks that skip a flush without any values.
	ErrNothingToSend = errors.New("sensorflow: flush holds no values")
	// ErrUnknownSensor is returned for a sensor id absent from the configuration.
	ErrUnknownSensor = errors.New("sensorflow: unknown sensor")
	// ErrUnknownMetric is returned for a metric key absent from the configuration.
	ErrUnknownMetric = errors.New("sensorflow: unknown metric")
)
