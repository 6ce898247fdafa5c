package sensorflow

import (
	"context"
	"fmt"
)

// Flow collects the overrides for one Runtime: where readings come from (StreamIN)
// and where the per-window means go (StreamOUT).
//
//	flow, err := sensorflow.Conf("/etc/sensorflow/config.yaml")
//	...
//	rt, err := flow.StreamIN(sensorflow.StreamInReader(r)).StreamOUT(sensorflow.StreamOutCallback("log", fn))
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

// FlowOption adjusts a Flow while it is created by Conf or ConfFromConfig.
type FlowOption func(*Flow)

// StreamInOption replaces a collaborator on the sampling side.
type StreamInOption func(*Flow)

// StreamOutOption replaces a collaborator on the upload side.
type StreamOutOption func(*Flow)

// Conf reads the configuration file at path and starts a Flow from it.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig starts a Flow from an already parsed Config.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	applyAll(f, opts)
	return f, nil
}

// Config exposes the configuration the Runtime will be built from. Changes made
// before StreamOUT are honoured.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options forwards RuntimeOption values such as WithClock or WithRegistry.
func (f *Flow) Options(opts ...RuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// StreamIN applies the sampling-side overrides.
func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	applyAll(f, opts)
	return f
}

// StreamOUT applies the upload-side overrides and builds the Runtime.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	applyAll(f, opts)
	return NewRuntime(f.cfg, f.opts...)
}

// Run builds the Runtime and blocks in Runtime.Run until ctx is done or a fatal error occurs.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// WithFlowOptions forwards RuntimeOption values from Conf.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

// StreamInReader samples through r instead of the 1-Wire/OPC UA router.
func StreamInReader(r DeviceReader) StreamInOption {
	return func(f *Flow) {
		if f != nil && r != nil {
			f.appendOptions(WithDeviceReader(r))
		}
	}
}

// StreamInObservability sends logs and metrics to obs instead of slog and Prometheus.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutSink uploads flushes to s instead of the configured sink kind.
func StreamOutSink(s Sink) StreamOutOption {
	return func(f *Flow) {
		if f != nil && s != nil {
			f.appendOptions(WithSink(s))
		}
	}
}

// StreamOutAlerter routes critical notifications to a.
func StreamOutAlerter(a Alerter) StreamOutOption {
	return func(f *Flow) {
		if f != nil && a != nil {
			f.appendOptions(WithAlerter(a))
		}
	}
}

// StreamOutCallback hands every flush to fn. See NewCallbackSink.
func StreamOutCallback(name string, fn FlushHandler) StreamOutOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(WithSink(NewCallbackSink(name, fn)))
		}
	}
}

func (f *Flow) appendOptions(opts ...RuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}

func applyAll[O ~func(*Flow)](f *Flow, opts []O) {
	for _, opt := range opts {
		if fn := (func(*Flow))(opt); fn != nil {
			fn(f)
		}
	}
}
