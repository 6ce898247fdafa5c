package sensorflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/SensorFlow/internal/adapters/alert"
	"github.com/ghalamif/SensorFlow/internal/adapters/device"
	"github.com/ghalamif/SensorFlow/internal/adapters/observability"
	"github.com/ghalamif/SensorFlow/internal/adapters/sink"
	"github.com/ghalamif/SensorFlow/internal/app/pipeline"
	"github.com/ghalamif/SensorFlow/internal/ports"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	reader        DeviceReader
	sink          Sink
	alerter       Alerter
	observability Observability
	clock         Clock
	logger        *slog.Logger
	registry      *prometheus.Registry
}

// WithDeviceReader injects a custom reader (simulators, other buses, etc.).
func WithDeviceReader(r DeviceReader) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.reader = r
	}
}

// WithSink injects a custom sink so flushes can be sent to any database or API.
func WithSink(s Sink) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sink = s
	}
}

// WithAlerter replaces the mail alerter used for critical notifications.
func WithAlerter(a Alerter) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.alerter = a
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.clock = c
	}
}

// WithLogger replaces the logger built from the log section of the config.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = l
	}
}

// WithRegistry registers the pipeline metrics on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.registry = reg
	}
}

// Runtime wires sampler → validator → accumulator → output channel and exposes
// lifecycle hooks for embedding SensorFlow inside any Go service.
type Runtime struct {
	cfg       *Config
	runID     string
	startedAt time.Time
	clock     ports.Clock
	obs       ports.Observability
	registry  *prometheus.Registry
	reader    ports.DeviceReader
	sensors   []SensorSpec

	sampler     *pipeline.Sampler
	accumulator *pipeline.Accumulator
	channel     *pipeline.OutputChannel
	scheduler   *pipeline.Scheduler

	metricsSrv *http.Server
}

// NewRuntime bootstraps the default adapters (1-Wire/OPC UA readers, the configured
// sink, mail alerts, Prometheus observability). RuntimeOption values override any of them.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	clock := overrides.clock
	if clock == nil {
		clock = pipeline.WallClock
	}

	reg := overrides.registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	obs := overrides.observability
	if obs == nil {
		logger := overrides.logger
		if logger == nil {
			var err error
			logger, err = observability.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return nil, err
			}
		}
		obs = observability.NewPromObs(logger, reg)
	}

	reader := overrides.reader
	if reader == nil {
		reader = device.New(cfg.DevicePath, cfg.OPCUA)
	}

	snk := overrides.sink
	if snk == nil {
		var err error
		snk, err = sink.New(cfg.Sink.Config)
		if err != nil {
			return nil, err
		}
	}

	alerter := overrides.alerter
	if alerter == nil && cfg.Alert.Email != "" {
		alerter = alert.NewMailer(cfg.Alert.Email)
	}

	notifier := pipeline.NewNotifier(obs, alerter, clock, cfg.AlertCooldown())
	notifier.SetCooldown(pipeline.CategoryBehind, cfg.BacklogWarnCooldown())

	sensors := cfg.SensorSpecs()
	ids := make([]string, len(sensors))
	for i, s := range sensors {
		ids[i] = s.ID
	}

	rt := &Runtime{
		cfg:         cfg,
		runID:       uuid.NewString(),
		clock:       clock,
		obs:         obs,
		registry:    reg,
		reader:      reader,
		sensors:     sensors,
		sampler:     pipeline.NewSampler(reader, obs, cfg.Schedule.ReadTimeout),
		accumulator: pipeline.NewAccumulator(cfg.MetricKeys(), cfg.Schedule.MinReadings, notifier),
		channel:     pipeline.NewOutputChannel(snk, clock, obs),
	}

	sched, err := pipeline.NewScheduler(
		pipeline.Schedule{
			SampleInterval: cfg.Schedule.SampleInterval,
			FlushInterval:  cfg.Schedule.FlushInterval,
		},
		cfg.Policy(),
		pipeline.Stages{
			Sensors:     sensors,
			Sampler:     rt.sampler,
			Validator:   pipeline.NewValidator(cfg.Schedule.MaxChangeRate, ids),
			Accumulator: rt.accumulator,
			Channel:     rt.channel,
			Notifier:    notifier,
		},
		clock, obs)
	if err != nil {
		return nil, err
	}
	rt.scheduler = sched
	return rt, nil
}

// Run starts the metrics server and drives the scheduler until ctx is cancelled or a
// fatal error occurs. Cancellation yields a nil error.
func (r *Runtime) Run(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	r.startedAt = r.clock.Now()
	r.startMetrics()

	r.obs.LogInfo("runtime_started",
		ports.Field{Key: "run_id", Value: r.runID},
		ports.Field{Key: "sensors", Value: len(r.sensors)},
		ports.Field{Key: "sink", Value: r.channel.Name()})

	runErr := r.scheduler.Run(ctx)
	if runErr != nil {
		r.obs.LogCritical("runtime_stopped", runErr, ports.Field{Key: "run_id", Value: r.runID})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(runErr, r.Shutdown(shutdownCtx))
}

// Shutdown stops the metrics server and releases the sink and device readers.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
		r.metricsSrv = nil
	}

	if err := r.channel.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close sink: %w", err))
	}
	if err := r.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close readers: %w", err))
	}

	return errors.Join(errs...)
}

// ReadSensors samples every sensor once. Unreadable sensors carry NaN.
func (r *Runtime) ReadSensors(ctx context.Context) []Reading {
	return r.sampler.SampleAll(ctx, r.sensors, r.clock.Now())
}

// Sensors returns the configured sensors in order.
func (r *Runtime) Sensors() []SensorSpec {
	return append([]SensorSpec(nil), r.sensors...)
}

// CreateDatabase connects to the sink and asks it to (re)create its storage for the
// configured metric keys. Only sinks implementing Creator support this.
func (r *Runtime) CreateDatabase(ctx context.Context) error {
	creator, ok := r.channel.Sink().(ports.Creator)
	if !ok {
		return fmt.Errorf("sink %s does not support create", r.channel.Name())
	}
	pol := r.cfg.Policy()
	if err := r.channel.Connect(ctx, pol.RetryAttempts, pol.RetryDelay); err != nil {
		return err
	}
	if err := creator.Create(ctx, r.accumulator.Keys()); err != nil {
		return fmt.Errorf("create on %s: %w", r.channel.Name(), err)
	}
	r.obs.LogInfo("database_created",
		ports.Field{Key: "sink", Value: r.channel.Name()},
		ports.Field{Key: "metrics", Value: len(r.accumulator.Keys())})
	return nil
}

// Status is the snapshot served on /status.
type Status struct {
	RunID      string    `json:"run_id"`
	Sink       string    `json:"sink"`
	State      string    `json:"state"`
	StartedAt  time.Time `json:"started_at"`
	NextSample time.Time `json:"next_sample"`
	NextFlush  time.Time `json:"next_flush"`
}

func (r *Runtime) Status() Status {
	sample, flush := r.scheduler.NextDeadlines()
	return Status{
		RunID:      r.runID,
		Sink:       r.channel.Name(),
		State:      r.channel.State().String(),
		StartedAt:  r.startedAt,
		NextSample: sample,
		NextFlush:  flush,
	}
}

func (r *Runtime) startMetrics() {
	if r.cfg.Metrics.Disabled {
		return
	}
	r.metricsSrv = &http.Server{
		Addr:              r.cfg.Metrics.Addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv := r.metricsSrv
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.obs.LogError("metrics_server_exited", err, ports.Field{Key: "addr", Value: srv.Addr})
		}
	}()
}
