package observability

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/SensorFlow/internal/ports"
)

// PromObs records pipeline metrics in Prometheus and writes structured logs via slog.
type PromObs struct {
	log      *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the pipeline collectors on reg. A nil reg uses the default registerer.
func NewPromObs(logger *slog.Logger, reg prometheus.Registerer) *PromObs {
	if logger == nil {
		logger = slog.Default()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	samples := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorflow_samples_total",
		Help: "Readings accepted by the validator.",
	})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorflow_samples_rejected_total",
		Help: "Readings rejected for exceeding the maximum rate of change.",
	})
	unreadable := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorflow_samples_unreadable_total",
		Help: "Sensor reads that produced no value.",
	})
	flushes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorflow_flushes_total",
		Help: "Upload windows closed by the scheduler.",
	})
	uploadsFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorflow_uploads_failed_total",
		Help: "Flushes the sink did not accept.",
	})
	suppressed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sensorflow_alerts_suppressed_total",
		Help: "Notifications dropped inside their cool-down window.",
	})
	connected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sensorflow_sink_connected",
		Help: "1 while the sink connection is established.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sensorflow_upload_latency_seconds",
		Help:    "Time spent sending one flush to the sink.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	reg.MustRegister(samples, rejected, unreadable, flushes, uploadsFailed, suppressed, connected, latency)

	return &PromObs{
		log: logger,
		counters: map[string]prometheus.Counter{
			"sensorflow_samples_total":            samples,
			"sensorflow_samples_rejected_total":   rejected,
			"sensorflow_samples_unreadable_total": unreadable,
			"sensorflow_flushes_total":            flushes,
			"sensorflow_uploads_failed_total":     uploadsFailed,
			"sensorflow_alerts_suppressed_total":  suppressed,
		},
		gauges: map[string]prometheus.Gauge{
			"sensorflow_sink_connected": connected,
		},
		histos: map[string]prometheus.Observer{
			"sensorflow_upload_latency_seconds": latency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.log.Info(msg, attrs(fields, nil)...)
}

func (p *PromObs) LogWarn(msg string, fields ...ports.Field) {
	p.log.Warn(msg, attrs(fields, nil)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	p.log.Error(msg, attrs(fields, err)...)
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	p.log.Log(context.Background(), LevelCritical, msg, attrs(fields, err)...)
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func attrs(fields []ports.Field, err error) []any {
	out := make([]any, 0, 2*len(fields)+2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	if err != nil {
		out = append(out, "error", err.Error())
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
