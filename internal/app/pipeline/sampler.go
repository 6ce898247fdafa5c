package pipeline

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/ghalamif/SensorFlow/internal/domain"
	"github.com/ghalamif/SensorFlow/internal/ports"
)

// Sampler turns device reads into readings. It never fails: any error becomes NaN.
type Sampler struct {
	reader  ports.DeviceReader
	obs     ports.Observability
	timeout time.Duration
}

// NewSampler wraps reader. A positive timeout bounds every single read.
func NewSampler(reader ports.DeviceReader, obs ports.Observability, timeout time.Duration) *Sampler {
	return &Sampler{reader: reader, obs: obs, timeout: timeout}
}

// Sample reads one sensor and converts the value to the sensor's unit.
func (s *Sampler) Sample(ctx context.Context, spec domain.SensorSpec) float64 {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	v, err := s.reader.Read(ctx, spec.Source)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		s.obs.IncCounter(MetricSamplesMissing, 1)
		if err != nil {
			s.obs.LogInfo("sensor_unreadable",
				ports.Field{Key: "sensor", Value: spec.ID},
				ports.Field{Key: "error", Value: err.Error()})
		}
		return math.NaN()
	}
	return convertUnit(v, spec.Unit)
}

// SampleAll reads every sensor concurrently and returns once all reads have finished.
// Readings are returned in the order of specs.
func (s *Sampler) SampleAll(ctx context.Context, specs []domain.SensorSpec, now time.Time) []domain.Reading {
	out := make([]domain.Reading, len(specs))
	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec domain.SensorSpec) {
			defer wg.Done()
			out[i] = domain.Reading{
				SensorID:  spec.ID,
				Value:     s.Sample(ctx, spec),
				Timestamp: now,
			}
		}(i, spec)
	}
	wg.Wait()
	return out
}

// Readers report temperatures in degrees Celsius.
func convertUnit(celsius float64, unit string) float64 {
	switch strings.ToUpper(unit) {
	case "F":
		return celsius*1.8 + 32
	default:
		return celsius
	}
}
