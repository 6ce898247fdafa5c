package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/ghalamif/SensorFlow/internal/domain"
	"github.com/ghalamif/SensorFlow/internal/ports"
)

// Bucket is the running sum and count of one metric since the last flush.
type Bucket struct {
	Sum   float64
	Count int
}

// Accumulator averages readings per metric key between flushes.
type Accumulator struct {
	keys        []string
	minReadings int
	notifier    *Notifier

	mu      sync.Mutex
	buckets map[string]*Bucket
}

// NewAccumulator creates one bucket per distinct metric key, keeping the first-seen order.
func NewAccumulator(metricKeys []string, minReadings int, notifier *Notifier) *Accumulator {
	a := &Accumulator{
		minReadings: minReadings,
		notifier:    notifier,
		buckets:     make(map[string]*Bucket, len(metricKeys)),
	}
	for _, k := range metricKeys {
		if _, ok := a.buckets[k]; ok {
			continue
		}
		a.buckets[k] = &Bucket{}
		a.keys = append(a.keys, k)
	}
	return a
}

// Keys returns the metric keys in configuration order.
func (a *Accumulator) Keys() []string {
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

// Add records value for key. NaN values are ignored.
func (a *Accumulator) Add(key string, value float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.buckets[key]
	if !ok {
		return fmt.Errorf("%w: %q", ports.ErrUnknownMetric, key)
	}
	if math.IsNaN(value) {
		return nil
	}
	b.Sum += value
	b.Count++
	return nil
}

// Bucket returns a copy of the current bucket for key.
func (a *Accumulator) Bucket(key string) (Bucket, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.buckets[key]
	if !ok {
		return Bucket{}, fmt.Errorf("%w: %q", ports.ErrUnknownMetric, key)
	}
	return *b, nil
}

// Flush returns the mean of every metric that reached the minimum reading count and
// resets all buckets. Metrics under the threshold are left out and reported once
// through the notifier.
func (a *Accumulator) Flush(ctx context.Context, now time.Time) domain.Flush {
	a.mu.Lock()
	out := domain.Flush{
		Time:   now,
		Keys:   a.Keys(),
		Values: make(map[string]float64, len(a.keys)),
	}
	var short []string
	for _, k := range a.keys {
		b := a.buckets[k]
		if b.Count > 0 && b.Count >= a.minReadings {
			out.Values[k] = b.Sum / float64(b.Count)
		} else {
			short = append(short, fmt.Sprintf("%s=%d/%d", k, b.Count, a.minReadings))
		}
		*b = Bucket{}
	}
	a.mu.Unlock()

	if len(short) > 0 && a.notifier != nil {
		a.notifier.Notify(ctx, Notice{
			Severity: ports.SeverityWarning,
			Category: CategoryBelowThreshold,
			Message:  "insufficient_readings",
			Fields: []ports.Field{
				{Key: "metrics", Value: strings.Join(short, ",")},
				{Key: "min_readings", Value: a.minReadings},
			},
		})
	}
	return out
}
