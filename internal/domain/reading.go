package domain

import (
	"math"
	"time"
)

// SensorSpec describes one configured sensor. It is created at startup and never mutated.
type SensorSpec struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Source    string `json:"source"`
	MetricKey string `json:"metric_key"`
	Unit      string `json:"unit"`
}

// Label returns the human readable name, falling back to the id.
func (s SensorSpec) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.ID
}

// Reading is a single sampled value. Value is NaN when the sensor could not be read
// or the value was rejected.
type Reading struct {
	SensorID  string    `json:"sensor_id"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"ts"`
}

// Valid reports whether the reading carries a real measurement.
func (r Reading) Valid() bool { return !math.IsNaN(r.Value) }

// Flush is the result of closing one upload window: the mean per metric key for every
// metric that met the minimum reading count. Keys lists all configured metric keys in
// configuration order, including the ones missing from Values.
type Flush struct {
	Time   time.Time          `json:"ts"`
	Keys   []string           `json:"-"`
	Values map[string]float64 `json:"values"`
}

// Value returns the mean for key and whether it was present in this flush.
func (f Flush) Value(key string) (float64, bool) {
	v, ok := f.Values[key]
	if !ok || math.IsNaN(v) {
		return math.NaN(), false
	}
	return v, true
}

// Empty reports whether no metric met its threshold.
func (f Flush) Empty() bool { return len(f.Values) == 0 }
