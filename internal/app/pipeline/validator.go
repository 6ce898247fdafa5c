package pipeline

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ghalamif/SensorFlow/internal/ports"
)

// ValidatorState is the last accepted reading of one sensor. A zero LastTimestamp
// means nothing has been accepted yet.
type ValidatorState struct {
	LastValue     float64
	LastTimestamp time.Time
}

func unknownState() *ValidatorState {
	return &ValidatorState{LastValue: math.NaN()}
}

// Validator rejects readings whose rate of change exceeds MaxChangeRate units per second
// relative to the last accepted reading of the same sensor.
type Validator struct {
	maxChangeRate float64

	mu     sync.Mutex
	states map[string]*ValidatorState
}

// NewValidator builds a validator that knows exactly the given sensor ids.
// maxChangeRate <= 0 disables the rate check.
func NewValidator(maxChangeRate float64, sensorIDs []string) *Validator {
	states := make(map[string]*ValidatorState, len(sensorIDs))
	for _, id := range sensorIDs {
		states[id] = unknownState()
	}
	return &Validator{maxChangeRate: maxChangeRate, states: states}
}

// Validate returns raw when it is accepted and NaN when it is rejected. A NaN input is
// returned unchanged and never touches the stored baseline.
func (v *Validator) Validate(sensorID string, raw float64, now time.Time) (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	st, ok := v.states[sensorID]
	if !ok {
		return math.NaN(), fmt.Errorf("%w: %q", ports.ErrUnknownSensor, sensorID)
	}
	if math.IsNaN(raw) {
		return raw, nil
	}
	if st.LastTimestamp.IsZero() || v.maxChangeRate <= 0 {
		st.accept(raw, now)
		return raw, nil
	}

	elapsed := now.Sub(st.LastTimestamp).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	maxDelta := v.maxChangeRate * elapsed
	if math.Abs(raw-st.LastValue) > maxDelta {
		return math.NaN(), nil
	}
	st.accept(raw, now)
	return raw, nil
}

// State returns a copy of the stored state for sensorID.
func (v *Validator) State(sensorID string) (ValidatorState, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	st, ok := v.states[sensorID]
	if !ok {
		return ValidatorState{}, fmt.Errorf("%w: %q", ports.ErrUnknownSensor, sensorID)
	}
	return *st, nil
}

func (s *ValidatorState) accept(value float64, now time.Time) {
	s.LastValue = value
	if now.After(s.LastTimestamp) {
		s.LastTimestamp = now
	}
}
