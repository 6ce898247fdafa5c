package main

import (
	"math"
	"strings"
	"testing"

	"github.com/ghalamif/SensorFlow"
)

func TestFormatReading(t *testing.T) {
	spec := sensorflow.SensorSpec{ID: "s1", Name: "Outdoor", Unit: "F"}

	if got := formatReading(spec, sensorflow.Reading{Value: 68}); got != "Outdoor: 68.00°F" {
		t.Fatalf("unexpected line %q", got)
	}
	if got := formatReading(spec, sensorflow.Reading{Value: math.NaN()}); got != "Outdoor: Unknown" {
		t.Fatalf("unexpected line for missing value %q", got)
	}
}

func TestScanMetrics(t *testing.T) {
	body := `# HELP sensorflow_flushes_total Flushes.
# TYPE sensorflow_flushes_total counter
sensorflow_flushes_total 12
sensorflow_sink_connected 1
sensorflow_upload_latency_seconds_bucket{le="0.1"} 3
`
	values, err := scanMetrics(strings.NewReader(body), statsMetrics)
	if err != nil {
		t.Fatalf("scanMetrics returned error: %v", err)
	}
	if values["sensorflow_flushes_total"] != 12 || values["sensorflow_sink_connected"] != 1 {
		t.Fatalf("unexpected values %v", values)
	}
	if _, ok := values["sensorflow_samples_total"]; ok {
		t.Fatalf("absent metric must not be reported")
	}
}
