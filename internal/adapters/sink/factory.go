package sink

import (
	"fmt"
	"strings"

	"github.com/ghalamif/SensorFlow/internal/ports"
)

const (
	KindRRD          = "rrd"
	KindWunderground = "wunderground"
	KindTimescale    = "timescale"
	KindMQTT         = "mqtt"
)

// Config selects one sink kind and carries the settings of every kind.
type Config struct {
	Kind         string             `yaml:"kind"`
	RRD          RRDConfig          `yaml:"rrd"`
	Wunderground WundergroundConfig `yaml:"wunderground"`
	Timescale    TimescaleConfig    `yaml:"timescale"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
}

func (c *Config) ApplyDefaults() {
	if c.Kind == "" {
		c.Kind = KindRRD
	}
	c.Kind = strings.ToLower(c.Kind)
	switch c.Kind {
	case KindRRD:
		c.RRD.ApplyDefaults()
	case KindWunderground:
		c.Wunderground.ApplyDefaults()
	case KindTimescale:
		c.Timescale.ApplyDefaults()
	case KindMQTT:
		c.MQTT.ApplyDefaults()
	}
}

// Validate checks only the settings of the selected kind.
func (c *Config) Validate() error {
	var err error
	switch c.Kind {
	case KindRRD:
		err = c.RRD.Validate()
	case KindWunderground:
		err = c.Wunderground.Validate()
	case KindTimescale:
		err = c.Timescale.Validate()
	case KindMQTT:
		err = c.MQTT.Validate()
	default:
		return fmt.Errorf("sink.kind %q is not one of rrd, wunderground, timescale, mqtt", c.Kind)
	}
	if err != nil {
		return fmt.Errorf("sink.%s: %w", c.Kind, err)
	}
	return nil
}

// New builds the configured sink. Nothing is dialed until Connect.
func New(cfg Config) (ports.Sink, error) {
	switch cfg.Kind {
	case KindRRD:
		return NewRRDSink(cfg.RRD), nil
	case KindWunderground:
		return NewWundergroundSink(cfg.Wunderground, nil), nil
	case KindTimescale:
		return OpenTimescale(cfg.Timescale)
	case KindMQTT:
		return NewMQTTSink(cfg.MQTT), nil
	default:
		return nil, fmt.Errorf("unknown sink kind %q", cfg.Kind)
	}
}
