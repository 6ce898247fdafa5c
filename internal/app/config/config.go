package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	envstruct "code.cloudfoundry.org/go-envstruct"
	"gopkg.in/yaml.v3"

	"github.com/ghalamif/SensorFlow/internal/adapters/opcua"
	"github.com/ghalamif/SensorFlow/internal/adapters/sink"
	"github.com/ghalamif/SensorFlow/internal/adapters/w1"
	"github.com/ghalamif/SensorFlow/internal/domain"
	"github.com/ghalamif/SensorFlow/internal/ports"
)

const (
	defaultRetryAttempts       = 5
	defaultBacklogWarnCooldown = 5 * time.Minute
	defaultAlertCooldown       = time.Hour
)

type Config struct {
	DevicePath string         `yaml:"device_path"`
	Sensors    []SensorConfig `yaml:"sensors"`
	Schedule   ScheduleConfig `yaml:"schedule"`
	Sink       SinkConfig     `yaml:"sink"`
	OPCUA      opcua.Config   `yaml:"opcua"`
	Alert      AlertConfig    `yaml:"alert"`
	Metrics    MetricsConfig  `yaml:"metrics"`
	Log        LogConfig      `yaml:"log"`
}

type SensorConfig struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Source    string `yaml:"source"`
	MetricKey string `yaml:"metric_key"`
	Unit      string `yaml:"unit"`
}

type ScheduleConfig struct {
	SampleInterval      time.Duration  `yaml:"sample_interval"`
	FlushInterval       time.Duration  `yaml:"flush_interval"`
	MinReadings         int            `yaml:"min_readings"`
	MaxChangeRate       float64        `yaml:"max_change_rate"`
	ReadTimeout         time.Duration  `yaml:"read_timeout"`
	BacklogWarnCooldown *time.Duration `yaml:"backlog_warn_cooldown"`
}

type SinkConfig struct {
	sink.Config `yaml:",inline"`

	RetryAttempts     *int          `yaml:"retry_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	RetryAfterDrop    bool          `yaml:"retry_after_drop"`
	ReconnectAttempts *int          `yaml:"reconnect_attempts"`
}

type AlertConfig struct {
	Email    string         `yaml:"email"`
	Cooldown *time.Duration `yaml:"cooldown"`
}

type MetricsConfig struct {
	Addr     string `yaml:"addr"`
	Disabled bool   `yaml:"disabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Env holds the settings that may be overridden from the environment. Only fields
// tagged with report are printed by WriteEnvReport.
type Env struct {
	SinkAddress   string `env:"SENSORFLOW_SINK_ADDRESS, report"`
	WUID          string `env:"SENSORFLOW_WU_ID, report"`
	WUPassword    string `env:"SENSORFLOW_WU_PASSWORD"`
	TimescaleConn string `env:"SENSORFLOW_TIMESCALE_CONN"`
	MQTTBroker    string `env:"SENSORFLOW_MQTT_BROKER, report"`
	AlertEmail    string `env:"SENSORFLOW_ALERT_EMAIL, report"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes raw YAML (or JSON) and applies environment overrides, defaults and
// validation. Lines starting with // are comments.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(stripComments(raw), &cfg); err != nil {
		return nil, err
	}

	var env Env
	if err := envstruct.Load(&env); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	cfg.applyEnv(env)

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// WriteEnvReport prints the environment overrides in effect.
func WriteEnvReport() error {
	var env Env
	if err := envstruct.Load(&env); err != nil {
		return err
	}
	return envstruct.WriteReport(&env)
}

func stripComments(raw []byte) []byte {
	var out bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "//") {
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.Bytes()
}

func (c *Config) applyEnv(env Env) {
	if env.SinkAddress != "" {
		c.Sink.RRD.Address = env.SinkAddress
	}
	if env.WUID != "" {
		c.Sink.Wunderground.ID = env.WUID
	}
	if env.WUPassword != "" {
		c.Sink.Wunderground.Password = env.WUPassword
	}
	if env.TimescaleConn != "" {
		c.Sink.Timescale.ConnString = env.TimescaleConn
	}
	if env.MQTTBroker != "" {
		c.Sink.MQTT.Broker = env.MQTTBroker
	}
	if env.AlertEmail != "" {
		c.Alert.Email = env.AlertEmail
	}
}

func (c *Config) applyDefaults() {
	if c.DevicePath == "" {
		c.DevicePath = w1.DefaultDevicePath
	}
	for i := range c.Sensors {
		s := &c.Sensors[i]
		if s.MetricKey == "" {
			s.MetricKey = s.ID
		}
		if s.Unit == "" {
			s.Unit = "C"
		}
		s.Unit = strings.ToUpper(s.Unit)
	}

	if c.Schedule.SampleInterval == 0 {
		c.Schedule.SampleInterval = 10 * time.Second
	}
	if c.Schedule.FlushInterval == 0 {
		c.Schedule.FlushInterval = 60 * time.Second
	}
	if c.Schedule.MinReadings == 0 {
		c.Schedule.MinReadings = 1
	}
	if c.Schedule.ReadTimeout == 0 {
		c.Schedule.ReadTimeout = 5 * time.Second
	}
	if c.Schedule.BacklogWarnCooldown == nil {
		d := defaultBacklogWarnCooldown
		c.Schedule.BacklogWarnCooldown = &d
	}

	if c.Sink.RetryAttempts == nil {
		n := defaultRetryAttempts
		c.Sink.RetryAttempts = &n
	}
	if c.Sink.RetryDelay == 0 {
		c.Sink.RetryDelay = 10 * time.Second
	}
	if c.Sink.ReconnectAttempts == nil {
		n := *c.Sink.RetryAttempts
		c.Sink.ReconnectAttempts = &n
	}
	if c.Sink.RRD.Step == 0 {
		c.Sink.RRD.Step = c.Schedule.FlushInterval
	}
	c.Sink.Config.ApplyDefaults()

	c.OPCUA.ApplyDefaults()

	if c.Alert.Cooldown == nil {
		d := defaultAlertCooldown
		c.Alert.Cooldown = &d
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if len(c.Sensors) == 0 {
		return fmt.Errorf("at least one sensor must be configured")
	}
	seen := make(map[string]bool, len(c.Sensors))
	for i, s := range c.Sensors {
		if s.ID == "" {
			return fmt.Errorf("sensors[%d].id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("sensors[%d].id %q is duplicated", i, s.ID)
		}
		seen[s.ID] = true
		if s.Source == "" {
			return fmt.Errorf("sensors[%d].source is required", i)
		}
		if s.Unit != "C" && s.Unit != "F" {
			return fmt.Errorf("sensors[%d].unit must be C or F, got %q", i, s.Unit)
		}
	}
	if c.Schedule.SampleInterval < 0 || c.Schedule.FlushInterval < 0 {
		return fmt.Errorf("schedule intervals must be positive")
	}
	if c.Schedule.FlushInterval < c.Schedule.SampleInterval {
		return fmt.Errorf("schedule.flush_interval (%s) must not be shorter than sample_interval (%s)",
			c.Schedule.FlushInterval, c.Schedule.SampleInterval)
	}
	if c.Schedule.MinReadings < 0 {
		return fmt.Errorf("schedule.min_readings must be >= 0")
	}
	if c.Schedule.MaxChangeRate < 0 {
		return fmt.Errorf("schedule.max_change_rate must be >= 0")
	}
	if c.Sink.RetryAttempts != nil && *c.Sink.RetryAttempts < 0 {
		return fmt.Errorf("sink.retry_attempts must be >= 0")
	}
	if err := c.Sink.Config.Validate(); err != nil {
		return err
	}
	if !c.Metrics.Disabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	return nil
}

// SensorSpecs returns the sensors in configuration order.
func (c *Config) SensorSpecs() []domain.SensorSpec {
	out := make([]domain.SensorSpec, len(c.Sensors))
	for i, s := range c.Sensors {
		out[i] = domain.SensorSpec{
			ID:        s.ID,
			Name:      s.Name,
			Source:    s.Source,
			MetricKey: s.MetricKey,
			Unit:      s.Unit,
		}
	}
	return out
}

// MetricKeys returns the distinct metric keys in first-seen order.
func (c *Config) MetricKeys() []string {
	var keys []string
	seen := make(map[string]bool)
	for _, s := range c.Sensors {
		if !seen[s.MetricKey] {
			seen[s.MetricKey] = true
			keys = append(keys, s.MetricKey)
		}
	}
	return keys
}

// Policy returns the sink retry settings. An explicit 0 means a single attempt.
func (c *Config) Policy() ports.SinkPolicy {
	retry := intOr(c.Sink.RetryAttempts, defaultRetryAttempts)
	return ports.SinkPolicy{
		RetryAttempts:     retry,
		RetryDelay:        c.Sink.RetryDelay,
		RetryAfterDrop:    c.Sink.RetryAfterDrop,
		ReconnectAttempts: intOr(c.Sink.ReconnectAttempts, retry),
	}
}

// AlertCooldown is the per-category alert window; 0 disables suppression.
func (c *Config) AlertCooldown() time.Duration {
	return durationOr(c.Alert.Cooldown, defaultAlertCooldown)
}

// BacklogWarnCooldown is the window between scheduler_behind warnings; 0 disables suppression.
func (c *Config) BacklogWarnCooldown() time.Duration {
	return durationOr(c.Schedule.BacklogWarnCooldown, defaultBacklogWarnCooldown)
}

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func durationOr(p *time.Duration, def time.Duration) time.Duration {
	if p == nil {
		return def
	}
	return *p
}
