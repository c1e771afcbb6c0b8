// Package config holds the replay configuration.
//
// A Config is built once at startup (YAML file, then environment overrides,
// then validation) and passed explicitly to every component constructor.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "SENSORREPLAY_"

// Register formats understood by the register bridge.
const (
	FormatShort  = "short"
	FormatInt    = "int"
	FormatLong   = "long"
	FormatFloat  = "float"
	FormatDouble = "double"
)

// Config is the complete replay configuration.
type Config struct {
	// Port is the listen port of the register bridge.
	Port int `yaml:"port" env:"PORT"`

	// Datastore target. The connection string is URLPrefix + Host + "/" + Database.
	Host      string `yaml:"host" env:"HOST"`
	Database  string `yaml:"database" env:"DATABASE"`
	URLPrefix string `yaml:"url_prefix" env:"URL_PREFIX"`

	// Replay bounds, in datastore time units (seconds).
	MinTimestamp int64 `yaml:"min_timestamp" env:"MIN_TIMESTAMP"`
	MaxTimestamp int64 `yaml:"max_timestamp" env:"MAX_TIMESTAMP"`

	// SimulatedTimeSeconds / RealTimeSeconds is the time rate.
	SimulatedTimeSeconds float64 `yaml:"simulated_time_seconds" env:"SIMULATED_TIME_SECONDS"`
	RealTimeSeconds      float64 `yaml:"real_time_seconds" env:"REAL_TIME_SECONDS"`

	// LoadRate is the window width of every datastore query.
	LoadRate int64 `yaml:"load_rate" env:"LOAD_RATE"`

	// Channel directory tables.
	EndpointsFile string `yaml:"endpoints_file" env:"ENDPOINTS_FILE"`
	RegistersFile string `yaml:"registers_file" env:"REGISTERS_FILE"`

	// RetryInterval is the fixed backoff between datastore connection attempts.
	RetryInterval time.Duration `yaml:"retry_interval" env:"RETRY_INTERVAL"`
	// IdleWait is how long the committer sleeps after a scan that released nothing.
	IdleWait time.Duration `yaml:"idle_wait" env:"IDLE_WAIT"`

	// RegisterFormat is the register width used by the bridge for every channel.
	RegisterFormat string `yaml:"register_format" env:"REGISTER_FORMAT"`

	// MonitorAddr enables the metrics/watch HTTP server when set.
	MonitorAddr string `yaml:"monitor_addr" env:"MONITOR_ADDR"`

	// Kafka sink, enabled when both are set.
	KafkaBrokers []string `yaml:"kafka_brokers" env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `yaml:"kafka_topic" env:"KAFKA_TOPIC"`
}

// Default returns a Config with defaults for every optional field.
func Default() Config {
	return Config{
		Port:                 502,
		URLPrefix:            "file:",
		SimulatedTimeSeconds: 1,
		RealTimeSeconds:      1,
		RetryInterval:        100 * time.Millisecond,
		IdleWait:             time.Millisecond,
		RegisterFormat:       FormatLong,
	}
}

// Error reports an unusable configuration. It is always fatal.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field == "" {
		return "config: " + e.Message
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// IsConfigError reports whether err is (or wraps) a configuration error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// Load reads a YAML config file over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, &Error{Message: fmt.Sprintf("read %s: %v", path, err)}
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, &Error{Message: fmt.Sprintf("parse %s: %v", path, err)}
	}

	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from SENSORREPLAY_* environment variables.
// Unset variables leave the field untouched.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return &Error{Message: fmt.Sprintf("environment: %v", err)}
	}
	return nil
}

// Validate checks that the config can drive a replay.
func (c Config) Validate() error {
	switch {
	case c.MaxTimestamp <= c.MinTimestamp:
		return &Error{Field: "max_timestamp", Message: fmt.Sprintf("must be greater than min_timestamp (%d), got %d", c.MinTimestamp, c.MaxTimestamp)}
	case c.LoadRate <= 0:
		return &Error{Field: "load_rate", Message: fmt.Sprintf("must be positive, got %d", c.LoadRate)}
	case c.SimulatedTimeSeconds <= 0:
		return &Error{Field: "simulated_time_seconds", Message: fmt.Sprintf("must be positive, got %g", c.SimulatedTimeSeconds)}
	case c.RealTimeSeconds <= 0:
		return &Error{Field: "real_time_seconds", Message: fmt.Sprintf("must be positive, got %g", c.RealTimeSeconds)}
	case c.RetryInterval <= 0:
		return &Error{Field: "retry_interval", Message: fmt.Sprintf("must be positive, got %s", c.RetryInterval)}
	case c.IdleWait <= 0:
		return &Error{Field: "idle_wait", Message: fmt.Sprintf("must be positive, got %s", c.IdleWait)}
	case c.EndpointsFile == "":
		return &Error{Field: "endpoints_file", Message: "required"}
	case c.RegistersFile == "":
		return &Error{Field: "registers_file", Message: "required"}
	case c.Database == "":
		return &Error{Field: "database", Message: "required"}
	}

	switch c.RegisterFormat {
	case FormatShort, FormatInt, FormatLong, FormatFloat, FormatDouble:
	default:
		return &Error{Field: "register_format", Message: fmt.Sprintf("unknown format %q, must be one of: short, int, long, float, double", c.RegisterFormat)}
	}

	if c.KafkaTopic != "" && len(c.KafkaBrokers) == 0 {
		return &Error{Field: "kafka_brokers", Message: "required when kafka_topic is set"}
	}
	return nil
}

// TimeRate is the factor applied to historical offsets to obtain release delays.
func (c Config) TimeRate() float64 {
	return c.SimulatedTimeSeconds / c.RealTimeSeconds
}

// DSN is the datastore connection string.
func (c Config) DSN() string {
	return c.URLPrefix + c.Host + "/" + c.Database
}

// KafkaEnabled reports whether commits should be published to Kafka.
func (c Config) KafkaEnabled() bool {
	return c.KafkaTopic != "" && len(c.KafkaBrokers) > 0
}
