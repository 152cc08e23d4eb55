package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. UWBCTL_LOG_LEVEL.
const EnvPrefix = "UWBCTL"

// Config holds application configuration
type Config struct {
	LogLevel string `mapstructure:"log_level" default:"info"`

	// AcquireTimeout bounds the blocking scope acquisition in SetRole.
	AcquireTimeout time.Duration `mapstructure:"acquire_timeout" default:"10s"`

	// RoleQueueSize is the number of pending SetRoleAsync requests accepted
	// before new ones are rejected.
	RoleQueueSize int `mapstructure:"role_queue_size" default:"4"`

	// WatchBuffer is the buffer of each measurement watcher. 1 keeps only the
	// latest value.
	WatchBuffer int `mapstructure:"watch_buffer" default:"1"`

	Controlee ControleeConfig `mapstructure:"controlee"`

	// EventLog is a path for the CBOR session event log; empty disables it.
	EventLog string `mapstructure:"event_log"`
	// RecordMeasurements also writes every decoded sample to the event log.
	RecordMeasurements bool `mapstructure:"record_measurements" default:"false"`

	Sim SimConfig `mapstructure:"sim"`
}

// ControleeConfig is the fallback channel used when a controlee has no
// caller-supplied parameters. Zero means "not configured"; no default is
// baked in because the value differs between deployments.
type ControleeConfig struct {
	Channel  int `mapstructure:"channel"`
	Preamble int `mapstructure:"preamble"`
}

// Configured reports whether both fallback values are set.
func (c ControleeConfig) Configured() bool {
	return c.Channel > 0 && c.Preamble > 0
}

// SimConfig drives the in-process radio simulator used by the CLI.
type SimConfig struct {
	LocalAddress uint16        `mapstructure:"local_address" default:"4660"`
	Channel      int           `mapstructure:"channel" default:"9"`
	Preamble     int           `mapstructure:"preamble" default:"11"`
	Interval     time.Duration `mapstructure:"interval" default:"200ms"`
	Buffer       int           `mapstructure:"buffer" default:"32"`
	// AcquireDelay is how long the simulated platform takes to grant a scope.
	AcquireDelay time.Duration `mapstructure:"acquire_delay" default:"300ms"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads configuration from path (YAML, TOML or JSON, by extension) and
// UWBCTL_* environment variables, on top of DefaultConfig. An empty path
// only applies the environment.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config load failed (%s): %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// keys lists every setting so environment variables are honored even when
// the key is absent from the file.
var keys = []string{
	"log_level",
	"acquire_timeout",
	"role_queue_size",
	"watch_buffer",
	"controlee.channel",
	"controlee.preamble",
	"event_log",
	"record_measurements",
	"sim.local_address",
	"sim.channel",
	"sim.preamble",
	"sim.interval",
	"sim.buffer",
	"sim.acquire_delay",
}

// Validate rejects values the manager cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.AcquireTimeout <= 0 {
		errs = append(errs, fmt.Errorf("acquire_timeout must be positive, got %s", c.AcquireTimeout))
	}
	if c.RoleQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("role_queue_size must be positive, got %d", c.RoleQueueSize))
	}
	if c.WatchBuffer <= 0 {
		errs = append(errs, fmt.Errorf("watch_buffer must be positive, got %d", c.WatchBuffer))
	}
	if c.Controlee.Channel < 0 || c.Controlee.Preamble < 0 {
		errs = append(errs, errors.New("controlee channel/preamble must not be negative"))
	}
	if c.Sim.Interval <= 0 {
		errs = append(errs, fmt.Errorf("sim.interval must be positive, got %s", c.Sim.Interval))
	}
	if c.Sim.AcquireDelay < 0 {
		errs = append(errs, fmt.Errorf("sim.acquire_delay must not be negative, got %s", c.Sim.AcquireDelay))
	}
	if c.Sim.Buffer <= 0 {
		errs = append(errs, fmt.Errorf("sim.buffer must be positive, got %d", c.Sim.Buffer))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Level returns the parsed log level, falling back to Info.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
