package ncd

import (
	"fmt"
	"time"

	"github.com/joeycumines/logiface"
	"gopkg.in/yaml.v3"
)

// Config is the interpreter's file configuration. Zero fields mean
// "unset"; [Config.Options] only emits options for set fields, so a config
// composes with programmatic options.
type Config struct {
	// RetryTime is the backoff before a failed statement is retried.
	RetryTime time.Duration `yaml:"retry_time"`

	// LogLevel names the minimum log level (trace, debug, info, notice,
	// warning, err, crit, alert, emerg). Interpreted by [Config.Level];
	// the caller applies it when constructing the logger.
	LogLevel string `yaml:"log_level"`

	// Args are the program's invocation arguments.
	Args []string `yaml:"args"`
}

// UnmarshalYAML implements yaml.Unmarshaler; retry_time is a duration
// string such as "250ms" or "10s".
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		RetryTime string   `yaml:"retry_time"`
		LogLevel  string   `yaml:"log_level"`
		Args      []string `yaml:"args"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.RetryTime != "" {
		d, err := time.ParseDuration(raw.RetryTime)
		if err != nil {
			return fmt.Errorf("retry_time: %w", err)
		}
		c.RetryTime = d
	}
	c.LogLevel = raw.LogLevel
	c.Args = raw.Args
	return nil
}

// ParseConfig parses a YAML configuration.
func ParseConfig(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("ncd: parse config: %w", err)
	}
	if c.RetryTime < 0 {
		return nil, fmt.Errorf(`ncd: config retry_time must not be negative`)
	}
	if c.LogLevel != "" {
		if _, err := c.Level(); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// Level returns the configured minimum log level,
// [logiface.LevelInformational] if unset.
func (c *Config) Level() (logiface.Level, error) {
	switch c.LogLevel {
	case "":
		return logiface.LevelInformational, nil
	case "trace":
		return logiface.LevelTrace, nil
	case "debug":
		return logiface.LevelDebug, nil
	case "info":
		return logiface.LevelInformational, nil
	case "notice":
		return logiface.LevelNotice, nil
	case "warning":
		return logiface.LevelWarning, nil
	case "err":
		return logiface.LevelError, nil
	case "crit":
		return logiface.LevelCritical, nil
	case "alert":
		return logiface.LevelAlert, nil
	case "emerg":
		return logiface.LevelEmergency, nil
	default:
		return 0, fmt.Errorf("ncd: unknown log level %q", c.LogLevel)
	}
}

// Options converts the set fields into interpreter options.
func (c *Config) Options() []Option {
	var opts []Option
	if c.RetryTime > 0 {
		opts = append(opts, WithRetryTime(c.RetryTime))
	}
	if len(c.Args) > 0 {
		opts = append(opts, WithArgs(c.Args...))
	}
	return opts
}
