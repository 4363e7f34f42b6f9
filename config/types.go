package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

const (
	DefaultPollInterval     = "500ms"
	DefaultDispatchInterval = "250ms"
	DefaultMetricsAddr      = "127.0.0.1:9464"
	DefaultStopSignal       = "interrupt"
)

// Config represents the renderwatch.yml configuration
type Config struct {
	Version  string         `yaml:"version,omitempty" toml:"version,omitempty" json:"version,omitempty" jsonschema:"description=Configuration version (e.g. 1.0)"`
	Watch    WatchConfig    `yaml:"watch,omitempty" toml:"watch,omitempty" json:"watch,omitempty" jsonschema:"description=Directory watching settings"`
	Dispatch DispatchConfig `yaml:"dispatch,omitempty" toml:"dispatch,omitempty" json:"dispatch,omitempty" jsonschema:"description=How queued paths are handed to the renderer"`
	Metrics  MetricsConfig  `yaml:"metrics,omitempty" toml:"metrics,omitempty" json:"metrics,omitempty" jsonschema:"description=Prometheus metrics endpoint"`
	PIDFile  string         `yaml:"pidfile,omitempty" toml:"pidfile,omitempty" json:"pidfile,omitempty" jsonschema:"description=Path of the PID file guarding against a second watcher"`

	// Extensions captures all other top-level keys for extensibility.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" json:"-" jsonschema:"-"`
}

// WatchConfig selects which directory is watched and which files matter.
type WatchConfig struct {
	Dir            string   `yaml:"dir,omitempty" toml:"dir,omitempty" json:"dir,omitempty" jsonschema:"description=Directory to watch recursively"`
	Extensions     []string `yaml:"extensions,omitempty" toml:"extensions,omitempty" json:"extensions,omitempty" jsonschema:"description=File extensions that trigger a render (without the dot)"`
	IgnoreDirs     []string `yaml:"ignore_dirs,omitempty" toml:"ignore_dirs,omitempty" json:"ignore_dirs,omitempty" jsonschema:"description=Parent directory names whose files are ignored"`
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty" toml:"ignore_patterns,omitempty" json:"ignore_patterns,omitempty" jsonschema:"description=Glob patterns relative to the watched directory that are ignored"`
	PollInterval   string   `yaml:"poll_interval,omitempty" toml:"poll_interval,omitempty" json:"poll_interval,omitempty" jsonschema:"description=How often the watch loop checks for a stop request (e.g. 500ms)"`
}

// DispatchConfig controls the loop that drains the queues.
type DispatchConfig struct {
	Interval   string   `yaml:"interval,omitempty" toml:"interval,omitempty" json:"interval,omitempty" jsonschema:"description=How often the queues are drained (e.g. 250ms)"`
	Command    []string `yaml:"command,omitempty" toml:"command,omitempty" json:"command,omitempty" jsonschema:"description=Render command; {path} is replaced by the queued file. Empty logs only"`
	StopSignal string   `yaml:"stop_signal,omitempty" toml:"stop_signal,omitempty" json:"stop_signal,omitempty" jsonschema:"enum=interrupt,enum=int,enum=sigint,enum=term,enum=sigterm,enum=kill,enum=sigkill,description=Signal sent to a running render when it is stopped"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty" toml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"description=Serve /metrics"`
	Addr    string `yaml:"addr,omitempty" toml:"addr,omitempty" json:"addr,omitempty" jsonschema:"description=Listen address of the metrics server"`
}

// IsEnabled reports whether the metrics server should run.
func (m MetricsConfig) IsEnabled() bool {
	return m.Enabled != nil && *m.Enabled
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Watch.PollInterval == "" {
		c.Watch.PollInterval = DefaultPollInterval
	}
	if c.Dispatch.Interval == "" {
		c.Dispatch.Interval = DefaultDispatchInterval
	}
	if c.Dispatch.StopSignal == "" {
		c.Dispatch.StopSignal = DefaultStopSignal
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
}

// PollDuration parses Watch.PollInterval. Invalid values are rejected by Validate.
func (w WatchConfig) PollDuration() time.Duration {
	d, err := time.ParseDuration(w.PollInterval)
	if err != nil {
		return 0
	}
	return d
}

// IntervalDuration parses Dispatch.Interval.
func (d DispatchConfig) IntervalDuration() time.Duration {
	v, err := time.ParseDuration(d.Interval)
	if err != nil {
		return 0
	}
	return v
}

// UnmarshalExtension decodes a top-level key that is not part of Config into
// target. A missing key leaves target untouched.
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  target,
		TagName: "yaml",
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
