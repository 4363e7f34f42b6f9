package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/grovetools/renderwatch/errors"
	"github.com/grovetools/renderwatch/pkg/filter"
	"github.com/moby/patternmatcher"
)

var stopSignals = map[string]struct{}{
	"interrupt": {}, "int": {}, "sigint": {},
	"term": {}, "sigterm": {},
	"kill": {}, "sigkill": {},
}

// Validate checks if the configuration is valid. Call it after SetDefaults.
func (c *Config) Validate() error {
	if err := validateDuration("watch.poll_interval", c.Watch.PollInterval); err != nil {
		return err
	}
	if err := validateDuration("dispatch.interval", c.Dispatch.Interval); err != nil {
		return err
	}

	for _, ext := range c.Watch.Extensions {
		if filter.NormalizeExtension(ext) == "" {
			return errors.New(errors.ErrCodeConfigValidation, "watch.extensions cannot contain an empty extension")
		}
		if strings.ContainsAny(ext, `/\`) {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("invalid extension '%s'", ext)).
				WithDetail("extension", ext)
		}
	}

	for _, dir := range c.Watch.IgnoreDirs {
		if dir == "" || strings.ContainsAny(dir, `/\`) {
			return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("watch.ignore_dirs entries must be plain directory names, got '%s'", dir)).
				WithDetail("dir", dir)
		}
	}

	if len(c.Watch.IgnorePatterns) > 0 {
		if _, err := patternmatcher.New(c.Watch.IgnorePatterns); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid watch.ignore_patterns").
				WithDetail("patterns", c.Watch.IgnorePatterns)
		}
	}

	if len(c.Dispatch.Command) > 0 && strings.TrimSpace(c.Dispatch.Command[0]) == "" {
		return errors.New(errors.ErrCodeConfigValidation, "dispatch.command must start with a program name")
	}

	if _, ok := stopSignals[strings.ToLower(c.Dispatch.StopSignal)]; !ok {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("unsupported dispatch.stop_signal '%s'", c.Dispatch.StopSignal)).
			WithDetail("stop_signal", c.Dispatch.StopSignal)
	}

	if c.Metrics.IsEnabled() {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, fmt.Sprintf("invalid metrics.addr '%s'", c.Metrics.Addr)).
				WithDetail("addr", c.Metrics.Addr)
		}
	}

	return nil
}

func validateDuration(field, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigValidation, fmt.Sprintf("invalid %s '%s'", field, value)).
			WithDetail("field", field)
	}
	if d <= 0 {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s must be positive", field)).
			WithDetail("field", field)
	}
	return nil
}
