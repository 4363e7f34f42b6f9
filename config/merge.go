package config

// mergeConfigs layers override on top of base. Scalars replace when set,
// lists replace when non-empty and extensions merge key by key.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}
	if override.PIDFile != "" {
		result.PIDFile = override.PIDFile
	}

	// Watch
	if override.Watch.Dir != "" {
		result.Watch.Dir = override.Watch.Dir
	}
	if len(override.Watch.Extensions) > 0 {
		result.Watch.Extensions = override.Watch.Extensions
	}
	if len(override.Watch.IgnoreDirs) > 0 {
		result.Watch.IgnoreDirs = override.Watch.IgnoreDirs
	}
	if len(override.Watch.IgnorePatterns) > 0 {
		result.Watch.IgnorePatterns = override.Watch.IgnorePatterns
	}
	if override.Watch.PollInterval != "" {
		result.Watch.PollInterval = override.Watch.PollInterval
	}

	// Dispatch
	if override.Dispatch.Interval != "" {
		result.Dispatch.Interval = override.Dispatch.Interval
	}
	if len(override.Dispatch.Command) > 0 {
		result.Dispatch.Command = override.Dispatch.Command
	}
	if override.Dispatch.StopSignal != "" {
		result.Dispatch.StopSignal = override.Dispatch.StopSignal
	}

	// Metrics
	if override.Metrics.Enabled != nil {
		enabled := *override.Metrics.Enabled
		result.Metrics.Enabled = &enabled
	}
	if override.Metrics.Addr != "" {
		result.Metrics.Addr = override.Metrics.Addr
	}

	if len(override.Extensions) > 0 {
		merged := make(map[string]interface{}, len(base.Extensions)+len(override.Extensions))
		for k, v := range base.Extensions {
			merged[k] = v
		}
		for k, v := range override.Extensions {
			merged[k] = v
		}
		result.Extensions = merged
	}

	return &result
}
