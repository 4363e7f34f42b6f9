package config

import (
	"testing"

	"github.com/grovetools/renderwatch/errors"
)

func TestValidate(t *testing.T) {
	enabled := true
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"dotted extension", func(c *Config) { c.Watch.Extensions = []string{".bsz"} }, false},
		{"bare dot extension", func(c *Config) { c.Watch.Extensions = []string{"."} }, true},
		{"extension with slash", func(c *Config) { c.Watch.Extensions = []string{"a/b"} }, true},
		{"empty ignore dir", func(c *Config) { c.Watch.IgnoreDirs = []string{""} }, true},
		{"zero poll interval", func(c *Config) { c.Watch.PollInterval = "0s" }, true},
		{"blank command", func(c *Config) { c.Dispatch.Command = []string{" ", "{path}"} }, true},
		{"uppercase signal", func(c *Config) { c.Dispatch.StopSignal = "SIGTERM" }, false},
		{"unknown signal", func(c *Config) { c.Dispatch.StopSignal = "usr1" }, true},
		{"metrics addr ignored when disabled", func(c *Config) { c.Metrics.Addr = "nope" }, false},
		{"metrics addr checked when enabled", func(c *Config) {
			c.Metrics.Enabled = &enabled
			c.Metrics.Addr = "nope"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.SetDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, errors.ErrCodeConfigValidation) {
					t.Errorf("expected CONFIG_VALIDATION, got %v", errors.GetCode(err))
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
