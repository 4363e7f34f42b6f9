package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/renderwatch/errors"
	"github.com/sirupsen/logrus"
)

func TestLoadFromBytesDefaults(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
watch:
  dir: /srv/renders
`))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Version != "1.0" {
		t.Errorf("Expected default version 1.0, got %s", cfg.Version)
	}
	if cfg.Watch.Dir != "/srv/renders" {
		t.Errorf("Expected watch.dir /srv/renders, got %s", cfg.Watch.Dir)
	}
	if got := cfg.Watch.PollDuration(); got != 500*time.Millisecond {
		t.Errorf("Expected 500ms poll interval, got %v", got)
	}
	if got := cfg.Dispatch.IntervalDuration(); got != 250*time.Millisecond {
		t.Errorf("Expected 250ms dispatch interval, got %v", got)
	}
	if cfg.Dispatch.StopSignal != DefaultStopSignal {
		t.Errorf("Expected stop signal %s, got %s", DefaultStopSignal, cfg.Dispatch.StopSignal)
	}
	if cfg.Metrics.IsEnabled() {
		t.Error("Metrics should be disabled by default")
	}
	if cfg.Metrics.Addr != DefaultMetricsAddr {
		t.Errorf("Expected metrics addr %s, got %s", DefaultMetricsAddr, cfg.Metrics.Addr)
	}
}

func TestLoadFromBytesFull(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
version: "1.1"
watch:
  dir: ./incoming
  extensions: [bsz, .zip, tar]
  ignore_dirs: [download, tmp]
  ignore_patterns: ["cache/**"]
  poll_interval: 1s
dispatch:
  interval: 100ms
  command: ["render-tool", "--input", "{path}"]
  stop_signal: term
metrics:
  enabled: true
  addr: ":9100"
pidfile: /tmp/renderwatch.pid
`))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if len(cfg.Watch.Extensions) != 3 || cfg.Watch.Extensions[1] != ".zip" {
		t.Errorf("Unexpected extensions: %v", cfg.Watch.Extensions)
	}
	if cfg.Watch.PollDuration() != time.Second {
		t.Errorf("Expected 1s poll interval, got %v", cfg.Watch.PollDuration())
	}
	if len(cfg.Dispatch.Command) != 3 || cfg.Dispatch.Command[2] != "{path}" {
		t.Errorf("Unexpected command: %v", cfg.Dispatch.Command)
	}
	if !cfg.Metrics.IsEnabled() || cfg.Metrics.Addr != ":9100" {
		t.Errorf("Unexpected metrics config: %+v", cfg.Metrics)
	}
	if cfg.PIDFile != "/tmp/renderwatch.pid" {
		t.Errorf("Unexpected pidfile: %s", cfg.PIDFile)
	}
}

func TestLoadFromBytesRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		code errors.ErrorCode
	}{
		{"malformed yaml", "watch: [", errors.ErrCodeConfigInvalid},
		{"unknown stop signal", "dispatch:\n  stop_signal: hup\n", errors.ErrCodeConfigInvalid},
		{"bad poll interval", "watch:\n  poll_interval: soon\n", errors.ErrCodeConfigValidation},
		{"negative dispatch interval", "dispatch:\n  interval: -1s\n", errors.ErrCodeConfigValidation},
		{"nested ignore dir", "watch:\n  ignore_dirs: [a/b]\n", errors.ErrCodeConfigValidation},
		{"bad ignore pattern", "watch:\n  ignore_patterns: [\"[\"]\n", errors.ErrCodeConfigValidation},
		{"bad metrics addr", "metrics:\n  enabled: true\n  addr: nope\n", errors.ErrCodeConfigValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Expected an error")
			}
			if got := errors.GetCode(err); got != tt.code {
				t.Errorf("Expected code %s, got %s (%v)", tt.code, got, err)
			}
		})
	}
}

func TestExtensions(t *testing.T) {
	cfg, err := LoadFromBytes([]byte(`
watch:
  dir: /srv/renders

notify:
  channel: "#renders"
  retries: 3
`))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if _, ok := cfg.Extensions["notify"]; !ok {
		t.Fatal("Expected 'notify' extension to be present")
	}

	type NotifyConfig struct {
		Channel string `yaml:"channel"`
		Retries int    `yaml:"retries"`
	}

	var notify NotifyConfig
	if err := cfg.UnmarshalExtension("notify", &notify); err != nil {
		t.Fatalf("Failed to unmarshal extension: %v", err)
	}
	if notify.Channel != "#renders" || notify.Retries != 3 {
		t.Errorf("Unexpected extension values: %+v", notify)
	}

	var missing NotifyConfig
	if err := cfg.UnmarshalExtension("absent", &missing); err != nil {
		t.Errorf("Missing extension should not error: %v", err)
	}
	if missing.Channel != "" {
		t.Error("Missing extension should leave target untouched")
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "renderwatch.toml")
	content := `
pidfile = "/run/renderwatch.pid"

[watch]
dir = "/data"
extensions = ["bsz"]

[dispatch]
command = ["echo", "{path}"]

[notify]
channel = "ops"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}
	if cfg.Watch.Dir != "/data" || len(cfg.Watch.Extensions) != 1 {
		t.Errorf("Unexpected watch config: %+v", cfg.Watch)
	}
	if cfg.PIDFile != "/run/renderwatch.pid" {
		t.Errorf("Unexpected pidfile: %s", cfg.PIDFile)
	}

	var notify struct {
		Channel string `yaml:"channel"`
	}
	if err := cfg.UnmarshalExtension("notify", &notify); err != nil {
		t.Fatal(err)
	}
	if notify.Channel != "ops" {
		t.Errorf("Expected TOML extension channel ops, got %q", notify.Channel)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	if !errors.Is(err, errors.ErrCodeConfigNotFound) {
		t.Errorf("Expected CONFIG_NOT_FOUND, got %v", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("RENDERWATCH_TEST_DIR", "/mnt/renders")

	cfg, err := LoadFromBytes([]byte(`
watch:
  dir: ${RENDERWATCH_TEST_DIR}
metrics:
  addr: ${RENDERWATCH_TEST_UNSET:-0.0.0.0:9000}
`))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Watch.Dir != "/mnt/renders" {
		t.Errorf("Expected expanded dir, got %s", cfg.Watch.Dir)
	}
	if cfg.Metrics.Addr != "0.0.0.0:9000" {
		t.Errorf("Expected default value, got %s", cfg.Metrics.Addr)
	}
}

func TestFindConfigFile(t *testing.T) {
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "xdg"))

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := FindConfigFile(nested); !errors.Is(err, errors.ErrCodeConfigNotFound) {
		t.Fatalf("Expected CONFIG_NOT_FOUND, got %v", err)
	}

	want := filepath.Join(root, "a", ".renderwatch.yml")
	if err := os.WriteFile(want, []byte("watch:\n  dir: x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := FindConfigFile(nested)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
}

func TestLoadFromWithoutAnyFile(t *testing.T) {
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "xdg"))

	cfg, err := LoadFromWithLogger(root, logrus.New())
	if err != nil {
		t.Fatalf("Expected defaults, got error: %v", err)
	}
	if cfg.Watch.PollInterval != DefaultPollInterval {
		t.Errorf("Expected default poll interval, got %s", cfg.Watch.PollInterval)
	}
}
