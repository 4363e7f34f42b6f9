package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grovetools/renderwatch/errors"
	"github.com/grovetools/renderwatch/pkg/paths"
	"github.com/grovetools/renderwatch/schema"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

var configNames = []string{
	"renderwatch.yml",
	"renderwatch.yaml",
	".renderwatch.yml",
	".renderwatch.yaml",
	"renderwatch.toml",
}

// Format is the syntax of a configuration file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf picks the format from the file extension. Anything that is not
// .toml is read as YAML.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Load reads and parses a renderwatch configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	cfg, err := LoadFromBytesAs(data, FormatOf(path))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads the configuration with hierarchical merging, starting
// from the working directory:
// 1. Global config (~/.config/renderwatch/renderwatch.yml) - base layer
// 2. Project config (renderwatch.yml) - overrides global
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}
	return LoadFrom(cwd)
}

// LoadFrom loads configuration with hierarchical merging starting from the given directory
func LoadFrom(startDir string) (*Config, error) {
	return LoadFromWithLogger(startDir, logrus.New())
}

// LoadFromWithLogger loads configuration with hierarchical merging and logging.
// When neither a project nor a global file exists the defaults are returned.
func LoadFromWithLogger(startDir string, logger *logrus.Logger) (*Config, error) {
	var finalConfig *Config

	globalPath := getXDGConfigPath()
	if globalPath != "" {
		if info, err := os.Stat(globalPath); err == nil && !info.IsDir() {
			logger.WithField("path", globalPath).Debug("Loading global configuration")
			globalConfig, err := parseFile(globalPath)
			if err != nil {
				logger.WithError(err).Warn("Failed to load global configuration, continuing without it")
			} else {
				finalConfig = globalConfig
			}
		}
	}

	projectPath, err := findProjectConfig(startDir)
	if err == nil && projectPath != globalPath {
		logger.WithField("path", projectPath).Debug("Loading project configuration")
		projectConfig, err := parseFile(projectPath)
		if err != nil {
			return nil, err
		}
		if finalConfig == nil {
			finalConfig = projectConfig
		} else {
			logger.Debug("Merging project configuration over global configuration")
			finalConfig = mergeConfigs(finalConfig, projectConfig)
		}
	}

	if finalConfig == nil {
		logger.Debug("No configuration file found, using defaults")
		finalConfig = &Config{}
	}

	if err := validateSchema(finalConfig); err != nil {
		return nil, err
	}

	finalConfig.SetDefaults()

	if err := finalConfig.Validate(); err != nil {
		return nil, err
	}

	if logger.IsLevelEnabled(logrus.DebugLevel) {
		configData, err := yaml.Marshal(finalConfig)
		if err == nil {
			logger.Debugf("Merged configuration:\n%s", string(configData))
		}
	}

	return finalConfig, nil
}

// LoadFromBytes parses YAML configuration from a byte array
func LoadFromBytes(data []byte) (*Config, error) {
	return LoadFromBytesAs(data, FormatYAML)
}

// LoadFromBytesAs parses, validates and defaults configuration in the given format.
func LoadFromBytesAs(data []byte, format Format) (*Config, error) {
	cfg, err := parse(data, format)
	if err != nil {
		return nil, err
	}

	if err := validateSchema(cfg); err != nil {
		return nil, err
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindConfigFile searches for a renderwatch configuration file from startDir
// up to the filesystem root, then falls back to the XDG config directory.
func FindConfigFile(startDir string) (string, error) {
	if path, err := findProjectConfig(startDir); err == nil {
		return path, nil
	}

	if xdgConfigPath := getXDGConfigPath(); xdgConfigPath != "" {
		if info, err := os.Stat(xdgConfigPath); err == nil && !info.IsDir() {
			return xdgConfigPath, nil
		}
	}

	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

func findProjectConfig(startDir string) (string, error) {
	dir := startDir
	for {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", errors.ConfigNotFound(startDir)
}

// parseFile reads one layer without defaults or validation.
func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}
	cfg, err := parse(data, FormatOf(path))
	if err != nil {
		if e, ok := err.(*errors.RenderwatchError); ok {
			return nil, e.WithDetail("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

func parse(data []byte, format Format) (*Config, error) {
	expanded := []byte(expandEnvVars(string(data)))

	var cfg Config
	switch format {
	case FormatTOML:
		if err := toml.Unmarshal(expanded, &cfg); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML configuration")
		}
		extensions, err := tomlExtensions(expanded)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML configuration")
		}
		cfg.Extensions = extensions
	default:
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration")
		}
	}
	return &cfg, nil
}

// tomlExtensions collects the top-level TOML keys Config does not declare.
func tomlExtensions(data []byte) (map[string]interface{}, error) {
	var raw map[string]interface{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	for _, known := range []string{"version", "watch", "dispatch", "metrics", "pidfile"} {
		delete(raw, known)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return raw, nil
}

func validateSchema(cfg *Config) error {
	schemaJSON, err := GenerateSchema()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to generate config schema")
	}
	validator, err := schema.NewValidator(schemaJSON)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to create validator")
	}
	if err := validator.Validate(cfg); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "schema validation failed")
	}
	return nil
}

// expandEnvVars replaces ${VAR} with environment variable values
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

// GlobalConfigPath returns the user-wide configuration file, which may not exist.
func GlobalConfigPath() string {
	return getXDGConfigPath()
}

// getXDGConfigPath returns the XDG config path for renderwatch
func getXDGConfigPath() string {
	return paths.GlobalConfigFile()
}
