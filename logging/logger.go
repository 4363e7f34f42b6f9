package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/grovetools/renderwatch/config"
	"github.com/grovetools/renderwatch/pkg/paths"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// Loggers are cached per component.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logger := logrus.New()

	// The `logging` section of renderwatch.yml is optional.
	cfg, err := config.LoadDefault()
	var logCfg Config
	if err == nil {
		if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
			logrus.Warnf("Failed to parse 'logging' config: %v", err)
		}
	}

	levelStr := "info"
	if os.Getenv("RENDERWATCH_LOG_LEVEL") != "" {
		levelStr = os.Getenv("RENDERWATCH_LOG_LEVEL")
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if os.Getenv("RENDERWATCH_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

	switch logCfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		format := logCfg.Format
		if !isInteractive || termenv.EnvNoColor() {
			format.DisableColors = true
		}
		logger.SetFormatter(&TextFormatter{Config: format})
	}

	var writers []io.Writer

	fileSink := false
	if logCfg.File.Enabled {
		logFilePath := logCfg.File.Path
		if logFilePath == "" {
			logFilePath = defaultLogFile()
		}
		logFilePath = expandPath(logFilePath)
		if logFilePath != "" {
			dir := filepath.Dir(logFilePath)
			if err := os.MkdirAll(dir, 0755); err != nil {
				logger.Warnf("Failed to create log directory %s: %v", dir, err)
			} else if file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666); err != nil {
				logger.Warnf("Failed to open log file %s: %v", logFilePath, err)
			} else {
				writers = append(writers, file)
				fileSink = true
			}
		}
	}

	stderrMode := "auto"
	if logCfg.Format.Stderr != "" {
		stderrMode = logCfg.Format.Stderr
	}

	shouldLogToStderr := true
	switch stderrMode {
	case "never":
		shouldLogToStderr = false
	case "auto":
		// A detached watcher with a file sink keeps stderr quiet.
		if fileSink && !isInteractive {
			shouldLogToStderr = false
		}
	}
	if shouldLogToStderr {
		writers = append(writers, GetGlobalOutput())
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	entry := logger.WithField("component", component)
	loggers[component] = entry
	return entry
}

// LogFilePath returns where the file sink writes, or "" when it is disabled.
func LogFilePath() string {
	cfg, err := config.LoadDefault()
	if err != nil {
		return ""
	}
	var logCfg Config
	if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil || !logCfg.File.Enabled {
		return ""
	}
	if logCfg.File.Path != "" {
		return expandPath(logCfg.File.Path)
	}
	return defaultLogFile()
}

// defaultLogFile is shared by every component.
func defaultLogFile() string {
	return paths.LogFile()
}

// expandPath expands tilde and environment variables in file paths
func expandPath(path string) string {
	if expanded, err := paths.Expand(path); err == nil {
		return expanded
	}
	return path
}
