// Package logging provides component-scoped loggers for lookout.
//
// Loggers write to a date-stamped file under the state directory and, when
// debugging or running non-interactively, to stderr. Level and format come
// from the LOOKOUT_LOG_LEVEL env var or the [logging] section of
// lookout.toml.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/lookout/config"
	"github.com/grovetools/lookout/pkg/paths"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
)

// Config is the [logging] extension section of lookout.toml.
type Config struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" (default) or "json"
	File   string `toml:"file"`   // explicit log file path
}

// NewLogger creates and returns a pre-configured logger for a component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	logger := logrus.New()

	var logCfg Config
	if cfg, err := config.LoadDefault(); err == nil {
		if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
			logrus.Warnf("Failed to parse 'logging' config: %v", err)
		}
	}

	levelStr := "info"
	if env := os.Getenv("LOOKOUT_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if logCfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	var writers []io.Writer

	logFilePath := logCfg.File
	if logFilePath == "" {
		if stateDir := paths.StateDir(); stateDir != "" {
			dateStr := time.Now().Format("2006-01-02")
			logFilePath = filepath.Join(stateDir, "logs", fmt.Sprintf("%s-%s.log", component, dateStr))
		}
	} else {
		logFilePath = expandPath(logFilePath)
	}

	if logFilePath != "" {
		dir := filepath.Dir(logFilePath)
		if err := os.MkdirAll(dir, 0755); err == nil {
			file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err == nil {
				writers = append(writers, file)
			}
		}
	}

	// Structured logs go to stderr when debugging or when output is piped;
	// in normal interactive use the file sink is enough.
	isDebug := os.Getenv("LOOKOUT_DEBUG") == "1" || logger.GetLevel() == logrus.DebugLevel
	isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	if isDebug || !isInteractive {
		writers = append(writers, os.Stderr)
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

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
