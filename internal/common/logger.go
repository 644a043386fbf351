package common

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
)

var (
	globalLogger arbor.ILogger
	loggerMutex  sync.RWMutex
)

// GetLogger returns the global logger instance
func GetLogger() arbor.ILogger {
	loggerMutex.RLock()
	if globalLogger != nil {
		loggerMutex.RUnlock()
		return globalLogger
	}
	loggerMutex.RUnlock()

	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	// Double-check after acquiring write lock
	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(models.WriterConfiguration{
			Type:             models.LogWriterTypeConsole,
			TimeFormat:       "15:04:05",
			TextOutput:       true,
			DisableTimestamp: false,
		})
	}
	return globalLogger
}

// InitLogger initializes the arbor logger for a binary from the logging
// configuration. appName is used for the per-binary log file.
func InitLogger(appName string, config LoggingConfig) arbor.ILogger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	logger := arbor.NewLogger()

	timeFormat := config.TimeFormat
	if timeFormat == "" {
		timeFormat = "15:04:05"
	}

	hasFileOutput := false
	hasConsoleOutput := false
	for _, output := range config.Output {
		if output == "file" {
			hasFileOutput = true
		}
		if output == "stdout" || output == "console" {
			hasConsoleOutput = true
		}
	}
	if !hasFileOutput && !hasConsoleOutput {
		hasConsoleOutput = true
	}

	if hasFileOutput {
		logsDir := config.Directory
		if logsDir == "" {
			if execPath, err := os.Executable(); err == nil {
				logsDir = filepath.Join(filepath.Dir(execPath), "logs")
			} else {
				logsDir = "logs"
			}
		}
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			fmt.Printf("Warning: Failed to create logs directory: %v\n", err)
		} else {
			logFile := filepath.Join(logsDir, appName+".log")
			logger = logger.WithFileWriter(models.WriterConfiguration{
				Type:             models.LogWriterTypeFile,
				FileName:         logFile,
				TimeFormat:       timeFormat,
				MaxSize:          100 * 1024 * 1024, // 100 MB
				MaxBackups:       3,
				TextOutput:       true,
				DisableTimestamp: false,
			})
		}
	}

	if hasConsoleOutput {
		logger = logger.WithConsoleWriter(models.WriterConfiguration{
			Type:             models.LogWriterTypeConsole,
			TimeFormat:       timeFormat,
			TextOutput:       true,
			DisableTimestamp: false,
		})
	}

	logger = logger.WithLevelFromString(NormalizeLogLevel(config.Level))

	globalLogger = logger
	return logger
}

// NormalizeLogLevel maps the CLI spelling "warning" onto arbor's "warn"
// and defaults empty input to "info".
func NormalizeLogLevel(level string) string {
	switch level {
	case "":
		return "info"
	case "warning":
		return "warn"
	default:
		return level
	}
}

// ValidLogLevel reports whether level is one of the accepted CLI values.
func ValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warning", "error":
		return true
	}
	return false
}

// GetLogFilePath returns the configured log file path from the logger
func GetLogFilePath(logger arbor.ILogger) string {
	if logger != nil {
		if logFilePath := logger.GetLogFilePath(); logFilePath != "" {
			return logFilePath
		}
	}
	return ""
}
