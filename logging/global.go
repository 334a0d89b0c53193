// Package logging wraps log/slog with a console handler, a rotating JSON file
// handler and package-level helpers usable before initialization.
package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/giygas/protoscan/config"
)

type LoggingService struct {
	Logger  *slog.Logger
	rotator *RotatingLogger
}

var DefaultLoggingService *LoggingService

// InitLogger initializes the global logger from the application config
func InitLogger(logDir string, cfg *config.Config) {
	verbose := os.Getenv("TEST_VERBOSE") != ""
	consoleLevel := GetConsoleLogLevel(cfg.Env, cfg.LogLevel, verbose)

	logger, rotator := SetupLogger(logDir, consoleLevel, cfg.LogRetentionWeeks, cfg.MaxLogFileSize)
	DefaultLoggingService = &LoggingService{
		Logger:  logger,
		rotator: rotator,
	}
	slog.SetDefault(logger)
}

// Close releases the rotating log file, if any
func Close() {
	if DefaultLoggingService != nil && DefaultLoggingService.rotator != nil {
		if err := DefaultLoggingService.rotator.Close(); err != nil {
			slog.Warn("Failed to close log file", "error", err)
		}
	}
}

// parseLogLevel maps a LOG_LEVEL value to a slog level, defaulting to info
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetConsoleLogLevel picks the console level. Tests stay quiet unless verbose,
// an explicit LOG_LEVEL wins elsewhere, and deployed environments default to warn.
func GetConsoleLogLevel(env config.Environment, levelStr string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}

	if levelStr != "" {
		return parseLogLevel(levelStr)
	}

	switch env {
	case config.EnvProduction, config.EnvStaging:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// GetFileLogLevel returns the level of the file handler, which keeps everything
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}

func logger() *slog.Logger {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		return slog.Default()
	}
	return DefaultLoggingService.Logger
}

func Info(msg string, args ...any) {
	logger().Info(msg, args...)
}

func Error(msg string, args ...any) {
	logger().Error(msg, args...)
}

func Warn(msg string, args ...any) {
	logger().Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	logger().Debug(msg, args...)
}
