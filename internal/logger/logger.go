package logger

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Logger is the global logger instance. It writes to stderr until Init is called.
	Logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           log.InfoLevel,
		Prefix:          "roomservice",
	})
)

// Config holds logger configuration
type Config struct {
	Debug bool
	// File is an optional path for a rotating log file. Stderr is always written.
	File string
}

// Init initializes the global logger with the given configuration
func Init(cfg Config) error {
	var writer io.Writer = os.Stderr
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return err
		}
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		writer = io.MultiWriter(os.Stderr, fileWriter)
	}

	level := log.InfoLevel
	if cfg.Debug {
		level = log.DebugLevel
	}

	Logger = log.NewWithOptions(writer, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		Level:           level,
		Prefix:          "roomservice",
	})
	return nil
}

// With returns a child logger carrying the given key/value pairs.
func With(keyvals ...interface{}) *log.Logger {
	return Logger.With(keyvals...)
}

// Debug logs a debug message
func Debug(msg string, keyvals ...interface{}) {
	Logger.Debug(msg, keyvals...)
}

// Info logs an info message
func Info(msg string, keyvals ...interface{}) {
	Logger.Info(msg, keyvals...)
}

// Warn logs a warning message
func Warn(msg string, keyvals ...interface{}) {
	Logger.Warn(msg, keyvals...)
}

// Error logs an error message
func Error(msg string, keyvals ...interface{}) {
	Logger.Error(msg, keyvals...)
}

// Fatal logs a fatal error and exits
func Fatal(msg string, keyvals ...interface{}) {
	Logger.Fatal(msg, keyvals...)
	os.Exit(1)
}
