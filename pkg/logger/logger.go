// Package logger is the process-wide log sink. Nothing is written until Init
// is called.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	globalLogger *zerolog.Logger
	logFile      *os.File
	level        = zerolog.DebugLevel
	mu           sync.Mutex
)

// Init initializes the global logger with the specified log file path.
func Init(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	// Close previous log file if exists
	if logFile != nil {
		logFile.Close()
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		globalLogger = nil
		logFile = nil
		return fmt.Errorf("failed to create log file: %w", err)
	}

	logFile = f
	globalLogger = newLogger(f)
	return nil
}

// InitWriter routes log output to w. Used by the CLI for --verbose and by tests.
func InitWriter(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	globalLogger = newLogger(w)
}

// SetLevel sets the minimum level written. Accepts debug, info, warn, error.
func SetLevel(name string) error {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}

	mu.Lock()
	defer mu.Unlock()

	level = lvl
	if globalLogger != nil {
		l := globalLogger.Level(lvl)
		globalLogger = &l
	}
	return nil
}

func newLogger(w io.Writer) *zerolog.Logger {
	l := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
	return &l
}

// Close closes the log file and disables logging.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	globalLogger = nil
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	write(zerolog.InfoLevel, format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	write(zerolog.DebugLevel, format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	write(zerolog.ErrorLevel, format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	write(zerolog.WarnLevel, format, v...)
}

func write(lvl zerolog.Level, format string, v ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		globalLogger.WithLevel(lvl).Msgf(format, v...)
	}
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
