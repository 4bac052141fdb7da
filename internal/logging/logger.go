// Package logging provides structured logging for the gateway, backed by zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration
type Config struct {
	Level      string `json:"level"`       // DEBUG, INFO, WARN, ERROR
	Output     string `json:"output"`      // "stdout", "stderr", or file path
	Component  string `json:"component"`
	JSONFormat bool   `json:"json_format"` // JSON output (console writer otherwise)
}

// Logger is a thin wrapper around zerolog carrying component context
type Logger struct {
	zl zerolog.Logger
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// ParseLevel converts a string to a zerolog level
func ParseLevel(s string) zerolog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "FATAL":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a new logger with the given configuration
func New(cfg *Config) *Logger {
	var output io.Writer = os.Stdout

	if cfg.Output == "stderr" {
		output = os.Stderr
	} else if cfg.Output != "" && cfg.Output != "stdout" {
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			output = file
		}
	}

	if !cfg.JSONFormat {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	zl := zerolog.New(output).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
	if cfg.Component != "" {
		zl = zl.With().Str("component", cfg.Component).Logger()
	}

	return &Logger{zl: zl}
}

// Default returns the default logger instance
func Default() *Logger {
	once.Do(func() {
		if defaultLogger == nil {
			defaultLogger = New(&Config{Level: "INFO", Output: "stdout", JSONFormat: true})
		}
	})
	return defaultLogger
}

// SetDefault sets the default logger
func SetDefault(l *Logger) {
	defaultLogger = l
}

// WithComponent returns a new logger with the specified component
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}

// WithField returns a new logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// WithFields returns a new logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	ctx := l.zl.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{zl: ctx.Logger()}
}

// WithError returns a new logger with an error field
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{zl: l.zl.With().Str("error", err.Error()).Logger()}
}

// emit attaches key-value args to the event and writes it
func emit(e *zerolog.Event, msg string, args []interface{}) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		if err, isErr := args[i+1].(error); isErr {
			if err != nil {
				e = e.Str(key, err.Error())
			}
			continue
		}
		e = e.Interface(key, args[i+1])
	}
	e.Msg(msg)
}

// Debug logs a debug message with optional key-value args
func (l *Logger) Debug(msg string, args ...interface{}) { emit(l.zl.Debug(), msg, args) }

// Info logs an info message with optional key-value args
func (l *Logger) Info(msg string, args ...interface{}) { emit(l.zl.Info(), msg, args) }

// Warn logs a warning message with optional key-value args
func (l *Logger) Warn(msg string, args ...interface{}) { emit(l.zl.Warn(), msg, args) }

// Error logs an error message with optional key-value args
func (l *Logger) Error(msg string, args ...interface{}) { emit(l.zl.Error(), msg, args) }

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, args ...interface{}) { emit(l.zl.Fatal(), msg, args) }

// Package-level functions for the default logger

func Debug(msg string, args ...interface{}) { Default().Debug(msg, args...) }
func Info(msg string, args ...interface{})  { Default().Info(msg, args...) }
func Warn(msg string, args ...interface{})  { Default().Warn(msg, args...) }
func Error(msg string, args ...interface{}) { Default().Error(msg, args...) }
func Fatal(msg string, args ...interface{}) { Default().Fatal(msg, args...) }

// WithComponent returns a default-logger child with the specified component
func WithComponent(component string) *Logger {
	return Default().WithComponent(component)
}
