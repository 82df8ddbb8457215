package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/flaredantic/flaredantic-go/internal/domain/port"
)

// Level is a logging severity
type Level int32

const (
	// LevelDebug is the level for debug messages
	LevelDebug Level = iota
	// LevelInfo is the level for informational messages
	LevelInfo
	// LevelWarn is the level for warning messages
	LevelWarn
	// LevelError is the level for error messages
	LevelError
	// LevelOff disables output
	LevelOff
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to Level
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "off", "none", "silent":
		return LevelOff
	default:
		return LevelInfo
	}
}

// Logger is an implementation of port.Logger. Named children share the
// parent's writer and level.
type Logger struct {
	logger *log.Logger
	level  *atomic.Int32
	writer io.Writer
	prefix string
}

// NewLogger creates a new Logger instance
func NewLogger(writer io.Writer, level string) *Logger {
	l := &Logger{
		logger: log.New(writer, "", 0),
		level:  new(atomic.Int32),
		writer: writer,
	}
	l.level.Store(int32(ParseLevel(level)))
	return l
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return NewLogger(io.Discard, "off")
}

// SetLevel changes the logging level
func (l *Logger) SetLevel(level string) {
	l.level.Store(int32(ParseLevel(level)))
}

// Level returns the current level
func (l *Logger) Level() Level {
	return Level(l.level.Load())
}

// Named returns a child logger whose messages start with "component: "
func (l *Logger) Named(component string) port.Logger {
	child := *l
	if l.prefix != "" {
		child.prefix = l.prefix + "." + component
	} else {
		child.prefix = component
	}
	return &child
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if level < l.Level() {
		return
	}

	now := time.Now().Format("2006-01-02 15:04:05.000")

	message := format
	if len(args) > 0 {
		message = fmt.Sprintf(format, args...)
	}
	if l.prefix != "" {
		message = l.prefix + ": " + message
	}

	l.logger.Printf("[%s] %s %s", now, level.String(), message)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

// Close closes the writer if it implements io.Closer. Standard streams
// are left open.
func (l *Logger) Close() error {
	if l.writer == os.Stdout || l.writer == os.Stderr {
		return nil
	}
	if closer, ok := l.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// NewFileLogger creates a logger that writes to a file
func NewFileLogger(filePath string, level string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return NewLogger(file, level), nil
}

// NewTeeLogger writes to both the terminal writer and the log file
func NewTeeLogger(terminal io.Writer, filePath string, level string) (*Logger, error) {
	fileLogger, err := NewFileLogger(filePath, level)
	if err != nil {
		return nil, err
	}
	l := NewLogger(io.MultiWriter(terminal, fileLogger.writer), level)
	l.writer = fileLogger.writer
	return l, nil
}

// Ensure Logger implements port.Logger
var _ port.Logger = (*Logger)(nil)
