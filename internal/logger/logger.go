// Package logger provides the leveled logger used across stepwise.
// Output is discarded unless STEPWISE_LOG_FILE or Configure names a file,
// so logging never interferes with the terminal view.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// Level represents a log level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel maps a config or env value to a Level. Empty means info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("invalid log level: %s", s)
}

// sink is the destination shared by a logger and all of its children.
type sink struct {
	mu    sync.Mutex
	level Level
	out   *log.Logger
	file  *os.File
}

// Logger writes leveled lines to a shared sink. Loggers derived with With
// prepend their key=value context to every line.
type Logger struct {
	sink   *sink
	prefix string
}

// Default is the logger behind the package-level functions.
var Default = New()

// New creates a logger configured from STEPWISE_LOG_LEVEL and STEPWISE_LOG_FILE.
// Invalid environment values fall back to info with no file.
func New() *Logger {
	l := &Logger{sink: &sink{
		level: LevelInfo,
		out:   log.New(io.Discard, "", log.LstdFlags),
	}}
	if err := l.Configure(os.Getenv("STEPWISE_LOG_LEVEL"), os.Getenv("STEPWISE_LOG_FILE")); err != nil {
		l.SetLevel(LevelInfo)
	}
	return l
}

// With returns a child logger sharing l's sink whose lines carry key=value.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{
		sink:   l.sink,
		prefix: fmt.Sprintf("%s%s=%v ", l.prefix, key, value),
	}
}

// Configure sets the level and, when file is non-empty, appends output to it.
func (l *Logger) Configure(level, file string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	s.level = lvl
	if file == "" {
		return nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	if s.file != nil {
		_ = s.file.Close()
	}
	s.file = f
	s.out.SetOutput(f)
	return nil
}

// Close releases the log file, if any, and discards further output.
func (l *Logger) Close() error {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.out.SetOutput(io.Discard)
	return err
}

func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	l.sink.level = level
	l.sink.mu.Unlock()
}

func (l *Logger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	l.sink.out.SetOutput(w)
	l.sink.mu.Unlock()
}

// Enabled reports whether level would be written.
func (l *Logger) Enabled(level Level) bool {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return level >= l.sink.level
}

func (l *Logger) Debug(format string, v ...any) { l.log(LevelDebug, format, v...) }
func (l *Logger) Info(format string, v ...any)  { l.log(LevelInfo, format, v...) }
func (l *Logger) Warn(format string, v ...any)  { l.log(LevelWarn, format, v...) }
func (l *Logger) Error(format string, v ...any) { l.log(LevelError, format, v...) }

func (l *Logger) log(level Level, format string, v ...any) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if level < s.level {
		return
	}
	s.out.Printf("[%s] %s%s", level, l.prefix, fmt.Sprintf(format, v...))
}

// Configure configures the default logger.
func Configure(level, file string) error {
	return Default.Configure(level, file)
}

// With derives a child of the default logger.
func With(key string, value any) *Logger {
	return Default.With(key, value)
}

func Debug(format string, v ...any) { Default.Debug(format, v...) }
func Info(format string, v ...any)  { Default.Info(format, v...) }
func Warn(format string, v ...any)  { Default.Warn(format, v...) }
func Error(format string, v ...any) { Default.Error(format, v...) }

// Close closes the default logger
func Close() error {
	return Default.Close()
}
