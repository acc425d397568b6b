// Package logger provides the dashboard's logging facade. Unlike the
// teacher's process-wide package-level logger, this one is an injected
// object: the AppController owns a *Logger and hands it to every component
// that needs to log, and the LogWindow subscribes to it as one of possibly
// several sinks. This follows the Design Note "Process-wide logger" in
// spec.md §9 verbatim.
package logger

import (
	"fmt"
	"sync"
	"time"

	"github.com/cskr/pubsub"
)

// Level is the logging verbosity level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "?"
	}
}

// Entry is one formatted log line, published to every subscriber.
type Entry struct {
	Level Level
	Text  string
	At    time.Time
}

// topic is the single internal pubsub topic log entries are published on.
const topic = "log"

// Logger is an injectable log sink distributor. The zero value is not
// usable; construct with New.
type Logger struct {
	hub *pubsub.PubSub

	mu    sync.RWMutex
	level Level
}

// New creates a Logger at the given minimum level. bufferSize controls how
// many buffered entries each subscriber channel holds before Publish starts
// blocking that particular subscriber's feed (see Sub).
func New(level Level, bufferSize int) *Logger {
	if bufferSize < 1 {
		bufferSize = 64
	}
	return &Logger{hub: pubsub.New(bufferSize), level: level}
}

// SetLevel changes the minimum level at which entries are published.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// Sub subscribes to log entries. Callers (the LogWindow, a file sink
// goroutine, a test capture sink) should range over the returned channel
// until Unsub closes it.
func (l *Logger) Sub() chan any {
	return l.hub.Sub(topic)
}

// Unsub removes ch from the log topic.
func (l *Logger) Unsub(ch chan any) {
	l.hub.Unsub(ch, topic)
}

func (l *Logger) publish(level Level, format string, args ...any) {
	l.mu.RLock()
	min := l.level
	l.mu.RUnlock()
	if level < min {
		return
	}
	l.hub.Pub(Entry{Level: level, Text: fmt.Sprintf(format, args...), At: time.Now()}, topic)
}

// Debug logs at debug level.
func (l *Logger) Debug(format string, args ...any) { l.publish(LevelDebug, format, args...) }

// Info logs at info level.
func (l *Logger) Info(format string, args ...any) { l.publish(LevelInfo, format, args...) }

// Warning logs at warning level.
func (l *Logger) Warning(format string, args ...any) { l.publish(LevelWarning, format, args...) }

// Error logs at error level.
func (l *Logger) Error(format string, args ...any) { l.publish(LevelError, format, args...) }
