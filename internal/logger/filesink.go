package logger

import (
	"fmt"
	"io"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileSink drains a Logger's entries to a rotated file, so fatal/error
// output survives after the raw-mode terminal is restored and never leaks
// into the TUI's own screen buffer. Grounded on the teacher's main.go
// lumberjack wiring.
type FileSink struct {
	logger *Logger
	ch     chan any
	out    io.WriteCloser
	done   chan struct{}
}

// NewFileSink opens (creating if necessary) a rotated log file at path and
// starts draining l's entries into it. Call Close to stop draining and
// close the file.
func NewFileSink(l *Logger, path string, maxSizeMB, maxBackups, maxAgeDays int) *FileSink {
	out := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	s := &FileSink{logger: l, ch: l.Sub(), out: out, done: make(chan struct{})}
	go s.run()
	return s
}

func (s *FileSink) run() {
	defer close(s.done)
	for v := range s.ch {
		entry, ok := v.(Entry)
		if !ok {
			continue
		}
		line := fmt.Sprintf("%s [%s] %s\n", entry.At.Format("2006-01-02T15:04:05.000Z07:00"), entry.Level, entry.Text)
		_, _ = s.out.Write([]byte(line))
	}
}

// Close stops draining and closes the underlying file.
func (s *FileSink) Close() error {
	s.logger.Unsub(s.ch)
	<-s.done
	return s.out.Close()
}
