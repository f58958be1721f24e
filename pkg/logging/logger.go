package logging

import (
	"io"
	"sync"
)

// Logger is responsible for storing and displaying the diagnostics produced
// by the command line tools.
type Logger struct {
	errorCount int // total errors reported
	LogLevel   int

	out io.Writer

	// m synchronizes output from concurrent reporters
	m *sync.Mutex
}

// Enumeration of the different log levels
const (
	LogLevelSilent  = iota // no output at all
	LogLevelError          // only errors
	LogLevelWarning        // errors and warnings
	LogLevelVerbose        // errors, warnings and progress information (DEFAULT)
)

func newLogger(out io.Writer, loglevel int) *Logger {
	return &Logger{
		LogLevel: loglevel,
		out:      out,
		m:        &sync.Mutex{},
	}
}

// LogMessage is anything the logger can display.
type LogMessage interface {
	level() int
	display(w io.Writer)
}

// handleMsg counts and, when the level allows it, displays a message. Messages
// may arrive concurrently so printing is serialized.
func (l *Logger) handleMsg(lm LogMessage) {
	l.m.Lock()
	defer l.m.Unlock()

	if lm.level() == LogLevelError {
		l.errorCount++
	}
	if l.LogLevel >= lm.level() {
		lm.display(l.out)
	}
}
