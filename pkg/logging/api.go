package logging

import (
	"errors"
	"io"
	"os"

	"hackvm/pkg/translator"
)

// logger is a global reference to a shared Logger
var logger = newLogger(os.Stderr, LogLevelVerbose)

// ParseLevel maps a level name to its value. Unknown names select verbose.
func ParseLevel(name string) int {
	switch name {
	case "silent":
		return LogLevelSilent
	case "error":
		return LogLevelError
	case "warning":
		return LogLevelWarning
	// everything else (including invalid log levels) should default to verbose
	default:
		return LogLevelVerbose
	}
}

// Initialize resets the global logger with the provided log level. Output
// goes to standard error so standard output stays free for program text.
func Initialize(loglevelname string) {
	logger = newLogger(os.Stderr, ParseLevel(loglevelname))
}

// SetOutput redirects the global logger.
func SetOutput(w io.Writer) {
	logger.m.Lock()
	logger.out = w
	logger.m.Unlock()
}

// ShouldProceed reports whether no error has been logged so far.
func ShouldProceed() bool {
	logger.m.Lock()
	defer logger.m.Unlock()
	return logger.errorCount == 0
}

// LogError reports a failure. Syntax errors from the translator are shown
// with the offending source line.
func LogError(tag string, err error) {
	var se *translator.SyntaxError
	if errors.As(err, &se) {
		logger.handleMsg(&syntaxMessage{err: se})
		return
	}
	logger.handleMsg(&errorMessage{tag: tag, err: err})
}

// LogWarning reports a recoverable problem.
func LogWarning(tag, msg string) {
	logger.handleMsg(&textMessage{tag: tag, msg: msg, lvl: LogLevelWarning})
}

// LogInfo reports progress; shown only at the verbose level.
func LogInfo(tag, msg string) {
	logger.handleMsg(&textMessage{tag: tag, msg: msg, lvl: LogLevelVerbose})
}
