// Package trace produces the leveled trace records emitted by the RAID
// data-integrity core.
//
// Records are routed through logrus either as plain text or as JSON
// with structured fields, so post-mortem tooling can pick the offending
// LBA, position and stamp values out of the log.
package trace

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// LogLevel describes the severity of a trace record.  These are a
// subset of the syslog log levels.
type LogLevel byte

// Log levels.  These are the syslog levels of which we only use a
// subset.
//
//	LOG_EMERG      system is unusable
//	LOG_ALERT      action must be taken immediately
//	LOG_CRIT       critical conditions
//	LOG_ERR        error conditions
//	LOG_WARNING    warning conditions
//	LOG_NOTICE     normal, but significant, condition
//	LOG_INFO       informational message
//	LOG_DEBUG      debug-level message
const (
	LogLevelEmergency LogLevel = iota
	LogLevelAlert
	LogLevelCritical // Redundancy contract broken, sector dumped
	LogLevelError    // Error - can't be suppressed
	LogLevelWarning
	LogLevelNotice // Normal logging
	LogLevelInfo
	LogLevelDebug
)

var logLevelToString = []string{
	LogLevelEmergency: "EMERGENCY",
	LogLevelAlert:     "ALERT",
	LogLevelCritical:  "CRITICAL",
	LogLevelError:     "ERROR",
	LogLevelWarning:   "WARNING",
	LogLevelNotice:    "NOTICE",
	LogLevelInfo:      "INFO",
	LogLevelDebug:     "DEBUG",
}

// String turns a LogLevel into a string
func (l LogLevel) String() string {
	if l >= LogLevel(len(logLevelToString)) {
		return fmt.Sprintf("LogLevel(%d)", l)
	}
	return logLevelToString[l]
}

// Set a LogLevel
func (l *LogLevel) Set(s string) error {
	for n, name := range logLevelToString {
		if s != "" && strings.EqualFold(name, s) {
			*l = LogLevel(n)
			return nil
		}
	}
	return errors.Errorf("unknown log level %q", s)
}

// Type of the value
func (l *LogLevel) Type() string {
	return "string"
}

// Scan implements the fmt.Scanner interface
func (l *LogLevel) Scan(s fmt.ScanState, ch rune) error {
	token, err := s.Token(true, nil)
	if err != nil {
		return err
	}
	return l.Set(string(token))
}

// Options control where and how trace records are written
type Options struct {
	Level   LogLevel `config:"log_level"`
	UseJSON bool     `config:"use_json_log"`
}

// DefaultOptions returns the trace options used until Configure is
// called.
func DefaultOptions() Options {
	return Options{
		Level: LogLevelNotice,
	}
}

var (
	mu  sync.RWMutex
	opt = DefaultOptions()

	// Logger is the logrus logger all trace records go through.
	Logger = newLogger()
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.TraceLevel)
	l.SetFormatter(&logrus.TextFormatter{DisableQuote: true})
	return l
}

// Configure installs new trace options
func Configure(o Options) {
	mu.Lock()
	defer mu.Unlock()
	opt = o
	if o.UseJSON {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{DisableQuote: true})
	}
}

// GetOptions returns the trace options in use
func GetOptions() Options {
	mu.RLock()
	defer mu.RUnlock()
	return opt
}

// SetOutput sets where trace records are written
func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// LogValueItem describes keyed item for a JSON log entry
type LogValueItem struct {
	key    string
	value  interface{}
	render bool
}

// LogValue should be used as an argument to any logging calls to
// augment the JSON output with more structured information.
//
// key is the dictionary parameter used to store value.
func LogValue(key string, value interface{}) LogValueItem {
	return LogValueItem{key: key, value: value, render: true}
}

// LogValueHide is like LogValue but String() returns a blank string,
// which keeps the item out of the textual log.
func LogValueHide(key string, value interface{}) LogValueItem {
	return LogValueItem{key: key, value: value, render: false}
}

// String returns the representation of value. If render is false
// this is an empty string.
func (j LogValueItem) String() string {
	if !j.render {
		return ""
	}
	if do, ok := j.value.(fmt.Stringer); ok {
		return do.String()
	}
	return fmt.Sprint(j.value)
}

// logrusLevel maps a trace level onto logrus.
//
// Critical and above are logged as errors: the core must never take
// the process down because a sector was bad.
func logrusLevel(level LogLevel) logrus.Level {
	switch level {
	case LogLevelDebug:
		return logrus.DebugLevel
	case LogLevelInfo:
		return logrus.InfoLevel
	case LogLevelNotice, LogLevelWarning:
		return logrus.WarnLevel
	}
	return logrus.ErrorLevel
}

// LogPrintf produces a log string from the arguments passed in
func LogPrintf(level LogLevel, o interface{}, text string, args ...interface{}) {
	out := fmt.Sprintf(text, args...)
	fields := logrus.Fields{
		"severity": level.String(),
	}
	if GetOptions().UseJSON {
		if o != nil {
			fields["object"] = fmt.Sprintf("%+v", o)
			fields["objectType"] = fmt.Sprintf("%T", o)
		}
		for _, arg := range args {
			if item, ok := arg.(LogValueItem); ok {
				fields[item.key] = item.value
			}
		}
	} else {
		if o != nil {
			out = fmt.Sprintf("%v: %s", o, out)
		}
		out = fmt.Sprintf("%-8s: %s", level, out)
	}
	Logger.WithFields(fields).Log(logrusLevel(level), out)
}

// LogLevelPrintf writes logs at the given level
func LogLevelPrintf(level LogLevel, o interface{}, text string, args ...interface{}) {
	if GetOptions().Level >= level {
		LogPrintf(level, o, text, args...)
	}
}

// Criticalf writes a critical trace record. Critical records are
// always written.
func Criticalf(o interface{}, text string, args ...interface{}) {
	LogPrintf(LogLevelCritical, o, text, args...)
}

// Errorf writes error log output for this object.  It should always
// be seen by the user.
func Errorf(o interface{}, text string, args ...interface{}) {
	LogLevelPrintf(LogLevelError, o, text, args...)
}

// Warningf writes warning log output for this object
func Warningf(o interface{}, text string, args ...interface{}) {
	LogLevelPrintf(LogLevelWarning, o, text, args...)
}

// Logf writes log output for this object at Notice level.
func Logf(o interface{}, text string, args ...interface{}) {
	LogLevelPrintf(LogLevelNotice, o, text, args...)
}

// Infof writes informational output for this object
func Infof(o interface{}, text string, args ...interface{}) {
	LogLevelPrintf(LogLevelInfo, o, text, args...)
}

// Debugf writes debugging output for this object.
func Debugf(o interface{}, text string, args ...interface{}) {
	LogLevelPrintf(LogLevelDebug, o, text, args...)
}

// Dump writes each line at the given level, prefixed with its line
// number.  Used for sector dumps following a critical record.
func Dump(level LogLevel, o interface{}, lines []string) {
	if GetOptions().Level < level && level > LogLevelCritical {
		return
	}
	for i, line := range lines {
		LogPrintf(level, o, "%3d: %s", i, line)
	}
}
