// Package logging provides a small level-filtered wrapper around
// github.com/tliron/commonlog, the logging library chazu-maggie's LSP
// server (server/lsp.go) wires up exactly the way this package does:
// blank-importing commonlog/simple to register the default backend, then
// obtaining a named commonlog.Logger and calling its formatted methods.
// Level maps to commonlog's integer verbosity scale (0 silences
// everything, 5 is debug-level noise) rather than reimplementing level
// filtering by hand, since commonlog already does that filtering
// internally once Configure is called.
package logging

import (
	"os"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// Level is a logging verbosity level, ordered from least to most severe.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelSilent disables all output.
	LevelSilent
)

func parseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "silent", "off", "none":
		return LevelSilent
	default:
		return LevelInfo
	}
}

// verbosity converts a Level to commonlog's verbosity scale, where higher
// numbers mean more output: 5 is debug, 1 is errors-only, 0 is silent.
func (l Level) verbosity() int {
	switch l {
	case LevelDebug:
		return 5
	case LevelInfo:
		return 4
	case LevelWarn:
		return 2
	case LevelError:
		return 1
	default:
		return 0
	}
}

// Logger filters commonlog output by level. The QUILL_LOG-driven level
// still gates calls on our side (so a LevelSilent logger never even
// formats its arguments), on top of whatever commonlog's own backend
// does with the configured verbosity.
type Logger struct {
	level Level
	log   commonlog.Logger
}

// Default builds a Logger reading its level from QUILL_LOG, matching
// the "one standard logging level variable" the built-in surface names.
func Default() *Logger {
	return New(os.Getenv("QUILL_LOG"))
}

// New builds a Logger at the level named by levelName ("info" if empty
// or unrecognized), configuring commonlog's simple backend to match.
func New(levelName string) *Logger {
	level := parseLevel(levelName)
	commonlog.Configure(level.verbosity(), nil)
	return &Logger{
		level: level,
		log:   commonlog.GetLogger("quill"),
	}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.level > LevelDebug {
		return
	}
	l.log.Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	if l.level > LevelInfo {
		return
	}
	l.log.Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	if l.level > LevelWarn {
		return
	}
	l.log.Warningf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	if l.level > LevelError {
		return
	}
	l.log.Errorf(format, args...)
}

// Error logs err at the error level, if err is non-nil.
func (l *Logger) Error(err error) {
	if err == nil {
		return
	}
	l.Errorf("%s", err)
}
