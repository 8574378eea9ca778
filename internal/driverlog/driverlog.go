// Package driverlog wires the driver's leveled logging through
// github.com/tliron/commonlog, calling commonlog.Configure(level, nil)
// once at startup.
package driverlog

import (
	"github.com/tliron/commonlog"
)

// Level names the CLI's --log-level flag values, ordered loudest to
// quietest the way commonlog's integer levels run least-to-most verbose
// (0 = critical only, higher = more detail).
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func ParseLevel(s string) (Level, bool) {
	switch s {
	case "error":
		return LevelError, true
	case "warn":
		return LevelWarn, true
	case "info":
		return LevelInfo, true
	case "debug":
		return LevelDebug, true
	case "trace":
		return LevelTrace, true
	default:
		return 0, false
	}
}

// Logger adapts commonlog to the narrow optimize.Logger / driver logging
// surface this module needs (Infof, plus Debugf for driver progress lines).
type Logger struct {
	log commonlog.Logger
}

// New configures commonlog at the given level and returns a Logger backed
// by its default simple logger, mirroring commonlog.Configure(level, nil).
func New(level Level) *Logger {
	commonlog.Configure(int(level), nil)
	return &Logger{log: commonlog.GetLogger("brilmid")}
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log.Infof(format, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}

func (l *Logger) Warningf(format string, args ...interface{}) {
	l.log.Warningf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log.Errorf(format, args...)
}
