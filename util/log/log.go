// Package log is the printf-style leveled logger used across the engine.
// Output goes through glog, so the usual -log_dir / -logtostderr flags apply.
package log

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/golang/glog"
)

type Level int32

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var level int32 = int32(InfoLevel)

// ParseLevel maps debug, info, warn, error to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("invalid log level[%v]", s)
}

func SetLevel(l Level) {
	atomic.StoreInt32(&level, int32(l))
}

func GetLevel() Level {
	return Level(atomic.LoadInt32(&level))
}

func enabled(l Level) bool {
	return Level(atomic.LoadInt32(&level)) <= l
}

func IsDebugEnabled() bool {
	return enabled(DebugLevel)
}

func Debug(format string, args ...interface{}) {
	if enabled(DebugLevel) {
		glog.InfoDepth(1, "[DEBUG] "+fmt.Sprintf(format, args...))
	}
}

func Info(format string, args ...interface{}) {
	if enabled(InfoLevel) {
		glog.InfoDepth(1, fmt.Sprintf(format, args...))
	}
}

func Warn(format string, args ...interface{}) {
	if enabled(WarnLevel) {
		glog.WarningDepth(1, fmt.Sprintf(format, args...))
	}
}

func Error(format string, args ...interface{}) {
	glog.ErrorDepth(1, fmt.Sprintf(format, args...))
}

// Panic logs at error level then panics with the formatted message.
func Panic(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	glog.ErrorDepth(1, msg)
	glog.Flush()
	panic(msg)
}

func Fatal(format string, args ...interface{}) {
	glog.FatalDepth(1, fmt.Sprintf(format, args...))
}

func Flush() {
	glog.Flush()
}
