// Package plog provides the leveled logging used across the execve
// translation core. It wraps logrus so call sites read the same as the
// Debugf/Infof/Warningf trio used throughout a ptrace-based platform.
package plog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var std = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return l
}

// SetVerbose raises the log level to Debug, mirroring a CLI -v flag.
func SetVerbose(verbose bool) {
	if verbose {
		std.SetLevel(logrus.DebugLevel)
	} else {
		std.SetLevel(logrus.InfoLevel)
	}
}

// Debugf logs at debug level.
func Debugf(format string, v ...any) {
	std.Debugf(format, v...)
}

// Infof logs at info level.
func Infof(format string, v ...any) {
	std.Infof(format, v...)
}

// Warningf logs at warning level.
func Warningf(format string, v ...any) {
	std.Warnf(format, v...)
}
