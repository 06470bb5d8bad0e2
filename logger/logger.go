// Package logger exposes the process-wide structured logger every other
// package logs through as logger.Log.
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the subset of logrus's API the framework depends on. Kept as an
// interface so tests can swap in a recording logger instead of a shared
// mutable test static.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	WithField(key string, value interface{}) *logrus.Entry
	WithFields(fields logrus.Fields) *logrus.Entry
	WithError(err error) *logrus.Entry
}

// Log is the package-level logger used everywhere in the framework.
var Log Logger = newDefault()

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel parses and applies a textual level ("debug", "info", ...),
// matching the `logLevel` server configuration key.
func SetLevel(level string) error {
	l, ok := Log.(*logrus.Logger)
	if !ok {
		return nil
	}
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	l.SetLevel(parsed)
	return nil
}

// SetOutput redirects the default logger's output, used by tests that want
// to assert on emitted lines without a global test static.
func SetOutput(w io.Writer) {
	if l, ok := Log.(*logrus.Logger); ok {
		l.SetOutput(w)
	}
}

// WithFields is a free function mirroring entries built off the package
// logger, for call sites that don't want to hold a *logrus.Entry.
func WithFields(fields logrus.Fields) *logrus.Entry {
	return Log.WithFields(fields)
}
