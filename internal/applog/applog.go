// Package applog is the process-wide structured logger: a thin wrapper
// around a configured *logrus.Logger exposing the leveled free-function
// style (Debugf/Infof/Warnf/Errorf) the rest of volscan calls, with
// structured fields attached at call sites via WithFields rather than
// folded into the message text.
package applog

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.RWMutex
	log = newDefault()
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Configure sets the package logger's level and, when verbose is set, turns
// on caller reporting; called once by cmd/volscan after flags are parsed.
func Configure(level logrus.Level, verbose bool) {
	mu.Lock()
	defer mu.Unlock()
	log.SetLevel(level)
	if verbose {
		log.SetReportCaller(true)
	}
}

// Fields is an alias for logrus.Fields, so callers needn't import logrus
// directly just to attach structured context.
type Fields = logrus.Fields

// WithFields returns an entry carrying structured fields (e.g. "frs",
// "chunk", "volume") for one log call.
func WithFields(f Fields) *logrus.Entry {
	mu.RLock()
	defer mu.RUnlock()
	return log.WithFields(f)
}

func Debugf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Errorf(format, args...)
}
