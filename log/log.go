// Package log defines BazBOM's logging interface. By default it uses a
// logrus-backed logger but it can be replaced with a user-defined one.
package log

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Logger is BazBOM's logging interface.
type Logger interface {
	// Logs in different log levels, either formatted or unformatted.
	Errorf(format string, args ...any)
	Error(args ...any)
	Warnf(format string, args ...any)
	Warn(args ...any)
	Infof(format string, args ...any)
	Info(args ...any)
	Debugf(format string, args ...any)
	Debug(args ...any)
}

var logger Logger = NewDefaultLogger(false)

// SetLogger overwrites the default BazBOM logger with a user specified one.
func SetLogger(l Logger) { logger = l }

// Errorf is the static formatted error logging function.
func Errorf(format string, args ...any) { logger.Errorf(format, args...) }

// Warnf is the static formatted warning logging function.
func Warnf(format string, args ...any) { logger.Warnf(format, args...) }

// Infof is the static formatted info logging function.
func Infof(format string, args ...any) { logger.Infof(format, args...) }

// Debugf is the static formatted debug logging function.
func Debugf(format string, args ...any) { logger.Debugf(format, args...) }

// Error is the static error logging function.
func Error(args ...any) { logger.Error(args...) }

// Warn is the static warning logging function.
func Warn(args ...any) { logger.Warn(args...) }

// Info is the static info logging function.
func Info(args ...any) { logger.Info(args...) }

// Debug is the static debug logging function.
func Debug(args ...any) { logger.Debug(args...) }

// DefaultLogger is the Logger implementation used by default. It logs to
// stderr through logrus; debug logs are gated behind Verbose.
type DefaultLogger struct {
	entry   *logrus.Entry
	Verbose bool
}

// NewDefaultLogger returns a DefaultLogger writing to stderr via logrus's
// text formatter.
func NewDefaultLogger(verbose bool) *DefaultLogger {
	l := logrus.New()
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return &DefaultLogger{entry: logrus.NewEntry(l), Verbose: verbose}
}

// Errorf is the formatted error logging function.
func (d *DefaultLogger) Errorf(format string, args ...any) { d.entry.Errorf(format, args...) }

// Warnf is the formatted warning logging function.
func (d *DefaultLogger) Warnf(format string, args ...any) { d.entry.Warnf(format, args...) }

// Infof is the formatted info logging function.
func (d *DefaultLogger) Infof(format string, args ...any) { d.entry.Infof(format, args...) }

// Debugf is the formatted debug logging function.
func (d *DefaultLogger) Debugf(format string, args ...any) {
	if d.Verbose {
		d.entry.Debugf(format, args...)
	}
}

// Error is the error logging function.
func (d *DefaultLogger) Error(args ...any) { d.entry.Error(args...) }

// Warn is the warning logging function.
func (d *DefaultLogger) Warn(args ...any) { d.entry.Warn(args...) }

// Info is the info logging function.
func (d *DefaultLogger) Info(args ...any) { d.entry.Info(args...) }

// Debug is the debug logging function.
func (d *DefaultLogger) Debug(args ...any) {
	if d.Verbose {
		d.entry.Debug(args...)
	}
}

// WarnCollector buffers warnings grouped by category instead of emitting
// them immediately, per the "warnings are deduplicated and printed at the
// end grouped by category" error-handling requirement. Nothing in this
// module installs one: the orchestrator, extractors and commands call Warnf
// directly, so scan warnings are printed as they occur and are neither
// deduplicated nor grouped.
type WarnCollector struct {
	mu       sync.Mutex
	delegate Logger
	byCat    map[string]map[string]struct{}
}

// NewWarnCollector wraps delegate, buffering Collect calls under a category
// instead of emitting them immediately.
func NewWarnCollector(delegate Logger) *WarnCollector {
	return &WarnCollector{delegate: delegate, byCat: map[string]map[string]struct{}{}}
}

// Collect records a warning under category, deduplicating identical
// messages within the same category.
func (w *WarnCollector) Collect(category, message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.byCat[category] == nil {
		w.byCat[category] = map[string]struct{}{}
	}
	w.byCat[category][message] = struct{}{}
}

// Flush emits every buffered warning, one line per message, prefixed by
// category, and clears the buffer.
func (w *WarnCollector) Flush() {
	for cat, msgs := range w.Categories() {
		for _, msg := range msgs {
			w.delegate.Warnf("[%s] %s", cat, msg)
		}
	}
}

// Categories returns the warning categories currently buffered along with
// their deduplicated messages, clearing the buffer.
func (w *WarnCollector) Categories() map[string][]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string][]string, len(w.byCat))
	for cat, msgs := range w.byCat {
		for msg := range msgs {
			out[cat] = append(out[cat], msg)
		}
	}
	w.byCat = map[string]map[string]struct{}{}
	return out
}
