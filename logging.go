// logging.go - structured logging seam for the driver.
//
// Logger is shaped so that a github.com/joeycumines/logiface-based logger
// satisfies it without callers needing to import logiface directly. The
// default, used whenever no [WithLogger] option is supplied, is genuinely
// backed by logiface with github.com/joeycumines/stumpy as its JSON event
// writer, writing to os.Stderr.
package evloop

import (
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logging seam the driver uses to record its
// start and termination, Signal callback registration, and errors that
// reach reportError with no handler installed or whose handler panicked.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, err error, fields map[string]any)
}

// logifaceLogger adapts a *logiface.Logger[*stumpy.Event] to Logger.
type logifaceLogger struct {
	l *logiface.Logger[*stumpy.Event]
}

// NewDefaultLogger returns the logiface+stumpy backed Logger used when no
// [WithLogger] option is given. It writes newline-delimited JSON to w.
func NewDefaultLogger(w *os.File) Logger {
	return &logifaceLogger{
		l: stumpy.L.New(stumpy.L.WithStumpy(stumpy.WithWriter(w))),
	}
}

func applyFields(b *logiface.Builder[*stumpy.Event], fields map[string]any) *logiface.Builder[*stumpy.Event] {
	for k, v := range fields {
		b = b.Any(k, v)
	}
	return b
}

func (l *logifaceLogger) Debug(msg string, fields map[string]any) {
	applyFields(l.l.Debug(), fields).Log(msg)
}

func (l *logifaceLogger) Info(msg string, fields map[string]any) {
	applyFields(l.l.Info(), fields).Log(msg)
}

func (l *logifaceLogger) Warn(msg string, fields map[string]any) {
	applyFields(l.l.Warning(), fields).Log(msg)
}

func (l *logifaceLogger) Error(msg string, err error, fields map[string]any) {
	b := applyFields(l.l.Err(), fields)
	if err != nil {
		b = b.Err(err)
	}
	b.Log(msg)
}

// noopLogger discards everything. It is never selected by default; it is
// supplied explicitly through WithLogger.
type noopLogger struct{}

func (noopLogger) Debug(string, map[string]any)        {}
func (noopLogger) Info(string, map[string]any)         {}
func (noopLogger) Warn(string, map[string]any)         {}
func (noopLogger) Error(string, error, map[string]any) {}

func defaultLogger() Logger {
	return NewDefaultLogger(os.Stderr)
}
