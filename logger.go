package cj

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards all records. Enabled returns false so callers skip
// attribute formatting entirely, making disabled logging near zero cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := slog.New(nopHandler{})
	loggerPtr.Store(l)
}

// SetLogger configures logging for cj and its device backends. By default
// the engine produces no output. Pass nil to restore the silent default.
//
// Levels used: Debug for per-frame diagnostics, Info for lifecycle events
// (device selected, window created), Warn for non-fatal conditions
// (out-of-date swapchain, release of a stale handle).
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the current package logger. Device backends call this to
// share the caller's logger configuration.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
