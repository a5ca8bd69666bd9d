// Package logging holds the structured logger shared by every xylem package.
// By default nothing is logged; callers opt in with SetLogger.
package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler is a slog.Handler that discards all records. Enabled returns
// false so callers skip formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger installs l as the logger for all xylem packages. Passing nil
// restores the silent default. Safe for concurrent use.
//
// Levels:
//   - [slog.LevelDebug]: topology builder decisions (trimmed prefixes, dropped branches)
//   - [slog.LevelInfo]: lifecycle events (patient loaded, capping written)
//   - [slog.LevelWarn]: recoverable problems (normal restoration fallback, marker re-homing)
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
