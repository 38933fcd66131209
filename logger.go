package preview

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/preview/decode"
	"github.com/gogpu/preview/render"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip building the record at all.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with rendering.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for preview and its sub-packages
// (render, decode). By default nothing is logged.
//
// SetLogger is safe for concurrent use. Pass nil to restore the default
// silent behavior.
//
// Log levels used by preview:
//   - [slog.LevelDebug]: per-frame diagnostics (cache hits, decode timings)
//   - [slog.LevelInfo]: lifecycle events (decode pool started, GPU pipelines built)
//   - [slog.LevelWarn]: non-fatal issues (decode failures, unresolved assets, surface reconfigure)
//
// Example:
//
//	preview.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	render.SetLogger(l)
	decode.SetLogger(l)
}

// Logger returns the current logger used by preview.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
