package langpipe

import (
	"context"
	"log/slog"
)

// nopLogger discards all output. Components fall back to it when no logger
// is injected, keeping the core deterministic without environment coupling.
var nopLogger = slog.New(discardHandler{})

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// NopLogger returns a logger that discards everything.
func NopLogger() *slog.Logger { return nopLogger }
