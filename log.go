package stackarena

import (
	"context"

	"golang.org/x/exp/slog"
)

var logger = slog.New(discardHandler{})

// SetLogger installs l as the package logger. Passing nil silences logging,
// which is the default.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(discardHandler{})
	}
	logger = l
}

// Logger returns the package logger.
func Logger() *slog.Logger {
	return logger
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
