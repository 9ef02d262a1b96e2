package main

import (
	"log/slog"

	"github.com/wudi/signkit/observability"
)

// slogLogger adapts log/slog to the observability hooks the kit emits
// through.
type slogLogger struct {
	l *slog.Logger
}

func newSlogLogger(l *slog.Logger) observability.Logger {
	return slogLogger{l: l}
}

func (s slogLogger) Debug(msg string, fields ...observability.Field) {
	s.l.Debug(msg, attrs(fields)...)
}

func (s slogLogger) Info(msg string, fields ...observability.Field) {
	s.l.Info(msg, attrs(fields)...)
}

func (s slogLogger) Warn(msg string, fields ...observability.Field) {
	s.l.Warn(msg, attrs(fields)...)
}

func (s slogLogger) Error(msg string, fields ...observability.Field) {
	s.l.Error(msg, attrs(fields)...)
}

func (s slogLogger) With(fields ...observability.Field) observability.Logger {
	return slogLogger{l: s.l.With(attrs(fields)...)}
}

func attrs(fields []observability.Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key(), f.Value()))
	}
	return out
}
