// Package logging is a thin structured-logging wrapper around zap, shaped
// after the teacher's logging.Logger surface (sublogger-per-component,
// leveled *w methods taking key/value pairs).
package logging

import (
	"go.uber.org/zap"
)

// Logger is the structured logger every package in this module accepts
// instead of reaching for the global logger directly.
type Logger interface {
	Debugw(msg string, keysAndValues ...any)
	Infow(msg string, keysAndValues ...any)
	Warnw(msg string, keysAndValues ...any)
	Errorw(msg string, keysAndValues ...any)
	Sublogger(name string) Logger
	With(keysAndValues ...any) Logger
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewProduction returns a Logger backed by zap's production config (JSON,
// info level).
func NewProduction() (Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return &zapLogger{sugar: z.Sugar()}, nil
}

// NewDevelopment returns a Logger backed by zap's development config
// (console-friendly, debug level).
func NewDevelopment() (Logger, error) {
	z, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return &zapLogger{sugar: z.Sugar()}, nil
}

// NewTest returns a no-op-safe Logger suitable for unit tests.
func NewTest() Logger {
	z := zap.NewNop()
	return &zapLogger{sugar: z.Sugar()}
}

func (l *zapLogger) Debugw(msg string, kv ...any) { l.sugar.Debugw(msg, kv...) }
func (l *zapLogger) Infow(msg string, kv ...any)  { l.sugar.Infow(msg, kv...) }
func (l *zapLogger) Warnw(msg string, kv ...any)  { l.sugar.Warnw(msg, kv...) }
func (l *zapLogger) Errorw(msg string, kv ...any) { l.sugar.Errorw(msg, kv...) }

func (l *zapLogger) Sublogger(name string) Logger {
	return &zapLogger{sugar: l.sugar.Named(name)}
}

func (l *zapLogger) With(kv ...any) Logger {
	return &zapLogger{sugar: l.sugar.With(kv...)}
}
