// Package zerolog adapts rs/zerolog to the accounts.Logger interface.
package zerolog

import (
	"github.com/rs/zerolog"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
)

// Logger implements accounts.Logger using zerolog.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger wraps a zerolog logger.
func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger}
}

// With returns a child logger that always carries the given fields.
func (l *Logger) With(fields ...accounts.Field) *Logger {
	ctx := l.logger.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.Value)
	}
	return &Logger{logger: ctx.Logger()}
}

func (l *Logger) Debug(msg string, fields ...accounts.Field) {
	l.log(l.logger.Debug(), msg, fields)
}

func (l *Logger) Info(msg string, fields ...accounts.Field) {
	l.log(l.logger.Info(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...accounts.Field) {
	l.log(l.logger.Warn(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...accounts.Field) {
	l.log(l.logger.Error(), msg, fields)
}

func (l *Logger) log(event *zerolog.Event, msg string, fields []accounts.Field) {
	// zerolog returns a nil event when the level is disabled
	if event == nil {
		return
	}
	for _, f := range fields {
		if f.Value == nil {
			continue
		}
		event = event.Interface(f.Key, f.Value)
	}
	event.Msg(msg)
}
