package logger

import (
	"github.com/rs/zerolog"
)

// Zerolog forwards structured fields to a zerolog.Logger.
type Zerolog struct {
	log zerolog.Logger
}

var _ Logger = (*Zerolog)(nil)

// NewZerolog wraps an existing zerolog logger.
func NewZerolog(l zerolog.Logger) *Zerolog {
	return &Zerolog{log: l}
}

func (z *Zerolog) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return z
	}
	ctx := z.log.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.Value)
	}
	return &Zerolog{log: ctx.Logger()}
}

func (z *Zerolog) Debug(msg string, fields ...Field) { emit(z.log.Debug(), msg, fields) }
func (z *Zerolog) Info(msg string, fields ...Field)  { emit(z.log.Info(), msg, fields) }
func (z *Zerolog) Warn(msg string, fields ...Field)  { emit(z.log.Warn(), msg, fields) }
func (z *Zerolog) Error(msg string, fields ...Field) { emit(z.log.Error(), msg, fields) }

func emit(evt *zerolog.Event, msg string, fields []Field) {
	if evt == nil {
		return
	}
	for _, f := range fields {
		if err, ok := f.Value.(error); ok {
			evt = evt.AnErr(f.Key, err)
			continue
		}
		evt = evt.Interface(f.Key, f.Value)
	}
	evt.Msg(msg)
}
