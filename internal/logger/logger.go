package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

type Logger struct {
	zl zerolog.Logger
}

func New() *Logger {
	return NewWithWriter(os.Stdout)
}

func NewWithWriter(writer io.Writer) *Logger {
	return NewWithLevel(writer, "debug")
}

// NewWithLevel builds a JSON logger filtered at the given level. Unknown
// levels fall back to info.
func NewWithLevel(writer io.Writer, level string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	zl := zerolog.New(writer).With().
		Timestamp().
		Str("service", "mailcleaner").
		Logger().
		Level(lvl)
	return &Logger{zl: zl}
}

// With returns a child logger that adds key=value to every event.
func (l *Logger) With(key string, value interface{}) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// Zerolog exposes the underlying logger for structured call sites.
func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

func (l *Logger) Debug(v ...interface{}) {
	l.zl.Debug().Msg(sprint(v...))
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	l.zl.Debug().Msgf(format, v...)
}

func (l *Logger) Info(v ...interface{}) {
	l.zl.Info().Msg(sprint(v...))
}

func (l *Logger) Infof(format string, v ...interface{}) {
	l.zl.Info().Msgf(format, v...)
}

func (l *Logger) Warn(v ...interface{}) {
	l.zl.Warn().Msg(sprint(v...))
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	l.zl.Warn().Msgf(format, v...)
}

func (l *Logger) Error(v ...interface{}) {
	l.zl.Error().Msg(sprint(v...))
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
}

// sprint joins operands with spaces the way log.Println does.
func sprint(v ...interface{}) string {
	s := fmt.Sprintln(v...)
	return strings.TrimSuffix(s, "\n")
}
