package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger defines a standard interface for logging.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

// ZerologLogger is a wrapper around a zerolog.Logger.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewLogger creates a new logger instance writing JSON to stdout at the
// specified level.
func NewLogger(level string) Logger {
	return NewLoggerTo(os.Stdout, level)
}

// NewLoggerTo creates a new logger writing to the given sink. Tests pass
// io.Discard or a buffer here.
func NewLoggerTo(w io.Writer, level string) Logger {
	lvl := zerolog.InfoLevel
	if level != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
			lvl = parsed
		}
	}

	log := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return &ZerologLogger{log: log}
}

// Component returns a child logger annotated with the given component name.
func Component(base Logger, name string) Logger {
	if zl, ok := base.(*ZerologLogger); ok {
		return &ZerologLogger{log: zl.log.With().Str("component", name).Logger()}
	}
	return base
}

// Debugf logs a message at the debug level.
func (l *ZerologLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug().Msgf(format, v...)
}

// Infof logs a message at the info level.
func (l *ZerologLogger) Infof(format string, v ...interface{}) {
	l.log.Info().Msgf(format, v...)
}

// Warnf logs a message at the warn level.
func (l *ZerologLogger) Warnf(format string, v ...interface{}) {
	l.log.Warn().Msgf(format, v...)
}

// Errorf logs a message at the error level.
func (l *ZerologLogger) Errorf(format string, v ...interface{}) {
	l.log.Error().Msgf(format, v...)
}
