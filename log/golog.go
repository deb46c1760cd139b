package log

import (
	"github.com/kataras/golog"
)

// GologLogger implements Logger using kataras/golog, for applications that
// already route their output through a golog instance.
type GologLogger struct {
	logger *golog.Logger
}

var _ Logger = (*GologLogger)(nil)

// NewGologLogger wraps an existing golog.Logger. Pass golog.Default to share
// the application-wide instance.
func NewGologLogger(logger *golog.Logger) *GologLogger {
	return &GologLogger{logger: logger}
}

func (l *GologLogger) Debug(format string, v ...any) {
	l.logger.Debugf(format, v...)
}

func (l *GologLogger) Info(format string, v ...any) {
	l.logger.Infof(format, v...)
}

func (l *GologLogger) Warn(format string, v ...any) {
	l.logger.Warnf(format, v...)
}

func (l *GologLogger) Error(format string, v ...any) {
	l.logger.Errorf(format, v...)
}

// SetLevel adjusts the underlying golog level.
func (l *GologLogger) SetLevel(level Level) {
	switch level {
	case LevelDebug:
		l.logger.SetLevel("debug")
	case LevelInfo:
		l.logger.SetLevel("info")
	case LevelWarn:
		l.logger.SetLevel("warn")
	case LevelError:
		l.logger.SetLevel("error")
	case LevelNone:
		l.logger.SetLevel("disable")
	}
}
