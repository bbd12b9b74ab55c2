package logging

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

var current atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.Nop()
	current.Store(&l)
}

func setLogger(l zerolog.Logger) {
	current.Store(&l)
}

// Logger returns the process logger for callers that want structured fields.
func Logger() *zerolog.Logger {
	return current.Load()
}

func Tracef(format string, args ...any) {
	Logger().Trace().Msgf(format, args...)
}

func Debugf(format string, args ...any) {
	Logger().Debug().Msgf(format, args...)
}

func Infof(format string, args ...any) {
	Logger().Info().Msgf(format, args...)
}

func Warnf(format string, args ...any) {
	Logger().Warn().Msgf(format, args...)
}

func Errf(format string, args ...any) {
	Logger().Error().Msgf(format, args...)
}

// Logf writes at info level without a caller prefix convention.
func Logf(format string, args ...any) {
	Logger().Info().Msgf(format, args...)
}
