package osc

import (
	"os"

	"github.com/rs/zerolog"
)

// NewTraceLogger returns the logger for per-packet wire dumps. When enabled
// is false every event is dropped.
func NewTraceLogger(enabled bool) zerolog.Logger {
	if !enabled {
		return zerolog.Nop()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Str("component", "osc").Logger()
}
