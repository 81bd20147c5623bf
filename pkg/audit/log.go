package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSink writes audit events to the structured log. It is the default sink
// when no database is configured.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Record(_ context.Context, e Event) {
	ev := s.logger.Info().
		Str("request_id", e.RequestID).
		Str("stage", e.Stage).
		Str("action", e.Action).
		Time("at", e.At)
	for _, f := range e.Details {
		ev = ev.Str(f.Key, f.Value)
	}
	ev.Msg("stage transition")
}
