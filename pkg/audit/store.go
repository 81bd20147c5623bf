package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const writeTimeout = 5 * time.Second

// Writer persists audit events durably. The postgres store implements this.
type Writer interface {
	InsertAuditLog(ctx context.Context, e Event) error
}

// StoreSink persists events through a Writer asynchronously, detached from
// the request lifecycle. Write failures are logged and dropped.
type StoreSink struct {
	writer Writer
	logger zerolog.Logger
}

func NewStoreSink(w Writer, logger zerolog.Logger) *StoreSink {
	return &StoreSink{
		writer: w,
		logger: logger.With().Str("component", "audit_store").Logger(),
	}
}

func (s *StoreSink) Record(_ context.Context, e Event) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := s.writer.InsertAuditLog(ctx, e); err != nil {
			s.logger.Warn().Err(err).
				Str("request_id", e.RequestID).
				Str("stage", e.Stage).
				Msg("audit write failed")
		}
	}()
}
