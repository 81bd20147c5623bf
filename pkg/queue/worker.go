package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/trustlayer-ai/bastion/pkg/content"
	"github.com/trustlayer-ai/bastion/pkg/pipeline"
)

const processTimeout = 2 * time.Minute

// VerdictStore persists completed verdicts. Satisfied by storage.Postgres.
type VerdictStore interface {
	SaveVerdict(ctx context.Context, v content.RiskVerdict) error
}

// Worker drains queued submissions through the pipeline, persists the
// verdicts, and republishes them on the verdict subject.
type Worker struct {
	bus      *Bus
	executor *pipeline.Executor
	store    VerdictStore
	logger   zerolog.Logger
}

// NewWorker builds a worker. store may be nil when no database is
// configured; verdicts are then only published.
func NewWorker(bus *Bus, executor *pipeline.Executor, store VerdictStore, logger zerolog.Logger) *Worker {
	return &Worker{
		bus:      bus,
		executor: executor,
		store:    store,
		logger:   logger.With().Str("component", "worker").Logger(),
	}
}

// Start subscribes with a durable consumer and processes until the bus is
// closed.
func (w *Worker) Start(durableName string) error {
	return w.bus.SubscribeSubmissions(durableName, w.handle)
}

func (w *Worker) handle(sub content.Submission) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	verdict := w.executor.Process(ctx, sub)

	if w.store != nil {
		if err := w.store.SaveVerdict(ctx, verdict); err != nil {
			w.logger.Error().Err(err).Str("request_id", verdict.RequestID).Msg("verdict persistence failed")
		}
	}
	if err := w.bus.PublishVerdict(verdict); err != nil {
		w.logger.Error().Err(err).Str("request_id", verdict.RequestID).Msg("verdict publish failed")
	}
}
