package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/trustlayer-ai/bastion/pkg/audit"
	"github.com/trustlayer-ai/bastion/pkg/content"
)

const errorScore = 100

// Executor runs submissions through the configured stages in order. It never
// returns an error to the caller: every failure mode collapses into a
// terminal ERROR verdict so the ingress layer always has something to hand
// back.
type Executor struct {
	stages []Stage
	audit  audit.Sink
	logger zerolog.Logger
}

// NewExecutor sorts the stages by their declared order. sink may be nil to
// disable auditing.
func NewExecutor(sink audit.Sink, logger zerolog.Logger, stages ...Stage) *Executor {
	sorted := make([]Stage, len(stages))
	copy(sorted, stages)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order() < sorted[j].Order() })
	return &Executor{
		stages: sorted,
		audit:  sink,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}
}

// Process runs one submission through all applicable stages.
func (e *Executor) Process(ctx context.Context, sub content.Submission) (verdict content.RiskVerdict) {
	st := &State{Submission: sub}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("request_id", sub.ID).
				Interface("panic", r).
				Msg("pipeline panicked")
			verdict = e.errorVerdict(st, fmt.Sprintf("pipeline panic: %v", r))
		}
	}()

	start := time.Now()
	for _, stage := range e.stages {
		if !stage.ShouldExecute(st) {
			e.record(ctx, sub.ID, stage.Name(), audit.ActionSkipped, nil)
			continue
		}

		e.record(ctx, sub.ID, stage.Name(), audit.ActionStarted, nil)
		result := e.runStage(ctx, stage, st)

		if result.Succeeded {
			e.record(ctx, sub.ID, stage.Name(), audit.ActionCompleted, result.Details)
			continue
		}

		e.record(ctx, sub.ID, stage.Name(), audit.ActionFailed,
			append(result.Details, audit.Field{Key: "error", Value: result.ErrorDescription}))

		if !result.ContinuePipeline {
			e.logger.Warn().
				Str("request_id", sub.ID).
				Str("stage", stage.Name()).
				Str("error", result.ErrorDescription).
				Msg("stage failed, terminating pipeline")
			return e.errorVerdict(st, result.ErrorDescription)
		}

		e.logger.Warn().
			Str("request_id", sub.ID).
			Str("stage", stage.Name()).
			Str("error", result.ErrorDescription).
			Msg("stage failed, continuing")
	}

	e.logger.Info().
		Str("request_id", sub.ID).
		Int("risk_score", st.Score).
		Str("risk_level", string(st.Level)).
		Dur("elapsed", time.Since(start)).
		Msg("pipeline completed")

	return st.Verdict()
}

// runStage isolates a stage panic so one misbehaving stage maps to a
// non-continuable failure instead of taking down the whole process.
func (e *Executor) runStage(ctx context.Context, stage Stage, st *State) (result StageResult) {
	defer func() {
		if r := recover(); r != nil {
			result = fail(fmt.Sprintf("stage panic: %v", r))
		}
	}()
	return stage.Execute(ctx, st)
}

func (e *Executor) errorVerdict(st *State, description string) content.RiskVerdict {
	st.AddIssue(content.IssueSystemError, description, 10)
	st.Score = errorScore
	st.Level = content.LevelError
	return st.Verdict()
}

func (e *Executor) record(ctx context.Context, requestID, stage, action string, details []audit.Field) {
	if e.audit == nil {
		return
	}
	e.audit.Record(ctx, audit.Event{
		RequestID: requestID,
		Stage:     stage,
		Action:    action,
		Details:   details,
		At:        time.Now().UTC(),
	})
}
