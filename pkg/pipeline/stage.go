// Package pipeline orchestrates the staged risk analysis of a submission.
// Stages run in a fixed order, each deciding for itself whether it applies
// to the submission; a non-continuable stage failure short-circuits the run
// into a terminal error verdict.
package pipeline

import (
	"context"

	"github.com/trustlayer-ai/bastion/pkg/audit"
	"github.com/trustlayer-ai/bastion/pkg/content"
)

// State is the mutable carrier threaded through the stages of one run.
// Each stage reads what earlier stages wrote and adds its own findings.
type State struct {
	Submission content.Submission
	Normalized content.NormalizedContent

	HasInjection bool
	SpamResult   content.SpamDetectionResult
	ImageResult  content.ImageAnalysisResult
	ImageMeta    map[string]string

	Issues []content.DetectedIssue

	Score int
	Level content.RiskLevel
}

// AddIssue appends a finding, preserving insertion order.
func (s *State) AddIssue(kind, description string, severity int) {
	s.Issues = append(s.Issues, content.DetectedIssue{
		Kind:        kind,
		Description: description,
		Severity:    severity,
	})
}

// Verdict flattens the state into the caller-facing result.
func (s *State) Verdict() content.RiskVerdict {
	issues := make([]string, 0, len(s.Issues))
	for _, i := range s.Issues {
		issues = append(issues, i.Description)
	}
	return content.RiskVerdict{
		RequestID: s.Submission.ID,
		RiskScore: s.Score,
		RiskLevel: s.Level,
		Issues:    issues,
	}
}

// StageResult reports how a stage run ended. A failed result with
// ContinuePipeline false terminates the run with an error verdict; a failed
// but continuable result is logged and the run proceeds.
type StageResult struct {
	Succeeded        bool
	ContinuePipeline bool
	ErrorDescription string
	Details          []audit.Field
}

func ok(details ...audit.Field) StageResult {
	return StageResult{Succeeded: true, ContinuePipeline: true, Details: details}
}

func fail(description string) StageResult {
	return StageResult{ErrorDescription: description}
}

// Stage is one step of the analysis pipeline.
type Stage interface {
	Name() string
	Order() int
	ShouldExecute(s *State) bool
	Execute(ctx context.Context, s *State) StageResult
}
