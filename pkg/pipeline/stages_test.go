package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/trustlayer-ai/bastion/pkg/content"
	"github.com/trustlayer-ai/bastion/pkg/imaging"
	"github.com/trustlayer-ai/bastion/pkg/rules"
	"github.com/trustlayer-ai/bastion/pkg/spam"
)

func TestImageIssueSeverity(t *testing.T) {
	testCases := []struct {
		issue string
		want  int
	}{
		{"Blacklisted image", 10},
		{"NSFW content detected", 9},
		{"Possible manipulation artifacts", 8},
		{"possible deepfake", 8},
		{"spam imagery", 7},
		{"Invalid image format", 5},
		{"something else entirely", 5},
	}

	for _, tc := range testCases {
		if got := imageIssueSeverity(tc.issue); got != tc.want {
			t.Errorf("imageIssueSeverity(%q) = %d, want %d", tc.issue, got, tc.want)
		}
	}
}

func TestImageStageRejectsBadBase64(t *testing.T) {
	stage := NewImageAnalysisStage(imaging.NewLayeredAnalyzer(nil, nil, nil, zerolog.Nop()))

	st := &State{Submission: content.Submission{
		ID:          "req-b64",
		ContentType: content.TypeImage,
		RawContent:  "%%% not base64 %%%",
	}}

	result := stage.Execute(context.Background(), st)
	if !result.Succeeded || !result.ContinuePipeline {
		t.Fatalf("bad base64 should be a finding, not a stage failure: %+v", result)
	}
	if len(st.ImageResult.Issues) != 1 || st.ImageResult.Issues[0] != "Invalid image format" {
		t.Errorf("image issues = %v, want [Invalid image format]", st.ImageResult.Issues)
	}
	if len(st.Issues) != 1 || st.Issues[0].Severity != 5 {
		t.Errorf("detected issues = %+v, want one severity-5 finding", st.Issues)
	}
}

// failingScorer forces the spam engine onto its degrade path, which keeps
// the rule score as the final spam score.
type failingScorer struct{}

func (failingScorer) ScoreText(_ context.Context, _ content.NormalizedContent) (content.LLMResult, error) {
	return content.LLMResult{}, context.DeadlineExceeded
}

func TestSpamStageSeverityTracksScore(t *testing.T) {
	logger := zerolog.Nop()
	cache := rules.NewCache(rules.StaticStore(nil), time.Minute, logger)
	ruleEngine := rules.NewEngine(cache, rules.Thresholds{HighRisk: 70, DetailedAnalysis: 40}, logger)

	testCases := []struct {
		name         string
		text         string
		scorer       spam.TextScorer
		wantSeverity int
	}{
		{
			// High-risk short-circuit scores 100, above the severity cutoff.
			name:         "high score",
			text:         "nigerian prince needs a bank transfer",
			wantSeverity: 8,
		},
		{
			// Degraded mid-band keeps the rule score 55, below the cutoff.
			name:         "moderate score",
			text:         "lottery prize winner",
			scorer:       failingScorer{},
			wantSeverity: 5,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stage := NewSpamDetectionStage(spam.NewEngine(ruleEngine, tc.scorer, logger))
			st := &State{
				Submission: content.Submission{ID: "req-sev", ContentType: content.TypePlain},
				Normalized: content.NormalizedContent{PlainText: tc.text},
			}

			result := stage.Execute(context.Background(), st)
			if !result.Succeeded {
				t.Fatalf("stage failed: %+v", result)
			}
			if len(st.Issues) == 0 {
				t.Fatal("expected spam findings")
			}
			for _, issue := range st.Issues {
				if issue.Severity != tc.wantSeverity {
					t.Errorf("issue %q severity = %d, want %d", issue.Description, issue.Severity, tc.wantSeverity)
				}
			}
		})
	}
}
