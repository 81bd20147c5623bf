package pipeline

import (
	"context"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/trustlayer-ai/bastion/pkg/audit"
	"github.com/trustlayer-ai/bastion/pkg/content"
	"github.com/trustlayer-ai/bastion/pkg/imaging"
	"github.com/trustlayer-ai/bastion/pkg/injection"
	"github.com/trustlayer-ai/bastion/pkg/normalize"
	"github.com/trustlayer-ai/bastion/pkg/score"
	"github.com/trustlayer-ai/bastion/pkg/spam"
)

// Stage ordering. Gaps left so a deployment can slot custom stages between
// the built-in ones.
const (
	orderNormalization  = 10
	orderInjection      = 20
	orderSpam           = 30
	orderImageAnalysis  = 40
	orderScoreCalculate = 50
)

// NormalizationStage converts raw text submissions into the canonical form
// every downstream text detector reads. Invalid input terminates the run.
type NormalizationStage struct {
	normalizer *normalize.Normalizer
}

func NewNormalizationStage(n *normalize.Normalizer) *NormalizationStage {
	return &NormalizationStage{normalizer: n}
}

func (s *NormalizationStage) Name() string { return "normalization" }
func (s *NormalizationStage) Order() int   { return orderNormalization }

func (s *NormalizationStage) ShouldExecute(st *State) bool {
	return !st.Submission.ContentType.IsImage()
}

func (s *NormalizationStage) Execute(_ context.Context, st *State) StageResult {
	nc, err := s.normalizer.Normalize(st.Submission.ContentType, st.Submission.RawContent)
	if err != nil {
		return fail("content normalization failed: " + err.Error())
	}
	st.Normalized = nc
	return ok(
		audit.Field{Key: "plain_text_len", Value: strconv.Itoa(len(nc.PlainText))},
		audit.Field{Key: "html_len", Value: strconv.Itoa(len(nc.HTML))},
		audit.Field{Key: "json_len", Value: strconv.Itoa(len(nc.JSON))},
	)
}

// InjectionValidationStage screens normalized text for injection payloads.
// A hit is recorded as a finding; the run continues so the score calculator
// can weigh it against the other signals.
type InjectionValidationStage struct {
	validator *injection.Validator
}

func NewInjectionValidationStage(v *injection.Validator) *InjectionValidationStage {
	return &InjectionValidationStage{validator: v}
}

func (s *InjectionValidationStage) Name() string { return "injection_validation" }
func (s *InjectionValidationStage) Order() int   { return orderInjection }

func (s *InjectionValidationStage) ShouldExecute(st *State) bool {
	return !st.Submission.ContentType.IsImage()
}

func (s *InjectionValidationStage) Execute(_ context.Context, st *State) StageResult {
	if s.validator.Detect(st.Normalized) {
		st.HasInjection = true
		st.AddIssue(content.IssueInjection, "Potential injection attack detected", 9)
	}
	return ok(audit.Field{Key: "injection_detected", Value: strconv.FormatBool(st.HasInjection)})
}

// SpamDetectionStage runs the rule engine / LLM ladder over normalized text.
type SpamDetectionStage struct {
	engine *spam.Engine
}

func NewSpamDetectionStage(e *spam.Engine) *SpamDetectionStage {
	return &SpamDetectionStage{engine: e}
}

func (s *SpamDetectionStage) Name() string { return "spam_detection" }
func (s *SpamDetectionStage) Order() int   { return orderSpam }

func (s *SpamDetectionStage) ShouldExecute(st *State) bool {
	return !st.Submission.ContentType.IsImage()
}

func (s *SpamDetectionStage) Execute(ctx context.Context, st *State) StageResult {
	result := s.engine.Analyze(ctx, st.Normalized)
	st.SpamResult = result

	if result.IsSpam {
		severity := 5
		if result.SpamScore > 70 {
			severity = 8
		}
		for _, issue := range result.Issues {
			st.AddIssue(content.IssueSpam, issue, severity)
		}
	}
	return ok(
		audit.Field{Key: "spam_score", Value: strconv.Itoa(result.SpamScore)},
		audit.Field{Key: "is_spam", Value: strconv.FormatBool(result.IsSpam)},
	)
}

// ImageAnalysisStage decodes the base64 payload and runs the layered image
// analyzer. It only applies to image submissions with a payload.
type ImageAnalysisStage struct {
	analyzer *imaging.LayeredAnalyzer
}

func NewImageAnalysisStage(a *imaging.LayeredAnalyzer) *ImageAnalysisStage {
	return &ImageAnalysisStage{analyzer: a}
}

func (s *ImageAnalysisStage) Name() string { return "image_analysis" }
func (s *ImageAnalysisStage) Order() int   { return orderImageAnalysis }

func (s *ImageAnalysisStage) ShouldExecute(st *State) bool {
	return st.Submission.ContentType.IsImage() && st.Submission.RawContent != ""
}

func (s *ImageAnalysisStage) Execute(ctx context.Context, st *State) StageResult {
	data, err := base64.StdEncoding.DecodeString(st.Submission.RawContent)
	if err != nil {
		st.ImageResult = content.ImageAnalysisResult{Issues: []string{"Invalid image format"}}
		st.AddIssue(content.IssueImage, "Invalid image format", imageIssueSeverity("Invalid image format"))
		return ok(audit.Field{Key: "decode_error", Value: err.Error()})
	}

	result, meta := s.analyzer.Analyze(ctx, data)
	st.ImageResult = result
	st.ImageMeta = map[string]string{
		"format":          string(meta.Format),
		"content_hash":    meta.ContentHash,
		"perceptual_hash": meta.PerceptualHash,
	}

	for _, issue := range result.Issues {
		st.AddIssue(content.IssueImage, issue, imageIssueSeverity(issue))
	}

	return ok(
		audit.Field{Key: "format", Value: string(meta.Format)},
		audit.Field{Key: "content_hash", Value: meta.ContentHash},
		audit.Field{Key: "perceptual_hash", Value: meta.PerceptualHash},
		audit.Field{Key: "has_text", Value: strconv.FormatBool(meta.HasText)},
		audit.Field{Key: "exif_tags", Value: strconv.Itoa(len(meta.EXIF))},
	)
}

func imageIssueSeverity(issue string) int {
	lower := strings.ToLower(issue)
	switch {
	case strings.Contains(lower, "blacklisted"):
		return 10
	case strings.Contains(lower, "nsfw"):
		return 9
	case strings.Contains(lower, "manipulat"), strings.Contains(lower, "deepfake"):
		return 8
	case strings.Contains(lower, "spam"):
		return 7
	default:
		return 5
	}
}

// ScoreCalculationStage folds every signal into the final capped score and
// discrete risk level. It runs for every submission.
type ScoreCalculationStage struct {
	calculator *score.Calculator
}

func NewScoreCalculationStage(c *score.Calculator) *ScoreCalculationStage {
	return &ScoreCalculationStage{calculator: c}
}

func (s *ScoreCalculationStage) Name() string { return "score_calculation" }
func (s *ScoreCalculationStage) Order() int   { return orderScoreCalculate }

func (s *ScoreCalculationStage) ShouldExecute(_ *State) bool { return true }

func (s *ScoreCalculationStage) Execute(_ context.Context, st *State) StageResult {
	st.Score = s.calculator.RiskScore(st.SpamResult, st.HasInjection, st.ImageResult)
	st.Level = s.calculator.RiskLevel(st.Score)
	return ok(
		audit.Field{Key: "risk_score", Value: strconv.Itoa(st.Score)},
		audit.Field{Key: "risk_level", Value: string(st.Level)},
	)
}
