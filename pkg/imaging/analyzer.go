package imaging

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/trustlayer-ai/bastion/pkg/content"
)

const (
	// nsfwBlockThreshold blocks immediately without spending LLM tokens.
	nsfwBlockThreshold = 0.8
	// nsfwFlagThreshold marks the final result as NSFW.
	nsfwFlagThreshold = 0.5
	// Escalation happens only when the cheap model is genuinely uncertain,
	// strictly inside the band.
	escalateLow  = 0.3
	escalateHigh = 0.7

	llmSpamThreshold   = 50
	cheapSpamThreshold = 70
)

// HashStore answers blacklist and whitelist membership for image hashes.
type HashStore interface {
	IsBlacklisted(ctx context.Context, hash string) (bool, error)
	IsWhitelisted(ctx context.Context, hash string) (bool, error)
}

// ImageScorer is the expensive vision model consulted only for the uncertain
// middle band.
type ImageScorer interface {
	ScoreImage(ctx context.Context, data []byte) (content.LLMResult, error)
}

// LayeredAnalyzer runs images through progressively more expensive layers:
// format validation, hash lookups, the cheap classifier, and finally an LLM
// only when the cheap classifier is uncertain.
type LayeredAnalyzer struct {
	hashes  HashStore
	model   CheapModel
	scorer  ImageScorer
	textDet *TextPresenceDetector
	logger  zerolog.Logger
}

// NewLayeredAnalyzer builds an analyzer. hashes and scorer may be nil, which
// disables the corresponding layer.
func NewLayeredAnalyzer(hashes HashStore, model CheapModel, scorer ImageScorer, logger zerolog.Logger) *LayeredAnalyzer {
	if model == nil {
		model = NewHeuristicModel()
	}
	return &LayeredAnalyzer{
		hashes:  hashes,
		model:   model,
		scorer:  scorer,
		textDet: NewTextPresenceDetector(logger),
		logger:  logger.With().Str("component", "image_analyzer").Logger(),
	}
}

// Analyze classifies an image payload. It never returns an error: any
// internal failure degrades to a result carrying a generic failure issue so
// the pipeline can score it conservatively.
func (a *LayeredAnalyzer) Analyze(ctx context.Context, data []byte) (result content.ImageAnalysisResult, meta Metadata) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error().Interface("panic", r).Msg("image analysis panicked")
			result = content.ImageAnalysisResult{Issues: []string{"Image analysis failed"}}
		}
	}()

	meta.Format = DetectFormat(data)
	if meta.Format == FormatInvalid {
		return content.ImageAnalysisResult{Issues: []string{"Invalid image format"}}, meta
	}

	hashes, err := ComputeHashes(data)
	if err != nil {
		a.logger.Warn().Err(err).Msg("hash computation failed")
	} else {
		meta.ContentHash = hashes.ContentHash
		meta.PerceptualHash = hashes.PerceptualHash
	}
	meta.HasText = a.textDet.HasText(data)
	meta.EXIF = ExtractEXIF(data)

	if a.hashes != nil && hashes.ContentHash != "" {
		if a.isListed(ctx, a.hashes.IsWhitelisted, hashes) {
			a.logger.Debug().Str("content_hash", hashes.ContentHash).Msg("image whitelisted")
			return content.ImageAnalysisResult{}, meta
		}
		if a.isListed(ctx, a.hashes.IsBlacklisted, hashes) {
			return content.ImageAnalysisResult{
				IsSpam: true,
				Issues: []string{"Blacklisted image"},
			}, meta
		}
	}

	cheap, err := a.model.Classify(ctx, data)
	if err != nil {
		a.logger.Error().Err(err).Msg("cheap model classification failed")
		return content.ImageAnalysisResult{Issues: []string{"Image analysis failed"}}, meta
	}

	if cheap.NSFWProbability > nsfwBlockThreshold {
		return content.ImageAnalysisResult{
			IsNSFW: true,
			Issues: append([]string{}, cheap.Issues...),
		}, meta
	}

	uncertain := cheap.NSFWProbability > escalateLow && cheap.NSFWProbability < escalateHigh
	if uncertain && a.scorer != nil {
		llm, err := a.scorer.ScoreImage(ctx, data)
		if err != nil {
			a.logger.Warn().Err(err).Msg("llm image scoring failed, using cheap model result")
			return a.cheapOnly(cheap), meta
		}

		issues := append(append([]string{}, cheap.Issues...), llm.Issues...)
		merged := content.ImageAnalysisResult{
			IsSpam: llm.SpamScore > llmSpamThreshold || cheap.RiskScore > llmSpamThreshold,
			IsNSFW: cheap.NSFWProbability > nsfwFlagThreshold,
			Issues: issues,
		}
		merged.IsManipulated = containsManipulation(issues)
		return merged, meta
	}

	return a.cheapOnly(cheap), meta
}

func (a *LayeredAnalyzer) cheapOnly(cheap content.CheapModelResult) content.ImageAnalysisResult {
	return content.ImageAnalysisResult{
		IsSpam: cheap.RiskScore > cheapSpamThreshold,
		IsNSFW: cheap.NSFWProbability > nsfwFlagThreshold,
		Issues: append([]string{}, cheap.Issues...),
	}
}

// isListed checks both the content hash and the perceptual hash against a
// list. Lookup errors are logged and treated as not listed so a degraded
// store never blocks the pipeline.
func (a *LayeredAnalyzer) isListed(ctx context.Context, lookup func(context.Context, string) (bool, error), h Hashes) bool {
	for _, hash := range []string{h.ContentHash, h.PerceptualHash} {
		if hash == "" {
			continue
		}
		listed, err := lookup(ctx, hash)
		if err != nil {
			a.logger.Warn().Err(err).Str("hash", hash).Msg("hash list lookup failed")
			continue
		}
		if listed {
			return true
		}
	}
	return false
}

func containsManipulation(issues []string) bool {
	for _, issue := range issues {
		lower := strings.ToLower(issue)
		if strings.Contains(lower, "manipulat") || strings.Contains(lower, "deepfake") {
			return true
		}
	}
	return false
}
