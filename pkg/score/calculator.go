// Package score implements the deterministic weighted aggregation of all
// upstream signals into one capped risk score and its tier classification.
// Capping to [0,100] happens here and only here; upstream detectors report
// raw scores so the full signal stays available for auditing.
package score

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/trustlayer-ai/bastion/pkg/content"
)

// Risk score weights.
const (
	injectionScore    = 30
	bannedLinkScore   = 20
	imageSpamNSFW     = 50
	blacklistKeyword  = 15
	phishingScore     = 45
	malwareScore      = 60
	manipulationBonus = 25
	maxScore          = 100
)

// Tier boundaries. GetRiskLevel is a pure monotonic function of the score.
const (
	highRiskFloor   = 81
	mediumRiskFloor = 61
	lowRiskFloor    = 41
)

// Calculator aggregates detector signals. It holds no mutable state; two
// calls with identical inputs always produce identical output.
type Calculator struct {
	logger zerolog.Logger
}

func NewCalculator(logger zerolog.Logger) *Calculator {
	return &Calculator{logger: logger.With().Str("component", "score_calculator").Logger()}
}

// RiskScore sums the spam score, the injection penalty, per-issue scores for
// both spam and image issues, and the flat image flag bonuses, then caps the
// total at 100.
func (c *Calculator) RiskScore(spamResult content.SpamDetectionResult, hasInjection bool, imageResult content.ImageAnalysisResult) int {
	total := spamResult.SpamScore

	if hasInjection {
		total += injectionScore
	}

	for _, issue := range spamResult.Issues {
		total += issueScore(issue)
	}

	for _, issue := range imageResult.Issues {
		total += imageIssueScore(issue)
	}

	if imageResult.IsNSFW {
		total += imageSpamNSFW
	}
	if imageResult.IsSpam {
		total += imageSpamNSFW
	}
	if imageResult.IsManipulated {
		total += manipulationBonus
	}

	if total > maxScore {
		total = maxScore
	}
	// Raw contributions are non-negative by contract, but a defect upstream
	// must still fail toward the platform-safe outcome.
	if total < 0 {
		total = maxScore
	}

	c.logger.Debug().Int("total", total).Msg("risk score calculation completed")
	return total
}

// RiskLevel maps a capped score onto its tier.
func (c *Calculator) RiskLevel(score int) content.RiskLevel {
	switch {
	case score >= highRiskFloor:
		return content.LevelHighRisk
	case score >= mediumRiskFloor:
		return content.LevelMediumRisk
	case score >= lowRiskFloor:
		return content.LevelLowRisk
	default:
		return content.LevelSafe
	}
}

// issueScore classifies a spam issue description by keyword.
func issueScore(issue string) int {
	i := strings.ToLower(issue)
	switch {
	case strings.Contains(i, "sql injection") || strings.Contains(i, "script injection"):
		return injectionScore
	case strings.Contains(i, "phishing") || strings.Contains(i, "fraud"):
		return phishingScore
	case strings.Contains(i, "malware") || strings.Contains(i, "virus"):
		return malwareScore
	case strings.Contains(i, "banned") && strings.Contains(i, "link"):
		return bannedLinkScore
	case strings.Contains(i, "blacklist"):
		return blacklistKeyword
	case strings.Contains(i, "spam"):
		return 25
	case strings.Contains(i, "suspicious"):
		return 15
	case strings.Contains(i, "policy violation"):
		return 20
	default:
		return 10
	}
}

// imageIssueScore classifies an image issue description by keyword.
func imageIssueScore(issue string) int {
	i := strings.ToLower(issue)
	switch {
	case strings.Contains(i, "nsfw") || strings.Contains(i, "adult"):
		return imageSpamNSFW
	case strings.Contains(i, "blacklisted"):
		return 60
	case strings.Contains(i, "spam"):
		return 35
	case strings.Contains(i, "manipulation") || strings.Contains(i, "deepfake"):
		return 30
	case strings.Contains(i, "invalid") || strings.Contains(i, "corrupt"):
		return 20
	case strings.Contains(i, "suspicious"):
		return 15
	default:
		return 10
	}
}
