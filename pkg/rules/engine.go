// Package rules implements the deterministic scoring engine: static keyword
// and signature tables, URL heuristics, and operator-managed dynamic rules
// served through a staleness-windowed cache.
package rules

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/trustlayer-ai/bastion/pkg/content"
	"github.com/trustlayer-ai/bastion/pkg/patterns"
)

// occurrenceCap bounds the per-pattern score multiplier so a single repeated
// token cannot dominate the raw score.
const occurrenceCap = 3

// suspiciousDomainScore is the flat penalty per URL whose host matches a
// known link-shortener or disposable-mail domain.
const suspiciousDomainScore = 20

// keywordEntry is one row of the static keyword table. Kept as an ordered
// slice so repeated evaluations report issues in a stable order.
type keywordEntry struct {
	keyword string
	score   int
}

var spamKeywords = []keywordEntry{
	// High severity
	{"viagra", 25}, {"cialis", 25}, {"casino", 20}, {"poker", 20},
	{"lottery", 25}, {"prize", 15}, {"winner", 15}, {"congratulations", 10},

	// Medium severity
	{"click here", 15}, {"act now", 15}, {"limited time", 10}, {"offer expires", 10},
	{"free money", 20}, {"earn money", 15}, {"work from home", 15},

	// Financial scams
	{"nigerian prince", 50}, {"bank transfer", 20}, {"wire transfer", 20},
	{"bitcoin", 10}, {"cryptocurrency", 10}, {"investment opportunity", 20},

	// Phishing indicators
	{"verify account", 25}, {"suspended account", 25}, {"update payment", 25},
	{"confirm identity", 20}, {"security alert", 15},
}

var suspiciousDomains = []string{
	"bit.ly", "tinyurl.com", "shorturl.at", "0w.ly", "t.co",
	"mailinator.com", "tempmail.com", "guerrillamail.com",
}

var reURL = regexp.MustCompile(`(?i)https?://\S+`)

// Result is the rule engine's verdict over one piece of normalized content.
// Score is raw and unbounded; capping to [0,100] happens only in the score
// calculator so the full signal survives for auditing.
type Result struct {
	Score                    int
	IsHighRisk               bool
	RequiresDetailedAnalysis bool
	Issues                   []string
}

// Thresholds gate the escalation ladder in the spam engine. They are
// configuration, not structural invariants; tune them in pkg/config.
type Thresholds struct {
	HighRisk         int // score >= HighRisk short-circuits as spam
	DetailedAnalysis int // DetailedAnalysis <= score < HighRisk escalates to the LLM
}

// Engine combines static signature tables, dynamic operator rules and URL
// heuristics into one bounded sub-score plus an escalation recommendation.
type Engine struct {
	cache      *Cache
	registry   *patterns.Registry
	thresholds Thresholds
	logger     zerolog.Logger
}

func NewEngine(cache *Cache, thresholds Thresholds, logger zerolog.Logger) *Engine {
	return &Engine{
		cache:      cache,
		registry:   patterns.Get(),
		thresholds: thresholds,
		logger:     logger.With().Str("component", "rule_engine").Logger(),
	}
}

// Evaluate scores the plain text of nc. Dynamic rule fetch failures degrade
// to the last cached rule set (or none); Evaluate itself never fails.
func (e *Engine) Evaluate(ctx context.Context, nc content.NormalizedContent) Result {
	var result Result

	plain := nc.PlainText
	lower := strings.ToLower(plain)

	// Static keyword table over the lower-cased text.
	for _, entry := range spamKeywords {
		if strings.Contains(lower, entry.keyword) {
			result.Score += entry.score
			result.Issues = append(result.Issues, fmt.Sprintf("Spam keyword detected: %s", entry.keyword))
		}
	}

	// Signature table over the original text; the per-pattern multiplier is
	// capped so "!!!!!!!!" repeated a hundred times scores the same as three.
	for _, p := range e.registry.GetByCategory(patterns.CategorySpamSignature) {
		count := p.MatchCount(plain)
		if count == 0 {
			continue
		}
		multiplier := count
		if multiplier > occurrenceCap {
			multiplier = occurrenceCap
		}
		result.Score += p.Weight * multiplier
		result.Issues = append(result.Issues, fmt.Sprintf("%s (%d occurrences)", p.Description, count))
	}

	// URL heuristics: flat penalty per link-shortener or disposable domain.
	for _, url := range reURL.FindAllString(plain, -1) {
		lowerURL := strings.ToLower(url)
		for _, domain := range suspiciousDomains {
			if strings.Contains(lowerURL, domain) {
				result.Score += suspiciousDomainScore
				result.Issues = append(result.Issues, fmt.Sprintf("Suspicious domain detected: %s", url))
				break
			}
		}
	}

	// Dynamic operator rules, served from the staleness-windowed cache.
	for _, rule := range e.cache.Rules(ctx) {
		if rule.regex.MatchString(lower) {
			result.Score += rule.Score
			result.Issues = append(result.Issues, fmt.Sprintf("Rule match: %s", rule.Pattern))
		}
	}

	result.IsHighRisk = result.Score >= e.thresholds.HighRisk
	result.RequiresDetailedAnalysis = result.Score >= e.thresholds.DetailedAnalysis && result.Score < e.thresholds.HighRisk

	e.logger.Debug().
		Int("score", result.Score).
		Int("issues", len(result.Issues)).
		Bool("high_risk", result.IsHighRisk).
		Msg("rule engine evaluation completed")

	return result
}
