// Package spam orchestrates the rule engine and, conditionally, the LLM text
// scorer into one spam verdict. The decision ladder is the template for
// cost-aware escalation: cheap deterministic rules first, the expensive
// scorer only for the ambiguous middle band.
package spam

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/trustlayer-ai/bastion/pkg/content"
	"github.com/trustlayer-ai/bastion/pkg/rules"
)

// spamThreshold is the score above which either source marks content as spam
// when rule and LLM results are merged.
const spamThreshold = 50

// TextScorer is the LLM collaborator contract. It must respect ctx deadlines;
// the engine degrades to the rule result when it fails or times out.
type TextScorer interface {
	ScoreText(ctx context.Context, nc content.NormalizedContent) (content.LLMResult, error)
}

// Engine implements the spam decision ladder.
type Engine struct {
	rules  *rules.Engine
	scorer TextScorer // nil disables LLM escalation entirely
	logger zerolog.Logger
}

func NewEngine(ruleEngine *rules.Engine, scorer TextScorer, logger zerolog.Logger) *Engine {
	return &Engine{
		rules:  ruleEngine,
		scorer: scorer,
		logger: logger.With().Str("component", "spam_engine").Logger(),
	}
}

// Analyze runs the ladder:
//
//  1. rule engine (cheap, deterministic) — always
//  2. high risk: short-circuit at spamScore 100, no LLM call
//  3. detailed-analysis band: LLM scorer, merged with the rule result
//  4. otherwise: the rule result as-is
//
// LLM failure or cancellation degrades to the rule result already computed
// rather than failing the stage.
func (e *Engine) Analyze(ctx context.Context, nc content.NormalizedContent) content.SpamDetectionResult {
	ruleResult := e.rules.Evaluate(ctx, nc)

	if ruleResult.IsHighRisk {
		e.logger.Info().Int("rule_score", ruleResult.Score).Msg("high-risk rule score, skipping LLM")
		return content.SpamDetectionResult{
			IsSpam:    true,
			SpamScore: 100,
			Issues:    ruleResult.Issues,
		}
	}

	if ruleResult.RequiresDetailedAnalysis && e.scorer != nil {
		llmResult, err := e.scorer.ScoreText(ctx, nc)
		if err != nil {
			e.logger.Warn().Err(err).Msg("LLM scorer unavailable, degrading to rule result")
			return content.SpamDetectionResult{
				IsSpam:    ruleResult.Score > spamThreshold,
				SpamScore: ruleResult.Score,
				Issues:    ruleResult.Issues,
			}
		}
		return combine(ruleResult, llmResult)
	}

	return content.SpamDetectionResult{
		IsSpam:    false,
		SpamScore: ruleResult.Score,
		Issues:    ruleResult.Issues,
	}
}

// combine merges the rule and LLM signals: the score is the max of both, and
// issues are concatenated rule-first. Duplicate descriptions are kept; the
// score calculator treats them independently.
func combine(ruleResult rules.Result, llmResult content.LLMResult) content.SpamDetectionResult {
	score := ruleResult.Score
	if llmResult.SpamScore > score {
		score = llmResult.SpamScore
	}

	issues := make([]string, 0, len(ruleResult.Issues)+len(llmResult.Issues))
	issues = append(issues, ruleResult.Issues...)
	issues = append(issues, llmResult.Issues...)

	return content.SpamDetectionResult{
		IsSpam:    ruleResult.Score > spamThreshold || llmResult.SpamScore > spamThreshold,
		SpamScore: score,
		Issues:    issues,
	}
}
