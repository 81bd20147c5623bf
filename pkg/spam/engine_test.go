package spam

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/trustlayer-ai/bastion/pkg/content"
	"github.com/trustlayer-ai/bastion/pkg/rules"
)

// stubScorer counts calls and returns a fixed result or error.
type stubScorer struct {
	calls  int
	result content.LLMResult
	err    error
}

func (s *stubScorer) ScoreText(_ context.Context, _ content.NormalizedContent) (content.LLMResult, error) {
	s.calls++
	return s.result, s.err
}

func newTestEngine(t *testing.T, scorer TextScorer) *Engine {
	t.Helper()
	cache := rules.NewCache(rules.StaticStore(nil), time.Minute, zerolog.Nop())
	ruleEngine := rules.NewEngine(cache, rules.Thresholds{HighRisk: 70, DetailedAnalysis: 40}, zerolog.Nop())
	return NewEngine(ruleEngine, scorer, zerolog.Nop())
}

func TestHighRiskSkipsLLM(t *testing.T) {
	scorer := &stubScorer{result: content.LLMResult{SpamScore: 10}}
	e := newTestEngine(t, scorer)

	// "nigerian prince" (50) + "bank transfer" (20) clears the high-risk
	// threshold on rules alone.
	result := e.Analyze(context.Background(),
		content.NormalizedContent{PlainText: "nigerian prince needs a bank transfer"})

	if !result.IsSpam {
		t.Error("high-risk content should be spam")
	}
	if result.SpamScore != 100 {
		t.Errorf("high-risk spam score = %d, want 100", result.SpamScore)
	}
	if scorer.calls != 0 {
		t.Errorf("LLM called %d times for high-risk content, want 0", scorer.calls)
	}
}

func TestLowBandSkipsLLM(t *testing.T) {
	scorer := &stubScorer{result: content.LLMResult{SpamScore: 90}}
	e := newTestEngine(t, scorer)

	result := e.Analyze(context.Background(),
		content.NormalizedContent{PlainText: "see you at lunch"})

	if result.IsSpam {
		t.Error("clean content marked as spam")
	}
	if result.SpamScore != 0 {
		t.Errorf("clean spam score = %d, want 0", result.SpamScore)
	}
	if scorer.calls != 0 {
		t.Errorf("LLM called %d times for low-band content, want 0", scorer.calls)
	}
}

func TestMidBandEscalatesAndMerges(t *testing.T) {
	scorer := &stubScorer{result: content.LLMResult{SpamScore: 65, Issues: []string{"scam pattern"}}}
	e := newTestEngine(t, scorer)

	// "lottery" + "prize" + "winner" lands at 55, inside the escalation band.
	result := e.Analyze(context.Background(),
		content.NormalizedContent{PlainText: "lottery prize winner"})

	if scorer.calls != 1 {
		t.Fatalf("LLM called %d times for mid-band content, want 1", scorer.calls)
	}
	if result.SpamScore != 65 {
		t.Errorf("merged score = %d, want max(55, 65) = 65", result.SpamScore)
	}
	if !result.IsSpam {
		t.Error("LLM score above threshold should mark spam")
	}

	// Issues are concatenated rule-first.
	if len(result.Issues) != 4 {
		t.Fatalf("merged issues = %v, want 3 rule issues then 1 llm issue", result.Issues)
	}
	if result.Issues[len(result.Issues)-1] != "scam pattern" {
		t.Errorf("llm issue should come last, got %v", result.Issues)
	}
}

func TestMidBandRuleScoreWinsWhenHigher(t *testing.T) {
	scorer := &stubScorer{result: content.LLMResult{SpamScore: 20}}
	e := newTestEngine(t, scorer)

	result := e.Analyze(context.Background(),
		content.NormalizedContent{PlainText: "lottery prize winner"})

	if result.SpamScore != 55 {
		t.Errorf("merged score = %d, want 55", result.SpamScore)
	}
	// The rule score alone crosses the merge threshold.
	if !result.IsSpam {
		t.Error("rule score above threshold should mark spam in merge")
	}
}

func TestLLMFailureDegradesToRules(t *testing.T) {
	scorer := &stubScorer{err: errors.New("provider timeout")}
	e := newTestEngine(t, scorer)

	result := e.Analyze(context.Background(),
		content.NormalizedContent{PlainText: "lottery prize winner"})

	if scorer.calls != 1 {
		t.Fatalf("LLM called %d times, want 1", scorer.calls)
	}
	if result.SpamScore != 55 {
		t.Errorf("degraded score = %d, want rule score 55", result.SpamScore)
	}
	// On degrade the rule score alone decides, and 55 crosses the threshold.
	if !result.IsSpam {
		t.Error("degraded result with rule score 55 should be spam")
	}
}

func TestNilScorerDisablesEscalation(t *testing.T) {
	e := newTestEngine(t, nil)

	result := e.Analyze(context.Background(),
		content.NormalizedContent{PlainText: "lottery prize winner"})

	if result.SpamScore != 55 {
		t.Errorf("score without scorer = %d, want 55", result.SpamScore)
	}
	if result.IsSpam {
		t.Error("mid-band without scorer should keep IsSpam false")
	}
}
