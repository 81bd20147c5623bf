package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/trustlayer-ai/bastion/pkg/content"
)

func newFakeProvider(t *testing.T, status int, response string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(status)
		body := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": response}},
			},
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func newTestScorer(t *testing.T, baseURL string) *Scorer {
	t.Helper()
	return NewScorer(ScorerConfig{
		Provider: ProviderCustom,
		BaseURL:  baseURL,
		Model:    "test-model",
	}, zerolog.Nop())
}

func TestScoreTextParsesResult(t *testing.T) {
	server := newFakeProvider(t, http.StatusOK,
		`{"spam_score": 72, "issues": ["phishing attempt"]}`)
	defer server.Close()

	s := newTestScorer(t, server.URL)
	result, err := s.ScoreText(context.Background(), content.NormalizedContent{PlainText: "win big"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SpamScore != 72 {
		t.Errorf("spam score = %d, want 72", result.SpamScore)
	}
	if len(result.Issues) != 1 || result.Issues[0] != "phishing attempt" {
		t.Errorf("issues = %v", result.Issues)
	}
}

func TestScoreTextStripsMarkdownFencing(t *testing.T) {
	server := newFakeProvider(t, http.StatusOK,
		"Here is my analysis:\n```json\n{\"spam_score\": 10, \"issues\": []}\n```\nHope that helps!")
	defer server.Close()

	s := newTestScorer(t, server.URL)
	result, err := s.ScoreText(context.Background(), content.NormalizedContent{PlainText: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SpamScore != 10 {
		t.Errorf("spam score = %d, want 10", result.SpamScore)
	}
}

func TestScoreTextClampsOutOfRangeScores(t *testing.T) {
	testCases := []struct {
		name     string
		response string
		want     int
	}{
		{"above range", `{"spam_score": 900, "issues": []}`, 100},
		{"below range", `{"spam_score": -5, "issues": []}`, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			server := newFakeProvider(t, http.StatusOK, tc.response)
			defer server.Close()

			s := newTestScorer(t, server.URL)
			result, err := s.ScoreText(context.Background(), content.NormalizedContent{PlainText: "x"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.SpamScore != tc.want {
				t.Errorf("spam score = %d, want %d", result.SpamScore, tc.want)
			}
		})
	}
}

func TestScoreTextAPIError(t *testing.T) {
	server := newFakeProvider(t, http.StatusTooManyRequests, "")
	defer server.Close()

	s := newTestScorer(t, server.URL)
	if _, err := s.ScoreText(context.Background(), content.NormalizedContent{PlainText: "x"}); err == nil {
		t.Error("expected an error on non-200 response")
	}
}

func TestOpenRouterRequiresAPIKey(t *testing.T) {
	s := NewScorer(ScorerConfig{Provider: ProviderOpenRouter}, zerolog.Nop())
	if _, err := s.ScoreText(context.Background(), content.NormalizedContent{PlainText: "x"}); err == nil {
		t.Error("expected an error without an OpenRouter API key")
	}
}

func TestExtractJSON(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{`prose before {"a":1} prose after`, `{"a":1}`},
	}

	for _, tc := range testCases {
		if got := extractJSON(tc.in); got != tc.want {
			t.Errorf("extractJSON(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
