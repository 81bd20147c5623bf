package score

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/trustlayer-ai/bastion/pkg/content"
)

func TestRiskLevelBoundaries(t *testing.T) {
	c := NewCalculator(zerolog.Nop())

	testCases := []struct {
		score int
		want  content.RiskLevel
	}{
		{0, content.LevelSafe},
		{40, content.LevelSafe},
		{41, content.LevelLowRisk},
		{60, content.LevelLowRisk},
		{61, content.LevelMediumRisk},
		{80, content.LevelMediumRisk},
		{81, content.LevelHighRisk},
		{100, content.LevelHighRisk},
	}

	for _, tc := range testCases {
		if got := c.RiskLevel(tc.score); got != tc.want {
			t.Errorf("RiskLevel(%d) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestRiskScoreCappedAt100(t *testing.T) {
	c := NewCalculator(zerolog.Nop())

	spam := content.SpamDetectionResult{
		SpamScore: 250,
		Issues:    []string{"phishing attempt", "malware link", "spam pattern"},
	}
	image := content.ImageAnalysisResult{
		IsSpam:        true,
		IsNSFW:        true,
		IsManipulated: true,
		Issues:        []string{"NSFW content detected", "Blacklisted image"},
	}

	got := c.RiskScore(spam, true, image)
	if got != 100 {
		t.Errorf("RiskScore with saturated inputs = %d, want 100", got)
	}
}

func TestRiskScoreDeterministic(t *testing.T) {
	c := NewCalculator(zerolog.Nop())

	spam := content.SpamDetectionResult{SpamScore: 42, Issues: []string{"spam keyword"}}
	image := content.ImageAnalysisResult{Issues: []string{"suspicious image"}}

	first := c.RiskScore(spam, false, image)
	for i := 0; i < 5; i++ {
		if got := c.RiskScore(spam, false, image); got != first {
			t.Fatalf("RiskScore not deterministic: %d then %d", first, got)
		}
	}
}

func TestRiskScoreComponents(t *testing.T) {
	c := NewCalculator(zerolog.Nop())

	testCases := []struct {
		name      string
		spam      content.SpamDetectionResult
		injection bool
		image     content.ImageAnalysisResult
		want      int
	}{
		{
			name: "clean content scores zero",
			want: 0,
		},
		{
			name:      "injection alone",
			injection: true,
			want:      30,
		},
		{
			name: "spam score passes through",
			spam: content.SpamDetectionResult{SpamScore: 35},
			want: 35,
		},
		{
			name: "phishing issue weighted",
			spam: content.SpamDetectionResult{Issues: []string{"phishing attempt"}},
			want: 45,
		},
		{
			name: "malware issue weighted",
			spam: content.SpamDetectionResult{Issues: []string{"malware link"}},
			want: 60,
		},
		{
			name: "unknown issue gets default weight",
			spam: content.SpamDetectionResult{Issues: []string{"odd finding"}},
			want: 10,
		},
		{
			name:  "nsfw flag",
			image: content.ImageAnalysisResult{IsNSFW: true},
			want:  50,
		},
		{
			name:  "manipulated flag",
			image: content.ImageAnalysisResult{IsManipulated: true},
			want:  25,
		},
		{
			name:  "invalid image issue",
			image: content.ImageAnalysisResult{Issues: []string{"Invalid image format"}},
			want:  20,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.RiskScore(tc.spam, tc.injection, tc.image)
			if got != tc.want {
				t.Errorf("RiskScore = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestNegativeTotalFailsSafe(t *testing.T) {
	c := NewCalculator(zerolog.Nop())

	got := c.RiskScore(content.SpamDetectionResult{SpamScore: -500}, false, content.ImageAnalysisResult{})
	if got != 100 {
		t.Errorf("negative total should fail toward 100, got %d", got)
	}
}
