package imaging

import (
	"context"
	"math/rand"

	"github.com/trustlayer-ai/bastion/pkg/content"
)

// CheapModel is the fast, inexpensive NSFW classifier consulted before any
// LLM escalation. Implementations may call out to a local ONNX runtime or a
// hosted endpoint; the analyzer only cares about the probability and the
// coarse risk score.
type CheapModel interface {
	Classify(ctx context.Context, data []byte) (content.CheapModelResult, error)
}

// HeuristicModel is the default in-process classifier. It derives a stable
// pseudo-probability from the payload size so repeated analysis of the same
// image yields the same outcome. Deployments with a real model wire their own
// CheapModel implementation instead.
type HeuristicModel struct{}

func NewHeuristicModel() *HeuristicModel {
	return &HeuristicModel{}
}

func (m *HeuristicModel) Classify(_ context.Context, data []byte) (content.CheapModelResult, error) {
	r := rand.New(rand.NewSource(int64(len(data))))

	prob := r.Float64() * 0.3
	if len(data) > 1_000_000 {
		prob += 0.1
	}

	result := content.CheapModelResult{NSFWProbability: prob}

	switch {
	case prob > 0.8:
		result.RiskScore = 90
		result.Issues = append(result.Issues, "NSFW content detected")
	case prob > 0.5:
		result.RiskScore = 50
		result.Issues = append(result.Issues, "Potentially inappropriate content")
	}

	return result, nil
}
