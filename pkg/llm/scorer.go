// Package llm implements the LLM text/image scorer collaborator over any
// OpenAI-compatible chat-completions endpoint (Ollama, OpenRouter, Groq, or
// a custom base URL). Calls are bounded by the caller's context; the scorer
// never decides anything itself — it only returns a spam score and issues
// for the detection engines to merge.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/trustlayer-ai/bastion/pkg/content"
	"github.com/trustlayer-ai/bastion/pkg/httputil"
)

// Provider defines the backend service type.
type Provider string

const (
	ProviderOllama     Provider = "ollama"
	ProviderOpenRouter Provider = "openrouter"
	ProviderGroq       Provider = "groq"
	ProviderCustom     Provider = "custom"
)

// DefaultTemperature keeps scoring near-deterministic.
const DefaultTemperature = 0.1

// ScorerConfig holds the configuration for the scorer client.
type ScorerConfig struct {
	Provider    Provider
	APIKey      string // Optional for Ollama
	Model       string
	BaseURL     string  // Optional override
	Temperature float64 // Defaults to DefaultTemperature
}

// Scorer is an HTTP client for the external LLM scorer.
type Scorer struct {
	client      *http.Client
	provider    Provider
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	logger      zerolog.Logger
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewScorer creates a scorer client for the configured provider.
func NewScorer(cfg ScorerConfig, logger zerolog.Logger) *Scorer {
	if cfg.Model == "" {
		if cfg.Provider == ProviderOllama {
			cfg.Model = "qwen2.5:7b"
		} else {
			cfg.Model = "nvidia/nemotron-3-nano-30b-a3b:free"
		}
	}

	var baseURL string
	switch cfg.Provider {
	case ProviderOllama:
		baseURL = "http://localhost:11434/v1"
	case ProviderGroq:
		baseURL = "https://api.groq.com/openai/v1"
	case ProviderOpenRouter:
		baseURL = "https://openrouter.ai/api/v1"
	default:
		baseURL = cfg.BaseURL
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = DefaultTemperature
	}

	return &Scorer{
		client:      httputil.Client(httputil.TierSlow),
		provider:    cfg.Provider,
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: temperature,
		logger:      logger.With().Str("component", "llm_scorer").Logger(),
	}
}

const textSystemPrompt = `You are a content security expert. Analyze text for spam, phishing, scams, and harmful content.

Respond with JSON only:
{"spam_score": 0-100, "issues": ["short issue description", ...]}

spam_score reflects how likely the content is spam/abuse. issues lists concrete findings ("phishing attempt", "malware link", "scam pattern"); leave it empty for clean content.`

const imageSystemPrompt = `You are an image content moderator. Analyze images for spam indicators, NSFW content, manipulation/deepfakes, and policy violations.

Respond with JSON only:
{"spam_score": 0-100, "issues": ["short issue description", ...]}`

// ScoreText asks the LLM for a spam score over normalized plain text.
func (s *Scorer) ScoreText(ctx context.Context, nc content.NormalizedContent) (content.LLMResult, error) {
	msgs := []chatMessage{
		{Role: "system", Content: textSystemPrompt},
		{Role: "user", Content: "CONTENT:\n" + nc.PlainText},
	}
	return s.score(ctx, msgs)
}

// ScoreImage asks the LLM for a spam score over raw image bytes. The image
// is inlined base64; providers without vision support will fail and the
// image analyzer degrades to the cheap-model result.
func (s *Scorer) ScoreImage(ctx context.Context, imageData []byte) (content.LLMResult, error) {
	msgs := []chatMessage{
		{Role: "system", Content: imageSystemPrompt},
		{Role: "user", Content: "IMAGE_BASE64:\n" + base64.StdEncoding.EncodeToString(imageData)},
	}
	return s.score(ctx, msgs)
}

func (s *Scorer) score(ctx context.Context, msgs []chatMessage) (content.LLMResult, error) {
	if s.provider == ProviderOpenRouter && s.apiKey == "" {
		return content.LLMResult{}, fmt.Errorf("API key not configured for OpenRouter")
	}

	respContent, err := s.callLLM(ctx, chatRequest{
		Model:       s.model,
		Messages:    msgs,
		Temperature: s.temperature,
	})
	if err != nil {
		return content.LLMResult{}, err
	}

	var result content.LLMResult
	if err := json.Unmarshal([]byte(extractJSON(respContent)), &result); err != nil {
		return content.LLMResult{}, fmt.Errorf("parse LLM response: %w", err)
	}
	if result.SpamScore < 0 {
		result.SpamScore = 0
	}
	if result.SpamScore > 100 {
		result.SpamScore = 100
	}
	return result, nil
}

// extractJSON strips markdown fencing and prose around the JSON object some
// models insist on emitting.
func extractJSON(c string) string {
	clean := strings.TrimSpace(c)
	if start := strings.Index(clean, "{"); start != -1 {
		clean = clean[start:]
	}
	if end := strings.LastIndex(clean, "}"); end != -1 {
		clean = clean[:end+1]
	}
	return clean
}

func (s *Scorer) callLLM(ctx context.Context, reqBody chatRequest) (string, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimRight(s.baseURL, "/") + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", err
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := httputil.ReadResponseBody(resp.Body, httputil.MaxResponseSize)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("unmarshal error: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return result.Choices[0].Message.Content, nil
}
