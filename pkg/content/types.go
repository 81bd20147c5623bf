// Package content defines the shared data model for the risk pipeline:
// submissions, normalized content, detected issues and the terminal verdict.
package content

import "strings"

// ContentType identifies the declared format of a submission.
type ContentType string

const (
	TypeHTML  ContentType = "html"
	TypePlain ContentType = "plain"
	TypeText  ContentType = "text"
	TypeJSON  ContentType = "json"
	TypeImage ContentType = "image"
)

// ParseContentType normalizes a caller-supplied content type string.
// The second return is false for types the pipeline does not accept.
func ParseContentType(s string) (ContentType, bool) {
	switch ContentType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeHTML:
		return TypeHTML, true
	case TypePlain:
		return TypePlain, true
	case TypeText:
		return TypeText, true
	case TypeJSON:
		return TypeJSON, true
	case TypeImage:
		return TypeImage, true
	}
	return "", false
}

// IsImage reports whether the submission carries image bytes (base64 payload).
func (t ContentType) IsImage() bool { return t == TypeImage }

// Submission is the immutable unit of work accepted at ingress.
// RawContent holds text, markup, JSON, or base64-encoded image bytes
// depending on ContentType.
type Submission struct {
	ID          string      `json:"request_id"`
	ContentType ContentType `json:"content_type"`
	RawContent  string      `json:"content"`
}

// NormalizedContent is produced once by the normalizer and read by every
// text detector. Only the fields relevant to the submission's content type
// are populated; the rest stay empty (never nil) so downstream checks can
// test without nil guards.
type NormalizedContent struct {
	HTML      string `json:"html"`
	PlainText string `json:"plain_text"`
	JSON      string `json:"json"`
}

// IsEmpty reports whether no field carries content.
func (n NormalizedContent) IsEmpty() bool {
	return n.HTML == "" && n.PlainText == "" && n.JSON == ""
}

// DetectedIssue is one finding accumulated across pipeline stages.
// Insertion order is preserved and is the order issues are reported.
type DetectedIssue struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Severity    int    `json:"severity"` // 1-10
}

// Issue kinds attached by the pipeline stages.
const (
	IssueInjection   = "INJECTION_ATTACK"
	IssueSpam        = "SPAM"
	IssueImage       = "IMAGE_ISSUE"
	IssueSystemError = "SYSTEM_ERROR"
)

// RiskLevel is the discretized output of the numeric risk score.
type RiskLevel string

const (
	LevelSafe       RiskLevel = "SAFE"
	LevelLowRisk    RiskLevel = "LOW_RISK"
	LevelMediumRisk RiskLevel = "MEDIUM_RISK"
	LevelHighRisk   RiskLevel = "HIGH_RISK"
	LevelError      RiskLevel = "ERROR"
)

// RiskVerdict is the terminal, immutable result returned to the caller.
type RiskVerdict struct {
	RequestID string    `json:"request_id"`
	RiskScore int       `json:"risk_score"` // 0-100
	RiskLevel RiskLevel `json:"risk_level"`
	Issues    []string  `json:"issues"`
}

// SpamRule is an operator-managed dynamic scoring rule.
// Score is always non-negative; Pattern is a regex source compiled
// case-insensitively at evaluation time.
type SpamRule struct {
	ID       int64  `json:"id"`
	Pattern  string `json:"pattern"`
	Priority int    `json:"priority"`
	Score    int    `json:"score"`
}

// SpamDetectionResult is the merged output of the spam decision ladder.
type SpamDetectionResult struct {
	IsSpam    bool     `json:"is_spam"`
	SpamScore int      `json:"spam_score"`
	Issues    []string `json:"issues"`
}

// ImageAnalysisResult is the merged output of the layered image analyzer.
type ImageAnalysisResult struct {
	IsSpam        bool     `json:"is_spam"`
	IsNSFW        bool     `json:"is_nsfw"`
	IsManipulated bool     `json:"is_manipulated"`
	Issues        []string `json:"issues"`
}

// CheapModelResult is the contract of the lightweight image classifier
// collaborator.
type CheapModelResult struct {
	NSFWProbability float64  `json:"nsfw_probability"` // [0,1]
	RiskScore       int      `json:"risk_score"`       // [0,100]
	Issues          []string `json:"issues"`
}

// LLMResult is the contract of the LLM text/image scorer collaborator.
type LLMResult struct {
	SpamScore int      `json:"spam_score"` // [0,100]
	Issues    []string `json:"issues"`
}

// Feedback is the post-verdict signal routed to the audit trail.
type Feedback struct {
	RequestID       string `json:"request_id"`
	IsFalsePositive bool   `json:"is_false_positive"`
	IsFalseNegative bool   `json:"is_false_negative"`
}
