// Package normalize converts raw submissions into NormalizedContent for the
// text detectors. Image submissions never reach the normalizer; the pipeline
// skips the normalization stage for them.
package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/trustlayer-ai/bastion/pkg/content"
)

// ValidationError marks malformed or unsupported input. Submissions failing
// validation are rejected before the detectors run.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

var (
	reTags       = regexp.MustCompile(`<[^>]*>`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// Normalizer produces NormalizedContent from a raw submission. It is
// stateless and safe for concurrent use.
type Normalizer struct{}

func New() *Normalizer { return &Normalizer{} }

// Normalize populates exactly the fields relevant to contentType. Unknown
// content types return a ValidationError.
func (n *Normalizer) Normalize(contentType content.ContentType, raw string) (content.NormalizedContent, error) {
	switch contentType {
	case content.TypeHTML:
		return content.NormalizedContent{
			HTML:      raw,
			PlainText: stripHTML(raw),
		}, nil
	case content.TypeJSON:
		minified, err := minifyJSON(raw)
		if err != nil {
			return content.NormalizedContent{}, &ValidationError{Reason: fmt.Sprintf("invalid json: %v", err)}
		}
		return content.NormalizedContent{
			JSON:      minified,
			PlainText: raw,
		}, nil
	case content.TypePlain, content.TypeText:
		return content.NormalizedContent{PlainText: raw}, nil
	default:
		return content.NormalizedContent{}, &ValidationError{Reason: "unsupported content type: " + string(contentType)}
	}
}

// stripHTML removes tags and collapses whitespace so keyword and pattern
// checks see the visible text.
func stripHTML(s string) string {
	text := reTags.ReplaceAllString(s, " ")
	text = html.UnescapeString(text)
	return strings.TrimSpace(reWhitespace.ReplaceAllString(text, " "))
}

// minifyJSON validates and compacts the payload. NoSQL operator checks run
// against the compact form so spacing tricks cannot hide `$where:` clauses.
func minifyJSON(s string) (string, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(s)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
