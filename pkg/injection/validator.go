// Package injection classifies normalized content against SQL, XSS and NoSQL
// signature families. The check is purely boolean; severity and scoring are
// assigned by the pipeline, not here.
package injection

import (
	"github.com/rs/zerolog"

	"github.com/trustlayer-ai/bastion/pkg/content"
	"github.com/trustlayer-ai/bastion/pkg/patterns"
)

// Validator runs the three injection signature families over the fields of
// NormalizedContent that apply to them. Stateless and safe for concurrent use.
type Validator struct {
	registry *patterns.Registry
	logger   zerolog.Logger
}

func NewValidator(logger zerolog.Logger) *Validator {
	return &Validator{
		registry: patterns.Get(),
		logger:   logger.With().Str("component", "injection_validator").Logger(),
	}
}

// Detect returns true iff any pattern in any applicable family matches:
// SQL signatures over plain text, XSS signatures over HTML, NoSQL signatures
// over JSON. Empty fields are skipped.
func (v *Validator) Detect(nc content.NormalizedContent) bool {
	var matched []*patterns.Pattern

	if nc.PlainText != "" {
		if p := v.registry.MatchAny(nc.PlainText, patterns.CategorySQLInjection); p != nil {
			matched = append(matched, p)
		}
	}
	if nc.HTML != "" {
		if p := v.registry.MatchAny(nc.HTML, patterns.CategoryXSS); p != nil {
			matched = append(matched, p)
		}
	}
	if nc.JSON != "" {
		if p := v.registry.MatchAny(nc.JSON, patterns.CategoryNoSQLInjection); p != nil {
			matched = append(matched, p)
		}
	}

	if len(matched) == 0 {
		return false
	}

	names := make([]string, 0, len(matched))
	for _, p := range matched {
		names = append(names, p.Name)
	}
	v.logger.Warn().Strs("signatures", names).Msg("injection attempt detected")
	return true
}
