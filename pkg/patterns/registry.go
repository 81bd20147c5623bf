// Package patterns provides a centralized pattern registry for content-risk
// detection. All regex signatures are compiled once at package init and shared
// across detectors.
//
// Design principles:
// - COMPILE ONCE: every pattern compiled at init, not per-request
// - DRY: single source of truth for injection and spam signatures
// - CATEGORIZED: patterns organized by signature family for targeted scans
// - EXTENSIBLE: new signatures are added here, not in detector code
package patterns

import (
	"regexp"
	"sync"
)

// Category represents a signature family.
type Category string

const (
	// Injection families (text detectors)
	CategorySQLInjection   Category = "sql_injection"
	CategoryXSS            Category = "xss"
	CategoryNoSQLInjection Category = "nosql_injection"

	// Spam scoring patterns (rule engine)
	CategorySpamSignature Category = "spam_signature"
)

// Pattern holds a compiled regex with scoring metadata.
type Pattern struct {
	Name        string         // Stable identifier for logging
	Regex       *regexp.Regexp // Compiled regex (never nil after init)
	Category    Category       // Signature family
	Weight      int            // Score contribution per occurrence (spam signatures)
	Description string         // Issue label reported on match
}

// Registry holds all compiled patterns, organized by category.
type Registry struct {
	mu         sync.RWMutex
	byCategory map[Category][]*Pattern
	all        []*Pattern
}

var (
	globalRegistry *Registry
	initOnce       sync.Once
)

// Get returns the global pattern registry singleton.
func Get() *Registry {
	initOnce.Do(func() {
		globalRegistry = newRegistry()
	})
	return globalRegistry
}

func newRegistry() *Registry {
	r := &Registry{
		byCategory: make(map[Category][]*Pattern),
		all:        make([]*Pattern, 0, 32),
	}

	r.registerSQLInjectionPatterns()
	r.registerXSSPatterns()
	r.registerNoSQLInjectionPatterns()
	r.registerSpamSignatures()

	return r
}

func (r *Registry) register(name, pattern string, category Category, weight int, description string) {
	p := &Pattern{
		Name:        name,
		Regex:       regexp.MustCompile(pattern),
		Category:    category,
		Weight:      weight,
		Description: description,
	}

	r.byCategory[category] = append(r.byCategory[category], p)
	r.all = append(r.all, p)
}

// GetByCategory returns all patterns for a signature family.
// Returns an empty slice if the category is unknown (never nil).
func (r *Registry) GetByCategory(cat Category) []*Pattern {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if patterns, ok := r.byCategory[cat]; ok {
		return patterns
	}
	return []*Pattern{}
}

// MatchAny checks if text matches any pattern in the given families.
// Returns the first matching pattern or nil; optimized for early exit.
func (r *Registry) MatchAny(text string, cats ...Category) *Pattern {
	for _, cat := range cats {
		for _, p := range r.GetByCategory(cat) {
			if p.Regex.MatchString(text) {
				return p
			}
		}
	}
	return nil
}

// MatchCount returns the number of non-overlapping occurrences of p in text.
func (p *Pattern) MatchCount(text string) int {
	return len(p.Regex.FindAllStringIndex(text, -1))
}

// TotalPatterns returns the total count of registered patterns.
func (r *Registry) TotalPatterns() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}

// CategoryCount returns the number of patterns in a family.
func (r *Registry) CategoryCount(cat Category) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCategory[cat])
}
