package rules

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/trustlayer-ai/bastion/pkg/content"
)

// Store fetches the operator-managed rule set. Implementations may fail
// transiently; the cache absorbs those failures.
type Store interface {
	ListRules(ctx context.Context) ([]content.SpamRule, error)
}

// StaticStore serves a fixed rule set. Used when no database is configured
// and by tests.
type StaticStore []content.SpamRule

func (s StaticStore) ListRules(_ context.Context) ([]content.SpamRule, error) {
	return []content.SpamRule(s), nil
}

// compiledRule pairs a SpamRule with its case-insensitively compiled pattern.
// Compilation happens once per cache populate, not per evaluation.
type compiledRule struct {
	content.SpamRule
	regex *regexp.Regexp
}

// Cache serves dynamic rules with a sliding staleness window. A refresh is
// attempted only after the window elapses since the last successful populate;
// concurrent refresh attempts collapse to one in-flight fetch. A failed fetch
// falls back to the last cached value, or an empty set if nothing was ever
// fetched. Rules reads never fail and never block on an already-populated
// cache beyond the singleflight leader.
type Cache struct {
	store     Store
	staleness time.Duration
	logger    zerolog.Logger

	mu        sync.RWMutex
	rules     []compiledRule
	populated time.Time

	group singleflight.Group
}

func NewCache(store Store, staleness time.Duration, logger zerolog.Logger) *Cache {
	return &Cache{
		store:     store,
		staleness: staleness,
		logger:    logger.With().Str("component", "rule_cache").Logger(),
	}
}

// Rules returns the current rule set, refreshing it first when stale.
func (c *Cache) Rules(ctx context.Context) []compiledRule {
	c.mu.RLock()
	fresh := !c.populated.IsZero() && time.Since(c.populated) < c.staleness
	cached := c.rules
	c.mu.RUnlock()

	if fresh {
		return cached
	}

	// The singleflight key is constant: all stale readers wait on one fetch.
	result, err, _ := c.group.Do("spam_rules", func() (any, error) {
		fetched, err := c.store.ListRules(ctx)
		if err != nil {
			return nil, err
		}
		compiled := compileRules(fetched, c.logger)
		c.mu.Lock()
		c.rules = compiled
		c.populated = time.Now()
		c.mu.Unlock()
		return compiled, nil
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("rule fetch failed, serving stale rule set")
		return cached
	}
	return result.([]compiledRule)
}

// Invalidate forces the next Rules call to refetch. Used after operator
// rule edits so changes land before the window elapses.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.populated = time.Time{}
	c.mu.Unlock()
}

func compileRules(fetched []content.SpamRule, logger zerolog.Logger) []compiledRule {
	compiled := make([]compiledRule, 0, len(fetched))
	for _, rule := range fetched {
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			logger.Warn().Err(err).Str("pattern", rule.Pattern).Msg("skipping rule with invalid pattern")
			continue
		}
		if rule.Score < 0 {
			logger.Warn().Str("pattern", rule.Pattern).Int("score", rule.Score).Msg("skipping rule with negative score")
			continue
		}
		compiled = append(compiled, compiledRule{SpamRule: rule, regex: re})
	}
	return compiled
}
