package rules

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/trustlayer-ai/bastion/pkg/content"
)

// countingStore tracks fetch calls and can be switched to fail.
type countingStore struct {
	mu    sync.Mutex
	calls int
	fail  bool
	rules []content.SpamRule
}

func (s *countingStore) ListRules(_ context.Context) ([]content.SpamRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return nil, errors.New("database down")
	}
	return s.rules, nil
}

func (s *countingStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *countingStore) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func TestCacheServesFreshWithoutRefetch(t *testing.T) {
	store := &countingStore{rules: []content.SpamRule{{ID: 1, Pattern: "abc", Priority: 1, Score: 5}}}
	cache := NewCache(store, time.Hour, zerolog.Nop())

	for i := 0; i < 10; i++ {
		got := cache.Rules(context.Background())
		if len(got) != 1 {
			t.Fatalf("expected 1 rule, got %d", len(got))
		}
	}
	if store.callCount() != 1 {
		t.Errorf("expected a single fetch inside the staleness window, got %d", store.callCount())
	}
}

func TestCacheServesStaleOnFetchFailure(t *testing.T) {
	store := &countingStore{rules: []content.SpamRule{{ID: 1, Pattern: "abc", Priority: 1, Score: 5}}}
	cache := NewCache(store, time.Hour, zerolog.Nop())

	if got := cache.Rules(context.Background()); len(got) != 1 {
		t.Fatalf("initial populate failed: %d rules", len(got))
	}

	store.setFail(true)
	cache.Invalidate()

	got := cache.Rules(context.Background())
	if len(got) != 1 {
		t.Errorf("expected stale rule set on fetch failure, got %d rules", len(got))
	}
}

func TestCacheInvalidateForcesRefetch(t *testing.T) {
	store := &countingStore{}
	cache := NewCache(store, time.Hour, zerolog.Nop())

	cache.Rules(context.Background())
	cache.Invalidate()
	cache.Rules(context.Background())

	if store.callCount() != 2 {
		t.Errorf("expected 2 fetches after invalidate, got %d", store.callCount())
	}
}

func TestCacheSkipsInvalidAndNegativeRules(t *testing.T) {
	store := &countingStore{rules: []content.SpamRule{
		{ID: 1, Pattern: "(unclosed", Priority: 1, Score: 5},
		{ID: 2, Pattern: "fine", Priority: 1, Score: -3},
		{ID: 3, Pattern: "kept", Priority: 1, Score: 5},
	}}
	cache := NewCache(store, time.Hour, zerolog.Nop())

	got := cache.Rules(context.Background())
	if len(got) != 1 {
		t.Fatalf("expected only the valid rule, got %d", len(got))
	}
	if got[0].Pattern != "kept" {
		t.Errorf("kept the wrong rule: %s", got[0].Pattern)
	}
}

func TestCacheConcurrentStaleReadsCollapse(t *testing.T) {
	store := &countingStore{}
	cache := NewCache(store, time.Hour, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.Rules(context.Background())
		}()
	}
	wg.Wait()

	// Singleflight collapses concurrent stale readers; allow a small number
	// of flights in case goroutines arrive after the first completes.
	if store.callCount() > 3 {
		t.Errorf("expected collapsed fetches, got %d", store.callCount())
	}
}
