// Package cache memoizes computed payment figures. The calculators are pure,
// so a cached figure can be served for identical inputs without any
// coordination; the cache is an optimization for the preview API, never a
// source of truth.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/finbook/loan-engine/pkg/loans"
)

// Cache is the memoization interface. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string) error
}

// PaymentKey builds a deterministic cache key from loan terms. Every field
// that influences the payment participates, so distinct inputs can never
// collide onto one figure.
func PaymentKey(terms loans.LoanTerms) string {
	return fmt.Sprintf("payment:%g:%g:%s:%d:%s",
		terms.Principal, terms.InterestRate, terms.RateType, terms.TermMonths, terms.PaymentFrequency)
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
}

type memoryEntry struct {
	value   string
	expires time.Time
}

// NewMemoryCache creates an in-memory cache. A zero ttl means entries never
// expire.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
	}
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !entry.expires.IsZero() && time.Now().After(entry.expires) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return "", false
	}
	return entry.value, true
}

func (m *MemoryCache) Set(_ context.Context, key string, value string) error {
	entry := memoryEntry{value: value}
	if m.ttl > 0 {
		entry.expires = time.Now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}
