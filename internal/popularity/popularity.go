// Package popularity tracks how often terms have been searched. Suggestion
// scoring reads the counts; the embedding application records them.
package popularity

import (
	"context"
	"sync"
)

// Store maps a term to its search count. Missing terms count 0.
// Implementations are safe for concurrent use.
type Store interface {
	Count(term string) uint64
}

// Recorder adds one search of term to a store.
type Recorder interface {
	Record(ctx context.Context, term string) error
}

// Counts is an in-memory Store.
type Counts struct {
	mu     sync.RWMutex
	counts map[string]uint64
}

func NewCounts() *Counts {
	return &Counts{counts: make(map[string]uint64)}
}

// CountsOf builds a Store from a literal map. The map is copied.
func CountsOf(m map[string]uint64) *Counts {
	c := NewCounts()
	for term, n := range m {
		c.counts[term] = n
	}
	return c
}

func (c *Counts) Count(term string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts[term]
}

// Add increments term by delta and returns the new count.
func (c *Counts) Add(term string, delta uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[term] += delta
	return c.counts[term]
}

// Set overwrites the count of term. A zero count removes it.
func (c *Counts) Set(term string, n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n == 0 {
		delete(c.counts, term)
		return
	}
	c.counts[term] = n
}

func (c *Counts) Record(_ context.Context, term string) error {
	c.Add(term, 1)
	return nil
}

// Len returns the number of terms with a non-zero count.
func (c *Counts) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.counts)
}

// Each calls fn for every counted term in no particular order.
func (c *Counts) Each(fn func(term string, n uint64)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for term, n := range c.counts {
		fn(term, n)
	}
}
