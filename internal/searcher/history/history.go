// Package history keeps a bounded, de-duplicated list of recent queries.
package history

import (
	"strings"
	"sync"
)

// DefaultMaxItems is the capacity used when New is given a non-positive
// size.
const DefaultMaxItems = 20

// History is a most-recent-first list of queries. It is safe for
// concurrent use.
type History struct {
	mu       sync.RWMutex
	items    []string
	maxItems int
}

// New creates an empty History holding at most maxItems queries.
func New(maxItems int) *History {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &History{
		items:    make([]string, 0, maxItems),
		maxItems: maxItems,
	}
}

// Add moves query to the front, dropping an existing identical entry and
// evicting the oldest entry when full. Blank queries are ignored.
func (h *History) Add(query string) {
	if strings.TrimSpace(query) == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	items := make([]string, 0, h.maxItems)
	items = append(items, query)
	for _, q := range h.items {
		if q == query {
			continue
		}
		if len(items) == h.maxItems {
			break
		}
		items = append(items, q)
	}
	h.items = items
}

// Remove deletes query if present.
func (h *History) Remove(query string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, q := range h.items {
		if q == query {
			h.items = append(h.items[:i], h.items[i+1:]...)
			return
		}
	}
}

// Clear empties the history.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = h.items[:0]
}

// Get returns a copy of the queries, most recent first.
func (h *History) Get() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.items))
	copy(out, h.items)
	return out
}

// Search returns the stored queries containing q, ignoring case.
func (h *History) Search(q string) []string {
	needle := strings.ToLower(q)
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0)
	for _, item := range h.items {
		if strings.Contains(strings.ToLower(item), needle) {
			out = append(out, item)
		}
	}
	return out
}

// Len returns the number of stored queries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}
