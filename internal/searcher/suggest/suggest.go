// Package suggest provides autocomplete over an index's vocabulary.
package suggest

import (
	"sort"
	"strings"

	"golang.org/x/text/width"

	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/index"
)

const (
	DefaultMinLength = 2
	DefaultLimit     = 10
)

// Options controls Suggestions.
type Options struct {
	// MinLength is the shortest prefix, in display columns, that produces
	// suggestions. Wide and full-width runes occupy two columns, so a
	// single kanji already qualifies.
	MinLength int
	Limit     int
}

// DefaultOptions returns MinLength 2 and Limit 10.
func DefaultOptions() Options {
	return Options{MinLength: DefaultMinLength, Limit: DefaultLimit}
}

// Entry is one suggested term with its document frequency.
type Entry struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
}

// Suggestions returns vocabulary terms starting with prefix, most frequent
// first. Terms with equal frequency keep the order they were first indexed.
func Suggestions[T any](idx *index.SearchIndex[T], prefix string, opts Options) []Entry {
	if opts.MinLength < 1 {
		opts.MinLength = DefaultMinLength
	}
	if opts.Limit < 1 {
		opts.Limit = DefaultLimit
	}
	if idx == nil || displayWidth(prefix) < opts.MinLength {
		return []Entry{}
	}
	lowerPrefix := strings.ToLower(prefix)

	entries := make([]Entry, 0)
	for _, term := range idx.Terms {
		if strings.HasPrefix(strings.ToLower(term), lowerPrefix) {
			entries = append(entries, Entry{Term: term, Count: len(idx.Inverted[term])})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Count > entries[j].Count
	})
	if len(entries) > opts.Limit {
		entries = entries[:opts.Limit]
	}
	return entries
}

func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			w += 2
		default:
			w++
		}
	}
	return w
}
