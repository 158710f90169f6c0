// Package ranker scores queries against a built search index. Exact token
// hits are weighted by field, term frequency within the field and inverse
// document frequency; an optional fuzzy phase adds credit for vocabulary
// terms that are close in edit distance.
package ranker

import (
	"math"
	"sort"
	"strings"

	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/index"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/tokenizer"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/searcher/similarity"
)

const (
	DefaultLimit          = 50
	DefaultFuzzyThreshold = 0.8
	DefaultBoostExact     = 2.0
)

// Options controls a single search.
type Options struct {
	// Limit caps the number of results. Values below 1 mean DefaultLimit.
	Limit int
	// Threshold excludes results scoring at or below it.
	Threshold float64
	// Fuzzy enables the edit-distance phase.
	Fuzzy bool
	// FuzzyThreshold is the minimum similarity for a fuzzy term. Zero and
	// negative values mean DefaultFuzzyThreshold, so a threshold of 0 cannot
	// be requested; use a tiny positive value to accept every term.
	FuzzyThreshold float64
	// BoostExact multiplies exact-token contributions. Zero and negative
	// values mean DefaultBoostExact; exact hits cannot be switched off.
	BoostExact float64
}

// DefaultOptions returns the options used when a caller has no preference.
func DefaultOptions() Options {
	return Options{
		Limit:          DefaultLimit,
		FuzzyThreshold: DefaultFuzzyThreshold,
		BoostExact:     DefaultBoostExact,
	}
}

// Result is one ranked item.
type Result[T any] struct {
	ID    string  `json:"id"`
	Item  T       `json:"item"`
	Score float64 `json:"score"`
}

// Search ranks the items of idx against query. A blank query, a nil index
// and unknown tokens all yield an empty slice. Results are ordered by
// descending score; equal scores keep the items' insertion order.
func Search[T any](idx *index.SearchIndex[T], query string, opts Options) []Result[T] {
	if idx == nil || strings.TrimSpace(query) == "" {
		return []Result[T]{}
	}
	opts = withDefaults(opts)

	scores := make(map[string]float64)
	for _, queryToken := range tokenizer.Tokenize(query, tokenizer.DefaultOptions()) {
		if postings, ok := idx.Inverted[queryToken]; ok {
			accumulate(idx, queryToken, postings, opts.BoostExact, scores)
		}
		if !opts.Fuzzy {
			continue
		}
		for _, term := range idx.Terms {
			if term == queryToken {
				continue
			}
			sim := similarity.Similarity(queryToken, term)
			if sim < opts.FuzzyThreshold {
				continue
			}
			accumulate(idx, term, idx.Inverted[term], sim, scores)
		}
	}

	results := make([]Result[T], 0, len(scores))
	for id, score := range scores {
		if score <= opts.Threshold {
			continue
		}
		results = append(results, Result[T]{
			ID:    id,
			Item:  idx.Items[id].Item,
			Score: score,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return idx.Items[results[i].ID].Position < idx.Items[results[j].ID].Position
	})
	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results
}

// accumulate adds the contribution of term to every item containing it:
// the weighted in-field term frequency summed over fields, times the term's
// IDF, times multiplier. A term found in every item has IDF 0 and adds
// nothing.
func accumulate[T any](idx *index.SearchIndex[T], term string, postings index.PostingMap, multiplier float64, scores map[string]float64) {
	docFreq := len(postings)
	if docFreq == 0 {
		return
	}
	idf := computeIDF(idx.DocumentCount, docFreq)
	for id, posting := range postings {
		item := idx.Items[id]
		fieldScore := 0.0
		for _, field := range idx.Fields {
			if _, ok := posting.Fields[field]; !ok {
				continue
			}
			ft := item.FieldTokens[field]
			fieldScore += ft.Weight * termFrequency(term, ft.Tokens)
		}
		scores[id] += fieldScore * idf * multiplier
	}
}

func computeIDF(totalDocs, docFreq int) float64 {
	return math.Log(float64(totalDocs) / float64(docFreq))
}

func termFrequency(term string, tokens []string) float64 {
	count := 0
	for _, t := range tokens {
		if t == term {
			count++
		}
	}
	return float64(count) / float64(len(tokens))
}

func withDefaults(opts Options) Options {
	if opts.Limit < 1 {
		opts.Limit = DefaultLimit
	}
	if opts.FuzzyThreshold <= 0 {
		opts.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if opts.BoostExact <= 0 {
		opts.BoostExact = DefaultBoostExact
	}
	return opts
}
