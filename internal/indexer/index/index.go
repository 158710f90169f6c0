// Package index builds the in-memory inverted index the ranker and the
// suggestion engine query. An index is immutable once built: a changed
// record set is handled by building a new index and dropping the old one.
package index

import (
	"strconv"

	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/record"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/tokenizer"
)

// IDField is the field used as an item's identifier when present.
const IDField = "id"

// BuildOptions controls how fields are weighted and tokenised.
type BuildOptions struct {
	// Weights holds per-field weights; fields not listed weigh 1.
	Weights         map[string]float64
	TokenizeOptions tokenizer.Options
}

// DefaultBuildOptions returns unit weights and the default tokenizer.
func DefaultBuildOptions() BuildOptions {
	return BuildOptions{TokenizeOptions: tokenizer.DefaultOptions()}
}

// SearchIndex is an inverted index over one record collection. All fields
// are read-only after Build returns, which makes an index safe to share
// between goroutines.
type SearchIndex[T any] struct {
	Items         map[string]*IndexedItem[T]
	Inverted      map[string]PostingMap
	DocumentCount int
	FieldWeights  map[string]float64
	// Fields lists the indexed field paths in the order given to Build.
	Fields []string
	// Order lists item IDs in insertion order; ranking ties keep it.
	Order []string
	// Terms lists the vocabulary in the order tokens were first seen.
	Terms []string

	tokens int
}

// Build indexes items over the given dot-path fields. Missing or nil
// fields are skipped. An item's ID is its "id" field when present and
// otherwise its position in items; when two items share an ID the first
// one wins.
func Build[T record.FieldAccessible](items []T, fields []string, opts BuildOptions) *SearchIndex[T] {
	idx := &SearchIndex[T]{
		Items:        make(map[string]*IndexedItem[T], len(items)),
		Inverted:     make(map[string]PostingMap),
		FieldWeights: make(map[string]float64, len(fields)),
		Fields:       append([]string(nil), fields...),
		Order:        make([]string, 0, len(items)),
	}
	for _, field := range fields {
		weight, ok := opts.Weights[field]
		if !ok {
			weight = 1
		}
		idx.FieldWeights[field] = weight
	}

	for pos, item := range items {
		id := itemID(item, pos)
		if _, dup := idx.Items[id]; dup {
			continue
		}
		indexed := &IndexedItem[T]{
			ID:          id,
			Item:        item,
			Position:    pos,
			FieldTokens: make(map[string]FieldTokens, len(fields)),
		}
		for _, field := range fields {
			value, ok := item.Lookup(field)
			if !ok {
				continue
			}
			text := record.Stringify(value)
			tokens := tokenizer.Tokenize(text, opts.TokenizeOptions)
			indexed.FieldTokens[field] = FieldTokens{
				Tokens: tokens,
				Weight: idx.FieldWeights[field],
				Text:   text,
			}
			for _, token := range tokens {
				idx.addOccurrence(token, id, field)
			}
			idx.tokens += len(tokens)
		}
		idx.Items[id] = indexed
		idx.Order = append(idx.Order, id)
	}
	idx.DocumentCount = len(idx.Items)
	return idx
}

func (idx *SearchIndex[T]) addOccurrence(token, id, field string) {
	postings, exists := idx.Inverted[token]
	if !exists {
		postings = make(PostingMap)
		idx.Inverted[token] = postings
		idx.Terms = append(idx.Terms, token)
	}
	p, exists := postings[id]
	if !exists {
		p = &Posting{Fields: make(map[string]struct{}, 1)}
		postings[id] = p
	}
	p.Fields[field] = struct{}{}
	p.Count++
}

// DocFreq returns the number of items containing token.
func (idx *SearchIndex[T]) DocFreq(token string) int {
	if idx == nil {
		return 0
	}
	return len(idx.Inverted[token])
}

// Stats reports the size of the index.
func (idx *SearchIndex[T]) Stats() Stats {
	if idx == nil {
		return Stats{}
	}
	return Stats{
		Documents: idx.DocumentCount,
		Terms:     len(idx.Terms),
		Tokens:    idx.tokens,
	}
}

func itemID(item record.FieldAccessible, pos int) string {
	if v, ok := item.Lookup(IDField); ok {
		if id := record.Stringify(v); id != "" {
			return id
		}
	}
	return strconv.Itoa(pos)
}
