package ranker

import (
	"sort"
	"strconv"
	"strings"

	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/index"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/record"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/tokenizer"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/searcher/similarity"
)

// exactFieldBoost multiplies a field's contribution when its whole text
// equals the query.
const exactFieldBoost = 2.0

// RelevanceScore scores a single item against query without an index. Each
// query token is fuzzy-matched against each present field; scores are
// weighted, fields equal to the whole query count double, and the sum is
// normalised by the total weight of the fields that were present.
func RelevanceScore(query string, item record.FieldAccessible, fields []string, weights map[string]float64) float64 {
	query = strings.TrimSpace(query)
	if query == "" || item == nil {
		return 0
	}
	queryTokens := tokenizer.Tokenize(query, tokenizer.DefaultOptions())
	lowerQuery := strings.ToLower(query)

	var total, totalWeight float64
	for _, field := range fields {
		value, ok := item.Lookup(field)
		if !ok {
			continue
		}
		text := record.Stringify(value)
		weight := weightFor(weights, field)
		totalWeight += weight

		fieldScore := 0.0
		for _, token := range queryTokens {
			m := similarity.FuzzyMatch(token, text, similarity.FuzzyOptions{})
			if m.Match {
				fieldScore += m.Score * weight
			}
		}
		if strings.ToLower(strings.TrimSpace(text)) == lowerQuery {
			fieldScore *= exactFieldBoost
		}
		total += fieldScore
	}
	if totalWeight == 0 {
		return 0
	}
	return total / totalWeight
}

// Filter ranks a short in-memory list with RelevanceScore, keeping items
// scoring above minScore. Equal scores keep list order.
func Filter[T record.FieldAccessible](items []T, query string, fields []string, weights map[string]float64, minScore float64) []Result[T] {
	results := make([]Result[T], 0, len(items))
	for pos, item := range items {
		score := RelevanceScore(query, item, fields, weights)
		if score <= minScore {
			continue
		}
		results = append(results, Result[T]{ID: listID(item, pos), Item: item, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

func weightFor(weights map[string]float64, field string) float64 {
	if w, ok := weights[field]; ok {
		return w
	}
	return 1
}

func listID(item record.FieldAccessible, pos int) string {
	if v, ok := item.Lookup(index.IDField); ok {
		if id := record.Stringify(v); id != "" {
			return id
		}
	}
	return strconv.Itoa(pos)
}
