package analytics

import (
	"sort"
	"sync"
	"time"
)

// AggregatedStats summarises search activity since process start.
type AggregatedStats struct {
	TotalSearches     int64        `json:"total_searches"`
	TotalSuggestions  int64        `json:"total_suggestions"`
	CacheHits         int64        `json:"cache_hits"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

const (
	// maxLatencySamples bounds the latency ring used for percentiles.
	maxLatencySamples = 10000
	// maxTrackedQueries bounds the distinct queries counted per collection.
	maxTrackedQueries = 1000
)

// Aggregator folds SearchEvents into per-collection counters.
type Aggregator struct {
	mu          sync.Mutex
	collections map[string]*collectionStats
	startTime   time.Time
	now         func() time.Time
	maxQueries  int
}

type collectionStats struct {
	searches    int64
	suggestions int64
	cacheHits   int64
	zeroResults int64
	latencies   []int64
	next        int
	queries     map[string]int64
	zeroQueries map[string]int64
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		collections: make(map[string]*collectionStats),
		startTime:   time.Now(),
		now:         time.Now,
		maxQueries:  maxTrackedQueries,
	}
}

// Record folds one event into the counters.
func (a *Aggregator) Record(event SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cs, ok := a.collections[event.Collection]
	if !ok {
		cs = &collectionStats{
			queries:     make(map[string]int64),
			zeroQueries: make(map[string]int64),
		}
		a.collections[event.Collection] = cs
	}

	if event.Type == EventSuggest {
		cs.suggestions++
		return
	}
	cs.searches++
	if event.CacheHit {
		cs.cacheHits++
	}
	countQuery(cs.queries, event.Query, a.maxQueries)
	if event.Results == 0 {
		cs.zeroResults++
		countQuery(cs.zeroQueries, event.Query, a.maxQueries)
	}
	if len(cs.latencies) < maxLatencySamples {
		cs.latencies = append(cs.latencies, event.LatencyMs)
	} else {
		cs.latencies[cs.next] = event.LatencyMs
		cs.next = (cs.next + 1) % maxLatencySamples
	}
}

// Stats summarises one collection, or all of them when collection is "".
func (a *Aggregator) Stats(collection string) AggregatedStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	var stats AggregatedStats
	var latencies []int64
	queries := make(map[string]int64)
	zeroQueries := make(map[string]int64)
	for name, cs := range a.collections {
		if collection != "" && name != collection {
			continue
		}
		stats.TotalSearches += cs.searches
		stats.TotalSuggestions += cs.suggestions
		stats.CacheHits += cs.cacheHits
		stats.ZeroResultCount += cs.zeroResults
		latencies = append(latencies, cs.latencies...)
		for q, n := range cs.queries {
			queries[q] += n
		}
		for q, n := range cs.zeroQueries {
			zeroQueries[q] += n
		}
	}

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var sum int64
		for _, l := range latencies {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(latencies))
		stats.P50LatencyMs = percentile(latencies, 50)
		stats.P95LatencyMs = percentile(latencies, 95)
		stats.P99LatencyMs = percentile(latencies, 99)
	}
	stats.TopQueries = topN(queries, 10)
	stats.ZeroResultQueries = topN(zeroQueries, 10)
	if elapsed := a.now().Sub(a.startTime).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSearches) / elapsed
	}
	return stats
}

// countQuery increments q in counts. A new query arriving when counts is
// full replaces the least frequent entry.
func countQuery(counts map[string]int64, q string, limit int) {
	if _, ok := counts[q]; !ok && limit > 0 && len(counts) >= limit {
		var victim string
		var lowest int64 = -1
		for k, n := range counts {
			if lowest < 0 || n < lowest || (n == lowest && k > victim) {
				victim, lowest = k, n
			}
		}
		delete(counts, victim)
	}
	counts[q]++
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then query, so equal counts list deterministically.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
