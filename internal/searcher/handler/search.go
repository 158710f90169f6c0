package handler

import (
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kikaihonyaku/cocosumo-sub004/internal/analytics"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/record"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/searcher/cache"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/searcher/highlight"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/searcher/ranker"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/searcher/suggest"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/logger"
)

// Hit is one search result on the wire.
type Hit struct {
	ID         string            `json:"id"`
	Score      float64           `json:"score"`
	Item       record.Map        `json:"item"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// SearchResponse is the body of a search response.
type SearchResponse struct {
	Collection string `json:"collection"`
	Query      string `json:"query"`
	Version    string `json:"version"`
	Total      int    `json:"total"`
	CacheHit   bool   `json:"cache_hit"`
	TookMs     int64  `json:"took_ms"`
	Results    []Hit  `json:"results"`
}

// SuggestResponse is the body of an autocomplete response.
type SuggestResponse struct {
	Collection  string          `json:"collection"`
	Prefix      string          `json:"prefix"`
	Suggestions []suggest.Entry `json:"suggestions"`
}

// Search serves GET /api/v1/collections/{name}/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	name := r.PathValue("name")

	params := r.URL.Query()
	if !params.Has("q") {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	query := params.Get("q")
	opts, msg := h.searchOptions(params.Get("limit"), params.Get("threshold"), params.Get("fuzzy"), params.Get("fuzzyThreshold"))
	if msg != "" {
		h.writeError(w, http.StatusBadRequest, msg)
		return
	}

	snap, err := h.engine.Snapshot(name)
	if err != nil {
		h.observeSearch(name, opts.Fuzzy, "error", 0, start)
		h.writeAppError(w, err)
		return
	}

	compute := func() []cache.Hit {
		return cache.FromResults(snap.Search(query, opts))
	}
	var hits []cache.Hit
	cacheHit := false
	if h.cache != nil && strings.TrimSpace(query) != "" {
		hits, cacheHit = h.cache.GetOrCompute(ctx, cache.Key{
			Collection: name,
			Version:    snap.Version,
			Query:      query,
			Options:    opts,
		}, compute)
	} else {
		hits = compute()
	}

	var highlightFields []string
	if v := params.Get("highlight"); v != "" {
		highlightFields = strings.Split(v, ",")
	}
	resp := SearchResponse{
		Collection: name,
		Query:      query,
		Version:    snap.Version,
		CacheHit:   cacheHit,
		Results:    make([]Hit, 0, len(hits)),
	}
	for _, hit := range hits {
		item, ok := snap.Index.Items[hit.ID]
		if !ok {
			continue
		}
		resp.Results = append(resp.Results, Hit{
			ID:         hit.ID,
			Score:      hit.Score,
			Item:       item.Item,
			Highlights: highlightItem(item.Item, query, highlightFields),
		})
	}
	resp.Total = len(resp.Results)
	resp.TookMs = time.Since(start).Milliseconds()

	if sessionID := r.Header.Get(SessionHeader); sessionID != "" && h.histories != nil {
		h.histories.For(sessionID).Add(query)
	}

	resultType := "hit"
	eventType := analytics.EventSearch
	if resp.Total == 0 {
		resultType = "zero_result"
		eventType = analytics.EventZeroResult
	}
	h.observeSearch(name, opts.Fuzzy, resultType, resp.Total, start)
	log.Info("search completed",
		"collection", name,
		"query", query,
		"results", resp.Total,
		"fuzzy", opts.Fuzzy,
		"cache_hit", cacheHit,
		"latency_ms", resp.TookMs,
	)
	if h.collector != nil {
		h.collector.Track(analytics.SearchEvent{
			Type:       eventType,
			Collection: name,
			Query:      query,
			Results:    resp.Total,
			Fuzzy:      opts.Fuzzy,
			CacheHit:   cacheHit,
			LatencyMs:  resp.TookMs,
			RequestID:  logger.RequestID(ctx),
			SessionID:  r.Header.Get(SessionHeader),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Suggest serves GET /api/v1/collections/{name}/suggest.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	prefix := r.URL.Query().Get("prefix")

	opts := suggest.Options{MinLength: h.cfg.SuggestMinLen, Limit: h.cfg.SuggestLimit}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, ok := parsePositiveInt(v)
		if !ok {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		opts.Limit = min(n, h.cfg.MaxResults)
	}

	snap, err := h.engine.Snapshot(name)
	if err != nil {
		h.writeAppError(w, err)
		return
	}
	entries := snap.Suggest(prefix, opts)
	if h.metrics != nil {
		h.metrics.SuggestionsTotal.WithLabelValues(name).Inc()
	}
	if h.collector != nil {
		h.collector.Track(analytics.SearchEvent{
			Type:       analytics.EventSuggest,
			Collection: name,
			Query:      prefix,
			Results:    len(entries),
			RequestID:  logger.RequestID(r.Context()),
		})
	}
	h.writeJSON(w, http.StatusOK, SuggestResponse{Collection: name, Prefix: prefix, Suggestions: entries})
}

// Rebuild serves POST /api/v1/collections/{name}/rebuild.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	snap, err := h.engine.Rebuild(r.Context(), name)
	if err != nil {
		logger.FromContext(r.Context()).Error("rebuild request failed", "collection", name, "error", err)
		h.writeAppError(w, err)
		return
	}
	stats := snap.Index.Stats()
	h.writeJSON(w, http.StatusOK, map[string]any{
		"collection": name,
		"version":    snap.Version,
		"documents":  stats.Documents,
		"terms":      stats.Terms,
		"built_at":   snap.BuiltAt,
	})
}

// searchOptions starts from the configured defaults and applies request
// overrides. A non-empty message reports an invalid parameter.
func (h *Handler) searchOptions(limit, threshold, fuzzy, fuzzyThreshold string) (ranker.Options, string) {
	opts := ranker.Options{
		Limit:          h.cfg.DefaultLimit,
		Threshold:      h.cfg.Threshold,
		Fuzzy:          h.cfg.Fuzzy,
		FuzzyThreshold: h.cfg.FuzzyThreshold,
		BoostExact:     h.cfg.BoostExact,
	}
	if limit != "" {
		n, ok := parsePositiveInt(limit)
		if !ok {
			return opts, "limit must be a positive integer"
		}
		opts.Limit = min(n, h.cfg.MaxResults)
	}
	if threshold != "" {
		f, err := strconv.ParseFloat(threshold, 64)
		if err != nil || f < 0 {
			return opts, "threshold must be a non-negative number"
		}
		opts.Threshold = f
	}
	if fuzzy != "" {
		b, err := strconv.ParseBool(fuzzy)
		if err != nil {
			return opts, "fuzzy must be a boolean"
		}
		opts.Fuzzy = b
	}
	if fuzzyThreshold != "" {
		f, err := strconv.ParseFloat(fuzzyThreshold, 64)
		if err != nil || f <= 0 || f > 1 {
			return opts, "fuzzyThreshold must be in (0, 1]"
		}
		opts.FuzzyThreshold = f
	}
	return opts, ""
}

func (h *Handler) observeSearch(collection string, fuzzy bool, resultType string, results int, start time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(collection, resultType).Inc()
	if resultType == "error" {
		return
	}
	h.metrics.SearchLatency.WithLabelValues(collection, strconv.FormatBool(fuzzy)).Observe(time.Since(start).Seconds())
	h.metrics.SearchResultsCount.WithLabelValues(collection).Observe(float64(results))
}

// highlightItem marks the query in each requested field. Matches are found
// on the raw text; the pieces are HTML-escaped before markup is inserted.
func highlightItem(item record.Map, query string, fields []string) map[string]string {
	query = strings.TrimSpace(query)
	if len(fields) == 0 || query == "" {
		return nil
	}
	out := make(map[string]string, len(fields))
	opts := highlight.DefaultOptions()
	opts.Escape = html.EscapeString
	for _, field := range fields {
		field = strings.TrimSpace(field)
		value, ok := item.Lookup(field)
		if !ok {
			continue
		}
		out[field] = highlight.Matches(record.Stringify(value), query, opts)
	}
	return out
}
