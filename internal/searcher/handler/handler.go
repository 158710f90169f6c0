// Package handler serves the search HTTP API: ranked search, autocomplete,
// index rebuilds, ad-hoc filtering and per-session search history.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/kikaihonyaku/cocosumo-sub004/internal/analytics"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/searcher/cache"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/searcher/history"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/config"
	apperrors "github.com/kikaihonyaku/cocosumo-sub004/pkg/errors"
	"github.com/kikaihonyaku/cocosumo-sub004/pkg/metrics"
)

// SessionHeader identifies the caller's search history.
const SessionHeader = "X-Session-ID"

// Engine is the part of the index engine the handler needs.
type Engine interface {
	Snapshot(name string) (*indexer.Snapshot, error)
	Rebuild(ctx context.Context, name string) (*indexer.Snapshot, error)
}

type Handler struct {
	engine    Engine
	cache     *cache.ResultCache
	collector *analytics.Collector
	histories *history.Store
	cfg       config.SearchConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Handler. resultCache, collector and m may be nil.
func New(engine Engine, resultCache *cache.ResultCache, collector *analytics.Collector, histories *history.Store, cfg config.SearchConfig, m *metrics.Metrics) *Handler {
	return &Handler{
		engine:    engine,
		cache:     resultCache,
		collector: collector,
		histories: histories,
		cfg:       cfg,
		metrics:   m,
		logger:    slog.Default().With("component", "search-handler"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/collections/{name}/search", h.Search)
	mux.HandleFunc("GET /api/v1/collections/{name}/suggest", h.Suggest)
	mux.HandleFunc("POST /api/v1/collections/{name}/rebuild", h.Rebuild)
	mux.HandleFunc("POST /api/v1/filter", h.Filter)
	mux.HandleFunc("GET /api/v1/history", h.GetHistory)
	mux.HandleFunc("DELETE /api/v1/history", h.ClearHistory)
	mux.HandleFunc("GET /api/v1/history/search", h.SearchHistory)
	mux.HandleFunc("DELETE /api/v1/history/{query}", h.RemoveHistory)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
}

// CacheStats reports process-local result cache counters.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": hitRate,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps err to a status code. Messages of AppErrors are
// shown to the caller unless the status is 500.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := http.StatusText(status)
	var appErr *apperrors.AppError
	if status != http.StatusInternalServerError && errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeError(w, status, message)
}

func parsePositiveInt(raw string) (int, bool) {
	n, err := strconv.Atoi(raw)
	return n, err == nil && n > 0
}
