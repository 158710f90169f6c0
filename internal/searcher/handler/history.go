package handler

import (
	"net/http"

	"github.com/kikaihonyaku/cocosumo-sub004/internal/searcher/history"
)

type historyResponse struct {
	Queries []string `json:"queries"`
}

// sessionHistory resolves the caller's history or writes a 400.
func (h *Handler) sessionHistory(w http.ResponseWriter, r *http.Request) (*history.History, bool) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		h.writeError(w, http.StatusBadRequest, SessionHeader+" header is required")
		return nil, false
	}
	return h.histories.For(sessionID), true
}

// GetHistory serves GET /api/v1/history, most recent first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	hist, ok := h.sessionHistory(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, historyResponse{Queries: hist.Get()})
}

// SearchHistory serves GET /api/v1/history/search?q=.
func (h *Handler) SearchHistory(w http.ResponseWriter, r *http.Request) {
	hist, ok := h.sessionHistory(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, historyResponse{Queries: hist.Search(r.URL.Query().Get("q"))})
}

// RemoveHistory serves DELETE /api/v1/history/{query}.
func (h *Handler) RemoveHistory(w http.ResponseWriter, r *http.Request) {
	hist, ok := h.sessionHistory(w, r)
	if !ok {
		return
	}
	hist.Remove(r.PathValue("query"))
	w.WriteHeader(http.StatusNoContent)
}

// ClearHistory serves DELETE /api/v1/history.
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	hist, ok := h.sessionHistory(w, r)
	if !ok {
		return
	}
	hist.Clear()
	w.WriteHeader(http.StatusNoContent)
}
