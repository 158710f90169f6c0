package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kikaihonyaku/cocosumo-sub004/internal/indexer/record"
	"github.com/kikaihonyaku/cocosumo-sub004/internal/searcher/ranker"
)

const maxFilterBody = 4 << 20

// FilterRequest ranks a caller-supplied list without an index.
type FilterRequest struct {
	Query    string             `json:"query"`
	Fields   []string           `json:"fields"`
	Weights  map[string]float64 `json:"weights,omitempty"`
	MinScore float64            `json:"minScore,omitempty"`
	Items    []record.Map       `json:"items"`
}

type FilterResponse struct {
	Query   string `json:"query"`
	Total   int    `json:"total"`
	Results []Hit  `json:"results"`
}

// Filter serves POST /api/v1/filter.
func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFilterBody))
	dec.UseNumber()
	var req FilterRequest
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		h.writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if len(req.Fields) == 0 {
		h.writeError(w, http.StatusBadRequest, "fields must not be empty")
		return
	}

	results := ranker.Filter(req.Items, req.Query, req.Fields, req.Weights, req.MinScore)
	resp := FilterResponse{Query: req.Query, Total: len(results), Results: make([]Hit, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, Hit{ID: res.ID, Score: res.Score, Item: res.Item})
	}
	h.writeJSON(w, http.StatusOK, resp)
}
