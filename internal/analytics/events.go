package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventSuggest    EventType = "suggest"
)

// SearchEvent describes one served search or suggestion request.
type SearchEvent struct {
	Type       EventType `json:"type"`
	Collection string    `json:"collection"`
	Query      string    `json:"query"`
	Results    int       `json:"results"`
	Fuzzy      bool      `json:"fuzzy,omitempty"`
	CacheHit   bool      `json:"cache_hit"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
	SessionID  string    `json:"session_id,omitempty"`
}
