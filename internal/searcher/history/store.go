package history

import (
	"container/list"
	"sync"
)

// Store hands out one History per session key. It keeps at most maxSessions
// histories and forgets the least recently used one when full.
type Store struct {
	mu          sync.Mutex
	sessions    map[string]*list.Element
	lru         *list.List
	maxItems    int
	maxSessions int
}

type session struct {
	key     string
	history *History
}

// NewStore creates a Store whose histories hold maxItems queries each.
func NewStore(maxItems, maxSessions int) *Store {
	if maxSessions <= 0 {
		maxSessions = 1000
	}
	return &Store{
		sessions:    make(map[string]*list.Element),
		lru:         list.New(),
		maxItems:    maxItems,
		maxSessions: maxSessions,
	}
}

// For returns the History for key, creating it on first use.
func (s *Store) For(key string) *History {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.sessions[key]; ok {
		s.lru.MoveToFront(el)
		return el.Value.(*session).history
	}
	h := New(s.maxItems)
	s.sessions[key] = s.lru.PushFront(&session{key: key, history: h})
	if s.lru.Len() > s.maxSessions {
		oldest := s.lru.Back()
		s.lru.Remove(oldest)
		delete(s.sessions, oldest.Value.(*session).key)
	}
	return h
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}
