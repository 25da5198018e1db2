package realtime

import "sync"

// seenSet remembers recently applied record ids so an update arriving via
// both push and poll is emitted exactly once. Bounded FIFO eviction.
type seenSet struct {
	mu    sync.Mutex
	limit int
	set   map[string]struct{}
	ring  []string
	next  int
}

func newSeenSet(limit int) *seenSet {
	if limit <= 0 {
		limit = 1024
	}
	return &seenSet{
		limit: limit,
		set:   make(map[string]struct{}, limit),
		ring:  make([]string, limit),
	}
}

// Observe reports whether the id is new and records it.
func (s *seenSet) Observe(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.set[id]; ok {
		return false
	}

	if old := s.ring[s.next]; old != "" {
		delete(s.set, old)
	}
	s.ring[s.next] = id
	s.next = (s.next + 1) % s.limit
	s.set[id] = struct{}{}
	return true
}
