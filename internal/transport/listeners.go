package transport

import (
	"sort"
	"sync"
)

// listenerSet is a multi-listener registry keyed by event name. It does not
// deduplicate: guarding against double binding is the router's job.
type listenerSet struct {
	mu     sync.RWMutex
	nextID uint64
	byName map[string]map[uint64]Handler
}

func newListenerSet() *listenerSet {
	return &listenerSet{byName: make(map[string]map[uint64]Handler)}
}

func (s *listenerSet) add(event string, h Handler) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	m, ok := s.byName[event]
	if !ok {
		m = make(map[uint64]Handler)
		s.byName[event] = m
	}
	m[id] = h
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if m, ok := s.byName[event]; ok {
				delete(m, id)
				if len(m) == 0 {
					delete(s.byName, event)
				}
			}
		})
	}
}

func (s *listenerSet) snapshot(event string) []Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.byName[event]
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Handler, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func (s *listenerSet) count(event string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byName[event])
}
