package subscriptions

import "sync"

// Set is a unique collection of topics that keeps insertion order for display.
type Set struct {
	mu     sync.RWMutex
	order  []string
	member map[string]struct{}
}

// NewSet returns an empty set seeded with topics.
func NewSet(topics ...string) *Set {
	s := &Set{member: map[string]struct{}{}}
	for _, topic := range topics {
		s.Add(topic)
	}
	return s
}

// Add inserts topic and reports whether it was new.
func (s *Set) Add(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.member[topic]; ok {
		return false
	}
	s.member[topic] = struct{}{}
	s.order = append(s.order, topic)
	return true
}

// Remove drops topic and reports whether it was present.
func (s *Set) Remove(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.member[topic]; !ok {
		return false
	}
	delete(s.member, topic)
	for i, existing := range s.order {
		if existing == topic {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Contains reports membership.
func (s *Set) Contains(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.member[topic]
	return ok
}

// Len returns the number of topics.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Topics returns the topics in insertion order.
func (s *Set) Topics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Clear empties the set.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.member = map[string]struct{}{}
}
