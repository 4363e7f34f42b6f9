// Package fifoset provides an ordered, deduplicated queue of comparable keys.
//
// A Set pops keys in the order they were first pushed and answers membership
// queries in constant time. All methods are safe for concurrent use.
package fifoset

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Set is a FIFO queue in which a key appears at most once.
// The zero value is not usable; create one with New.
type Set[K comparable] struct {
	mu    sync.Mutex
	items *orderedmap.OrderedMap[K, struct{}]
}

// New returns an empty Set.
func New[K comparable]() *Set[K] {
	return &Set[K]{items: orderedmap.New[K, struct{}]()}
}

// Push appends key at the tail unless it is already queued.
// It reports whether the key was inserted.
func (s *Set[K]) Push(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, present := s.items.Get(key); present {
		return false
	}
	s.items.Set(key, struct{}{})
	return true
}

// Pop removes and returns the oldest key.
func (s *Set[K]) Pop() (K, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldest := s.items.Oldest()
	if oldest == nil {
		var zero K
		return zero, false
	}
	s.items.Delete(oldest.Key)
	return oldest.Key, true
}

// Remove deletes key wherever it sits in the queue.
func (s *Set[K]) Remove(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, present := s.items.Delete(key)
	return present
}

func (s *Set[K]) Contains(key K) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, present := s.items.Get(key)
	return present
}

func (s *Set[K]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Len()
}

func (s *Set[K]) IsEmpty() bool {
	return s.Len() == 0
}

// Clear drops every queued key.
func (s *Set[K]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = orderedmap.New[K, struct{}]()
}

// Keys returns the queued keys, oldest first.
func (s *Set[K]) Keys() []K {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]K, 0, s.items.Len())
	for pair := s.items.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}
