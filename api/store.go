package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry[T any] struct {
	value   T
	expires time.Time
}

// memoryStore keeps short-lived values (uploaded tables, result files) between
// requests of one operator session.
type memoryStore[T any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]entry[T]
	now   func() time.Time
}

func newMemoryStore[T any](ttl time.Duration) *memoryStore[T] {
	return &memoryStore[T]{
		ttl:   ttl,
		items: make(map[string]entry[T]),
		now:   time.Now,
	}
}

// Put stores v under a fresh id
func (s *memoryStore[T]) Put(v T) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictLocked()
	id := uuid.NewString()
	s.items[id] = entry[T]{value: v, expires: s.now().Add(s.ttl)}
	return id
}

func (s *memoryStore[T]) Get(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[id]
	if !ok || s.now().After(e.expires) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Take returns the value and forgets it
func (s *memoryStore[T]) Take(id string) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[id]
	delete(s.items, id)
	if !ok || s.now().After(e.expires) {
		var zero T
		return zero, false
	}
	return e.value, true
}

func (s *memoryStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *memoryStore[T]) evictLocked() {
	now := s.now()
	for id, e := range s.items {
		if now.After(e.expires) {
			delete(s.items, id)
		}
	}
}
