package entity

import (
	"sync"
)

// Store tracks entities of a single kind by identifier.
//
// Reads may run concurrently with each other. Writes are serialized within a Store, but
// independent Stores never block one another.
type Store[S any, E record[S]] struct {
	lock     sync.RWMutex
	entities map[string]E
	create   func(id string, state S) E
}

// NewStore returns an empty Store that uses create to construct entities for new identifiers.
func NewStore[S any, E record[S]](create func(id string, state S) E) *Store[S, E] {
	return &Store[S, E]{
		entities: make(map[string]E),
		create:   create,
	}
}

// Upsert records state for id and returns the entity that holds it.
//
// If id is already tracked, state is applied to the existing entity instead of replacing it, so
// references obtained from earlier calls to Get observe the change.
func (s *Store[S, E]) Upsert(id string, state S) E {
	s.lock.Lock()
	defer s.lock.Unlock()

	if e, ok := s.entities[id]; ok {
		e.setState(state)
		return e
	}
	e := s.create(id, state)
	s.entities[id] = e
	return e
}

// Remove stops tracking id and returns the entity that was removed, if any.
func (s *Store[S, E]) Remove(id string) (E, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()

	e, ok := s.entities[id]
	if ok {
		delete(s.entities, id)
	}
	return e, ok
}

// Get returns the entity tracked under id.
func (s *Store[S, E]) Get(id string) (E, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	e, ok := s.entities[id]
	return e, ok
}

// All returns a snapshot of every tracked entity in unspecified order. The returned slice belongs
// to the caller.
func (s *Store[S, E]) All() []E {
	s.lock.RLock()
	defer s.lock.RUnlock()

	all := make([]E, 0, len(s.entities))
	for _, e := range s.entities {
		all = append(all, e)
	}
	return all
}

// Filter returns a snapshot of the tracked entities for which keep returns true. keep must not
// call back into s.
func (s *Store[S, E]) Filter(keep func(E) bool) []E {
	s.lock.RLock()
	defer s.lock.RUnlock()

	var matches []E
	for _, e := range s.entities {
		if keep(e) {
			matches = append(matches, e)
		}
	}
	return matches
}

func (s *Store[S, E]) Len() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.entities)
}

// Clear stops tracking every entity.
func (s *Store[S, E]) Clear() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.entities = make(map[string]E)
}
