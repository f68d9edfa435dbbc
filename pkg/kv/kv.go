package kv

import (
	"container/list"
	"sync"
)

type entry[V any] struct {
	key   string
	value V
}

// Store is a minimal in-memory map keyed by string that remembers insertion
// order. Values are never expired or evicted; only Delete removes them.
type Store[V any] struct {
	mu   sync.RWMutex
	data map[string]*list.Element
	ll   *list.List
}

func NewStore[V any]() *Store[V] {
	return &Store[V]{
		data: make(map[string]*list.Element),
		ll:   list.New(),
	}
}

// Insert adds key with val. It reports false and leaves the store untouched
// when key is already present.
func (s *Store[V]) Insert(key string, val V) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; ok {
		return false
	}
	s.data[key] = s.ll.PushBack(&entry[V]{key: key, value: val})
	return true
}

func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if el, ok := s.data[key]; ok {
		return el.Value.(*entry[V]).value, true
	}
	var zero V
	return zero, false
}

// Delete removes key and returns the value it held.
func (s *Store[V]) Delete(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.data[key]
	if !ok {
		var zero V
		return zero, false
	}
	e := el.Value.(*entry[V])
	delete(s.data, key)
	s.ll.Remove(el)
	return e.value, true
}

func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Keys returns all keys in insertion order.
func (s *Store[V]) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.data))
	for el := s.ll.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry[V]).key)
	}
	return out
}
