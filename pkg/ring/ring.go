// Package ring assigns monitored entities to observer nodes with consistent
// hashing, so that adding or removing an observer only moves the entities
// it owned.
package ring

import (
	"encoding/binary"
	"hash/fnv"
	"slices"
	"sort"
	"sync"
)

type Hasher func([]byte) uint32

// HashRing maps entity ids to observers. Each observer is placed on the ring
// at vnodes points.
type HashRing struct {
	mu        sync.RWMutex
	vnodes    int
	hash      Hasher
	points    []uint32          // sorted
	owners    map[uint32]string // point -> observer id
	observers map[string]string // observer id -> addr
}

func New(vnodes int, h Hasher) *HashRing {
	if vnodes <= 0 {
		vnodes = 128
	}
	if h == nil {
		h = FNV32a
	}
	return &HashRing{
		vnodes:    vnodes,
		hash:      h,
		owners:    make(map[uint32]string),
		observers: make(map[string]string),
	}
}

// Add places an observer on the ring. Re-adding only updates its address.
func (r *HashRing) Add(id, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.observers[id]; ok {
		r.observers[id] = addr
		return
	}
	r.observers[id] = addr
	for i := 0; i < r.vnodes; i++ {
		pt := r.hash(pointKey(id, i))
		r.owners[pt] = id
		r.points = append(r.points, pt)
	}
	slices.Sort(r.points)
}

func (r *HashRing) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.observers[id]; !ok {
		return
	}
	delete(r.observers, id)
	r.rebuild()
}

// Clear removes every observer.
func (r *HashRing) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.observers)
	r.rebuild()
}

// Replace swaps the observer set for observers in one step.
func (r *HashRing) Replace(observers map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = make(map[string]string, len(observers))
	for id, addr := range observers {
		r.observers[id] = addr
	}
	r.rebuild()
}

func (r *HashRing) rebuild() {
	r.points = r.points[:0]
	clear(r.owners)
	for id := range r.observers {
		for i := 0; i < r.vnodes; i++ {
			pt := r.hash(pointKey(id, i))
			r.owners[pt] = id
			r.points = append(r.points, pt)
		}
	}
	slices.Sort(r.points)
}

// Lookup returns the primary observer for key, or "" on an empty ring.
func (r *HashRing) Lookup(key []byte) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.points) == 0 {
		return ""
	}
	return r.owners[r.points[r.search(key)]]
}

// LookupN returns up to n distinct observers for key, primary first.
func (r *HashRing) LookupN(key []byte, n int) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.points) == 0 || n <= 0 {
		return nil
	}
	idx := r.search(key)

	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for i := 0; i < len(r.points) && len(out) < n; i++ {
		id := r.owners[r.points[(idx+i)%len(r.points)]]
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// Owns reports whether observer is among the n observers of entity. An empty
// ring owns nothing.
func (r *HashRing) Owns(entity, observer string, n int) bool {
	return slices.Contains(r.LookupN([]byte(entity), n), observer)
}

func (r *HashRing) search(key []byte) int {
	h := r.hash(key)
	// first point >= h, wrap if needed
	idx := sort.Search(len(r.points), func(i int) bool { return r.points[i] >= h })
	if idx == len(r.points) {
		idx = 0
	}
	return idx
}

func (r *HashRing) Addr(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.observers[id]
	return a, ok
}

// Nodes returns a copy of the observer id -> addr table.
func (r *HashRing) Nodes() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.observers))
	for id, addr := range r.observers {
		out[id] = addr
	}
	return out
}

func (r *HashRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.observers)
}

// FNV32a is the default Hasher.
func FNV32a(b []byte) uint32 {
	h := fnv.New32a()
	_, _ = h.Write(b)
	return h.Sum32()
}

func pointKey(id string, i int) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(i))
	return append([]byte(id), buf[:]...)
}
