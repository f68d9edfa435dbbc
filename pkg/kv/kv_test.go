package kv

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

func TestInsertGetDelete(t *testing.T) {
	s := NewStore[int]()

	type row struct {
		k string
		v int
	}
	data := []row{{"a", 1}, {"b", 2}, {"c", 3}}

	for _, r := range data {
		if !s.Insert(r.k, r.v) {
			t.Fatalf("Insert(%q) = false, want true", r.k)
		}
	}

	if got := s.Len(); got != len(data) {
		t.Fatalf("Len = %d, want %d", got, len(data))
	}

	for _, r := range data {
		got, ok := s.Get(r.k)
		if !ok || got != r.v {
			t.Fatalf("Get(%q) = (%d,%v), want (%d,true)", r.k, got, ok, r.v)
		}
	}

	if v, ok := s.Delete("b"); !ok || v != 2 {
		t.Fatalf("Delete(b) = (%d,%v), want (2,true)", v, ok)
	}
	if _, ok := s.Get("b"); ok {
		t.Fatalf("Get(b) ok after delete")
	}
	if _, ok := s.Delete("b"); ok {
		t.Fatalf("second Delete(b) = true, want false")
	}
}

func TestInsertRejectsDuplicate(t *testing.T) {
	s := NewStore[string]()
	s.Insert("x", "one")
	if s.Insert("x", "two") {
		t.Fatal("Insert of existing key = true, want false")
	}
	if v, _ := s.Get("x"); v != "one" {
		t.Fatalf("Get(x) = %q, want one", v)
	}
}

func TestKeysInsertionOrder(t *testing.T) {
	s := NewStore[int]()
	for i, k := range []string{"c", "a", "b"} {
		s.Insert(k, i)
	}
	s.Delete("a")
	s.Insert("a", 9)

	want := []string{"c", "b", "a"}
	got := s.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Keys = %v, want %v", got, want)
		}
	}
}

func TestConcurrentAccess_NoRaces(t *testing.T) {
	s := NewStore[int]()

	var wg sync.WaitGroup
	const G = 32
	const N = 2000

	errCh := make(chan error, G)
	var stop atomic.Bool

	for gid := range G {
		wg.Add(1)
		go func(gid int) {
			defer wg.Done()
			for i := range N {
				if stop.Load() {
					return
				}
				k := fmt.Sprintf("k-%d-%d", gid, i)

				s.Insert(k, i)

				got, ok := s.Get(k)
				if !ok {
					errCh <- fmt.Errorf("missing key=%s right after Insert", k)
					stop.Store(true)
					return
				}
				if got != i {
					errCh <- fmt.Errorf("mismatch for key=%s", k)
					stop.Store(true)
					return
				}

				if i%7 == 0 {
					s.Delete(k)
				}
			}
		}(gid)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("concurrency test failed: %v", err)
	}
}
