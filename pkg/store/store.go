// Package store implements the path-indexed directory of all live
// engine objects (spec.md §4.1), guarded by a readers-writer lock.
// All event pre_process work runs serially on the single preprocessor
// thread; an event takes the writer lock once (Lock/Unlock, below) and
// holds it across every Store call it makes, so a multi-step mutation
// (resolve, then add, then recompile-and-reread) is atomic with respect
// to concurrent readers (the external graph serializer, a plain Get
// outside an event). None of the methods below take the lock
// themselves — callers hold it. The audio thread never consults the
// Store.
package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/path"
)

// Store is a path-keyed directory of live Block and Port objects.
type Store struct {
	mu      sync.RWMutex
	objects map[path.Path]any // *graph.Block or *graph.Port
}

// New creates an empty store.
func New() *Store {
	return &Store{objects: make(map[path.Path]any)}
}

// Get returns the object at path, if any. Caller must hold Lock or
// RLock.
func (s *Store) Get(p path.Path) (any, bool) {
	v, ok := s.objects[p]
	return v, ok
}

// GetBlock is a typed convenience wrapper over Get.
func (s *Store) GetBlock(p path.Path) (*graph.Block, bool) {
	v, ok := s.Get(p)
	if !ok {
		return nil, false
	}
	b, ok := v.(*graph.Block)
	return b, ok
}

// GetPort is a typed convenience wrapper over Get.
func (s *Store) GetPort(p path.Path) (*graph.Port, bool) {
	v, ok := s.Get(p)
	if !ok {
		return nil, false
	}
	pt, ok := v.(*graph.Port)
	return pt, ok
}

// Add inserts an object at its path. Caller must hold Lock.
func (s *Store) Add(p path.Path, obj any) {
	s.objects[p] = obj
}

// Remove deletes path and every object whose path is a descendant of
// it, returning the removed subtree (path-sorted, parents before
// children) for the caller to finish detaching/disconnecting. Caller
// must hold Lock.
func (s *Store) Remove(p path.Path) []path.Path {
	var removed []path.Path
	for k := range s.objects {
		if k.HasPrefix(p) {
			removed = append(removed, k)
		}
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	for _, k := range removed {
		delete(s.objects, k)
	}
	return removed
}

// Rekey moves every entry at or under oldPrefix to the corresponding
// path under newPrefix, preserving each entry's object (used by Move's
// pre_process — spec.md §4.7). Caller must hold Lock.
func (s *Store) Rekey(oldPrefix, newPrefix path.Path) {
	var affected []path.Path
	for k := range s.objects {
		if k.HasPrefix(oldPrefix) {
			affected = append(affected, k)
		}
	}
	for _, k := range affected {
		obj := s.objects[k]
		delete(s.objects, k)
		rel := strings.TrimPrefix(string(k), string(oldPrefix))
		s.objects[path.Path(string(newPrefix)+rel)] = obj
	}
}

// FindByPrefix returns all object paths under (and including) prefix,
// in path order. Caller must hold Lock or RLock.
func (s *Store) FindByPrefix(prefix path.Path) []path.Path {
	var out []path.Path
	for k := range s.objects {
		if k.HasPrefix(prefix) {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Lock and Unlock take/release the writer lock for the duration of a
// whole pre_process that mutates the store, per the package doc.
func (s *Store) Lock()   { s.mu.Lock() }
func (s *Store) Unlock() { s.mu.Unlock() }

// RLock/RUnlock take/release the reader lock for query-only consumers
// such as the (external) graph serializer or Get's own pre_process.
func (s *Store) RLock()   { s.mu.RLock() }
func (s *Store) RUnlock() { s.mu.RUnlock() }
