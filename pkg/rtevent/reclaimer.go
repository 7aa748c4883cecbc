package rtevent

import (
	"github.com/polyeffects/ingen/pkg/abuf"
	"github.com/polyeffects/ingen/pkg/graph"
)

// Reclaimer is the single-consumer garbage list objects unlinked by the
// audio thread are pushed to, and which the post-processor thread
// drains (spec.md §3 "Lifecycle", §4.6 item 3). Go's GC ultimately frees
// plain objects once unreferenced; the Reclaimer's job is narrower and
// RT-critical: it is the handoff point that defers any work with side
// effects (returning a pooled buffer to its free list) until after the
// audio thread has certainly finished using it.
type Reclaimer struct {
	ch chan any
}

// NewReclaimer creates a reclaimer with the given backlog capacity.
func NewReclaimer(capacity int) *Reclaimer {
	return &Reclaimer{ch: make(chan any, capacity)}
}

// Push hands off garbage from the audio thread's Execute phase. Never
// blocks: a full reclaimer channel drops the push (and the object is
// reclaimed by Go's GC instead, which is safe — only pooled abuf.Handles
// need the explicit Release path, and a handle that misses the pool
// once does not corrupt state, only costs a reallocation next Acquire).
func (r *Reclaimer) Push(garbage any) {
	select {
	case r.ch <- garbage:
	default:
	}
}

// Len reports the reclaimer's current backlog depth, for telemetry
// sampling from the post-processor thread.
func (r *Reclaimer) Len() int { return len(r.ch) }

// Drain releases everything currently queued, without blocking for
// more. Called repeatedly by the post-processor thread.
func (r *Reclaimer) Drain() {
	for {
		select {
		case g := <-r.ch:
			release(g)
		default:
			return
		}
	}
}

func release(g any) {
	switch v := g.(type) {
	case *abuf.Handle:
		v.Release()
	case []*abuf.Handle:
		for _, h := range v {
			h.Release()
		}
	case *graph.Block:
		// A deleted Graph block's persistent worker goroutines
		// (spec.md §4.4) must be stopped explicitly; nothing else
		// reclaims them. Plugin blocks have no graphData and are a
		// no-op here.
		if gd := v.Graph(); gd != nil {
			gd.Close()
		}
	default:
		// Plain Go value (old *graph.CompiledGraph, old ports array,
		// detached *graph.Port): nothing to do, the garbage collector
		// reclaims it once unreferenced.
	}
}
