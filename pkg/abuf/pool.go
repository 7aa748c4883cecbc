package abuf

import (
	"sync"
	"sync/atomic"
)

// bucketKey identifies a pool size class.
type bucketKey struct {
	kind Kind
	cap  int
}

// node is a Treiber-stack cell. A popped node is dropped; release
// allocates a fresh node each time it pushes a handle back.
type node struct {
	handle *Handle
	next   atomic.Pointer[node]
}

// bucket is a lock-free free list for one size class; push and pop
// retry their CompareAndSwap under contention, so neither is wait-free.
// Grounded in spirit on justyntemme-clapgo's pkg/event/pool.go, which
// pools each event type in its own sync.Pool to avoid interface{}
// allocation — here buffer growth is confined to pre_process (see
// Factory.Grow), so a pop from a pre-filled bucket allocates nothing.
type bucket struct {
	top atomic.Pointer[node]
}

func (b *bucket) push(n *node) {
	for {
		old := b.top.Load()
		n.next.Store(old)
		if b.top.CompareAndSwap(old, n) {
			return
		}
	}
}

func (b *bucket) pop() *node {
	for {
		old := b.top.Load()
		if old == nil {
			return nil
		}
		next := old.next.Load()
		if b.top.CompareAndSwap(old, next) {
			return old
		}
	}
}

// Factory is the per-engine pool of realtime buffers, keyed by
// (Kind, capacity). Acquire allocates nothing as long as the pool has
// been pre-filled by Grow; Release pushes back to the same bucket.
// Acquire and release each take mu to look up their bucket, so neither
// is lock-free.
type Factory struct {
	mu      sync.Mutex // guards the bucket map; taken on every bucketFor call
	buckets map[bucketKey]*bucket
	onGrow  func(kind Kind, n int) // optional telemetry hook, set via OnGrow
}

// NewFactory creates an empty buffer factory.
func NewFactory() *Factory {
	return &Factory{buckets: make(map[bucketKey]*bucket)}
}

// OnGrow registers a callback invoked after every Grow call (always off
// the audio thread, since Grow itself only runs from pre_process or
// engine construction). Used by pkg/telemetry to count pool growth
// without abuf importing telemetry.
func (f *Factory) OnGrow(fn func(kind Kind, n int)) { f.onGrow = fn }

func (f *Factory) bucketFor(key bucketKey) *bucket {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.buckets[key]
	if !ok {
		b = &bucket{}
		f.buckets[key] = b
	}
	return b
}

// Grow preallocates n buffers of the given kind/capacity and pushes them
// onto the free list. Must only be called from pre_process (or engine
// construction); it is the sole allocation point for pooled buffers.
func (f *Factory) Grow(kind Kind, capacity int, n int) {
	b := f.bucketFor(bucketKey{kind, capacity})
	for i := 0; i < n; i++ {
		buf := newBuffer(kind, capacity)
		h := &Handle{buf: buf, factory: f}
		h.refs.Store(1)
		b.push(&node{handle: h})
	}
	if f.onGrow != nil {
		f.onGrow(kind, n)
	}
}

func newBuffer(kind Kind, capacity int) *Buffer {
	buf := &Buffer{Kind: kind, cap: capacity}
	switch kind {
	case KindAudio:
		buf.Samples = make([]float32, capacity)
	case KindSequence:
		buf.Events = make([]Event, 0, capacity)
	case KindControl:
		// scalar, no backing slice needed
	}
	return buf
}

// Acquire pops a preallocated buffer off the free list for (kind,
// capacity). If the pool is empty (under-provisioned Grow call), it
// allocates on the spot as a fallback — correct but not RT-safe, so
// callers on the audio thread must ensure pre_process grew the pool
// enough that this path is never taken in practice.
func (f *Factory) Acquire(kind Kind, capacity int) *Handle {
	b := f.bucketFor(bucketKey{kind, capacity})
	if n := b.pop(); n != nil {
		n.handle.refs.Store(1)
		n.handle.buf.Clear()
		return n.handle
	}
	buf := newBuffer(kind, capacity)
	h := &Handle{buf: buf, factory: f}
	h.refs.Store(1)
	return h
}

// release returns h to its owning bucket. Called by Handle.Release at
// zero refcount, from the releasing (owning) thread.
func (f *Factory) release(h *Handle) {
	b := f.bucketFor(bucketKey{h.buf.Kind, h.buf.cap})
	b.push(&node{handle: h})
}
