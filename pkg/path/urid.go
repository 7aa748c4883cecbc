package path

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// URID is an interned 32-bit identifier for a URI, used to identify
// property keys and Atom subtypes in event payloads without carrying
// full strings through the realtime path.
type URID uint32

// URIDMap is a process-wide injective URI<->URID map. It is read far more
// often (every property lookup on the audio thread's pre-process path)
// than written (a new URI is only interned the first time a client
// mentions it, off the audio thread), so it is backed by xsync.MapOf
// rather than a mutex-guarded map: lookups never block a writer and
// never allocate beyond the read itself.
//
// Grounded on bgpfix-bgpfix's pipe.Pipe.KV, which uses the same
// xsync.MapOf[string, any] shape for a hot concurrent KV store
// (pipe/pipe.go).
type URIDMap struct {
	byURI *xsync.MapOf[URI, URID]
	byID  *xsync.MapOf[URID, URI]
	next  atomic.Uint32
}

// NewURIDMap creates an empty map. URID 0 is reserved and never assigned.
func NewURIDMap() *URIDMap {
	m := &URIDMap{
		byURI: xsync.NewMapOf[URI, URID](),
		byID:  xsync.NewMapOf[URID, URI](),
	}
	m.next.Store(1)
	return m
}

// Map interns u, returning its URID. Repeated calls with the same URI
// return the same URID (this is the LV2 "urid#map" contract the plugin
// host collaborator expects).
func (m *URIDMap) Map(u URI) URID {
	if id, ok := m.byURI.Load(u); ok {
		return id
	}
	id := URID(m.next.Add(1) - 1)
	actual, loaded := m.byURI.LoadOrStore(u, id)
	if loaded {
		return actual
	}
	m.byID.Store(actual, u)
	return actual
}

// Unmap returns the URI previously interned as id, if any.
func (m *URIDMap) Unmap(id URID) (URI, bool) {
	return m.byID.Load(id)
}
