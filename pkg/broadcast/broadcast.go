// Package broadcast fans update notifications out to registered
// clients, with bundle-bracketed batching so a burst of related
// messages (e.g. a Delete's cascaded Disconnect + Del) is delivered as
// one atomic unit (spec.md §4.6).
//
// The client registry uses xsync.MapOf rather than a mutex-guarded map,
// grounded on bgpfix-bgpfix's pipe.Pipe.KV (pipe/pipe.go) — broadcast is
// read (iterated) on every post_process but written only on client
// connect/disconnect, the same skew xsync.MapOf is built for.
package broadcast

import (
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"

	"github.com/polyeffects/ingen/pkg/atom"
	"github.com/polyeffects/ingen/pkg/path"
)

// MessageKind identifies the shape of a broadcast message.
type MessageKind uint8

const (
	MsgPut MessageKind = iota // object created/fully described
	MsgDelta
	MsgConnect
	MsgDisconnect
	MsgDel
	MsgSetProperty
	MsgError
)

// Message is one client-facing notification.
type Message struct {
	Kind    MessageKind
	Subject path.URI
	Tail    path.URI // Connect/Disconnect only
	Head    path.URI // Connect/Disconnect only
	Body    *atom.Object
	Text    string // MsgError detail
}

// Sink receives broadcast output for one registered client.
type Sink interface {
	// Deliver is called with one bundle's worth of messages (length 1
	// outside of a Mark bracket). Transports MAY coalesce a bundle into
	// one wire frame (spec.md §6).
	Deliver(bundle []Message)
}

// Client pairs a sink with bookkeeping the Broadcaster needs.
type client struct {
	id   string
	sink Sink
}

// Broadcaster fans engine state changes out to registered clients.
type Broadcaster struct {
	log     zerolog.Logger
	clients *xsync.MapOf[string, *client]

	bundling bool
	pending  []Message
}

// New creates an empty broadcaster.
func New(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		log:     log.With().Str("component", "broadcaster").Logger(),
		clients: xsync.NewMapOf[string, *client](),
	}
}

// RegisterClient adds (or replaces) a client sink under id.
func (b *Broadcaster) RegisterClient(id string, sink Sink) {
	b.clients.Store(id, &client{id: id, sink: sink})
	b.log.Debug().Str("client", id).Msg("client registered")
}

// UnregisterClient removes a client; any of its in-flight Get responses
// are implicitly discarded since there is no longer a sink to deliver
// to (spec.md §5, "connection drops... cause pending Get responses to
// be discarded").
func (b *Broadcaster) UnregisterClient(id string) {
	b.clients.Delete(id)
	b.log.Debug().Str("client", id).Msg("client unregistered")
}

// BundleBegin starts buffering outgoing messages instead of delivering
// them immediately, until the matching BundleEnd.
func (b *Broadcaster) BundleBegin() {
	b.bundling = true
	b.pending = b.pending[:0]
}

// BundleEnd flushes any buffered messages as one bundle to every client.
func (b *Broadcaster) BundleEnd() {
	b.bundling = false
	if len(b.pending) == 0 {
		return
	}
	bundle := b.pending
	b.pending = nil
	b.deliver(bundle)
}

// emit sends msg now, or appends to the pending bundle if one is open.
func (b *Broadcaster) emit(msg Message) {
	if b.bundling {
		b.pending = append(b.pending, msg)
		return
	}
	b.deliver([]Message{msg})
}

func (b *Broadcaster) deliver(bundle []Message) {
	b.clients.Range(func(_ string, c *client) bool {
		c.sink.Deliver(bundle)
		return true
	})
}

// DeliverTo sends bundle to exactly one client (used for Get's
// originator-only response), silently dropping it if the client has
// since disconnected.
func (b *Broadcaster) DeliverTo(id string, bundle []Message) {
	if c, ok := b.clients.Load(id); ok {
		c.sink.Deliver(bundle)
	}
}

// Put announces a created/fully-described object.
func (b *Broadcaster) Put(subject path.URI, body *atom.Object) {
	b.emit(Message{Kind: MsgPut, Subject: subject, Body: body})
}

// Delta announces a property merge.
func (b *Broadcaster) Delta(subject path.URI, body *atom.Object) {
	b.emit(Message{Kind: MsgDelta, Subject: subject, Body: body})
}

// Connect announces a new edge.
func (b *Broadcaster) Connect(tail, head path.URI) {
	b.emit(Message{Kind: MsgConnect, Tail: tail, Head: head})
}

// Disconnect announces a removed edge.
func (b *Broadcaster) Disconnect(tail, head path.URI) {
	b.emit(Message{Kind: MsgDisconnect, Tail: tail, Head: head})
}

// Del announces subject's deletion.
func (b *Broadcaster) Del(subject path.URI) {
	b.emit(Message{Kind: MsgDel, Subject: subject})
}

// Error announces a processing failure for subject.
func (b *Broadcaster) Error(subject path.URI, text string) {
	b.emit(Message{Kind: MsgError, Subject: subject, Text: text})
}

// PendingLen reports how many messages are currently buffered inside an
// open bundle, for telemetry sampling from the post-processor thread.
func (b *Broadcaster) PendingLen() int { return len(b.pending) }

// ClientCount reports the number of currently registered clients
// (used by tests and telemetry).
func (b *Broadcaster) ClientCount() int {
	n := 0
	b.clients.Range(func(string, *client) bool { n++; return true })
	return n
}
