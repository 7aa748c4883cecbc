package rtevent

import (
	"github.com/rs/zerolog"

	"github.com/polyeffects/ingen/pkg/abuf"
	"github.com/polyeffects/ingen/pkg/broadcast"
	"github.com/polyeffects/ingen/pkg/control"
	"github.com/polyeffects/ingen/pkg/hostapi"
	"github.com/polyeffects/ingen/pkg/path"
	"github.com/polyeffects/ingen/pkg/rtproc"
	"github.com/polyeffects/ingen/pkg/store"
)

// Env bundles every dependency an Event's three phases may need. The
// engine constructs exactly one Env and threads it through the whole
// pipeline; events never reach for globals.
type Env struct {
	Store       *store.Store
	Broadcaster *broadcast.Broadcaster
	Bindings    *control.ControlBindings
	PluginHost  hostapi.PluginHost
	HostDriver  hostapi.AudioHostDriver
	URIDs       *path.URIDMap
	Buffers     *abuf.Factory
	Reclaimer   *Reclaimer
	Config      rtproc.Config
	Log         zerolog.Logger
}

// Event is one mutation, processed through three phases as spec.md §4.6
// describes: PreProcess off the audio thread (validation + allocation +
// plan construction), Execute on the audio thread (bounded pointer
// swaps/value writes only), PostProcess on the post-processor thread
// (reclaim + broadcast + client response).
type Event interface {
	// PreProcess resolves and validates the event against env, builds
	// its Execution plan, and sets its own Status. A non-nil return is
	// reserved for unexpected internal failures (e.g. a malformed
	// Env); ordinary validation failures are reported via Status, not
	// a Go error, so the event still proceeds to PostProcess and
	// reports to the client (spec.md §4.6 item 1, §7).
	PreProcess(env *Env) error

	// Execute runs on the audio thread at frame-accurate time within
	// the current cycle. It must be O(1)/bounded by the plan PreProcess
	// already built: only pointer swaps, scalar writes, and list
	// splices (spec.md §4.6 item 2).
	Execute(env *Env, ctx *rtproc.Context, time int64)

	// PostProcess releases reclaimed garbage, broadcasts the resulting
	// state, and delivers the status response to the originator.
	PostProcess(env *Env)

	Seq() uint64
	SetSeq(uint64)
	ClientID() string
	Status() Status
	Blamed() path.URI

	// Undoable reports whether Undo returns a meaningful inverse.
	Undoable() bool
	// Undo returns a fresh Event which, submitted to the same Env,
	// applies the inverse of this event's effect (spec.md §4.6 item 4).
	Undo() Event
}

// Base carries the bookkeeping common to every event type. Concrete
// events embed Base and provide their own PreProcess/Execute/
// PostProcess.
type Base struct {
	seq      uint64
	clientID string
	status   Status
	blamed   path.URI
}

func NewBase(clientID string) Base { return Base{clientID: clientID} }

func (b *Base) Seq() uint64          { return b.seq }
func (b *Base) SetSeq(s uint64)      { b.seq = s }
func (b *Base) ClientID() string     { return b.clientID }
func (b *Base) Status() Status       { return b.status }
func (b *Base) Blamed() path.URI     { return b.blamed }
func (b *Base) Undoable() bool       { return false }
func (b *Base) Undo() Event          { return nil }
func (b *Base) fail(s Status, subj path.URI) {
	b.status = s
	b.blamed = subj
}
func (b *Base) succeed() { b.status = Success }

// respondStatus is the common PostProcess tail: send a bare status
// response to the originating client (used by events with no richer
// body, e.g. Connect/Disconnect/Delta/SetPortValue/Move).
func (b *Base) respondStatus(env *Env) {
	if b.status != Success {
		env.Broadcaster.DeliverTo(b.clientID, []broadcast.Message{{
			Kind:    broadcast.MsgError,
			Subject: b.blamed,
			Text:    b.status.String(),
		}})
	}
}
