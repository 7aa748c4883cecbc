// Package graph implements the core dataflow data model: ports, edges,
// blocks, graphs, and the compiled execution schedule.
//
// The mixing and polyphony-resolution rules below are Ingen's own
// (spec.md §4.3); the refcounted buffers they sit on come from
// pkg/abuf, whose pool uses its own lock-free free lists rather than
// the sync.Pool that justyntemme-clapgo's event/buffer allocation uses.
package graph

import (
	"errors"

	"github.com/polyeffects/ingen/pkg/abuf"
	"github.com/polyeffects/ingen/pkg/atom"
	"github.com/polyeffects/ingen/pkg/path"
)

// Direction is a port's data direction relative to its owning block.
type Direction uint8

const (
	DirIn Direction = iota
	DirOut
)

// PortType is a port's signal type.
type PortType uint8

const (
	TypeAudio PortType = iota
	TypeControl
	TypeCV
	TypeEvent
	TypeAtom
)

// Mode reflects whether an input port is driven by its explicit value
// or by the mix of its incoming edges (spec.md §8 invariant: MIXED iff
// edge count > 0).
type Mode uint8

const (
	ModeValue Mode = iota
	ModeMixed
)

var (
	ErrTypeMismatch = errors.New("graph: incompatible port types")
)

// Compatible implements spec.md invariant 3: audio<->audio/cv,
// event<->event, control<->control/cv. Atom ports only connect to
// other atom ports (not named in the invariant, so treated as its own
// closed group rather than guessed into the event group).
func Compatible(tail, head PortType) bool {
	audioCV := func(t PortType) bool { return t == TypeAudio || t == TypeCV }
	controlCV := func(t PortType) bool { return t == TypeControl || t == TypeCV }
	switch {
	case audioCV(tail) && audioCV(head):
		return true
	case controlCV(tail) && controlCV(head):
		return true
	case tail == TypeEvent && head == TypeEvent:
		return true
	case tail == TypeAtom && head == TypeAtom:
		return true
	default:
		return false
	}
}

// BufferKind maps a port type to the abuf.Kind it allocates.
func (t PortType) BufferKind() abuf.Kind {
	switch t {
	case TypeAudio, TypeCV:
		return abuf.KindAudio
	case TypeControl:
		return abuf.KindControl
	default:
		return abuf.KindSequence
	}
}

// Port is an endpoint on a Block: either a sink (DirIn) the block reads,
// or a source (DirOut) the block writes, for one cycle's frame range.
type Port struct {
	Path       path.Path
	Symbol     string
	Parent     *Block
	Direction  Direction
	Type       PortType
	Index      int
	Polyphony  int
	Properties *atom.Object

	// explicit value, used when Mode == ModeValue (control/cv ports) or
	// as the block-constant fallback for a just-disconnected port.
	Value float64

	// Feedback marks a control port whose value ControlBindings should
	// echo back out as MIDI CC on post_process (spec.md §4.8).
	Feedback bool

	edges []*Edge // incoming edges, in connection order, for input ports
	bufs  []*abuf.Handle // per-voice buffers, length Polyphony

	mode Mode
}

// Mode reports the port's current value/mixed mode.
func (p *Port) Mode() Mode { return p.mode }

// Edges returns the port's incoming edge list (input ports only).
func (p *Port) Edges() []*Edge { return p.edges }

// Buffers returns the per-voice buffer handles.
func (p *Port) Buffers() []*abuf.Handle { return p.bufs }

// AllocateBuffers installs handles as the port's per-voice buffers; it
// acquires nothing itself. Events call it from their execute phase,
// right after acquiring the handles from the buffer factory there
// (pre_process only grows the pool and sizes the handle slice).
func (p *Port) AllocateBuffers(handles []*abuf.Handle) {
	p.bufs = handles
}

// addEdge records e as an incoming connection and recomputes Mode.
// Only valid for input ports; called during Connect's execute phase.
func (p *Port) addEdge(e *Edge) {
	p.edges = append(p.edges, e)
	p.mode = ModeMixed
}

// removeEdge drops e from the incoming list. If the list becomes empty,
// Mode reverts to ModeValue and buffers are reset per spec.md §4.5
// (control/cv to stored Value, audio to silence, event to empty) —
// callers (Disconnect.execute) perform the buffer reset itself since it
// touches pooled buffers; removeEdge only updates bookkeeping.
func (p *Port) removeEdge(e *Edge) bool {
	for i, ex := range p.edges {
		if ex == e {
			p.edges = append(p.edges[:i], p.edges[i+1:]...)
			if len(p.edges) == 0 {
				p.mode = ModeValue
			}
			return true
		}
	}
	return false
}

// ResetToValue clears all of an input port's buffers to its stored
// state: the explicit Value for control/cv, silence for audio, and
// empty for event/atom sequences.
func (p *Port) ResetToValue() {
	for _, h := range p.bufs {
		b := h.Buffer()
		switch b.Kind {
		case abuf.KindControl:
			b.Value = float32(p.Value)
		case abuf.KindAudio:
			b.Clear()
		case abuf.KindSequence:
			b.Clear()
		}
	}
}
