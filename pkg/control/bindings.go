// Package control implements ControlBindings: a bidirectional map from
// MIDI CC (channel, controller) pairs to port values, consumed each
// cycle on the root graph's control_in port from inside RunCycle —
// the audio thread — and produced on control_out from the
// post-processor thread (spec.md §4.8).
//
// The binding bookkeeping (a map of bound ranges plus a value-scaling
// helper, with a Learn-next-input pending slot) is adapted from
// justyntemme-clapgo's pkg/param.ParameterBinder/ParameterBinding
// (pkg/param/binding.go), which maps parameter IDs to atomically-stored
// float64s with min/max/default metadata the same way. The CC/port
// maps themselves use xsync.MapOf rather than a mutex-guarded map,
// grounded on the same choice already made for pkg/path.URIDMap
// (urid.go) and pkg/broadcast.Broadcaster's client registry
// (broadcast.go): ProcessIncoming is called from RunCycle on the audio
// thread every cycle, which per spec.md §5 "may not... lock blocking
// primitives", so the hot lookup path must never take a mutex.
package control

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/polyeffects/ingen/pkg/abuf"
	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/rtproc"
)

// CC identifies one MIDI channel+controller pair.
type CC struct {
	Channel    uint8
	Controller uint8
}

// MIDIEventType is the URID used to tag raw MIDI bytes in a sequence
// buffer's events (interned once by the engine against the URID map;
// stored here as the conventional value plugins/hosts agree on).
const MIDIEventType uint32 = 1

const ccStatusMask = 0xB0 // Control Change, channel in low nibble

// Binding maps one CC to a port, with the value range the 0-127 MIDI
// range is scaled into.
type Binding struct {
	Key  CC
	Port *graph.Port
	Min  float64
	Max  float64
}

// learnState is the port+range Learn mode is waiting to bind, held as
// one atomic snapshot so ProcessIncoming never observes a min/max pair
// that doesn't belong to its port.
type learnState struct {
	port *graph.Port
	min  float64
	max  float64
}

// ControlBindings holds the bidirectional CC<->port map.
type ControlBindings struct {
	byCC     *xsync.MapOf[CC, *Binding]
	byPort   *xsync.MapOf[*graph.Port, *Binding]
	learning atomic.Pointer[learnState] // nil when not learning
}

// New creates an empty binding table.
func New() *ControlBindings {
	return &ControlBindings{
		byCC:   xsync.NewMapOf[CC, *Binding](),
		byPort: xsync.NewMapOf[*graph.Port, *Binding](),
	}
}

// Bind creates or replaces the binding for cc.
func (cb *ControlBindings) Bind(cc CC, port *graph.Port, min, max float64) {
	if old, ok := cb.byPort.Load(port); ok {
		cb.byCC.Delete(old.Key)
	}
	b := &Binding{Key: cc, Port: port, Min: min, Max: max}
	cb.byCC.Store(cc, b)
	cb.byPort.Store(port, b)
}

// LearnNext arms Learn mode: the next CC event processed will be bound
// to port with the given range.
func (cb *ControlBindings) LearnNext(port *graph.Port, min, max float64) {
	cb.learning.Store(&learnState{port: port, min: min, max: max})
}

// Remove deletes every binding referencing port (used by Delete's
// pre_process, mirroring Ingen's
// `_engine.control_bindings()->remove(_path)` in the original Delete
// event). Returns the removed bindings so a caller could restore them
// on undo.
func (cb *ControlBindings) Remove(port *graph.Port) []*Binding {
	b, ok := cb.byPort.LoadAndDelete(port)
	if !ok {
		return nil
	}
	cb.byCC.Delete(b.Key)
	return []*Binding{b}
}

// ProcessIncoming consumes MIDI CC events from the root control input
// sequence buffer, writing mapped port values. A CC that completes a
// pending Learn is bound first and then applied through its new
// binding like any other. Called from RunCycle, on the audio thread;
// every lookup and
// update below is lock-free (xsync.MapOf, or a CompareAndSwap claiming
// the pending Learn slot).
func (cb *ControlBindings) ProcessIncoming(ctx *rtproc.Context, in *abuf.Buffer) {
	if in == nil || in.Kind != abuf.KindSequence {
		return
	}
	for _, ev := range in.Events {
		if ev.Type != MIDIEventType || len(ev.Body) < 3 {
			continue
		}
		status := ev.Body[0]
		if status&0xF0 != ccStatusMask {
			continue
		}
		cc := CC{Channel: status & 0x0F, Controller: ev.Body[1]}
		value := float64(ev.Body[2]) / 127.0

		if ls := cb.learning.Load(); ls != nil && cb.learning.CompareAndSwap(ls, nil) {
			b := &Binding{Key: cc, Port: ls.port, Min: ls.min, Max: ls.max}
			if old, ok := cb.byPort.Load(b.Port); ok {
				cb.byCC.Delete(old.Key)
			}
			cb.byCC.Store(cc, b)
			cb.byPort.Store(b.Port, b)
		}

		b, ok := cb.byCC.Load(cc)
		if !ok {
			continue
		}
		scaled := b.Min + value*(b.Max-b.Min)
		b.Port.Value = scaled
		for _, h := range b.Port.Buffers() {
			if h.Buffer().Kind == abuf.KindControl {
				h.Buffer().Value = float32(scaled)
			}
		}
	}
}

// EmitFeedback writes CC events for every bound port flagged Feedback
// back onto the root control output sequence buffer. Called from the
// post-processor thread, once per cycle, reading values the audio
// thread already finished writing this cycle (spec.md §4.8).
func (cb *ControlBindings) EmitFeedback(ctx *rtproc.Context, out *abuf.Buffer) {
	if out == nil || out.Kind != abuf.KindSequence {
		return
	}
	cb.byCC.Range(func(_ CC, b *Binding) bool {
		if !b.Port.Feedback {
			return true
		}
		rng := b.Max - b.Min
		if rng == 0 {
			return true
		}
		norm := (b.Port.Value - b.Min) / rng
		if norm < 0 {
			norm = 0
		} else if norm > 1 {
			norm = 1
		}
		body := []byte{ccStatusMask | b.Key.Channel, b.Key.Controller, byte(norm * 127.0)}
		out.AppendEvent(uint32(ctx.Start), MIDIEventType, body)
		return true
	})
}
