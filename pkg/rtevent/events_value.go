package rtevent

import (
	"github.com/polyeffects/ingen/pkg/abuf"
	"github.com/polyeffects/ingen/pkg/atom"
	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/hostapi"
	"github.com/polyeffects/ingen/pkg/path"
	"github.com/polyeffects/ingen/pkg/rtproc"
)

// SetPortValue writes a port's value: for control/cv ports, the scalar
// that becomes the port's block-constant; for event/atom ports, a
// single timestamped event appended to the port's own sequence buffer
// (spec.md §4.7). Time is a frame offset within the current cycle; the
// audio thread clamps it to [0, nframes) when appending.
type SetPortValue struct {
	Base
	Port  path.Path
	Value atom.Atom // control/cv
	Type  path.URID // event/atom: payload type URID
	Body  []byte    // event/atom: payload bytes
	Time  uint32    // event/atom: frame offset within the cycle

	port      *graph.Port
	numeric   float64
	prevValue float64
}

func (e *SetPortValue) PreProcess(env *Env) error {
	env.Store.RLock()
	port, ok := env.Store.GetPort(e.Port)
	env.Store.RUnlock()
	if !ok {
		e.fail(PortNotFound, e.Port.URI())
		return nil
	}
	e.port = port
	e.prevValue = port.Value

	switch port.Type {
	case graph.TypeControl, graph.TypeCV:
		v, ok := e.Value.AsFloat64()
		if !ok {
			e.fail(TypeMismatch, e.Port.URI())
			return nil
		}
		e.numeric = v
	case graph.TypeEvent, graph.TypeAtom:
		// Body/Type travel as-is; any payload is accepted, matching
		// the event port's role as an opaque byte-sequence carrier.
	default:
		e.fail(TypeMismatch, e.Port.URI())
		return nil
	}
	e.succeed()
	return nil
}

func (e *SetPortValue) Execute(env *Env, ctx *rtproc.Context, time int64) {
	if e.Status() != Success {
		return
	}
	switch e.port.Type {
	case graph.TypeControl, graph.TypeCV:
		e.port.Value = e.numeric
		for _, h := range e.port.Buffers() {
			if h.Buffer().Kind == abuf.KindControl {
				h.Buffer().Value = float32(e.numeric)
			}
		}
	case graph.TypeEvent, graph.TypeAtom:
		bufs := e.port.Buffers()
		if len(bufs) == 0 {
			return
		}
		frame := e.Time
		if frame >= ctx.NFrames {
			frame = ctx.NFrames - 1
		}
		bufs[0].Buffer().AppendEvent(frame, uint32(e.Type), e.Body)
	}
}

func (e *SetPortValue) PostProcess(env *Env) {
	if e.Status() != Success {
		e.respondStatus(env)
		return
	}
	env.Broadcaster.Put(e.Port.URI(), hostapi.DescribeObject(e.port))
}

// Undoable reports true only for control/cv writes: the event case has
// no meaningful single-value inverse (it queues a discrete message, it
// does not hold state).
func (e *SetPortValue) Undoable() bool {
	return e.port != nil && (e.port.Type == graph.TypeControl || e.port.Type == graph.TypeCV)
}

func (e *SetPortValue) Undo() Event {
	if !e.Undoable() {
		return nil
	}
	return &SetPortValue{
		Base:  NewBase(e.ClientID()),
		Port:  e.Port,
		Value: atom.Float32(float32(e.prevValue)),
	}
}
