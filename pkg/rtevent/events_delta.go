package rtevent

import (
	"github.com/spf13/cast"

	"github.com/polyeffects/ingen/pkg/abuf"
	"github.com/polyeffects/ingen/pkg/atom"
	"github.com/polyeffects/ingen/pkg/control"
	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/hostapi"
	"github.com/polyeffects/ingen/pkg/path"
	"github.com/polyeffects/ingen/pkg/rtproc"
)

// DeltaMode selects how a Delta event's Add/Remove property sets are
// merged into the subject's existing properties (spec.md §4.7).
type DeltaMode uint8

const (
	// DeltaSet merges Add into the existing property set, touching no
	// property not named in Add.
	DeltaSet DeltaMode = iota
	// DeltaPut replaces the entire property set with Add.
	DeltaPut
	// DeltaPatch removes Remove, then merges Add — in that order, so
	// a property can be replaced in one event (spec.md §9 open
	// question: "order is remove-first, then add").
	DeltaPatch
)

// Well-known property keys that trigger special handling beyond a
// plain property-bag merge (spec.md §4.7).
const (
	PropPolyphony = path.URI("ingen:polyphony")
	PropEnabled   = path.URI("ingen:enabled")
	PropBinding   = path.URI("midi:binding")
	PropPreset    = path.URI("ingen:preset")

	// Sub-properties of a PropBinding object value.
	bindingChannel    = path.URI("midi:channel")
	bindingController = path.URI("midi:controller")
	bindingMin        = path.URI("midi:min")
	bindingMax        = path.URI("midi:max")
)

// Delta merges a property change into a Block or Port's property bag,
// with special keys (polyphony, enabled, MIDI binding, preset) driving
// deeper state changes rather than a bare property write (spec.md
// §4.7).
type Delta struct {
	Base
	Subject path.URI
	Add     *atom.Object
	Remove  *atom.Object
	Mode    DeltaMode

	block  *graph.Block
	port   *graph.Port
	parent *graph.Block // set when a block-polyphony rebuild needs a recompile

	prevProps *atom.Object // snapshot for undo
	newPoly   int
	rebuild   bool
	resized   []*graph.Port // block's ports whose Polyphony != newPoly

	newCompiled *graph.CompiledGraph
}

func (e *Delta) PreProcess(env *Env) error {
	env.Store.Lock()
	defer env.Store.Unlock()

	p, ok := e.Subject.Path()
	if !ok {
		e.fail(NotFound, e.Subject)
		return nil
	}
	obj, ok := env.Store.Get(p)
	if !ok {
		e.fail(NotFound, e.Subject)
		return nil
	}

	var props *atom.Object
	switch v := obj.(type) {
	case *graph.Block:
		e.block = v
		props = v.Properties
	case *graph.Port:
		e.port = v
		props = v.Properties
	default:
		e.fail(InternalError, e.Subject)
		return nil
	}
	e.prevProps = props.Clone()

	polyVal, hasPoly := e.Add.Get(PropPolyphony)
	if hasPoly {
		if e.block == nil {
			e.fail(InvalidPoly, e.Subject)
			return nil
		}
		n := cast.ToInt(atomToAny(polyVal))
		if n < 1 || n > 128 {
			e.fail(InvalidPoly, e.Subject)
			return nil
		}
		e.newPoly = n
		e.rebuild = e.block.Kind == graph.KindPlugin
		if e.rebuild {
			for _, p := range e.block.Ports() {
				if p.Polyphony != n {
					e.resized = append(e.resized, p)
					env.Buffers.Grow(p.Type.BufferKind(), int(env.Config.BlockSize), n)
				}
			}
		}
	}

	switch e.Mode {
	case DeltaPut:
		props = atom.NewObject(props.Type)
		for _, pr := range e.Add.Properties() {
			props.Set(pr.Key, pr.Value, pr.Scope)
		}
	case DeltaPatch:
		for _, pr := range e.Remove.Properties() {
			props.Remove(pr.Key)
		}
		for _, pr := range e.Add.Properties() {
			props.Set(pr.Key, pr.Value, pr.Scope)
		}
	default: // DeltaSet
		for _, pr := range e.Add.Properties() {
			props.Set(pr.Key, pr.Value, pr.Scope)
		}
	}
	switch {
	case e.block != nil:
		e.block.Properties = props
	case e.port != nil:
		e.port.Properties = props
	}

	if e.block != nil && e.block.Kind == graph.KindGraph && hasPoly {
		e.block.Graph().SetInternalPoly(e.newPoly)
	}

	if e.rebuild && e.block.Parent != nil {
		e.parent = e.block.Parent
		children := e.parent.Graph().Children()
		cg, err := graph.Compile(children, e.parent.Graph().Edges(), env.Config.Workers > 0)
		if err != nil {
			e.fail(InternalError, e.Subject)
			return nil
		}
		e.newCompiled = cg
	}

	e.succeed()
	return nil
}

func (e *Delta) Execute(env *Env, ctx *rtproc.Context, time int64) {
	if e.Status() != Success {
		return
	}

	if e.block != nil {
		if enabled, ok := e.block.Properties.Get(PropEnabled); ok {
			e.block.Enabled = enabled.Bool
		}
	}

	if e.port != nil {
		if bv, ok := e.port.Properties.Get(PropBinding); ok && bv.Kind == atom.KindObject {
			e.applyBinding(env, bv.Object)
		}
	}

	if e.rebuild {
		n := e.newPoly
		for _, p := range e.resized {
			handles := make([]*abuf.Handle, n)
			for v := 0; v < n; v++ {
				handles[v] = env.Buffers.Acquire(p.Type.BufferKind(), int(env.Config.BlockSize))
			}
			old := p.Buffers()
			p.AllocateBuffers(handles)
			p.Polyphony = n
			env.Reclaimer.Push(old)
		}
		e.block.Polyphony = n
		if e.parent != nil {
			old := e.parent.Graph().SwapCompiled(e.newCompiled)
			env.Reclaimer.Push(old)
		}
	}
}

// applyBinding reads channel/controller/min/max sub-properties off a
// midi:binding object value and installs the CC binding for the port.
func (e *Delta) applyBinding(env *Env, obj *atom.Object) {
	ch, _ := obj.Get(bindingChannel)
	ctl, _ := obj.Get(bindingController)
	minV, hasMin := obj.Get(bindingMin)
	maxV, hasMax := obj.Get(bindingMax)
	min, max := 0.0, 1.0
	if hasMin {
		min = cast.ToFloat64(atomToAny(minV))
	}
	if hasMax {
		max = cast.ToFloat64(atomToAny(maxV))
	}
	cc := control.CC{
		Channel:    uint8(cast.ToUint(atomToAny(ch))),
		Controller: uint8(cast.ToUint(atomToAny(ctl))),
	}
	env.Bindings.Bind(cc, e.port, min, max)
}

func (e *Delta) PostProcess(env *Env) {
	env.Reclaimer.Drain()
	if e.Status() != Success {
		e.respondStatus(env)
		return
	}
	var subject path.URI
	var body *atom.Object
	switch {
	case e.block != nil:
		subject = e.block.Path.URI()
		body = hostapi.DescribeObject(e.block)
	case e.port != nil:
		subject = e.port.Path.URI()
		body = hostapi.DescribeObject(e.port)
	}
	env.Broadcaster.Delta(subject, body)
}

func (e *Delta) Undoable() bool { return true }
func (e *Delta) Undo() Event {
	return &Delta{
		Base:    NewBase(e.ClientID()),
		Subject: e.Subject,
		Add:     e.prevProps,
		Remove:  atom.NewObject(e.prevProps.Type),
		Mode:    DeltaPut,
	}
}

// atomToAny unwraps an Atom into the Go native value matching its Kind,
// for cast.To* coercion at the Delta property boundary (spec.md's
// loosely-typed wire payloads, per SPEC_FULL's domain-stack wiring).
func atomToAny(a atom.Atom) any {
	switch a.Kind {
	case atom.KindInt:
		return a.Int
	case atom.KindFloat:
		return a.Float
	case atom.KindBool:
		return a.Bool
	case atom.KindString, atom.KindURI, atom.KindPath:
		return a.Str
	case atom.KindURID:
		return uint32(a.URID)
	default:
		return nil
	}
}
