package rtevent

import (
	"github.com/polyeffects/ingen/pkg/abuf"
	"github.com/polyeffects/ingen/pkg/atom"
	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/hostapi"
	"github.com/polyeffects/ingen/pkg/path"
	"github.com/polyeffects/ingen/pkg/rtproc"
)

// controlSeqCapacity is the event capacity reserved for a graph's
// synthesized control_in/control_out atom-sequence ports.
const controlSeqCapacity = 256

// CreateGraph instantiates a nested (or root) Graph block, attaches it
// to its parent, and synthesizes the default control_in/control_out
// atom-sequence ports at indices 0 and 1 (spec.md §4.7).
type CreateGraph struct {
	Base
	Path       path.Path
	Properties *atom.Object
	Polyphony  int

	block             *graph.Block
	parent            *graph.Block
	newCompiled       *graph.CompiledGraph
	controlIn         *graph.Port
	controlOut        *graph.Port
	controlInHandles  []*abuf.Handle // len 1, sized in PreProcess
	controlOutHandles []*abuf.Handle // len 1, sized in PreProcess
}

func (e *CreateGraph) PreProcess(env *Env) error {
	env.Store.Lock()
	defer env.Store.Unlock()

	if _, exists := env.Store.Get(e.Path); exists {
		e.fail(Exists, e.Path.URI())
		return nil
	}

	poly := e.Polyphony
	if poly == 0 {
		poly = 1
	}
	if poly < 1 || poly > 128 {
		e.fail(InvalidPoly, e.Path.URI())
		return nil
	}

	var parent *graph.Block
	if !e.Path.IsRoot() {
		pp := e.Path.Parent()
		pv, ok := env.Store.GetBlock(pp)
		if !ok || pv.Kind != graph.KindGraph {
			e.fail(ParentNotFound, e.Path.URI())
			return nil
		}
		parent = pv
	}

	e.block = graph.NewGraphBlock(e.Path)
	e.block.Graph().SetParallelism(env.Config.Workers)
	if e.Properties != nil {
		e.block.Properties = e.Properties.Clone()
	}
	e.block.Parent = parent
	e.parent = parent

	e.controlIn = &graph.Port{
		Path: e.Path.Child("control_in"), Symbol: "control_in",
		Direction: graph.DirIn, Type: graph.TypeAtom, Polyphony: 1,
		Properties: atom.NewObject(path.URI("ingen:Port")),
	}
	e.controlOut = &graph.Port{
		Path: e.Path.Child("control_out"), Symbol: "control_out",
		Direction: graph.DirOut, Type: graph.TypeAtom, Polyphony: 1,
		Properties: atom.NewObject(path.URI("ingen:Port")),
	}
	e.block.AddPort(e.controlIn)
	e.block.AddPort(e.controlOut)

	env.Buffers.Grow(abuf.KindSequence, controlSeqCapacity, 2)
	e.controlInHandles = make([]*abuf.Handle, 1)
	e.controlOutHandles = make([]*abuf.Handle, 1)

	env.Store.Add(e.Path, e.block)
	env.Store.Add(e.controlIn.Path, e.controlIn)
	env.Store.Add(e.controlOut.Path, e.controlOut)

	if parent != nil {
		children := append(append([]*graph.Block(nil), parent.Graph().Children()...), e.block)
		cg, err := graph.Compile(children, parent.Graph().Edges(), env.Config.Workers > 0)
		if err != nil {
			e.fail(InternalError, e.Path.URI())
			return nil
		}
		e.newCompiled = cg
	}

	e.succeed()
	return nil
}

func (e *CreateGraph) Execute(env *Env, ctx *rtproc.Context, time int64) {
	if e.Status() != Success {
		return
	}
	e.controlInHandles[0] = env.Buffers.Acquire(abuf.KindSequence, controlSeqCapacity)
	e.controlOutHandles[0] = env.Buffers.Acquire(abuf.KindSequence, controlSeqCapacity)
	e.controlIn.AllocateBuffers(e.controlInHandles)
	e.controlOut.AllocateBuffers(e.controlOutHandles)
	e.block.Enabled = true

	if e.parent != nil {
		e.parent.Graph().AddChild(e.block)
		old := e.parent.Graph().SwapCompiled(e.newCompiled)
		env.Reclaimer.Push(old)
	}
}

func (e *CreateGraph) PostProcess(env *Env) {
	env.Reclaimer.Drain()
	if e.Status() != Success {
		e.respondStatus(env)
		return
	}
	env.Broadcaster.BundleBegin()
	env.Broadcaster.Put(e.Path.URI(), hostapi.DescribeObject(e.block))
	env.Broadcaster.Put(e.controlIn.Path.URI(), hostapi.DescribeObject(e.controlIn))
	env.Broadcaster.Put(e.controlOut.Path.URI(), hostapi.DescribeObject(e.controlOut))
	env.Broadcaster.BundleEnd()
}

func (e *CreateGraph) Undoable() bool { return true }
func (e *CreateGraph) Undo() Event {
	return &Delete{Base: NewBase(e.ClientID()), Path: e.Path}
}

// CreateBlock instantiates a plugin block (external, internal, or a
// nested graph prototype) and attaches it to its parent graph.
type CreateBlock struct {
	Base
	Path       path.Path
	PluginURI  path.URI
	Properties *atom.Object

	block       *graph.Block
	parent      *graph.Block
	descriptors []hostapi.PortDescriptor
	newCompiled *graph.CompiledGraph
	handles     [][]*abuf.Handle // sized per port in PreProcess; filled by Acquire in Execute
}

func (e *CreateBlock) PreProcess(env *Env) error {
	env.Store.Lock()
	defer env.Store.Unlock()

	if _, exists := env.Store.Get(e.Path); exists {
		e.fail(Exists, e.Path.URI())
		return nil
	}
	pp := e.Path.Parent()
	parent, ok := env.Store.GetBlock(pp)
	if !ok || parent.Kind != graph.KindGraph {
		e.fail(ParentNotFound, e.Path.URI())
		return nil
	}

	plugin, ok := env.PluginHost.LookupPlugin(e.PluginURI)
	if !ok {
		e.fail(PrototypeNotFound, e.Path.URI())
		return nil
	}

	impl, descriptors, err := env.PluginHost.Instantiate(plugin, env.Config.SampleRate, hostapi.Features{
		URIDMap: env.URIDs,
		Log:     func(string, string) {},
	})
	if err != nil {
		e.fail(CreationFailed, e.Path.URI())
		return nil
	}

	e.block = graph.NewPluginBlock(e.Path, e.PluginURI, impl)
	if e.Properties != nil {
		e.block.Properties = e.Properties.Clone()
	}
	e.block.Parent = parent
	e.parent = parent
	e.descriptors = descriptors
	e.handles = make([][]*abuf.Handle, len(descriptors))

	for i, d := range descriptors {
		p := &graph.Port{
			Path: e.Path.Child(d.Symbol), Symbol: d.Symbol,
			Direction: d.Direction, Type: d.Type,
			Polyphony: d.Polyphony, Value: d.Default,
			Properties: atom.NewObject(path.URI("ingen:Port")),
		}
		e.block.AddPort(p)
		env.Store.Add(p.Path, p)
		env.Buffers.Grow(d.Type.BufferKind(), int(env.Config.BlockSize), d.Polyphony)
		e.handles[i] = make([]*abuf.Handle, d.Polyphony)
	}

	env.Store.Add(e.Path, e.block)

	children := append(append([]*graph.Block(nil), parent.Graph().Children()...), e.block)
	cg, cerr := graph.Compile(children, parent.Graph().Edges(), env.Config.Workers > 0)
	if cerr != nil {
		e.fail(InternalError, e.Path.URI())
		return nil
	}
	e.newCompiled = cg
	e.succeed()
	return nil
}

func (e *CreateBlock) Execute(env *Env, ctx *rtproc.Context, time int64) {
	if e.Status() != Success {
		return
	}
	for i, p := range e.block.Ports() {
		handles := e.handles[i]
		for v := range handles {
			handles[v] = env.Buffers.Acquire(p.Type.BufferKind(), int(env.Config.BlockSize))
		}
		p.AllocateBuffers(handles)
	}
	e.block.Enabled = true
	e.parent.Graph().AddChild(e.block)
	old := e.parent.Graph().SwapCompiled(e.newCompiled)
	env.Reclaimer.Push(old)
}

func (e *CreateBlock) PostProcess(env *Env) {
	env.Reclaimer.Drain()
	if e.Status() != Success {
		e.respondStatus(env)
		return
	}
	env.Broadcaster.Put(e.Path.URI(), hostapi.DescribeObject(e.block))
}

func (e *CreateBlock) Undoable() bool { return true }
func (e *CreateBlock) Undo() Event {
	return &Delete{Base: NewBase(e.ClientID()), Path: e.Path}
}

// CreatePort allocates a new port on an existing block (used directly
// by clients for plugin-less/graph-editor-defined ports). CreateGraph
// builds its own control_in/control_out ports directly, not through
// CreatePort.
type CreatePort struct {
	Base
	Path       path.Path
	Direction  graph.Direction
	Type       graph.PortType
	Index      int
	Polyphony  int
	Properties *atom.Object

	port    *graph.Port
	parent  *graph.Block
	handles []*abuf.Handle // sized in PreProcess; filled by Acquire in Execute
}

func (e *CreatePort) PreProcess(env *Env) error {
	env.Store.Lock()
	defer env.Store.Unlock()

	if _, exists := env.Store.Get(e.Path); exists {
		e.fail(Exists, e.Path.URI())
		return nil
	}
	parent, ok := env.Store.GetBlock(e.Path.Parent())
	if !ok {
		e.fail(ParentNotFound, e.Path.URI())
		return nil
	}
	if e.Index < 0 || e.Index > len(parent.Ports()) {
		e.fail(InvalidPortIndex, e.Path.URI())
		return nil
	}
	poly := e.Polyphony
	if poly == 0 {
		poly = 1
	}
	e.port = &graph.Port{
		Path: e.Path, Symbol: e.Path.Symbol(),
		Direction: e.Direction, Type: e.Type, Polyphony: poly,
		Properties: atom.NewObject(path.URI("ingen:Port")),
	}
	if e.Properties != nil {
		e.port.Properties = e.Properties.Clone()
	}
	e.parent = parent
	env.Buffers.Grow(e.Type.BufferKind(), int(env.Config.BlockSize), poly)
	env.Store.Add(e.Path, e.port)
	e.handles = make([]*abuf.Handle, poly)
	e.succeed()
	return nil
}

func (e *CreatePort) Execute(env *Env, ctx *rtproc.Context, time int64) {
	if e.Status() != Success {
		return
	}
	for v := range e.handles {
		e.handles[v] = env.Buffers.Acquire(e.port.Type.BufferKind(), int(env.Config.BlockSize))
	}
	e.port.AllocateBuffers(e.handles)
	e.parent.AddPort(e.port)
}

func (e *CreatePort) PostProcess(env *Env) {
	if e.Status() != Success {
		e.respondStatus(env)
		return
	}
	env.Broadcaster.Put(e.Path.URI(), hostapi.DescribeObject(e.port))
}

func (e *CreatePort) Undoable() bool { return true }
func (e *CreatePort) Undo() Event {
	return &Delete{Base: NewBase(e.ClientID()), Path: e.Path}
}
