package rtevent

import (
	"errors"

	"github.com/polyeffects/ingen/pkg/abuf"
	"github.com/polyeffects/ingen/pkg/atom"
	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/hostapi"
	"github.com/polyeffects/ingen/pkg/path"
	"github.com/polyeffects/ingen/pkg/rtproc"
)

var errPluginNotFound = errors.New("rtevent: copy source plugin block no longer resolves its prototype")

// builtPlugin tracks one freshly-instantiated plugin block copy whose
// port buffers still need acquiring in Execute (pre_process only grows
// the pool and sizes the handle slices; the Acquire calls run on the
// audio thread in Execute).
type builtPlugin struct {
	block       *graph.Block
	descriptors []hostapi.PortDescriptor
	handles     [][]*abuf.Handle // sized per port in pre_process; filled by Acquire in Execute
}

// builtGraph tracks one freshly-constructed graph-block copy: its
// control_in/control_out ports (needing buffer acquire), its final
// child list and internal edge set (both known up front, since the
// whole subtree is built in one pre_process), and the schedule
// compiled from them.
type builtGraph struct {
	block             *graph.Block
	controlIn         *graph.Port
	controlOut        *graph.Port
	controlInHandles  []*abuf.Handle // len 1, sized in pre_process
	controlOutHandles []*abuf.Handle // len 1, sized in pre_process
	children          []*graph.Block
	edges             []*graph.Edge
	compiled          *graph.CompiledGraph
}

// Copy deep-duplicates a Block subtree (recreating plugin instances
// via the PluginHost collaborator, and recursing into nested graphs)
// or a single Port, under a new path. Only edges whose both ends lie
// inside the duplicated set are recreated; edges crossing into the
// original are dropped. No original-source analog exists for subtree
// duplication (checked: src/Parser.cpp is the RDF/Turtle serialized-
// graph-format parser, not a copy routine); the recursion shape below
// reuses CreateBlock's own pre_process/Execute split instead.
type Copy struct {
	Base
	From path.Path
	To   path.Path

	srcPort    *graph.Port // set for a Port copy
	newPort    *graph.Port
	newHandles []*abuf.Handle // sized in pre_process; filled by Acquire in Execute
	owner      *graph.Block   // destination owning block, for a Port copy

	root       *graph.Block // the new top-level block, for a Block copy
	destParent *graph.Block
	parentKids []*graph.Block
	parentCG   *graph.CompiledGraph

	plugins []builtPlugin
	graphs  []builtGraph

	portMap map[*graph.Port]*graph.Port
}

func (e *Copy) PreProcess(env *Env) error {
	env.Store.Lock()
	defer env.Store.Unlock()

	if _, exists := env.Store.Get(e.To); exists {
		e.fail(Exists, e.To.URI())
		return nil
	}
	obj, ok := env.Store.Get(e.From)
	if !ok {
		e.fail(NotFound, e.From.URI())
		return nil
	}

	switch v := obj.(type) {
	case *graph.Port:
		if e.To.Parent() != e.From.Parent() {
			e.fail(ParentDiffers, e.To.URI())
			return nil
		}
		owner, ok := env.Store.GetBlock(e.To.Parent())
		if !ok {
			e.fail(ParentNotFound, e.To.URI())
			return nil
		}
		e.srcPort = v
		e.owner = owner
		e.newPort = &graph.Port{
			Path: e.To, Symbol: e.To.Symbol(),
			Direction: v.Direction, Type: v.Type, Polyphony: v.Polyphony,
			Value: v.Value, Properties: v.Properties.Clone(),
		}
		env.Buffers.Grow(v.Type.BufferKind(), int(env.Config.BlockSize), v.Polyphony)
		env.Store.Add(e.To, e.newPort)
		e.newHandles = make([]*abuf.Handle, v.Polyphony)

	case *graph.Block:
		parent, ok := env.Store.GetBlock(e.To.Parent())
		if !ok || parent.Kind != graph.KindGraph {
			e.fail(ParentNotFound, e.To.URI())
			return nil
		}
		e.destParent = parent
		e.portMap = make(map[*graph.Port]*graph.Port)

		root, err := e.duplicateBlock(env, v, e.To)
		if err != nil {
			e.fail(CreationFailed, e.To.URI())
			return nil
		}
		root.Parent = parent
		e.root = root

		e.parentKids = append(append([]*graph.Block(nil), parent.Graph().Children()...), root)
		cg, cerr := graph.Compile(e.parentKids, parent.Graph().Edges(), env.Config.Workers > 0)
		if cerr != nil {
			e.fail(InternalError, e.To.URI())
			return nil
		}
		e.parentCG = cg

	default:
		e.fail(InternalError, e.From.URI())
		return nil
	}

	e.succeed()
	return nil
}

// duplicateBlock recursively builds a copy of src under dstPath,
// registering every (src port -> new port) mapping in e.portMap so
// internal edges can be recreated once the whole subtree exists.
func (e *Copy) duplicateBlock(env *Env, src *graph.Block, dstPath path.Path) (*graph.Block, error) {
	switch {
	case src.Graph() != nil:
		return e.duplicateGraph(env, src, dstPath)
	default:
		return e.duplicatePlugin(env, src, dstPath)
	}
}

func (e *Copy) duplicatePlugin(env *Env, src *graph.Block, dstPath path.Path) (*graph.Block, error) {
	plugin, ok := env.PluginHost.LookupPlugin(src.PluginURI)
	if !ok {
		return nil, errPluginNotFound
	}
	impl, descriptors, err := env.PluginHost.Instantiate(plugin, env.Config.SampleRate, hostapi.Features{
		URIDMap: env.URIDs,
		Log:     func(string, string) {},
	})
	if err != nil {
		return nil, err
	}

	nb := graph.NewPluginBlock(dstPath, src.PluginURI, impl)
	nb.Properties = src.Properties.Clone()
	nb.Polyphony = src.Polyphony
	srcPorts := src.Ports()
	for i, d := range descriptors {
		p := &graph.Port{
			Path: dstPath.Child(d.Symbol), Symbol: d.Symbol,
			Direction: d.Direction, Type: d.Type, Polyphony: d.Polyphony,
			Value: d.Default, Properties: atom.NewObject(path.URI("ingen:Port")),
		}
		nb.AddPort(p)
		env.Store.Add(p.Path, p)
		env.Buffers.Grow(d.Type.BufferKind(), int(env.Config.BlockSize), d.Polyphony)
		if i < len(srcPorts) {
			p.Properties = srcPorts[i].Properties.Clone()
			e.portMap[srcPorts[i]] = p
		}
	}
	env.Store.Add(dstPath, nb)
	handles := make([][]*abuf.Handle, len(descriptors))
	for i, d := range descriptors {
		handles[i] = make([]*abuf.Handle, d.Polyphony)
	}
	e.plugins = append(e.plugins, builtPlugin{block: nb, descriptors: descriptors, handles: handles})
	return nb, nil
}

func (e *Copy) duplicateGraph(env *Env, src *graph.Block, dstPath path.Path) (*graph.Block, error) {
	nb := graph.NewGraphBlock(dstPath)
	nb.Graph().SetParallelism(env.Config.Workers)
	nb.Properties = src.Properties.Clone()
	nb.Polyphony = src.Polyphony

	controlIn := &graph.Port{
		Path: dstPath.Child("control_in"), Symbol: "control_in",
		Direction: graph.DirIn, Type: graph.TypeAtom, Polyphony: 1,
		Properties: atom.NewObject(path.URI("ingen:Port")),
	}
	controlOut := &graph.Port{
		Path: dstPath.Child("control_out"), Symbol: "control_out",
		Direction: graph.DirOut, Type: graph.TypeAtom, Polyphony: 1,
		Properties: atom.NewObject(path.URI("ingen:Port")),
	}
	nb.AddPort(controlIn)
	nb.AddPort(controlOut)
	env.Buffers.Grow(abuf.KindSequence, controlSeqCapacity, 2)
	env.Store.Add(dstPath, nb)
	env.Store.Add(controlIn.Path, controlIn)
	env.Store.Add(controlOut.Path, controlOut)

	if oldIn, ok := src.Port("control_in"); ok {
		e.portMap[oldIn] = controlIn
	}
	if oldOut, ok := src.Port("control_out"); ok {
		e.portMap[oldOut] = controlOut
	}

	var children []*graph.Block
	for _, child := range src.Graph().Children() {
		nc, err := e.duplicateBlock(env, child, dstPath.Child(child.Symbol))
		if err != nil {
			return nil, err
		}
		nc.Parent = nb
		children = append(children, nc)
	}

	var edges []*graph.Edge
	for _, ed := range src.Graph().Edges() {
		newTail, tailOK := e.portMap[ed.Tail]
		newHead, headOK := e.portMap[ed.Head]
		if tailOK && headOK {
			edges = append(edges, &graph.Edge{Tail: newTail, Head: newHead})
		}
	}

	cg, err := graph.Compile(children, edges, env.Config.Workers > 0)
	if err != nil {
		return nil, err
	}
	e.graphs = append(e.graphs, builtGraph{
		block: nb, controlIn: controlIn, controlOut: controlOut,
		controlInHandles: make([]*abuf.Handle, 1), controlOutHandles: make([]*abuf.Handle, 1),
		children: children, edges: edges, compiled: cg,
	})
	return nb, nil
}

func (e *Copy) Execute(env *Env, ctx *rtproc.Context, time int64) {
	if e.Status() != Success {
		return
	}

	if e.srcPort != nil {
		for v := range e.newHandles {
			e.newHandles[v] = env.Buffers.Acquire(e.newPort.Type.BufferKind(), int(env.Config.BlockSize))
		}
		e.newPort.AllocateBuffers(e.newHandles)
		e.owner.AddPort(e.newPort)
		return
	}

	for _, bp := range e.plugins {
		for i, p := range bp.block.Ports() {
			handles := bp.handles[i]
			for v := range handles {
				handles[v] = env.Buffers.Acquire(p.Type.BufferKind(), int(env.Config.BlockSize))
			}
			p.AllocateBuffers(handles)
		}
		bp.block.Enabled = true
	}

	for _, bg := range e.graphs {
		bg.controlInHandles[0] = env.Buffers.Acquire(abuf.KindSequence, controlSeqCapacity)
		bg.controlOutHandles[0] = env.Buffers.Acquire(abuf.KindSequence, controlSeqCapacity)
		bg.controlIn.AllocateBuffers(bg.controlInHandles)
		bg.controlOut.AllocateBuffers(bg.controlOutHandles)
		bg.block.Enabled = true
		for _, c := range bg.children {
			bg.block.Graph().AddChild(c)
		}
		for _, ed := range bg.edges {
			bg.block.Graph().AddEdge(ed)
		}
		bg.block.Graph().SwapCompiled(bg.compiled)
	}

	e.destParent.Graph().AddChild(e.root)
	old := e.destParent.Graph().SwapCompiled(e.parentCG)
	env.Reclaimer.Push(old)
}

func (e *Copy) PostProcess(env *Env) {
	env.Reclaimer.Drain()
	if e.Status() != Success {
		e.respondStatus(env)
		return
	}
	if e.newPort != nil {
		env.Broadcaster.Put(e.To.URI(), hostapi.DescribeObject(e.newPort))
		return
	}
	env.Broadcaster.BundleBegin()
	env.Broadcaster.Put(e.To.URI(), hostapi.DescribeObject(e.root))
	for _, bg := range e.graphs {
		env.Broadcaster.Put(bg.block.Path.URI(), hostapi.DescribeObject(bg.block))
		for _, ed := range bg.edges {
			env.Broadcaster.Connect(ed.Tail.Path.URI(), ed.Head.Path.URI())
		}
	}
	for _, bp := range e.plugins {
		env.Broadcaster.Put(bp.block.Path.URI(), hostapi.DescribeObject(bp.block))
	}
	env.Broadcaster.BundleEnd()
}

func (e *Copy) Undoable() bool { return true }
func (e *Copy) Undo() Event {
	return &Delete{Base: NewBase(e.ClientID()), Path: e.To}
}
