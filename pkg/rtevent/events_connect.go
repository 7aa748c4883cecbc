package rtevent

import (
	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/path"
	"github.com/polyeffects/ingen/pkg/rtproc"
)

// Connect adds one edge between two ports in the same enclosing graph
// (or a pass-through pair), per spec.md §4.5.
type Connect struct {
	Base
	Tail path.Path
	Head path.Path

	tail        *graph.Port
	head        *graph.Port
	parent      *graph.Block // the graph whose schedule must be recompiled
	edge        *graph.Edge
	newCompiled *graph.CompiledGraph
}

func (e *Connect) PreProcess(env *Env) error {
	env.Store.RLock()
	defer env.Store.RUnlock()

	tail, ok := env.Store.GetPort(e.Tail)
	if !ok {
		e.fail(PortNotFound, e.Tail.URI())
		return nil
	}
	head, ok := env.Store.GetPort(e.Head)
	if !ok {
		e.fail(PortNotFound, e.Head.URI())
		return nil
	}
	if tail.Direction != graph.DirOut || head.Direction != graph.DirIn {
		e.fail(BadType, e.Head.URI())
		return nil
	}
	if !graph.Compatible(tail.Type, head.Type) {
		e.fail(TypeMismatch, e.Head.URI())
		return nil
	}
	if err := graph.ValidateFanIn(tail.Polyphony, head.Polyphony); err != nil {
		e.fail(BadType, e.Head.URI())
		return nil
	}

	parent := commonGraphParent(tail, head)
	if parent == nil {
		e.fail(ParentDiffers, e.Head.URI())
		return nil
	}
	gd := parent.Graph()
	if gd.HasEdge(tail, head) {
		e.fail(Exists, e.Head.URI())
		return nil
	}
	if graph.WouldCycle(gd.Children(), gd.Edges(), tail, head) {
		e.fail(Cycle, e.Head.URI())
		return nil
	}

	e.tail, e.head, e.parent = tail, head, parent
	e.edge = &graph.Edge{Tail: tail, Head: head}

	trialEdges := append(append([]*graph.Edge(nil), gd.Edges()...), e.edge)
	cg, err := graph.Compile(gd.Children(), trialEdges, env.Config.Workers > 0)
	if err != nil {
		e.fail(Cycle, e.Head.URI())
		return nil
	}
	e.newCompiled = cg
	e.succeed()
	return nil
}

func (e *Connect) Execute(env *Env, ctx *rtproc.Context, time int64) {
	if e.Status() != Success {
		return
	}
	gd := e.parent.Graph()
	gd.AddEdge(e.edge)
	old := gd.SwapCompiled(e.newCompiled)
	env.Reclaimer.Push(old)
}

func (e *Connect) PostProcess(env *Env) {
	env.Reclaimer.Drain()
	if e.Status() != Success {
		e.respondStatus(env)
		return
	}
	env.Broadcaster.Connect(e.Tail.URI(), e.Head.URI())
}

func (e *Connect) Undoable() bool { return true }
func (e *Connect) Undo() Event {
	return &Disconnect{Base: NewBase(e.ClientID()), Tail: e.Tail, Head: e.Head}
}

// Disconnect removes one edge.
type Disconnect struct {
	Base
	Tail path.Path
	Head path.Path

	head        *graph.Port
	parent      *graph.Block
	edge        *graph.Edge
	headEmptied bool
	newCompiled *graph.CompiledGraph
}

func (e *Disconnect) PreProcess(env *Env) error {
	env.Store.RLock()
	defer env.Store.RUnlock()

	tail, ok := env.Store.GetPort(e.Tail)
	if !ok {
		e.fail(PortNotFound, e.Tail.URI())
		return nil
	}
	head, ok := env.Store.GetPort(e.Head)
	if !ok {
		e.fail(PortNotFound, e.Head.URI())
		return nil
	}
	parent := commonGraphParent(tail, head)
	if parent == nil {
		e.fail(ParentDiffers, e.Head.URI())
		return nil
	}
	gd := parent.Graph()
	if !gd.HasEdge(tail, head) {
		e.fail(NotFound, e.Head.URI())
		return nil
	}

	var found *graph.Edge
	for _, ed := range gd.Edges() {
		if ed.Tail == tail && ed.Head == head {
			found = ed
			break
		}
	}
	e.head = head
	e.parent = parent
	e.edge = found

	remaining := make([]*graph.Edge, 0, len(gd.Edges()))
	for _, ed := range gd.Edges() {
		if ed != found {
			remaining = append(remaining, ed)
		}
	}
	cg, err := graph.Compile(gd.Children(), remaining, env.Config.Workers > 0)
	if err != nil {
		e.fail(InternalError, e.Head.URI())
		return nil
	}
	e.newCompiled = cg
	e.succeed()
	return nil
}

func (e *Disconnect) Execute(env *Env, ctx *rtproc.Context, time int64) {
	if e.Status() != Success {
		return
	}
	gd := e.parent.Graph()
	e.headEmptied = gd.RemoveEdge(e.edge)
	if e.headEmptied {
		e.head.ResetToValue()
	}
	old := gd.SwapCompiled(e.newCompiled)
	env.Reclaimer.Push(old)
}

func (e *Disconnect) PostProcess(env *Env) {
	env.Reclaimer.Drain()
	if e.Status() != Success {
		e.respondStatus(env)
		return
	}
	env.Broadcaster.Disconnect(e.Tail.URI(), e.Head.URI())
}

func (e *Disconnect) Undoable() bool { return true }
func (e *Disconnect) Undo() Event {
	return &Connect{Base: NewBase(e.ClientID()), Tail: e.Tail, Head: e.Head}
}

// edgeRemovalPlan is one graph's worth of a larger edge-removal
// operation: the edges to drop from graphBlock's schedule, and the
// single recompiled CompiledGraph reflecting all of them dropped at
// once. Built once up front (rather than one recompile per edge) so
// that removing several edges incident to the same port — or the same
// subtree, for Delete — never installs an intermediate schedule that
// forgets an earlier removal in the same batch.
type edgeRemovalPlan struct {
	graphBlock  *graph.Block
	edges       []*graph.Edge
	newCompiled *graph.CompiledGraph
}

// planEdgeRemoval groups every edge touching any of ports by the graph
// whose edge set holds it (a Graph block's own port can have edges in
// up to two distinct graphs, per graph.GraphsHoldingEdgesFor), then
// computes one recompiled schedule per affected graph reflecting every
// targeted edge removed simultaneously.
func planEdgeRemoval(env *Env, ports []*graph.Port, parallel bool) ([]*edgeRemovalPlan, Status, path.URI) {
	byGraph := make(map[*graph.Block]*edgeRemovalPlan)
	order := make([]*graph.Block, 0, 2)
	for _, port := range ports {
		if port.Parent == nil {
			continue
		}
		for _, g := range graph.GraphsHoldingEdgesFor(port.Parent) {
			for _, ed := range g.Graph().EdgesTouching(port) {
				p, ok := byGraph[g]
				if !ok {
					p = &edgeRemovalPlan{graphBlock: g}
					byGraph[g] = p
					order = append(order, g)
				}
				dup := false
				for _, existing := range p.edges {
					if existing == ed {
						dup = true
						break
					}
				}
				if !dup {
					p.edges = append(p.edges, ed)
				}
			}
		}
	}

	plans := make([]*edgeRemovalPlan, 0, len(order))
	for _, g := range order {
		p := byGraph[g]
		gd := g.Graph()
		removeSet := make(map[*graph.Edge]bool, len(p.edges))
		for _, ed := range p.edges {
			removeSet[ed] = true
		}
		remaining := make([]*graph.Edge, 0, len(gd.Edges()))
		for _, ed := range gd.Edges() {
			if !removeSet[ed] {
				remaining = append(remaining, ed)
			}
		}
		cg, err := graph.Compile(gd.Children(), remaining, parallel)
		if err != nil {
			return nil, InternalError, g.Path.URI()
		}
		p.newCompiled = cg
		plans = append(plans, p)
	}
	return plans, Success, ""
}

// applyEdgeRemoval runs on the audio thread: splices every targeted
// edge out of its graph's edge/head bookkeeping and installs the
// already-compiled replacement schedule.
func applyEdgeRemoval(env *Env, plans []*edgeRemovalPlan) {
	for _, p := range plans {
		gd := p.graphBlock.Graph()
		for _, ed := range p.edges {
			if gd.RemoveEdge(ed) {
				ed.Head.ResetToValue()
			}
		}
		old := gd.SwapCompiled(p.newCompiled)
		env.Reclaimer.Push(old)
	}
}

// broadcastEdgeRemoval announces every edge a removal plan dropped.
func broadcastEdgeRemoval(env *Env, plans []*edgeRemovalPlan) {
	for _, p := range plans {
		for _, ed := range p.edges {
			env.Broadcaster.Disconnect(ed.Tail.Path.URI(), ed.Head.Path.URI())
		}
	}
}

// DisconnectAll removes every edge touching a port (used standalone by
// clients, and by Delete's cascade before a subtree is removed).
type DisconnectAll struct {
	Base
	Path path.Path

	port  *graph.Port
	plans []*edgeRemovalPlan
}

func (e *DisconnectAll) PreProcess(env *Env) error {
	env.Store.RLock()
	port, ok := env.Store.GetPort(e.Path)
	env.Store.RUnlock()
	if !ok {
		e.fail(PortNotFound, e.Path.URI())
		return nil
	}
	e.port = port

	plans, status, blamed := planEdgeRemoval(env, []*graph.Port{port}, env.Config.Workers > 0)
	if status != Success {
		e.fail(status, blamed)
		return nil
	}
	e.plans = plans
	e.succeed()
	return nil
}

func (e *DisconnectAll) Execute(env *Env, ctx *rtproc.Context, time int64) {
	if e.Status() != Success {
		return
	}
	applyEdgeRemoval(env, e.plans)
}

func (e *DisconnectAll) PostProcess(env *Env) {
	env.Reclaimer.Drain()
	if e.Status() != Success {
		e.respondStatus(env)
		return
	}
	env.Broadcaster.BundleBegin()
	broadcastEdgeRemoval(env, e.plans)
	env.Broadcaster.BundleEnd()
}

// commonGraphParent returns the graph whose schedule a tail->head edge
// belongs to: the shared immediate parent for a normal edge, or the
// graph-block side of a pass-through pair (spec.md §4.4/§4.5).
func commonGraphParent(tail, head *graph.Port) *graph.Block {
	switch {
	case tail.Parent == head.Parent.Parent:
		return tail.Parent // tail is a port of the graph block that contains head's block
	case head.Parent == tail.Parent.Parent:
		return head.Parent
	case tail.Parent.Parent == head.Parent.Parent:
		return tail.Parent.Parent
	default:
		return nil
	}
}
