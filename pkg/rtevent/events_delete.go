package rtevent

import (
	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/path"
	"github.com/polyeffects/ingen/pkg/rtproc"
)

// Delete removes a Block (and its whole subtree) or a single Port from
// the Store: it cascades an edge removal over every port the deleted
// object bridges to the outside world, detaches it from its owning
// block or parent graph, and recompiles whatever schedule lost a child
// (spec.md §4.7, scenario 5).
//
// Delete is not Undoable: a faithful inverse would need a full
// snapshot of the deleted subtree (properties, ports, every internal
// and external edge) to resurrect, which this generic single-event
// inverse mechanism isn't built for — Ingen's own GUI undo history
// handles subtree recreation by replaying the original Create*/Connect
// events, not by asking the engine for Delete's inverse.
type Delete struct {
	Base
	Path path.Path

	block      *graph.Block // set when deleting a Block
	port       *graph.Port  // set when deleting a Port directly
	portOwner  *graph.Block // port's owning block, for Port deletion

	plans        []*edgeRemovalPlan // every other affected graph's edge removal
	parentPlan   *edgeRemovalPlan   // block's parent: edges + child removed together
	removedPaths []path.Path
}

func (e *Delete) PreProcess(env *Env) error {
	env.Store.Lock()
	defer env.Store.Unlock()

	if e.Path.IsRoot() {
		e.fail(BadRequest, e.Path.URI())
		return nil
	}
	obj, ok := env.Store.Get(e.Path)
	if !ok {
		e.fail(NotFound, e.Path.URI())
		return nil
	}

	var bridgePorts []*graph.Port
	switch v := obj.(type) {
	case *graph.Block:
		e.block = v
		bridgePorts = v.Ports()
	case *graph.Port:
		e.port = v
		e.portOwner = v.Parent
		bridgePorts = []*graph.Port{v}
	default:
		e.fail(InternalError, e.Path.URI())
		return nil
	}

	plans, status, blamed := planEdgeRemoval(env, bridgePorts, env.Config.Workers > 0)
	if status != Success {
		e.fail(status, blamed)
		return nil
	}

	if e.block != nil {
		// Drop the plan for the block's own graph data (if it is a
		// Graph block): its whole subtree is discarded wholesale, so
		// its internal pass-through edges need no separate recompile.
		for i, p := range plans {
			if p.graphBlock == e.block {
				plans = append(plans[:i], plans[i+1:]...)
				break
			}
		}
		if e.block.Parent != nil {
			parent := e.block.Parent
			var parentEdges []*graph.Edge
			for i, p := range plans {
				if p.graphBlock == parent {
					parentEdges = p.edges
					plans = append(plans[:i], plans[i+1:]...)
					break
				}
			}
			gd := parent.Graph()
			removeSet := make(map[*graph.Edge]bool, len(parentEdges))
			for _, ed := range parentEdges {
				removeSet[ed] = true
			}
			remainingEdges := make([]*graph.Edge, 0, len(gd.Edges()))
			for _, ed := range gd.Edges() {
				if !removeSet[ed] {
					remainingEdges = append(remainingEdges, ed)
				}
			}
			remainingChildren := make([]*graph.Block, 0, len(gd.Children()))
			for _, c := range gd.Children() {
				if c != e.block {
					remainingChildren = append(remainingChildren, c)
				}
			}
			cg, err := graph.Compile(remainingChildren, remainingEdges, env.Config.Workers > 0)
			if err != nil {
				e.fail(InternalError, e.Path.URI())
				return nil
			}
			e.parentPlan = &edgeRemovalPlan{graphBlock: parent, edges: parentEdges, newCompiled: cg}
		}
	}
	e.plans = plans

	subtree := env.Store.FindByPrefix(e.Path)
	for _, p := range subtree {
		if port, ok := env.Store.GetPort(p); ok {
			env.Bindings.Remove(port)
		}
	}
	e.removedPaths = env.Store.Remove(e.Path)

	e.succeed()
	return nil
}

func (e *Delete) Execute(env *Env, ctx *rtproc.Context, time int64) {
	if e.Status() != Success {
		return
	}
	applyEdgeRemoval(env, e.plans)

	if e.parentPlan != nil {
		gd := e.parentPlan.graphBlock.Graph()
		for _, ed := range e.parentPlan.edges {
			if gd.RemoveEdge(ed) {
				ed.Head.ResetToValue()
			}
		}
		gd.RemoveChild(e.block.Symbol)
		old := gd.SwapCompiled(e.parentPlan.newCompiled)
		env.Reclaimer.Push(old)
	}

	if e.port != nil && e.portOwner != nil {
		if removed, ok := e.portOwner.RemovePort(e.port.Symbol); ok {
			env.Reclaimer.Push(removed.Buffers())
		}
	}
	if e.block != nil {
		env.Reclaimer.Push(e.block)
	}
}

func (e *Delete) PostProcess(env *Env) {
	env.Reclaimer.Drain()
	if e.Status() != Success {
		e.respondStatus(env)
		return
	}
	env.Broadcaster.BundleBegin()
	broadcastEdgeRemoval(env, e.plans)
	if e.parentPlan != nil {
		for _, ed := range e.parentPlan.edges {
			env.Broadcaster.Disconnect(ed.Tail.Path.URI(), ed.Head.Path.URI())
		}
	}
	for _, p := range e.removedPaths {
		env.Broadcaster.Del(p.URI())
	}
	env.Broadcaster.BundleEnd()
}
