package graph

import (
	"sync/atomic"

	"github.com/polyeffects/ingen/pkg/rtproc"
)

// graphData is the extra state a Block of KindGraph carries: its
// children, the edge set between them (and to/from its own
// pass-through ports), the live compiled schedule, and its polyphony
// knobs. Unexported: callers only ever see it through Block.Graph().
type graphData struct {
	children   map[string]*Block // keyed by symbol
	childOrder []string          // insertion order, Kahn tie-break
	edges      []*Edge
	edgeIndex  map[edgeKey]*Edge

	compiled atomic.Pointer[CompiledGraph]

	internalPoly int // polyphony for children created inside this graph
	externalPoly int // polyphony this graph presents to its parent

	parallel bool // whether Process uses the worker-slave pool
	workers  []*worker
}

type edgeKey struct {
	tail, head *Port
}

func newGraphData() *graphData {
	return &graphData{
		children:     make(map[string]*Block),
		edgeIndex:    make(map[edgeKey]*Edge),
		internalPoly: 1,
		externalPoly: 1,
	}
}

// Children returns the graph's child blocks in insertion order.
func (g *graphData) Children() []*Block {
	out := make([]*Block, 0, len(g.childOrder))
	for _, sym := range g.childOrder {
		out = append(out, g.children[sym])
	}
	return out
}

// Child looks up a child block by symbol.
func (g *graphData) Child(symbol string) (*Block, bool) {
	b, ok := g.children[symbol]
	return b, ok
}

// AddChild inserts a new child block, preserving insertion order for
// Kahn tie-breaking at compile time.
func (g *graphData) AddChild(b *Block) {
	g.children[b.Symbol] = b
	g.childOrder = append(g.childOrder, b.Symbol)
}

// RenameChild re-keys a child's entry from oldSymbol to newSymbol,
// preserving its position in childOrder (used by Move, spec.md §4.7: a
// rename never disturbs Kahn tie-break order).
func (g *graphData) RenameChild(oldSymbol, newSymbol string) {
	b, ok := g.children[oldSymbol]
	if !ok {
		return
	}
	delete(g.children, oldSymbol)
	g.children[newSymbol] = b
	for i, sym := range g.childOrder {
		if sym == oldSymbol {
			g.childOrder[i] = newSymbol
			break
		}
	}
}

// RemoveChild detaches a child block by symbol.
func (g *graphData) RemoveChild(symbol string) {
	delete(g.children, symbol)
	for i, sym := range g.childOrder {
		if sym == symbol {
			g.childOrder = append(g.childOrder[:i], g.childOrder[i+1:]...)
			break
		}
	}
}

// HasEdge reports whether an edge already exists for (tail, head).
func (g *graphData) HasEdge(tail, head *Port) bool {
	_, ok := g.edgeIndex[edgeKey{tail, head}]
	return ok
}

// AddEdge records a new edge and updates the head port's incoming list.
func (g *graphData) AddEdge(e *Edge) {
	g.edges = append(g.edges, e)
	g.edgeIndex[edgeKey{e.Tail, e.Head}] = e
	e.Head.addEdge(e)
}

// RemoveEdge drops e from the graph's edge set and the head's incoming
// list. Returns whether the head's edge count dropped to zero.
func (g *graphData) RemoveEdge(e *Edge) (headNowEmpty bool) {
	delete(g.edgeIndex, edgeKey{e.Tail, e.Head})
	for i, ex := range g.edges {
		if ex == e {
			g.edges = append(g.edges[:i], g.edges[i+1:]...)
			break
		}
	}
	e.Head.removeEdge(e)
	return len(e.Head.edges) == 0
}

// Edges returns the graph's edge set.
func (g *graphData) Edges() []*Edge { return g.edges }

// SetInternalPoly sets the polyphony new children created inside this
// graph inherit by default (Delta's polyphony special key, spec.md
// §4.7). It does not itself resize any existing child.
func (g *graphData) SetInternalPoly(n int) { g.internalPoly = n }

// InternalPoly returns the graph's current default child polyphony.
func (g *graphData) InternalPoly() int { return g.internalPoly }

// EdgesTouching returns every edge in g whose tail or head is port,
// used by DisconnectAll/Delete to find every connection incident to a
// port without walking the whole Store.
func (g *graphData) EdgesTouching(port *Port) []*Edge {
	var out []*Edge
	for _, e := range g.edges {
		if e.Tail == port || e.Head == port {
			out = append(out, e)
		}
	}
	return out
}

// Compiled returns the currently live compiled schedule (read with a
// single atomic load, per spec.md §4.9: "the audio thread always reads
// the pointer once at cycle start and uses that value through the
// cycle").
func (g *graphData) Compiled() *CompiledGraph {
	return g.compiled.Load()
}

// SwapCompiled atomically installs next, returning the previous value
// for the caller to hand to the reclaimer (spec.md §4.9/§6 invariant).
func (g *graphData) SwapCompiled(next *CompiledGraph) (prev *CompiledGraph) {
	return g.compiled.Swap(next)
}

// process runs the graph's compiled schedule for one cycle, serially or
// with the parallel worker-slave pool per CompiledGraph.Parallel.
func (g *graphData) process(ctx *rtproc.Context, self *Block) error {
	cg := g.compiled.Load()
	if cg == nil || len(cg.Blocks) == 0 {
		return nil
	}

	for _, p := range self.ports {
		p.PreProcess(ctx)
	}

	var err error
	if cg.Parallel && len(g.workers) > 0 {
		err = g.processParallel(ctx, cg)
	} else {
		err = g.processSerial(ctx, cg)
	}

	for _, p := range self.ports {
		p.PostProcess(ctx)
	}
	return err
}

// processSerial walks cg in topological order, one block at a time.
func (g *graphData) processSerial(ctx *rtproc.Context, cg *CompiledGraph) error {
	for _, cb := range cg.Blocks {
		if err := cb.Block.Process(ctx); err != nil {
			return err
		}
	}
	return nil
}
