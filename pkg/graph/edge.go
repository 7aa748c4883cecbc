package graph

// Edge is one directed connection, tail (output) port to head (input)
// port. At most one edge exists per ordered (tail, head) pair
// (spec.md §3 invariants).
type Edge struct {
	Tail *Port // output port
	Head *Port // input port
}

// sameParent reports whether tail and head share an immediate enclosing
// graph (a "normal" edge), which Connect's pre_process must check
// alongside the pass-through exception (one port's parent is the
// other's parent block itself).
func sameParent(tail, head *Port) bool {
	return tail.Parent.Parent == head.Parent.Parent
}

// isPassThrough reports whether tail or head is a port of a Graph block
// being connected to/from one of that graph's own children — i.e. one
// port's parent block *is* the other port's parent's parent.
func isPassThrough(tail, head *Port) bool {
	return tail.Parent == head.Parent.Parent || head.Parent == tail.Parent.Parent
}

// GraphsHoldingEdgesFor returns every Block whose graphData could hold
// an edge touching a port owned by owner. An ordinary port's edges
// live entirely in owner's enclosing graph (owner.Parent). A Graph
// block's own ports bridge two edge sets per spec.md §4.4 ("internally,
// the graph's input port acts as a source, its output port as a sink"):
// owner.Parent holds edges connecting that port to owner's siblings
// (an ordinary edge, indistinguishable from any other block's port from
// the parent's point of view), while owner itself holds the
// pass-through edges connecting that same port to owner's own
// children. Both must be searched to find every edge incident to one
// of a Graph block's own ports; only the first applies to a plain
// block's ports.
func GraphsHoldingEdgesFor(owner *Block) []*Block {
	var out []*Block
	if owner.Parent != nil {
		out = append(out, owner.Parent)
	}
	if owner.Kind == KindGraph {
		out = append(out, owner)
	}
	return out
}
