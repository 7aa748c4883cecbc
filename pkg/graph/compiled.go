package graph

import "errors"

// ErrCycle is returned when compiling a graph whose edges induce a
// cyclic block-level dependency.
var ErrCycle = errors.New("graph: edge set induces a cycle")

// CompiledBlock is one scheduled element of a CompiledGraph: the block
// itself, plus the provider count and dependant list used for parallel
// wavefront execution.
type CompiledBlock struct {
	Block      *Block
	NProviders int
	Dependants []*Block
}

// CompiledGraph is a topologically ordered execution plan for one
// Graph's children, satisfying spec.md §3's CompiledGraph invariant:
// for every edge tail.block -> head.block, tail appears before head (in
// serial order), or the provider/dependant edge allows correct wavefront
// scheduling (in parallel order).
type CompiledGraph struct {
	Blocks   []CompiledBlock
	Parallel bool
}

// Compile derives a CompiledGraph from children (in declaration order,
// for Kahn tie-breaking) and edges (intra-graph only — pass-through
// edges to the enclosing graph's own ports do not add a dependency,
// per spec.md §4.4). parallel selects whether the result carries
// provider/dependant bookkeeping for the worker-slave pool.
func Compile(children []*Block, edges []*Edge, parallel bool) (*CompiledGraph, error) {
	indegree := make(map[*Block]int, len(children))
	adj := make(map[*Block][]*Block, len(children))
	order := make([]*Block, 0, len(children))
	index := make(map[*Block]int, len(children))
	for i, b := range children {
		indegree[b] = 0
		index[b] = i
	}

	seenEdge := make(map[[2]*Block]bool)
	for _, e := range edges {
		tb, hb := e.Tail.Parent, e.Head.Parent
		if tb == hb {
			continue // self-loop within one block's own ports: not a schedule edge
		}
		if _, ok := index[tb]; !ok {
			continue // tail not a child of this graph (pass-through)
		}
		if _, ok := index[hb]; !ok {
			continue // head not a child of this graph (pass-through)
		}
		key := [2]*Block{tb, hb}
		if seenEdge[key] {
			continue
		}
		seenEdge[key] = true
		adj[tb] = append(adj[tb], hb)
		indegree[hb]++
	}

	// Kahn's algorithm, ties broken by child insertion order.
	queue := make([]*Block, 0, len(children))
	remaining := make(map[*Block]int, len(children))
	for b, d := range indegree {
		remaining[b] = d
		if d == 0 {
			queue = append(queue, b)
		}
	}
	sortByIndex(queue, index)

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		var freed []*Block
		for _, m := range adj[n] {
			remaining[m]--
			if remaining[m] == 0 {
				freed = append(freed, m)
			}
		}
		sortByIndex(freed, index)
		queue = append(queue, freed...)
		sortByIndex(queue, index)
	}

	if len(order) != len(children) {
		return nil, ErrCycle
	}

	cg := &CompiledGraph{Blocks: make([]CompiledBlock, len(order)), Parallel: parallel}
	for i, b := range order {
		cg.Blocks[i] = CompiledBlock{
			Block:      b,
			NProviders: indegree[b],
			Dependants: append([]*Block(nil), adj[b]...),
		}
	}
	return cg, nil
}

// sortByIndex performs a small insertion sort by each block's original
// declaration index; used instead of sort.Slice to keep the compile
// path allocation-light and deterministic for small child counts.
func sortByIndex(blocks []*Block, index map[*Block]int) {
	for i := 1; i < len(blocks); i++ {
		j := i
		for j > 0 && index[blocks[j-1]] > index[blocks[j]] {
			blocks[j-1], blocks[j] = blocks[j], blocks[j-1]
			j--
		}
	}
}

// WouldCycle reports whether adding a tail->head edge to the given
// children/edges set would make the block-level DAG cyclic, without
// mutating anything. Used by Connect's pre_process (spec.md §4.5).
func WouldCycle(children []*Block, edges []*Edge, tail, head *Port) bool {
	if tail.Parent == head.Parent {
		return false
	}
	trial := make([]*Edge, len(edges), len(edges)+1)
	copy(trial, edges)
	trial = append(trial, &Edge{Tail: tail, Head: head})
	_, err := Compile(children, trial, false)
	return errors.Is(err, ErrCycle)
}
