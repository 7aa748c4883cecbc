package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestCompileProducesValidTopologicalOrderForAnyAcyclicEdgeSet generates
// random block counts and random edges restricted to point from a
// lower-index block to a higher-index one (acyclic by construction),
// then checks Compile's result honors every edge's ordering and
// schedules every block exactly once.
func TestCompileProducesValidTopologicalOrderForAnyAcyclicEdgeSet(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 10).Draw(t, "n")
		blocks := make([]*Block, n)
		for i := range blocks {
			blocks[i] = plug(fmt.Sprintf("/main/b%d", i))
		}

		nEdges := rapid.IntRange(0, n*2).Draw(t, "nEdges")
		var edges []*Edge
		for i := 0; i < nEdges; i++ {
			if n < 2 {
				break
			}
			lo := rapid.IntRange(0, n-2).Draw(t, "lo")
			hi := rapid.IntRange(lo+1, n-1).Draw(t, "hi")
			edges = append(edges, &Edge{
				Tail: &Port{Parent: blocks[lo]},
				Head: &Port{Parent: blocks[hi]},
			})
		}

		cg, err := Compile(blocks, edges, false)
		require.NoError(t, err)
		require.Len(t, cg.Blocks, n)

		position := make(map[*Block]int, n)
		seen := make(map[*Block]bool, n)
		for i, cb := range cg.Blocks {
			position[cb.Block] = i
			require.False(t, seen[cb.Block], "block scheduled more than once")
			seen[cb.Block] = true
		}
		for _, b := range blocks {
			require.True(t, seen[b], "every child must appear in the compiled schedule")
		}
		for _, e := range edges {
			require.Less(t, position[e.Tail.Parent], position[e.Head.Parent],
				"tail's block must be scheduled before head's block")
		}
	})
}

// TestWouldCycleAgreesWithCompileOnRandomGraphs checks WouldCycle's
// verdict for a prospective edge matches what Compile itself reports
// once that edge is actually added.
func TestWouldCycleAgreesWithCompileOnRandomGraphs(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 6).Draw(t, "n")
		blocks := make([]*Block, n)
		for i := range blocks {
			blocks[i] = plug(fmt.Sprintf("/main/b%d", i))
		}

		nEdges := rapid.IntRange(0, n).Draw(t, "nEdges")
		var edges []*Edge
		for i := 0; i < nEdges; i++ {
			lo := rapid.IntRange(0, n-2).Draw(t, "lo")
			hi := rapid.IntRange(lo+1, n-1).Draw(t, "hi")
			edges = append(edges, &Edge{Tail: &Port{Parent: blocks[lo]}, Head: &Port{Parent: blocks[hi]}})
		}

		ti := rapid.IntRange(0, n-1).Draw(t, "tailBlock")
		hi := rapid.IntRange(0, n-1).Draw(t, "headBlock")
		tail := &Port{Parent: blocks[ti]}
		head := &Port{Parent: blocks[hi]}

		predicted := WouldCycle(blocks, edges, tail, head)

		trial := append(append([]*Edge(nil), edges...), &Edge{Tail: tail, Head: head})
		_, err := Compile(blocks, trial, false)
		actual := err == ErrCycle

		require.Equal(t, predicted, actual)
	})
}
