package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polyeffects/ingen/pkg/path"
)

func plug(p string) *Block {
	return NewPluginBlock(path.Path(p), "urn:test", &fakeImpl{})
}

func TestCompileOrdersByDependency(t *testing.T) {
	a := plug("/main/a")
	b := plug("/main/b")
	c := plug("/main/c")
	a.Parent, b.Parent, c.Parent = a, a, a // parent identity only matters for self-loop detection

	aOut := &Port{Parent: a}
	bIn := &Port{Parent: b}
	bOut := &Port{Parent: b}
	cIn := &Port{Parent: c}

	edges := []*Edge{{Tail: aOut, Head: bIn}, {Tail: bOut, Head: cIn}}
	cg, err := Compile([]*Block{c, b, a}, edges, false)
	require.NoError(t, err)
	require.Len(t, cg.Blocks, 3)
	require.Same(t, a, cg.Blocks[0].Block)
	require.Same(t, b, cg.Blocks[1].Block)
	require.Same(t, c, cg.Blocks[2].Block)
}

func TestCompileBreaksTiesByDeclarationOrder(t *testing.T) {
	a := plug("/main/a")
	b := plug("/main/b")
	c := plug("/main/c")

	cg, err := Compile([]*Block{c, a, b}, nil, false)
	require.NoError(t, err)
	require.Equal(t, []*Block{c, a, b}, []*Block{cg.Blocks[0].Block, cg.Blocks[1].Block, cg.Blocks[2].Block})
}

func TestCompileDetectsCycle(t *testing.T) {
	a := plug("/main/a")
	b := plug("/main/b")
	aOut, aIn := &Port{Parent: a}, &Port{Parent: a}
	bOut, bIn := &Port{Parent: b}, &Port{Parent: b}

	edges := []*Edge{{Tail: aOut, Head: bIn}, {Tail: bOut, Head: aIn}}
	_, err := Compile([]*Block{a, b}, edges, false)
	require.ErrorIs(t, err, ErrCycle)
}

func TestCompileIgnoresSelfLoopAndPassThroughEdges(t *testing.T) {
	a := plug("/main/a")
	selfA, selfB := &Port{Parent: a}, &Port{Parent: a}
	outside := &Port{Parent: plug("/other/x")}

	edges := []*Edge{{Tail: selfA, Head: selfB}, {Tail: outside, Head: selfA}}
	cg, err := Compile([]*Block{a}, edges, false)
	require.NoError(t, err)
	require.Len(t, cg.Blocks, 1)
}

func TestWouldCycleDetectsProspectiveCycle(t *testing.T) {
	a := plug("/main/a")
	b := plug("/main/b")
	aOut, aIn := &Port{Parent: a}, &Port{Parent: a}
	bOut, bIn := &Port{Parent: b}, &Port{Parent: b}

	edges := []*Edge{{Tail: aOut, Head: bIn}}
	require.True(t, WouldCycle([]*Block{a, b}, edges, bOut, aIn))
	require.False(t, WouldCycle([]*Block{a, b}, edges, aOut, bIn))
}

func TestWouldCycleFalseForSameBlockPorts(t *testing.T) {
	a := plug("/main/a")
	p1, p2 := &Port{Parent: a}, &Port{Parent: a}
	require.False(t, WouldCycle([]*Block{a}, nil, p1, p2))
}
