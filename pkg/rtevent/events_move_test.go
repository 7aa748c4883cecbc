package rtevent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polyeffects/ingen/pkg/path"
)

func TestMoveRenamesBlockInPlace(t *testing.T) {
	env, host := newTestEnv(t)
	setUpTwoGainBlocks(t, env, host)

	mv := &Move{Base: NewBase("c1"), From: path.Path("/main/a"), To: path.Path("/main/renamed")}
	runEvent(mv, env)
	require.Equal(t, Success, mv.Status())

	_, ok := env.Store.GetBlock("/main/a")
	require.False(t, ok)
	b, ok := env.Store.GetBlock("/main/renamed")
	require.True(t, ok)
	require.Equal(t, "renamed", b.Symbol)

	main, _ := env.Store.GetBlock("/main")
	_, ok = main.Graph().Child("renamed")
	require.True(t, ok)
	_, ok = main.Graph().Child("a")
	require.False(t, ok)
}

func TestMoveRenamesPortInPlace(t *testing.T) {
	env, host := newTestEnv(t)
	host.register("urn:gain", audioInOutDescriptors())
	runEvent(&CreateGraph{Base: NewBase("c1"), Path: path.Path("/main")}, env)
	runEvent(&CreateBlock{Base: NewBase("c1"), Path: path.Path("/main/a"), PluginURI: "urn:gain"}, env)

	mv := &Move{Base: NewBase("c1"), From: path.Path("/main/a/in"), To: path.Path("/main/a/input")}
	runEvent(mv, env)
	require.Equal(t, Success, mv.Status())

	b, _ := env.Store.GetBlock("/main/a")
	_, ok := b.Port("in")
	require.False(t, ok)
	p, ok := b.Port("input")
	require.True(t, ok)
	require.Equal(t, "input", p.Symbol)
}

func TestMoveRewritesDescendantPaths(t *testing.T) {
	env, host := newTestEnv(t)
	setUpTwoGainBlocks(t, env, host)

	mv := &Move{Base: NewBase("c1"), From: path.Path("/main/a"), To: path.Path("/main/renamed")}
	runEvent(mv, env)
	require.Equal(t, Success, mv.Status())

	_, ok := env.Store.GetPort("/main/a/in")
	require.False(t, ok)
	_, ok = env.Store.GetPort("/main/renamed/in")
	require.True(t, ok)
}

func TestMoveRejectsRoot(t *testing.T) {
	env, _ := newTestEnv(t)
	mv := &Move{Base: NewBase("c1"), From: path.Root, To: path.Path("/renamed")}
	runEvent(mv, env)
	require.Equal(t, BadRequest, mv.Status())
}

func TestMoveRejectsCrossParentDestination(t *testing.T) {
	env, host := newTestEnv(t)
	setUpTwoGainBlocks(t, env, host)
	runEvent(&CreateGraph{Base: NewBase("c1"), Path: path.Path("/other")}, env)

	mv := &Move{Base: NewBase("c1"), From: path.Path("/main/a"), To: path.Path("/other/a")}
	runEvent(mv, env)
	require.Equal(t, ParentDiffers, mv.Status())
}

func TestMoveRejectsExistingDestination(t *testing.T) {
	env, host := newTestEnv(t)
	setUpTwoGainBlocks(t, env, host)

	mv := &Move{Base: NewBase("c1"), From: path.Path("/main/a"), To: path.Path("/main/b")}
	runEvent(mv, env)
	require.Equal(t, Exists, mv.Status())
}

func TestMoveRejectsMissingSource(t *testing.T) {
	env, _ := newTestEnv(t)
	mv := &Move{Base: NewBase("c1"), From: path.Path("/nope"), To: path.Path("/also-nope")}
	runEvent(mv, env)
	require.Equal(t, NotFound, mv.Status())
}

func TestMoveUndoSwapsFromAndTo(t *testing.T) {
	env, host := newTestEnv(t)
	setUpTwoGainBlocks(t, env, host)

	mv := &Move{Base: NewBase("c1"), From: path.Path("/main/a"), To: path.Path("/main/renamed")}
	runEvent(mv, env)

	undo := mv.Undo().(*Move)
	require.Equal(t, path.Path("/main/renamed"), undo.From)
	require.Equal(t, path.Path("/main/a"), undo.To)
}
