package rtevent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polyeffects/ingen/pkg/control"
	"github.com/polyeffects/ingen/pkg/path"
)

func TestDeleteRemovesBlockAndItsEdges(t *testing.T) {
	env, host := newTestEnv(t)
	setUpTwoGainBlocks(t, env, host)
	runEvent(&Connect{Base: NewBase("c1"), Tail: path.Path("/main/a/out"), Head: path.Path("/main/b/in")}, env)

	del := &Delete{Base: NewBase("c1"), Path: path.Path("/main/a")}
	runEvent(del, env)
	require.Equal(t, Success, del.Status())

	_, ok := env.Store.GetBlock("/main/a")
	require.False(t, ok)
	_, ok = env.Store.GetPort("/main/a/out")
	require.False(t, ok)

	main, _ := env.Store.GetBlock("/main")
	require.Empty(t, main.Graph().Edges())
	require.Len(t, main.Graph().Children(), 1, "block b must survive a's deletion")
}

func TestDeleteRemovesSinglePort(t *testing.T) {
	env, host := newTestEnv(t)
	host.register("urn:gain", audioInOutDescriptors())
	runEvent(&CreateGraph{Base: NewBase("c1"), Path: path.Path("/main")}, env)
	runEvent(&CreateBlock{Base: NewBase("c1"), Path: path.Path("/main/a"), PluginURI: "urn:gain"}, env)
	runEvent(&CreatePort{Base: NewBase("c1"), Path: path.Path("/main/a/extra"), Index: 2}, env)

	del := &Delete{Base: NewBase("c1"), Path: path.Path("/main/a/extra")}
	runEvent(del, env)
	require.Equal(t, Success, del.Status())

	b, _ := env.Store.GetBlock("/main/a")
	_, ok := b.Port("extra")
	require.False(t, ok)
}

func TestDeleteRejectsRoot(t *testing.T) {
	env, _ := newTestEnv(t)
	del := &Delete{Base: NewBase("c1"), Path: path.Root}
	runEvent(del, env)
	require.Equal(t, BadRequest, del.Status())
}

func TestDeleteRejectsMissingPath(t *testing.T) {
	env, _ := newTestEnv(t)
	del := &Delete{Base: NewBase("c1"), Path: path.Path("/nope")}
	runEvent(del, env)
	require.Equal(t, NotFound, del.Status())
}

func TestDeleteIsNotUndoable(t *testing.T) {
	env, host := newTestEnv(t)
	setUpTwoGainBlocks(t, env, host)
	del := &Delete{Base: NewBase("c1"), Path: path.Path("/main/a")}
	runEvent(del, env)
	require.False(t, del.Undoable())
	require.Nil(t, del.Undo())
}

func TestDeleteOfGraphRemovesControlBindings(t *testing.T) {
	env, host := newTestEnv(t)
	host.register("urn:gain", audioInOutDescriptors())
	runEvent(&CreateGraph{Base: NewBase("c1"), Path: path.Path("/main")}, env)
	runEvent(&CreateBlock{Base: NewBase("c1"), Path: path.Path("/main/a"), PluginURI: "urn:gain"}, env)

	p, _ := env.Store.GetPort("/main/a/in")
	env.Bindings.Bind(control.CC{Channel: 0, Controller: 1}, p, 0, 1)

	del := &Delete{Base: NewBase("c1"), Path: path.Path("/main/a")}
	runEvent(del, env)
	require.Equal(t, Success, del.Status())

	removed := env.Bindings.Remove(p)
	require.Empty(t, removed, "binding must already have been dropped by Delete")
}
