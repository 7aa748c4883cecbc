package rtevent

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/polyeffects/ingen/pkg/atom"
	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/path"
)

// TestSetPortValueUndoRoundTripsToThePriorValue checks that applying a
// SetPortValue and then its own Undo leaves the port's scalar value
// exactly where it started, for random prior and new values.
func TestSetPortValueUndoRoundTripsToThePriorValue(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		env, host := newTestEnv(t)
		host.register("urn:gain", audioInOutDescriptors())
		runEvent(&CreateGraph{Base: NewBase("c1"), Path: path.Path("/main")}, env)
		runEvent(&CreatePort{
			Base: NewBase("c1"), Path: path.Path("/main/level"),
			Direction: graph.DirIn, Type: graph.TypeControl,
		}, env)

		initial := rapid.Float64Range(-10, 10).Draw(t, "initial")
		runEvent(&SetPortValue{Base: NewBase("c1"), Port: path.Path("/main/level"), Value: atom.Float32(float32(initial))}, env)

		next := rapid.Float64Range(-10, 10).Draw(t, "next")
		spv := &SetPortValue{Base: NewBase("c1"), Port: path.Path("/main/level"), Value: atom.Float32(float32(next))}
		require.NoError(t, spv.PreProcess(env))
		spv.Execute(env, nil, 0)

		p, _ := env.Store.GetPort("/main/level")
		require.InDelta(t, next, p.Value, 1e-4)

		undo := spv.Undo()
		require.NoError(t, undo.PreProcess(env))
		undo.Execute(env, nil, 0)

		p, _ = env.Store.GetPort("/main/level")
		require.InDelta(t, initial, p.Value, 1e-4)
	})
}

// TestSetPortValueIsIdempotentForRepeatedIdenticalWrites checks that
// applying the same SetPortValue twice in a row leaves the store in the
// same state as applying it once.
func TestSetPortValueIsIdempotentForRepeatedIdenticalWrites(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		env, host := newTestEnv(t)
		host.register("urn:gain", audioInOutDescriptors())
		runEvent(&CreateGraph{Base: NewBase("c1"), Path: path.Path("/main")}, env)
		runEvent(&CreatePort{
			Base: NewBase("c1"), Path: path.Path("/main/level"),
			Direction: graph.DirIn, Type: graph.TypeControl,
		}, env)

		v := rapid.Float64Range(-10, 10).Draw(t, "v")
		runEvent(&SetPortValue{Base: NewBase("c1"), Port: path.Path("/main/level"), Value: atom.Float32(float32(v))}, env)
		p, _ := env.Store.GetPort("/main/level")
		once := p.Value
		onceBuf := p.Buffers()[0].Buffer().Value

		runEvent(&SetPortValue{Base: NewBase("c1"), Port: path.Path("/main/level"), Value: atom.Float32(float32(v))}, env)
		p, _ = env.Store.GetPort("/main/level")
		require.Equal(t, once, p.Value)
		require.Equal(t, onceBuf, p.Buffers()[0].Buffer().Value)
	})
}
