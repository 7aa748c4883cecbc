package rtevent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polyeffects/ingen/pkg/atom"
	"github.com/polyeffects/ingen/pkg/control"
	"github.com/polyeffects/ingen/pkg/path"
)

func addObj(pairs ...any) *atom.Object {
	o := atom.NewObject(path.URI("ingen:Set"))
	for i := 0; i < len(pairs); i += 2 {
		o.Set(pairs[i].(path.URI), pairs[i+1].(atom.Atom), atom.ScopeDefault)
	}
	return o
}

func TestDeltaSetMergesWithoutTouchingOtherKeys(t *testing.T) {
	env, host := newTestEnv(t)
	setUpTwoGainBlocks(t, env, host)

	runEvent(&Delta{
		Base: NewBase("c1"), Subject: path.Path("/main/a").URI(),
		Add: addObj(path.URI("app:color"), atom.String("red")), Mode: DeltaSet,
	}, env)

	b, _ := env.Store.GetBlock("/main/a")
	v, ok := b.Properties.Get(path.URI("app:color"))
	require.True(t, ok)
	require.Equal(t, "red", v.Str)
}

func TestDeltaPutReplacesEntirePropertySet(t *testing.T) {
	env, host := newTestEnv(t)
	setUpTwoGainBlocks(t, env, host)
	runEvent(&Delta{
		Base: NewBase("c1"), Subject: path.Path("/main/a").URI(),
		Add: addObj(path.URI("app:color"), atom.String("red")), Mode: DeltaSet,
	}, env)

	runEvent(&Delta{
		Base: NewBase("c1"), Subject: path.Path("/main/a").URI(),
		Add: addObj(path.URI("app:shape"), atom.String("square")), Mode: DeltaPut,
	}, env)

	b, _ := env.Store.GetBlock("/main/a")
	_, hasColor := b.Properties.Get(path.URI("app:color"))
	require.False(t, hasColor, "DeltaPut replaces the whole bag")
	v, hasShape := b.Properties.Get(path.URI("app:shape"))
	require.True(t, hasShape)
	require.Equal(t, "square", v.Str)
}

func TestDeltaPatchRemovesThenAdds(t *testing.T) {
	env, host := newTestEnv(t)
	setUpTwoGainBlocks(t, env, host)
	runEvent(&Delta{
		Base: NewBase("c1"), Subject: path.Path("/main/a").URI(),
		Add: addObj(path.URI("app:color"), atom.String("red")), Mode: DeltaSet,
	}, env)

	remove := addObj(path.URI("app:color"), atom.String(""))
	runEvent(&Delta{
		Base: NewBase("c1"), Subject: path.Path("/main/a").URI(),
		Remove: remove, Add: addObj(path.URI("app:shape"), atom.String("round")), Mode: DeltaPatch,
	}, env)

	b, _ := env.Store.GetBlock("/main/a")
	_, hasColor := b.Properties.Get(path.URI("app:color"))
	require.False(t, hasColor)
	v, _ := b.Properties.Get(path.URI("app:shape"))
	require.Equal(t, "round", v.Str)
}

func TestDeltaPolyphonyOnPluginBlockResizesPortsAndRecompiles(t *testing.T) {
	env, host := newTestEnv(t)
	setUpTwoGainBlocks(t, env, host)
	runEvent(&Connect{Base: NewBase("c1"), Tail: path.Path("/main/a/out"), Head: path.Path("/main/b/in")}, env)

	d := &Delta{
		Base: NewBase("c1"), Subject: path.Path("/main/a").URI(),
		Add: addObj(PropPolyphony, atom.Int32(4)), Mode: DeltaSet,
	}
	runEvent(d, env)
	require.Equal(t, Success, d.Status())

	b, _ := env.Store.GetBlock("/main/a")
	require.Equal(t, 4, b.Polyphony)
	out, _ := b.Port("out")
	require.Equal(t, 4, out.Polyphony)
	require.Len(t, out.Buffers(), 4)
}

func TestDeltaPolyphonyOnGraphBlockSetsInternalPolyWithoutResize(t *testing.T) {
	env, host := newTestEnv(t)
	setUpTwoGainBlocks(t, env, host)

	d := &Delta{
		Base: NewBase("c1"), Subject: path.Path("/main").URI(),
		Add: addObj(PropPolyphony, atom.Int32(4)), Mode: DeltaSet,
	}
	runEvent(d, env)
	require.Equal(t, Success, d.Status())

	main, _ := env.Store.GetBlock("/main")
	require.Equal(t, 4, main.Graph().InternalPoly())
}

func TestDeltaPolyphonyRejectsOutOfRange(t *testing.T) {
	env, host := newTestEnv(t)
	setUpTwoGainBlocks(t, env, host)
	d := &Delta{
		Base: NewBase("c1"), Subject: path.Path("/main/a").URI(),
		Add: addObj(PropPolyphony, atom.Int32(999)), Mode: DeltaSet,
	}
	runEvent(d, env)
	require.Equal(t, InvalidPoly, d.Status())
}

func TestDeltaEnabledTogglesBlockEnabled(t *testing.T) {
	env, host := newTestEnv(t)
	setUpTwoGainBlocks(t, env, host)

	d := &Delta{
		Base: NewBase("c1"), Subject: path.Path("/main/a").URI(),
		Add: addObj(PropEnabled, atom.Bool(false)), Mode: DeltaSet,
	}
	runEvent(d, env)
	require.Equal(t, Success, d.Status())

	b, _ := env.Store.GetBlock("/main/a")
	require.False(t, b.Enabled)
}

func TestDeltaBindingInstallsCCBinding(t *testing.T) {
	env, host := newTestEnv(t)
	setUpTwoGainBlocks(t, env, host)

	binding := atom.NewObject(path.URI("midi:Binding"))
	binding.Set(path.URI("midi:channel"), atom.Int32(0), atom.ScopeDefault)
	binding.Set(path.URI("midi:controller"), atom.Int32(7), atom.ScopeDefault)
	binding.Set(path.URI("midi:min"), atom.Float32(0), atom.ScopeDefault)
	binding.Set(path.URI("midi:max"), atom.Float32(1), atom.ScopeDefault)

	d := &Delta{
		Base: NewBase("c1"), Subject: path.Path("/main/a/in").URI(),
		Add: addObj(PropBinding, atom.ObjectVal(binding)), Mode: DeltaSet,
	}
	runEvent(d, env)
	require.Equal(t, Success, d.Status())

	p, _ := env.Store.GetPort("/main/a/in")
	removed := env.Bindings.Remove(p)
	require.Len(t, removed, 1)
	require.Equal(t, control.CC{Channel: 0, Controller: 7}, removed[0].Key)
}

func TestDeltaRejectsMissingSubject(t *testing.T) {
	env, _ := newTestEnv(t)
	d := &Delta{Base: NewBase("c1"), Subject: path.Path("/nope").URI(), Add: addObj(), Mode: DeltaSet}
	runEvent(d, env)
	require.Equal(t, NotFound, d.Status())
}

func TestDeltaUndoRestoresPreviousProperties(t *testing.T) {
	env, host := newTestEnv(t)
	setUpTwoGainBlocks(t, env, host)
	runEvent(&Delta{
		Base: NewBase("c1"), Subject: path.Path("/main/a").URI(),
		Add: addObj(path.URI("app:color"), atom.String("red")), Mode: DeltaSet,
	}, env)

	d := &Delta{
		Base: NewBase("c1"), Subject: path.Path("/main/a").URI(),
		Add: addObj(path.URI("app:color"), atom.String("blue")), Mode: DeltaSet,
	}
	require.NoError(t, d.PreProcess(env))
	undo := d.Undo().(*Delta)
	require.Equal(t, DeltaPut, undo.Mode)
	v, ok := undo.Add.Get(path.URI("app:color"))
	require.True(t, ok)
	require.Equal(t, "red", v.Str)
}
