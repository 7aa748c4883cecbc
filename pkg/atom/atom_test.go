package atom

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polyeffects/ingen/pkg/path"
)

func TestConstructorsSetKind(t *testing.T) {
	require.Equal(t, KindInt, Int32(3).Kind)
	require.Equal(t, KindFloat, Float32(1.5).Kind)
	require.Equal(t, KindBool, Bool(true).Kind)
	require.Equal(t, KindString, String("x").Kind)
	require.Equal(t, KindURI, URIVal("ingen:Plugin").Kind)
	require.Equal(t, KindPath, PathVal("/main").Kind)
	require.Equal(t, KindURID, URIDVal(7).Kind)
	require.True(t, Nil.IsNil())
	require.False(t, Int32(0).IsNil())
}

func TestAsFloat64Numeric(t *testing.T) {
	v, ok := Int32(3).AsFloat64()
	require.True(t, ok)
	require.Equal(t, 3.0, v)

	v, ok = Float32(1.5).AsFloat64()
	require.True(t, ok)
	require.InDelta(t, 1.5, v, 1e-6)

	v, ok = Bool(true).AsFloat64()
	require.True(t, ok)
	require.Equal(t, 1.0, v)

	v, ok = Bool(false).AsFloat64()
	require.True(t, ok)
	require.Equal(t, 0.0, v)
}

func TestAsFloat64RejectsNonNumeric(t *testing.T) {
	_, ok := String("x").AsFloat64()
	require.False(t, ok)
	_, ok = Nil.AsFloat64()
	require.False(t, ok)
}

func TestStringRendering(t *testing.T) {
	require.Equal(t, "3", Int32(3).String())
	require.Equal(t, "true", Bool(true).String())
	require.Equal(t, "false", Bool(false).String())
	require.Equal(t, `"hello"`, String("hello").String())
	require.Equal(t, "<ingen:Plugin>", URIVal("ingen:Plugin").String())
	require.Equal(t, "urid:7", URIDVal(7).String())
	require.Equal(t, "()", Nil.String())
}

func TestObjectSetGetPreservesOrder(t *testing.T) {
	o := NewObject("ingen:Block")
	o.Set("ingen:enabled", Bool(true), ScopeDefault)
	o.Set("ingen:polyphony", Int32(4), ScopeDefault)

	v, ok := o.Get("ingen:enabled")
	require.True(t, ok)
	require.Equal(t, Bool(true), v)

	props := o.Properties()
	require.Len(t, props, 2)
	require.Equal(t, path.URI("ingen:enabled"), props[0].Key)
	require.Equal(t, path.URI("ingen:polyphony"), props[1].Key)
}

func TestObjectSetReplacesValueInPlace(t *testing.T) {
	o := NewObject("ingen:Block")
	o.Set("k", Int32(1), ScopeDefault)
	o.Set("k", Int32(2), ScopeInternal)

	require.Len(t, o.Properties(), 1)
	v, ok := o.Get("k")
	require.True(t, ok)
	require.Equal(t, Int32(2), v)
	require.Equal(t, ScopeInternal, o.Properties()[0].Scope)
}

func TestObjectRemove(t *testing.T) {
	o := NewObject("ingen:Block")
	o.Set("a", Int32(1), ScopeDefault)
	o.Set("b", Int32(2), ScopeDefault)
	o.Set("c", Int32(3), ScopeDefault)

	require.True(t, o.Remove("b"))
	require.False(t, o.Remove("b"))

	_, ok := o.Get("b")
	require.False(t, ok)

	// index must have been fixed up after the middle removal
	va, _ := o.Get("a")
	vc, _ := o.Get("c")
	require.Equal(t, Int32(1), va)
	require.Equal(t, Int32(3), vc)
	require.Len(t, o.Properties(), 2)
}

func TestObjectCloneIsDeepAndIndependent(t *testing.T) {
	o := NewObject("ingen:Block")
	o.Set("a", Int32(1), ScopeDefault)

	c := o.Clone()
	c.Set("a", Int32(2), ScopeDefault)
	c.Set("b", Int32(3), ScopeDefault)

	va, _ := o.Get("a")
	require.Equal(t, Int32(1), va, "mutating the clone must not affect the original")
	require.Len(t, o.Properties(), 1)
	require.Len(t, c.Properties(), 2)
}
