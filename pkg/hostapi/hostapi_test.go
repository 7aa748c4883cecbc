package hostapi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polyeffects/ingen/pkg/atom"
	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/path"
)

func TestDescribeObjectRendersBlockFields(t *testing.T) {
	b := graph.NewPluginBlock(path.Path("/main/a"), "urn:gain", nil)
	b.Polyphony = 2
	b.Enabled = true
	b.Properties.Set(path.URI("app:color"), atom.String("red"), atom.ScopeDefault)

	o := DescribeObject(b)
	require.Equal(t, path.URI("ingen:Block"), o.Type)

	pathVal, ok := o.Get(path.URI("ingen:path"))
	require.True(t, ok)
	require.Equal(t, "/main/a", pathVal.Str)

	polyVal, _ := o.Get(path.URI("ingen:polyphony"))
	require.Equal(t, int32(2), polyVal.Int)

	enabledVal, _ := o.Get(path.URI("ingen:enabled"))
	require.True(t, enabledVal.Bool)

	colorVal, ok := o.Get(path.URI("app:color"))
	require.True(t, ok)
	require.Equal(t, "red", colorVal.Str)
}

func TestDescribeObjectRendersPortFields(t *testing.T) {
	p := &graph.Port{
		Path: path.Path("/main/a/in"), Symbol: "in",
		Direction: graph.DirIn, Type: graph.TypeControl, Polyphony: 1,
		Properties: atom.NewObject(path.URI("ingen:Port")),
	}
	p.Properties.Set(path.URI("app:label"), atom.String("Gain"), atom.ScopeDefault)

	o := DescribeObject(p)
	require.Equal(t, path.URI("ingen:Port"), o.Type)

	pathVal, _ := o.Get(path.URI("ingen:path"))
	require.Equal(t, "/main/a/in", pathVal.Str)

	labelVal, ok := o.Get(path.URI("app:label"))
	require.True(t, ok)
	require.Equal(t, "Gain", labelVal.Str)
}

func TestDescribeObjectRendersUnknownTypeAsEmptyObject(t *testing.T) {
	o := DescribeObject("not a block or port")
	require.Equal(t, path.URI("ingen:Unknown"), o.Type)
	require.Empty(t, o.Properties())
}
