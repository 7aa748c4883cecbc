package rtevent

import (
	"github.com/rs/zerolog"

	"github.com/polyeffects/ingen/pkg/abuf"
	"github.com/polyeffects/ingen/pkg/atom"
	"github.com/polyeffects/ingen/pkg/broadcast"
	"github.com/polyeffects/ingen/pkg/control"
	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/hostapi"
	"github.com/polyeffects/ingen/pkg/path"
	"github.com/polyeffects/ingen/pkg/rtproc"
	"github.com/polyeffects/ingen/pkg/store"
)

// fakePlugin is a no-op graph.Impl for PreProcess/Execute-level tests
// that never drive an actual audio cycle.
type fakePlugin struct{}

func (fakePlugin) Activate(sampleRate float64, minFrames, maxFrames uint32) error { return nil }
func (fakePlugin) Deactivate() error                                              { return nil }
func (fakePlugin) Process(ctx *rtproc.Context, ports []*graph.Port) error         { return nil }

// fakePluginHost resolves exactly the plugin URIs registered with it,
// each to a fresh fakePlugin instance and a fixed descriptor set.
type fakePluginHost struct {
	plugins     map[path.URI]hostapi.Plugin
	descriptors map[path.URI][]hostapi.PortDescriptor
}

func newFakePluginHost() *fakePluginHost {
	return &fakePluginHost{
		plugins:     make(map[path.URI]hostapi.Plugin),
		descriptors: make(map[path.URI][]hostapi.PortDescriptor),
	}
}

func (h *fakePluginHost) register(uri path.URI, descriptors []hostapi.PortDescriptor) {
	h.plugins[uri] = hostapi.Plugin{URI: uri, Type: hostapi.PluginExternal, Symbol: string(uri)}
	h.descriptors[uri] = descriptors
}

func (h *fakePluginHost) LookupPlugin(uri path.URI) (hostapi.Plugin, bool) {
	p, ok := h.plugins[uri]
	return p, ok
}

func (h *fakePluginHost) Instantiate(plugin hostapi.Plugin, sampleRate float64, features hostapi.Features) (graph.Impl, []hostapi.PortDescriptor, error) {
	return fakePlugin{}, h.descriptors[plugin.URI], nil
}

// audioInOutDescriptors is a common one-in/one-out mono audio plugin
// shape used across the event tests below.
func audioInOutDescriptors() []hostapi.PortDescriptor {
	return []hostapi.PortDescriptor{
		{Symbol: "in", Direction: graph.DirIn, Type: graph.TypeAudio, Polyphony: 1},
		{Symbol: "out", Direction: graph.DirOut, Type: graph.TypeAudio, Polyphony: 1},
	}
}

// newTestEnv builds a fresh Env with a root graph (including its
// control_in/control_out ports) already in the store, mirroring
// engine.New's bootstrap without pulling in the engine package itself.
type helperT interface {
	Helper()
}

func newTestEnv(t helperT) (*Env, *fakePluginHost) {
	t.Helper()
	cfg := rtproc.DefaultConfig()
	buffers := abuf.NewFactory()
	buffers.Grow(abuf.KindSequence, rootControlSeqCapacityForTest, 2)

	root := graph.NewGraphBlock(path.Root)
	root.Graph().SetParallelism(cfg.Workers)
	controlIn := &graph.Port{
		Path: path.Root.Child("control_in"), Symbol: "control_in",
		Direction: graph.DirIn, Type: graph.TypeAtom, Polyphony: 1,
		Properties: atom.NewObject(path.URI("ingen:Port")),
	}
	controlOut := &graph.Port{
		Path: path.Root.Child("control_out"), Symbol: "control_out",
		Direction: graph.DirOut, Type: graph.TypeAtom, Polyphony: 1,
		Properties: atom.NewObject(path.URI("ingen:Port")),
	}
	controlIn.AllocateBuffers([]*abuf.Handle{buffers.Acquire(abuf.KindSequence, rootControlSeqCapacityForTest)})
	controlOut.AllocateBuffers([]*abuf.Handle{buffers.Acquire(abuf.KindSequence, rootControlSeqCapacityForTest)})
	root.AddPort(controlIn)
	root.AddPort(controlOut)
	root.Enabled = true

	st := store.New()
	st.Lock()
	st.Add(path.Root, root)
	st.Add(controlIn.Path, controlIn)
	st.Add(controlOut.Path, controlOut)
	st.Unlock()

	host := newFakePluginHost()
	env := &Env{
		Store:       st,
		Broadcaster: broadcast.New(zerolog.Nop()),
		Bindings:    control.New(),
		PluginHost:  host,
		URIDs:       path.NewURIDMap(),
		Buffers:     buffers,
		Reclaimer:   NewReclaimer(64),
		Config:      cfg,
		Log:         zerolog.Nop(),
	}
	return env, host
}

const rootControlSeqCapacityForTest = 256
