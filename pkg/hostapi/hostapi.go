// Package hostapi declares the external collaborator interfaces the
// engine consumes: the audio host driver (sample rate, block size, host
// ports, the process callback) and the plugin host (LV2-family plugin
// lookup/instantiation). Per spec.md §1/§6, both are specified here only
// as interfaces — their implementations (a JACK/CoreAudio/ASIO driver,
// an embedded LV2 world) live outside this module.
package hostapi

import (
	"github.com/polyeffects/ingen/pkg/atom"
	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/path"
	"github.com/polyeffects/ingen/pkg/rtproc"
)

// PluginType distinguishes where a Plugin's implementation comes from.
type PluginType uint8

const (
	PluginExternal PluginType = iota // supplied by the PluginHost collaborator
	PluginInternal                   // built in: block-delay, controller, note, time, trigger
	PluginGraph                      // a nested Graph prototype
)

// Plugin is a descriptor for something CreateBlock can instantiate.
type Plugin struct {
	URI    path.URI
	Type   PluginType
	Symbol string
}

// PluginHost is the embedded LV2-family plugin host collaborator.
type PluginHost interface {
	// LookupPlugin resolves a plugin URI to its descriptor. Returns
	// false if unknown (CreateBlock reports PROTOTYPE_NOT_FOUND).
	LookupPlugin(uri path.URI) (Plugin, bool)

	// Instantiate creates a running block implementation for plugin at
	// the given sample rate, returning the spec.md §6 BlockImpl
	// (activate/deactivate/connect_port/run, realized here as
	// graph.Impl) and its port descriptors so CreateBlock's pre_process
	// can build the block's Ports array without the audio thread ever
	// touching the plugin ABI directly.
	Instantiate(plugin Plugin, sampleRate float64, features Features) (graph.Impl, []PortDescriptor, error)
}

// Features bundles the host-supplied facilities a plugin instantiation
// may need (the URI<->URID map and a log sink, per spec.md §6).
type Features struct {
	URIDMap interface {
		Map(u path.URI) path.URID
		Unmap(id path.URID) (path.URI, bool)
	}
	Log func(severity string, message string)
}

// PortDescriptor describes one port a freshly instantiated plugin
// exposes, so CreateBlock can build graph.Port values for it.
type PortDescriptor struct {
	Symbol    string
	Direction graph.Direction
	Type      graph.PortType
	Polyphony int
	Default   float64
}

// AudioHostDriver is the realtime audio/MIDI transport host. It creates
// mirrored host ports for the root graph's ports, drives the per-cycle
// process callback, and reports the frame clock.
type AudioHostDriver interface {
	SampleRate() float64
	BlockLength() uint32
	// NotifyRootPortsChanged is called (off the audio thread) whenever
	// the root graph's port set changes, so the driver can mirror host
	// audio/event ports.
	NotifyRootPortsChanged(ports []*graph.Port)
	// WallClockFrame returns the driver's free-running frame counter.
	WallClockFrame() int64
}

// ControlBindingTarget is the minimal surface ControlBindings needs
// from a port to avoid importing graph for the mapping table itself —
// kept here since hostapi already depends on graph.
type ControlBindingTarget = *graph.Port

// ProcessCallback is the shape of the function an AudioHostDriver
// invokes once per cycle.
type ProcessCallback func(ctx *rtproc.Context)

// DescribeObject renders a Block or Port as an atom.Object, used by Get
// and by Copy's property duplication. Kept here (rather than in atom or
// graph) since it needs both.
func DescribeObject(obj any) *atom.Object {
	switch v := obj.(type) {
	case *graph.Block:
		o := atom.NewObject(path.URI("ingen:Block"))
		o.Set(path.URI("ingen:path"), atom.PathVal(v.Path), atom.ScopeDefault)
		o.Set(path.URI("ingen:polyphony"), atom.Int32(int32(v.Polyphony)), atom.ScopeDefault)
		o.Set(path.URI("ingen:enabled"), atom.Bool(v.Enabled), atom.ScopeDefault)
		for _, p := range v.Properties.Properties() {
			o.Set(p.Key, p.Value, p.Scope)
		}
		return o
	case *graph.Port:
		o := atom.NewObject(path.URI("ingen:Port"))
		o.Set(path.URI("ingen:path"), atom.PathVal(v.Path), atom.ScopeDefault)
		o.Set(path.URI("ingen:index"), atom.Int32(int32(v.Index)), atom.ScopeDefault)
		o.Set(path.URI("ingen:polyphony"), atom.Int32(int32(v.Polyphony)), atom.ScopeDefault)
		for _, p := range v.Properties.Properties() {
			o.Set(p.Key, p.Value, p.Scope)
		}
		return o
	default:
		return atom.NewObject(path.URI("ingen:Unknown"))
	}
}
