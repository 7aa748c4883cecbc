// Package iplug implements the built-in plugins spec.md §3 names as the
// "internal" Plugin type: block-delay, controller, note, time, and
// trigger. Unlike external plugins these have no LV2-family ABI to
// bridge; each is a plain graph.Impl the internal PluginHost
// instantiates directly.
//
// The per-instance state shape (a struct of atomically-stored scalars
// read/written across Activate/Process without locking) is adapted from
// justyntemme-clapgo's pkg/param.ParameterBinder (pkg/param/binding.go),
// which does the same for a CLAP plugin's user-facing parameters; here
// it is generalized to the handful of internal-state scalars each
// built-in needs (held note, delay line, transport cache) instead of
// user parameters.
package iplug

import (
	"fmt"

	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/hostapi"
	"github.com/polyeffects/ingen/pkg/path"
)

// URI namespace for built-in plugins, mirroring spec.md §3's internal
// plugin symbols (block-delay, controller, note, time, trigger).
const ns = "ingen:internals:"

const (
	URIBlockDelay path.URI = ns + "BlockDelay"
	URIController path.URI = ns + "Controller"
	URINote       path.URI = ns + "Note"
	URITime       path.URI = ns + "Time"
	URITrigger    path.URI = ns + "Trigger"
)

// Registry is a hostapi.PluginHost that serves only the five built-in
// plugin types. An engine composes it with an external PluginHost via
// Chain so CreateBlock's single LookupPlugin/Instantiate call reaches
// either world.
type Registry struct {
	descriptors map[path.URI]hostapi.Plugin
}

// NewRegistry builds the fixed catalogue of built-in plugins.
func NewRegistry() *Registry {
	r := &Registry{descriptors: make(map[path.URI]hostapi.Plugin)}
	for _, d := range []hostapi.Plugin{
		{URI: URIBlockDelay, Type: hostapi.PluginInternal, Symbol: "block_delay"},
		{URI: URIController, Type: hostapi.PluginInternal, Symbol: "controller"},
		{URI: URINote, Type: hostapi.PluginInternal, Symbol: "note"},
		{URI: URITime, Type: hostapi.PluginInternal, Symbol: "time"},
		{URI: URITrigger, Type: hostapi.PluginInternal, Symbol: "trigger"},
	} {
		r.descriptors[d.URI] = d
	}
	return r
}

func (r *Registry) LookupPlugin(uri path.URI) (hostapi.Plugin, bool) {
	d, ok := r.descriptors[uri]
	return d, ok
}

func (r *Registry) Instantiate(plugin hostapi.Plugin, sampleRate float64, features hostapi.Features) (graph.Impl, []hostapi.PortDescriptor, error) {
	switch plugin.URI {
	case URIBlockDelay:
		return newBlockDelay(sampleRate), blockDelayPorts(), nil
	case URIController:
		return newController(), controllerPorts(), nil
	case URINote:
		return newNote(), notePorts(), nil
	case URITime:
		return newTime(sampleRate), timePorts(), nil
	case URITrigger:
		return newTrigger(sampleRate), triggerPorts(), nil
	default:
		return nil, nil, fmt.Errorf("iplug: unknown internal plugin %s", plugin.URI)
	}
}

// Chain composes an optional external PluginHost with the internal
// Registry: LookupPlugin/Instantiate try ext first, falling back to
// the built-ins. If ext is nil, only built-ins are reachable.
type Chain struct {
	Ext      hostapi.PluginHost
	Internal *Registry
}

func (c *Chain) LookupPlugin(uri path.URI) (hostapi.Plugin, bool) {
	if c.Ext != nil {
		if p, ok := c.Ext.LookupPlugin(uri); ok {
			return p, true
		}
	}
	return c.Internal.LookupPlugin(uri)
}

func (c *Chain) Instantiate(plugin hostapi.Plugin, sampleRate float64, features hostapi.Features) (graph.Impl, []hostapi.PortDescriptor, error) {
	if plugin.Type == hostapi.PluginInternal {
		return c.Internal.Instantiate(plugin, sampleRate, features)
	}
	return c.Ext.Instantiate(plugin, sampleRate, features)
}

// audioPort/controlPort/eventPort are small literal-struct helpers
// kept local to this package since every internal plugin builds its
// port descriptor list the same way CreateBlock's pre_process expects
// (hostapi.PortDescriptor), just with different symbols.
func controlPort(dir graph.Direction, symbol string, def float64) hostapi.PortDescriptor {
	return hostapi.PortDescriptor{Symbol: symbol, Direction: dir, Type: graph.TypeControl, Polyphony: 1, Default: def}
}

func eventPort(dir graph.Direction, symbol string) hostapi.PortDescriptor {
	return hostapi.PortDescriptor{Symbol: symbol, Direction: dir, Type: graph.TypeEvent, Polyphony: 1}
}
