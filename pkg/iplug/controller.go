package iplug

import (
	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/hostapi"
	"github.com/polyeffects/ingen/pkg/rtproc"
)

// midiCCStatus is the status nibble for a Control Change message,
// matching the constant pkg/control uses for the same wire format.
const midiCCStatus = 0xB0

// controller watches one MIDI CC number on its event input and tracks
// it as a scaled control output, the same translation pkg/control's
// ControlBindings performs for the root graph's transport ports but
// exposed here as an ordinary block so a plugin graph can map a
// controller to an arbitrary internal destination.
type controller struct {
	last float32
}

func newController() *controller { return &controller{} }

func controllerPorts() []hostapi.PortDescriptor {
	return []hostapi.PortDescriptor{
		eventPort(graph.DirIn, "in"),
		controlPort(graph.DirIn, "controller", 1),
		controlPort(graph.DirIn, "min", 0),
		controlPort(graph.DirIn, "max", 1),
		controlPort(graph.DirOut, "out", 0),
	}
}

func (c *controller) Activate(sampleRate float64, minFrames, maxFrames uint32) error { return nil }
func (c *controller) Deactivate() error                                              { return nil }

func (c *controller) Process(ctx *rtproc.Context, ports []*graph.Port) error {
	in := ports[0].Buffers()[0].Buffer()
	want := uint8(ports[1].Buffers()[0].Buffer().Value)
	lo := ports[2].Buffers()[0].Buffer().Value
	hi := ports[3].Buffers()[0].Buffer().Value
	out := ports[4].Buffers()[0].Buffer()

	for _, ev := range in.Events {
		if len(ev.Body) < 3 || ev.Body[0]&0xF0 != midiCCStatus {
			continue
		}
		if ev.Body[1] != want {
			continue
		}
		norm := float32(ev.Body[2]) / 127.0
		c.last = float32(lo) + norm*float32(hi-lo)
	}
	out.Value = c.last
	return nil
}
