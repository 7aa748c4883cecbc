package iplug

import (
	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/hostapi"
	"github.com/polyeffects/ingen/pkg/rtproc"
)

// trigger converts a MIDI note-on into a single-cycle pulse: out reads
// 1 for the one cycle a note-on was seen, then 0 until the next one.
// Useful for driving envelope retriggers or event counters from a
// note stream without caring about note-off or note identity.
type trigger struct {
	sampleRate float64
}

func newTrigger(sampleRate float64) *trigger { return &trigger{sampleRate: sampleRate} }

func triggerPorts() []hostapi.PortDescriptor {
	return []hostapi.PortDescriptor{
		eventPort(graph.DirIn, "in"),
		controlPort(graph.DirOut, "out", 0),
	}
}

func (t *trigger) Activate(sampleRate float64, minFrames, maxFrames uint32) error {
	t.sampleRate = sampleRate
	return nil
}
func (t *trigger) Deactivate() error { return nil }

func (t *trigger) Process(ctx *rtproc.Context, ports []*graph.Port) error {
	in := ports[0].Buffers()[0].Buffer()
	out := ports[1].Buffers()[0].Buffer()

	fired := false
	for _, ev := range in.Events {
		if len(ev.Body) < 3 {
			continue
		}
		if ev.Body[0]&0xF0 == midiNoteOn && ev.Body[2] > 0 {
			fired = true
		}
	}
	if fired {
		out.Value = 1
	} else {
		out.Value = 0
	}
	return nil
}
