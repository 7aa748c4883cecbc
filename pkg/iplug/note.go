package iplug

import (
	"math"

	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/hostapi"
	"github.com/polyeffects/ingen/pkg/rtproc"
)

const (
	midiNoteOn  = 0x90
	midiNoteOff = 0x80
)

// note is a monophonic MIDI-to-control converter: the classic
// key-follow building block that turns a note-on/note-off event stream
// into frequency/gate/velocity control outputs a synth voice graph
// reads. Last-note-wins, note-off only releases the gate if it matches
// the currently held note (so a held chord doesn't drop gate on the
// first released key).
type note struct {
	held    int
	holding bool
}

func newNote() *note { return &note{held: -1} }

func notePorts() []hostapi.PortDescriptor {
	return []hostapi.PortDescriptor{
		eventPort(graph.DirIn, "in"),
		controlPort(graph.DirOut, "freq", 440),
		controlPort(graph.DirOut, "gate", 0),
		controlPort(graph.DirOut, "velocity", 0),
	}
}

func (n *note) Activate(sampleRate float64, minFrames, maxFrames uint32) error { return nil }
func (n *note) Deactivate() error                                             { return nil }

func (n *note) Process(ctx *rtproc.Context, ports []*graph.Port) error {
	in := ports[0].Buffers()[0].Buffer()
	freq := ports[1].Buffers()[0].Buffer()
	gate := ports[2].Buffers()[0].Buffer()
	vel := ports[3].Buffers()[0].Buffer()

	for _, ev := range in.Events {
		if len(ev.Body) < 3 {
			continue
		}
		status, key, velocity := ev.Body[0]&0xF0, int(ev.Body[1]), ev.Body[2]
		switch {
		case status == midiNoteOn && velocity > 0:
			n.held, n.holding = key, true
			freq.Value = noteToFreq(key)
			gate.Value = 1
			vel.Value = float32(velocity) / 127.0
		case status == midiNoteOff, status == midiNoteOn && velocity == 0:
			if n.holding && key == n.held {
				n.holding = false
				gate.Value = 0
			}
		}
	}
	return nil
}

// noteToFreq converts a MIDI note number to Hz, A4 (69) = 440Hz.
func noteToFreq(note int) float32 {
	return float32(440.0 * math.Pow(2, float64(note-69)/12.0))
}
