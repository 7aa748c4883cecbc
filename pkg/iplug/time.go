package iplug

import (
	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/hostapi"
	"github.com/polyeffects/ingen/pkg/rtproc"
)

// timeBlock exposes the host transport window as control outputs, so a
// graph can read the current frame, elapsed seconds, and the running
// cycle's sample rate without reaching into hostapi directly. speed is
// fixed at 1.0: this core has no transport pause/scrub model, only the
// advancing cycle RunCycle feeds it.
type timeBlock struct {
	sampleRate float64
}

func newTime(sampleRate float64) *timeBlock { return &timeBlock{sampleRate: sampleRate} }

func timePorts() []hostapi.PortDescriptor {
	return []hostapi.PortDescriptor{
		controlPort(graph.DirOut, "frame", 0),
		controlPort(graph.DirOut, "seconds", 0),
		controlPort(graph.DirOut, "speed", 1),
	}
}

func (t *timeBlock) Activate(sampleRate float64, minFrames, maxFrames uint32) error {
	t.sampleRate = sampleRate
	return nil
}
func (t *timeBlock) Deactivate() error { return nil }

func (t *timeBlock) Process(ctx *rtproc.Context, ports []*graph.Port) error {
	ports[0].Buffers()[0].Buffer().Value = float32(ctx.Start)
	if t.sampleRate > 0 {
		ports[1].Buffers()[0].Buffer().Value = float32(float64(ctx.Start) / t.sampleRate)
	}
	ports[2].Buffers()[0].Buffer().Value = 1
	return nil
}
