package iplug

import (
	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/hostapi"
	"github.com/polyeffects/ingen/pkg/rtproc"
)

// blockDelay passes its input through delayed by exactly one cycle,
// which is the idiomatic way to break a feedback loop that would
// otherwise make the enclosing graph's schedule cyclic: a block-delay
// sits on the feedback leg so the cycle it closes is resolved by time
// rather than by evaluation order.
type blockDelay struct {
	sampleRate float64
	prev       []float32
}

func newBlockDelay(sampleRate float64) *blockDelay {
	return &blockDelay{sampleRate: sampleRate}
}

func blockDelayPorts() []hostapi.PortDescriptor {
	return []hostapi.PortDescriptor{
		{Symbol: "in", Direction: graph.DirIn, Type: graph.TypeAudio, Polyphony: 1},
		{Symbol: "out", Direction: graph.DirOut, Type: graph.TypeAudio, Polyphony: 1},
	}
}

func (d *blockDelay) Activate(sampleRate float64, minFrames, maxFrames uint32) error {
	d.sampleRate = sampleRate
	d.prev = make([]float32, maxFrames)
	return nil
}

func (d *blockDelay) Deactivate() error {
	d.prev = nil
	return nil
}

func (d *blockDelay) Process(ctx *rtproc.Context, ports []*graph.Port) error {
	in := ports[0].Buffers()[0].Buffer()
	out := ports[1].Buffers()[0].Buffer()

	n := len(out.Samples)
	if len(d.prev) < n {
		grown := make([]float32, n)
		copy(grown, d.prev)
		d.prev = grown
	}
	copy(out.Samples, d.prev[:n])
	copy(d.prev[:n], in.Samples[:minInt(n, len(in.Samples))])
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
