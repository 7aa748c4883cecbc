package main

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/polyeffects/ingen/pkg/graph"
)

// tickerDriver is a stand-in AudioHostDriver that ticks RunCycle on a
// wall-clock timer rather than from a real audio callback, so this
// binary can demonstrate the engine without a hardware backend. A real
// deployment swaps this for a driver that calls RunCycle from its
// actual audio thread.
type tickerDriver struct {
	sampleRate float64
	blockLen   uint32
	frame      atomic.Int64
}

func newTickerDriver(sampleRate float64, blockLen uint32) *tickerDriver {
	return &tickerDriver{sampleRate: sampleRate, blockLen: blockLen}
}

func (d *tickerDriver) SampleRate() float64 { return d.sampleRate }
func (d *tickerDriver) BlockLength() uint32 { return d.blockLen }
func (d *tickerDriver) WallClockFrame() int64 { return d.frame.Load() }

func (d *tickerDriver) NotifyRootPortsChanged(ports []*graph.Port) {}

// run calls onCycle(blockLen) once per block period until ctx is
// canceled, advancing the wall-clock frame counter each time.
func (d *tickerDriver) run(ctx context.Context, onCycle func(nframes uint32)) {
	period := time.Duration(float64(d.blockLen) / d.sampleRate * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			onCycle(d.blockLen)
			d.frame.Add(int64(d.blockLen))
		}
	}
}
