package graph

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/polyeffects/ingen/pkg/rtproc"
)

// worker is a persistent goroutine cooperating with the audio thread
// to drive one graph's compiled schedule, parked on startCh between
// cycles. Grounded directly on Ingen's engine/ProcessSlave.cpp: a
// ProcessSlave thread is created once and parked on a semaphore,
// "whipped" once per cycle by the driver rather than re-created each
// cycle — SetParallelism mirrors that by spawning the goroutine
// exactly once, here, rather than processParallel spawning one every
// cycle (goroutine creation is itself an allocation, which the audio
// thread may not perform).
//
// Within a cycle each slave round-robins over the compiled array,
// attempting a non-blocking trylock on each node in turn; on success
// it blocks (via a semaphore, here a buffered channel) for its
// remaining providers, processes, and signals its dependants.
type worker struct {
	startCh chan cycleJob
	doneCh  chan struct{}
	stopCh  chan struct{}
}

// cycleJob is one cycle's work handed to a parked worker.
type cycleJob struct {
	ctx       *rtproc.Context
	cg        *CompiledGraph
	start     int
	completed *atomic.Int32
	setErr    func(error)
}

func newWorker() *worker {
	w := &worker{
		startCh: make(chan cycleJob),
		doneCh:  make(chan struct{}),
		stopCh:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *worker) loop() {
	for {
		select {
		case j := <-w.startCh:
			runSlave(j.ctx, j.cg, j.start, j.completed, j.setErr)
			w.doneCh <- struct{}{}
		case <-w.stopCh:
			return
		}
	}
}

// stop signals the worker's goroutine to exit. Idempotent only once;
// callers (SetParallelism, graphData.Close) never stop the same
// worker twice.
func (w *worker) stop() {
	close(w.stopCh)
}

// runSlave is the trylock/wait/process/signal wavefront loop, shared
// by every persistent worker goroutine and by the driver goroutine
// (which always participates as one worker, per spec.md §4.4).
func runSlave(ctx *rtproc.Context, cg *CompiledGraph, start int, completed *atomic.Int32, setErr func(error)) {
	n := len(cg.Blocks)
	idx := start
	for int(completed.Load()) < n {
		cb := &cg.Blocks[idx]
		if cb.Block.processLockTry() {
			cb.Block.waitForInput()
			if err := cb.Block.Process(ctx); err != nil {
				setErr(err)
			}
			for _, dep := range cb.Dependants {
				dep.signalInputReady()
			}
			completed.Add(1)
		}
		idx = (idx + 1) % n
		if idx == start && int(completed.Load()) < n {
			runtime.Gosched()
		}
	}
}

// SetParallelism configures the number of additional worker-slave
// goroutines a graph's parallel execution uses, beyond the driver
// goroutine itself (which always participates as one worker, per
// spec.md §4.4). Stops any previously running workers before spawning
// the replacement set.
func (g *graphData) SetParallelism(n int) {
	if n < 0 {
		n = 0
	}
	for _, w := range g.workers {
		w.stop()
	}
	g.workers = make([]*worker, n)
	for i := range g.workers {
		g.workers[i] = newWorker()
	}
}

// Workers returns the graph's current worker set, mainly so callers
// outside this package (the reclaim path's tests) can observe that
// Close/SetParallelism actually tore the previous set down.
func (g *graphData) Workers() []*worker { return g.workers }

// Close stops every persistent worker goroutine backing this graph's
// parallel execution, so a reclaimed graph block's slaves don't
// outlive it. Called from the post-processor thread's reclaim path.
func (g *graphData) Close() {
	for _, w := range g.workers {
		w.stop()
	}
	g.workers = nil
}

// processParallel runs cg with N worker slaves plus the calling
// (driver) goroutine as an (N+1)th worker, terminating once every block
// has completed (spec.md §4.4: "the cycle ends when the total finished
// count equals the compiled block count").
func (g *graphData) processParallel(ctx *rtproc.Context, cg *CompiledGraph) error {
	n := len(cg.Blocks)
	for i := range cg.Blocks {
		cg.Blocks[i].Block.totalNeeded = int32(cg.Blocks[i].NProviders)
		cg.Blocks[i].Block.resetForCycle()
	}

	var completed atomic.Int32
	var firstErr error
	var errMu sync.Mutex
	setErr := func(err error) {
		if err == nil {
			return
		}
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}

	for i, w := range g.workers {
		w.startCh <- cycleJob{ctx: ctx, cg: cg, start: i % n, completed: &completed, setErr: setErr}
	}
	runSlave(ctx, cg, 0, &completed, setErr) // driver participates as one worker
	for _, w := range g.workers {
		<-w.doneCh
	}

	return firstErr
}
