// Package engine wires the store, event pipeline, broadcaster, and
// control bindings into the three realtime-safe stages spec.md §4.6
// describes: a preprocessor goroutine (off the audio thread), the
// audio thread's own per-cycle callback, and a post-processor
// goroutine. Client-facing transports (pkg/hostapi's collaborators,
// internal/wstransport) talk to the Engine only through Submit,
// RegisterClient, and UnregisterClient.
//
// The channel-pipeline shape (context-cancelable, WaitGroup-drained
// goroutines reading/writing buffered channels) is grounded on
// bgpfix-bgpfix's pipe.Pipe (pipe/pipe.go): Start/Stop lifecycle,
// zerolog.Logger embedding, and unbuffered-vs-buffered channel sizing
// all follow that shape, generalized from a bidirectional BGP message
// pipe to ingen's three-stage event pipeline.
package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/polyeffects/ingen/pkg/abuf"
	"github.com/polyeffects/ingen/pkg/atom"
	"github.com/polyeffects/ingen/pkg/broadcast"
	"github.com/polyeffects/ingen/pkg/control"
	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/hostapi"
	"github.com/polyeffects/ingen/pkg/path"
	"github.com/polyeffects/ingen/pkg/rtevent"
	"github.com/polyeffects/ingen/pkg/rtproc"
	"github.com/polyeffects/ingen/pkg/store"
	"github.com/polyeffects/ingen/pkg/telemetry"
)

// rootControlSeqCapacity mirrors CreateGraph's synthesized
// control_in/control_out sequence buffer size, for the root graph
// which Engine itself bootstraps rather than creating via CreateGraph.
const rootControlSeqCapacity = 256

// Engine owns the whole live object graph and the three-stage event
// pipeline that mutates it.
type Engine struct {
	log zerolog.Logger
	env *rtevent.Env
	root *graph.Block

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	submitted  chan rtevent.Event   // clients -> preprocessor (MPSC)
	toAudio    chan rtevent.Event   // preprocessor -> audio thread (SPSC)
	toPost     chan rtevent.Event   // audio thread -> post-processor (SPSC)
	toFeedback chan *rtproc.Context // audio thread -> post-processor, one per cycle (SPSC)

	seq     atomic.Uint64
	cycle   atomic.Int64 // SteadyTime counter, advanced once per RunCycle
	started atomic.Bool

	metrics *telemetry.Metrics // nil unless SetMetrics is called
}

// SetMetrics attaches a telemetry collector set. Must be called before
// Start; metrics recording only ever happens from the post-processor
// goroutine, from RunCycle's own duration measurement, and from the
// buffer factory's Grow hook (pre_process only), never from inside an
// Event's Execute phase.
func (e *Engine) SetMetrics(m *telemetry.Metrics) {
	e.metrics = m
	e.env.Buffers.OnGrow(func(kind abuf.Kind, n int) {
		m.RecordPoolGrow(bufferKindName(kind), n)
	})
}

func bufferKindName(k abuf.Kind) string {
	switch k {
	case abuf.KindAudio:
		return "audio"
	case abuf.KindControl:
		return "control"
	case abuf.KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// New constructs an Engine around the given collaborators, with the
// root graph already present in the store (spec.md §3: "the root graph
// always exists"). cfg.RingCapacity sizes every internal channel.
func New(pluginHost hostapi.PluginHost, hostDriver hostapi.AudioHostDriver, cfg rtproc.Config, log zerolog.Logger) *Engine {
	log = log.With().Str("component", "engine").Logger()
	buffers := abuf.NewFactory()
	buffers.Grow(abuf.KindSequence, rootControlSeqCapacity, 2)

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
	controlIn.AllocateBuffers([]*abuf.Handle{buffers.Acquire(abuf.KindSequence, rootControlSeqCapacity)})
	controlOut.AllocateBuffers([]*abuf.Handle{buffers.Acquire(abuf.KindSequence, rootControlSeqCapacity)})
	root.AddPort(controlIn)
	root.AddPort(controlOut)
	root.Enabled = true

	st := store.New()
	st.Lock()
	st.Add(path.Root, root)
	st.Add(controlIn.Path, controlIn)
	st.Add(controlOut.Path, controlOut)
	st.Unlock()

	env := &rtevent.Env{
		Store:       st,
		Broadcaster: broadcast.New(log),
		Bindings:    control.New(),
		PluginHost:  pluginHost,
		HostDriver:  hostDriver,
		URIDs:       path.NewURIDMap(),
		Buffers:     buffers,
		Reclaimer:   rtevent.NewReclaimer(cfg.RingCapacity),
		Config:      cfg,
		Log:         log,
	}

	return &Engine{
		log:       log,
		env:       env,
		root:      root,
		submitted:  make(chan rtevent.Event, cfg.RingCapacity),
		toAudio:    make(chan rtevent.Event, cfg.RingCapacity),
		toPost:     make(chan rtevent.Event, cfg.RingCapacity),
		toFeedback: make(chan *rtproc.Context, cfg.RingCapacity),
	}
}

// Env exposes the engine's shared dependency bundle, mainly so a
// transport or test harness can resolve paths through env.Store for
// building its own events.
func (e *Engine) Env() *rtevent.Env { return e.env }

// RegisterClient assigns a new client ID and registers sink with the
// broadcaster, returning the ID callers should stamp onto every Event
// they Submit.
func (e *Engine) RegisterClient(sink broadcast.Sink) string {
	id := uuid.NewString()
	e.env.Broadcaster.RegisterClient(id, sink)
	e.log.Info().Str("client", id).Msg("client connected")
	return id
}

// UnregisterClient drops a client's broadcaster registration. Any
// in-flight Get response for it is silently discarded, per spec.md §5.
func (e *Engine) UnregisterClient(id string) {
	e.env.Broadcaster.UnregisterClient(id)
	e.log.Info().Str("client", id).Msg("client disconnected")
}

// Submit enqueues ev for preprocessing. Safe to call concurrently from
// any number of client-facing goroutines (submitted is an MPSC
// channel); drops the event and returns false if the preprocessor is
// backlogged past cfg.RingCapacity, matching Reclaimer.Push's
// never-block discipline on the other end of the pipeline.
func (e *Engine) Submit(ev rtevent.Event) bool {
	select {
	case e.submitted <- ev:
		return true
	default:
		e.log.Warn().Str("client", ev.ClientID()).Msg("submit queue full, event dropped")
		if e.metrics != nil {
			e.metrics.RecordSubmitDrop()
		}
		return false
	}
}

// Start launches the preprocessor and post-processor goroutines. The
// audio thread itself is driven externally by RunCycle, called from
// the AudioHostDriver's process callback.
func (e *Engine) Start(ctx context.Context) {
	if e.started.Swap(true) {
		return
	}
	e.ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(2)
	go e.runPreprocessor()
	go e.runPostprocessor()
}

// Stop signals both background goroutines to exit and waits for them.
func (e *Engine) Stop() {
	if !e.started.Load() {
		return
	}
	e.cancel()
	e.wg.Wait()
}

// runPreprocessor drains submitted events one at a time (satisfying
// spec.md §4.6 item 1's "pre_process runs serially"), assigns each its
// pipeline sequence number, and hands it to the audio thread.
func (e *Engine) runPreprocessor() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case ev := <-e.submitted:
			if err := ev.PreProcess(e.env); err != nil {
				e.log.Error().Err(err).Msg("pre_process returned an unexpected error")
				continue
			}
			ev.SetSeq(e.seq.Add(1))
			select {
			case e.toAudio <- ev:
			case <-e.ctx.Done():
				return
			}
		}
	}
}

// runPostprocessor drains events the audio thread has finished
// executing, releasing reclaimed garbage and broadcasting results, and
// emits one cycle's worth of control feedback CC once RunCycle signals
// it (spec.md §4.8: feedback emission happens on post_process-for-
// cycle, never inline on the audio thread).
func (e *Engine) runPostprocessor() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case ev := <-e.toPost:
			ev.PostProcess(e.env)
			if e.metrics != nil {
				e.metrics.RecordEvent(eventTypeName(ev), ev.Status().String())
				e.metrics.SetReclaimerBacklog(e.env.Reclaimer.Len())
				e.metrics.SetBroadcastBacklog(e.env.Broadcaster.PendingLen())
			}
		case ctx := <-e.toFeedback:
			if out, ok := e.root.Port("control_out"); ok {
				for _, h := range out.Buffers() {
					e.env.Bindings.EmitFeedback(ctx, h.Buffer())
				}
			}
		}
	}
}

// RunCycle drives one audio cycle: consumes pending incoming MIDI CC
// for control bindings, applies every event the preprocessor has
// queued (bounded by toAudio's depth this call observes — never
// blocks), runs the root graph's compiled schedule, and hands
// completed events plus a feedback-emission signal off to the
// post-processor. Must be called from the audio thread only (spec.md
// §4.6 item 2's O(1)/bounded constraint applies to everything RunCycle
// itself does beyond the graph's own Process, which has its own
// bounded-by-schedule cost) — it never emits feedback CC itself,
// per spec.md §4.8.
func (e *Engine) RunCycle(nframes uint32) {
	cycleStart := time.Now()
	if e.metrics != nil {
		defer func() { e.metrics.ObserveCycleDuration(time.Since(cycleStart).Seconds()) }()
	}

	start := e.cycle.Load()
	ctx := &rtproc.Context{Start: start, NFrames: nframes, SteadyTime: start}
	e.cycle.Store(start + int64(nframes))

	if in, ok := e.root.Port("control_in"); ok {
		for _, h := range in.Buffers() {
			e.env.Bindings.ProcessIncoming(ctx, h.Buffer())
		}
	}

	for {
		select {
		case ev := <-e.toAudio:
			ev.Execute(e.env, ctx, ctx.Start)
			select {
			case e.toPost <- ev:
			default:
				e.log.Warn().Uint64("seq", ev.Seq()).Msg("post-process queue full, event dropped")
			}
		default:
			goto processed
		}
	}
processed:

	e.root.Process(ctx)

	select {
	case e.toFeedback <- ctx:
	default:
		e.log.Warn().Int64("cycle", start).Msg("feedback queue full, cycle's CC feedback dropped")
	}
}

// Root returns the engine's root graph block.
func (e *Engine) Root() *graph.Block { return e.root }

// eventTypeName strips the package qualifier off an Event's dynamic
// type for a low-cardinality metric label (e.g. "*rtevent.Connect" ->
// "Connect").
func eventTypeName(ev rtevent.Event) string {
	name := fmt.Sprintf("%T", ev)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimPrefix(name, "*")
}
