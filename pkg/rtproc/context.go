// Package rtproc defines the per-cycle timing context and engine
// configuration shared by the graph, event, and control-binding
// packages, plus a realtime thread-identity checker. The parallel
// worker-slave pool that executes a CompiledGraph lives in pkg/graph.
//
// The thread-identity checker is adapted from justyntemme-clapgo's
// pkg/thread/check.go, which asks the CLAP host whether the calling
// goroutine is its main or audio thread via a host extension; here
// there is no C host to ask, so the checker compares caller-supplied
// IDs against the ones registered with it (see thread.go), but the
// Assert* panic-on-violation API shape is kept identical.
package rtproc

// Context is the per-cycle time window handed to every block's Process
// method and every Port's PreProcess/PostProcess call.
type Context struct {
	// Start is the host transport frame at which this cycle begins.
	Start int64
	// NFrames is the cycle's length in frames.
	NFrames uint32
	// SteadyTime is a monotonically increasing frame counter (the total
	// frames of all earlier cycles), used as the frame-accurate
	// timestamp base for event execute (spec.md §4.6: "start <= _time
	// <= start + nframes").
	SteadyTime int64
}

// End returns the frame one past the cycle's last frame.
func (c *Context) End() int64 { return c.Start + int64(c.NFrames) }

// Config carries the host-supplied parameters an engine is built with:
// sample rate/block size come from the AudioHostDriver collaborator,
// the rest are engine-internal tuning knobs. Populated once at startup
// from DefaultConfig, with fields overridden by the caller in code
// (nothing reads environment variables), matching justyntemme-clapgo's
// PluginBase default-then-override style (pkg/plugin/base.go hardcodes
// SampleRate: 44100.0 in NewPluginBase and lets Activate override it).
type Config struct {
	SampleRate   float64
	BlockSize    uint32
	Workers      int // parallel worker-slave count (0 = serial only)
	RingCapacity int // preprocessor->audio and audio->postprocessor ring size
}

// DefaultConfig returns conservative defaults suitable before a host
// driver has reported its real sample rate / block size.
func DefaultConfig() Config {
	return Config{
		SampleRate:   44100.0,
		BlockSize:    64,
		Workers:      0,
		RingCapacity: 1024,
	}
}
