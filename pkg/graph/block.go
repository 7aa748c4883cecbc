package graph

import (
	"fmt"
	"sync/atomic"

	"github.com/polyeffects/ingen/pkg/atom"
	"github.com/polyeffects/ingen/pkg/path"
	"github.com/polyeffects/ingen/pkg/rtproc"
)

// Kind distinguishes the two Block variants. Per spec.md §9 ("Class
// hierarchies -> tagged variants"), GraphObject -> {Block, Port, Graph}
// inheritance becomes one sum type with explicit dispatch on Kind,
// rather than a Go interface hierarchy mirroring the C++ one.
type Kind uint8

const (
	KindPlugin Kind = iota
	KindGraph
)

// Impl is the plugin-host-provided processor for a KindPlugin block —
// the Go-side shape of PluginHost.instantiate's returned BlockImpl in
// spec.md §6. The engine never implements this itself; it is supplied
// by the PluginHost collaborator at CreateBlock time.
type Impl interface {
	Activate(sampleRate float64, minFrames, maxFrames uint32) error
	Deactivate() error
	// Process fills the block's output port buffers from its input
	// port buffers for ctx's frame range.
	Process(ctx *rtproc.Context, ports []*Port) error
}

// Block is a node in the dataflow graph: either a plugin instance
// (KindPlugin) or a nested Graph (KindGraph).
type Block struct {
	Path       path.Path
	Symbol     string
	Parent     *Block // nil only for the root graph
	PluginURI  path.URI
	Polyphony  int
	Enabled    bool
	Properties *atom.Object

	Kind Kind
	impl Impl      // KindPlugin
	data *graphData // KindGraph

	ports      []*Port
	portByName map[string]int

	// Scheduling bookkeeping, valid only while this block is an element
	// of its parent's live CompiledGraph (see compiled.go).
	nProviders   atomic.Int32 // remaining unmet input dependencies this cycle
	totalNeeded  int32        // nProviders reset value for the next cycle
	dependants   []*Block     // blocks in the same graph fed by this one
	processLock  atomic.Bool  // non-blocking trylock, per ProcessSlave.cpp
	inputReady   chan struct{}
}

// NewPluginBlock constructs a plugin-instance block. impl is supplied by
// the PluginHost collaborator; ports are added via AddPort afterward.
func NewPluginBlock(p path.Path, pluginURI path.URI, impl Impl) *Block {
	return &Block{
		Path:       p,
		Symbol:     p.Symbol(),
		PluginURI:  pluginURI,
		Polyphony:  1,
		Enabled:    true,
		Properties: atom.NewObject(path.URI("ingen:Block")),
		Kind:       KindPlugin,
		impl:       impl,
		portByName: make(map[string]int),
		inputReady: make(chan struct{}, 64),
	}
}

// NewGraphBlock constructs a nested (or root) graph block.
func NewGraphBlock(p path.Path) *Block {
	return &Block{
		Path:       p,
		Symbol:     p.Symbol(),
		Polyphony:  1,
		Enabled:    true,
		Properties: atom.NewObject(path.URI("ingen:Graph")),
		Kind:       KindGraph,
		data:       newGraphData(),
		portByName: make(map[string]int),
		inputReady: make(chan struct{}, 64),
	}
}

// Ports returns the block's ports, indexed by their declared Index.
func (b *Block) Ports() []*Port { return b.ports }

// Port looks up a port by symbol.
func (b *Block) Port(symbol string) (*Port, bool) {
	i, ok := b.portByName[symbol]
	if !ok {
		return nil, false
	}
	return b.ports[i], true
}

// AddPort splices port into a freshly allocated ports array (spec.md
// §4.7 CreatePort: "splice into parent's ports array (new array)" so
// the audio thread, which may be reading the old array concurrently via
// its captured Block pointer, never observes a partial append).
func (b *Block) AddPort(p *Port) {
	next := make([]*Port, len(b.ports)+1)
	copy(next, b.ports)
	next[len(b.ports)] = p
	p.Index = len(b.ports)
	p.Parent = b
	b.ports = next
	b.portByName[p.Symbol] = p.Index
}

// RemovePort splices symbol's port out of the ports array into a
// freshly allocated array, mirroring AddPort's splice discipline, and
// reindexes the remaining ports so Index stays contiguous. Returns the
// removed port and whether it was found.
func (b *Block) RemovePort(symbol string) (*Port, bool) {
	i, ok := b.portByName[symbol]
	if !ok {
		return nil, false
	}
	removed := b.ports[i]
	next := make([]*Port, 0, len(b.ports)-1)
	for _, p := range b.ports {
		if p != removed {
			next = append(next, p)
		}
	}
	byName := make(map[string]int, len(next))
	for idx, p := range next {
		p.Index = idx
		byName[p.Symbol] = idx
	}
	b.ports = next
	b.portByName = byName
	return removed, true
}

// RenamePort re-keys symbol's entry in portByName to newSymbol, without
// disturbing the ports array or any Index. Used by Move (spec.md
// §4.7): a port rename never changes its position.
func (b *Block) RenamePort(symbol, newSymbol string) {
	i, ok := b.portByName[symbol]
	if !ok {
		return
	}
	delete(b.portByName, symbol)
	b.portByName[newSymbol] = i
}

// Graph returns the block's nested-graph payload, or nil for a plugin
// block.
func (b *Block) Graph() *graphData { return b.data }

// Process dispatches to the plugin implementation or, for a graph
// block, walks its compiled schedule.
func (b *Block) Process(ctx *rtproc.Context) error {
	switch b.Kind {
	case KindGraph:
		return b.data.process(ctx, b)
	case KindPlugin:
		if b.impl == nil {
			return fmt.Errorf("graph: block %s has no plugin implementation", b.Path)
		}
		return b.impl.Process(ctx, b.ports)
	default:
		return fmt.Errorf("graph: unknown block kind for %s", b.Path)
	}
}

// process_lock is a non-blocking trylock used by the parallel worker
// slaves (ProcessSlave.cpp's n.node()->process_lock()). Returns true if
// this goroutine acquired the right to process the block this cycle.
func (b *Block) processLockTry() bool {
	return b.processLock.CompareAndSwap(false, true)
}

// resetForCycle rearms the block's scheduling state before a new cycle.
func (b *Block) resetForCycle() {
	b.nProviders.Store(b.totalNeeded)
	b.processLock.Store(false)
}

// waitForInput blocks until nProviders reaches zero, i.e. every
// provider dependency has signaled (ProcessSlave.cpp's
// wait_for_input(n_providers)).
func (b *Block) waitForInput() {
	for b.nProviders.Load() > 0 {
		<-b.inputReady
	}
}

// signalInputReady decrements a dependant's provider count and wakes it
// if it just reached zero.
func (b *Block) signalInputReady() {
	if b.nProviders.Add(-1) <= 0 {
		select {
		case b.inputReady <- struct{}{}:
		default:
		}
	}
}
