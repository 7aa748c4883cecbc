package rtevent

import (
	"strings"

	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/hostapi"
	"github.com/polyeffects/ingen/pkg/path"
	"github.com/polyeffects/ingen/pkg/rtproc"
)

// Move renames a Block or Port within its existing parent (spec.md
// §4.7). Ingen's own Move only ever renames in place — moving an
// object to a genuinely different parent graph is not supported, so a
// destination whose parent differs from the source's is rejected with
// ParentDiffers rather than attempted as a cross-graph relocation.
type Move struct {
	Base
	From path.Path
	To   path.Path

	block     *graph.Block
	port      *graph.Port
	parent    *graph.Block // owning graph, set for a Block move
	owner     *graph.Block // owning block, set for a Port move
	oldSymbol string
	subtree   []path.Path
}

func (e *Move) PreProcess(env *Env) error {
	env.Store.Lock()
	defer env.Store.Unlock()

	if e.From.IsRoot() {
		e.fail(BadRequest, e.From.URI())
		return nil
	}
	if e.From.Parent() != e.To.Parent() {
		e.fail(ParentDiffers, e.From.URI())
		return nil
	}
	if _, exists := env.Store.Get(e.To); exists {
		e.fail(Exists, e.To.URI())
		return nil
	}
	obj, ok := env.Store.Get(e.From)
	if !ok {
		e.fail(NotFound, e.From.URI())
		return nil
	}

	switch v := obj.(type) {
	case *graph.Block:
		e.block = v
		e.parent = v.Parent
		e.oldSymbol = v.Symbol
	case *graph.Port:
		e.port = v
		e.owner = v.Parent
		e.oldSymbol = v.Symbol
	default:
		e.fail(InternalError, e.From.URI())
		return nil
	}

	e.subtree = env.Store.FindByPrefix(e.From)
	newSymbol := e.To.Symbol()
	for _, old := range e.subtree {
		child, _ := env.Store.Get(old)
		suffix := strings.TrimPrefix(string(old), string(e.From))
		newPath := path.Path(string(e.To) + suffix)
		switch c := child.(type) {
		case *graph.Block:
			c.Path = newPath
			if old == e.From {
				c.Symbol = newSymbol
			}
		case *graph.Port:
			c.Path = newPath
			if old == e.From {
				c.Symbol = newSymbol
			}
		}
	}
	env.Store.Rekey(e.From, e.To)

	e.succeed()
	return nil
}

func (e *Move) Execute(env *Env, ctx *rtproc.Context, time int64) {
	if e.Status() != Success {
		return
	}
	switch {
	case e.block != nil && e.parent != nil:
		e.parent.Graph().RenameChild(e.oldSymbol, e.block.Symbol)
	case e.port != nil && e.owner != nil:
		e.owner.RenamePort(e.oldSymbol, e.port.Symbol)
	}
}

func (e *Move) PostProcess(env *Env) {
	if e.Status() != Success {
		e.respondStatus(env)
		return
	}
	env.Broadcaster.BundleBegin()
	env.Broadcaster.Del(e.From.URI())
	switch {
	case e.block != nil:
		env.Broadcaster.Put(e.To.URI(), hostapi.DescribeObject(e.block))
	case e.port != nil:
		env.Broadcaster.Put(e.To.URI(), hostapi.DescribeObject(e.port))
	}
	env.Broadcaster.BundleEnd()
}

func (e *Move) Undoable() bool { return true }
func (e *Move) Undo() Event {
	return &Move{Base: NewBase(e.ClientID()), From: e.To, To: e.From}
}
