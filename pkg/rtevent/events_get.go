package rtevent

import (
	"github.com/polyeffects/ingen/pkg/broadcast"
	"github.com/polyeffects/ingen/pkg/graph"
	"github.com/polyeffects/ingen/pkg/hostapi"
	"github.com/polyeffects/ingen/pkg/path"
	"github.com/polyeffects/ingen/pkg/rtproc"
)

// Get reads back a Block or Port's full description without changing
// any state. Its response goes only to the requesting client, not the
// broadcast fan-out, since no other client's view has changed (spec.md
// §4.7).
type Get struct {
	Base
	Path path.Path

	obj any // *graph.Block or *graph.Port
}

func (e *Get) PreProcess(env *Env) error {
	env.Store.RLock()
	defer env.Store.RUnlock()

	obj, ok := env.Store.Get(e.Path)
	if !ok {
		e.fail(NotFound, e.Path.URI())
		return nil
	}
	switch obj.(type) {
	case *graph.Block, *graph.Port:
		e.obj = obj
	default:
		e.fail(InternalError, e.Path.URI())
		return nil
	}
	e.succeed()
	return nil
}

func (e *Get) Execute(env *Env, ctx *rtproc.Context, time int64) {}

func (e *Get) PostProcess(env *Env) {
	if e.Status() != Success {
		e.respondStatus(env)
		return
	}
	env.Broadcaster.DeliverTo(e.ClientID(), []broadcast.Message{{
		Kind:    broadcast.MsgPut,
		Subject: e.Path.URI(),
		Body:    hostapi.DescribeObject(e.obj),
	}})
}

func (e *Get) Undoable() bool { return false }
func (e *Get) Undo() Event    { return nil }
