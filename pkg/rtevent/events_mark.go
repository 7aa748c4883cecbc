package rtevent

import (
	"github.com/polyeffects/ingen/pkg/rtproc"
)

// MarkKind selects which end of a client-declared bundle a Mark event
// represents (spec.md §4.7: "Mark{BUNDLE_START, BUNDLE_END}").
type MarkKind uint8

const (
	MarkBundleStart MarkKind = iota
	MarkBundleEnd
)

// Mark brackets a run of otherwise-independent events so their
// broadcast notifications are delivered to clients as one unit, the
// same discipline a single cascading event (Delete, Copy) gets
// automatically via Broadcaster.BundleBegin/BundleEnd. Mark itself
// changes no engine state.
type Mark struct {
	Base
	Kind MarkKind
}

func (e *Mark) PreProcess(env *Env) error {
	e.succeed()
	return nil
}

func (e *Mark) Execute(env *Env, ctx *rtproc.Context, time int64) {}

func (e *Mark) PostProcess(env *Env) {
	switch e.Kind {
	case MarkBundleStart:
		env.Broadcaster.BundleBegin()
	case MarkBundleEnd:
		env.Broadcaster.BundleEnd()
	}
}

func (e *Mark) Undoable() bool { return false }
func (e *Mark) Undo() Event    { return nil }
