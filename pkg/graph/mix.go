package graph

import (
	"errors"

	"github.com/polyeffects/ingen/pkg/rtproc"
)

// ErrPolyphonySplit is returned when a polyphonic source would have to
// be split across fewer destination voices than it carries — spec.md
// §4.3 explicitly rejects this combination rather than guessing a
// down-mix.
var ErrPolyphonySplit = errors.New("graph: polyphonic fan-in would require splitting a source across fewer voices")

// ValidateFanIn checks the tail/head polyphony combination for a
// prospective edge, independent of any particular cycle. Called from
// Connect's pre_process.
func ValidateFanIn(tailPoly, headPoly int) error {
	switch {
	case tailPoly == headPoly:
		return nil // mono/parallel: voice i reads voice i
	case tailPoly == 1 && headPoly > 1:
		return nil // broadcast
	case tailPoly > 1 && headPoly == 1:
		return nil // sum/merge down to mono
	default:
		return ErrPolyphonySplit
	}
}

// PreProcess mixes all of an input port's incoming edges into its own
// buffers for the cycle (spec.md §4.3). Output ports are simply
// cleared; the owning block's Process call fills them.
func (p *Port) PreProcess(ctx *rtproc.Context) {
	if p.Direction == DirOut {
		for _, h := range p.bufs {
			h.Buffer().Clear()
		}
		return
	}

	if p.mode == ModeValue {
		p.ResetToValue()
		return
	}

	switch p.Type {
	case TypeAudio, TypeCV:
		p.mixAudio()
	case TypeControl:
		p.mixControl()
	case TypeEvent, TypeAtom:
		p.mixSequence()
	}
}

// mixAudio resolves additive/broadcast/sum fan-in per voice.
func (p *Port) mixAudio() {
	for _, h := range p.bufs {
		h.Buffer().Clear()
	}
	for _, e := range p.edges {
		tailPoly := len(e.Tail.bufs)
		headPoly := len(p.bufs)
		switch {
		case tailPoly == headPoly:
			for v := 0; v < headPoly; v++ {
				p.bufs[v].Buffer().MixAdd(e.Tail.bufs[v].Buffer())
			}
		case tailPoly == 1 && headPoly > 1:
			for v := 0; v < headPoly; v++ {
				p.bufs[v].Buffer().MixAdd(e.Tail.bufs[0].Buffer())
			}
		case tailPoly > 1 && headPoly == 1:
			for v := 0; v < tailPoly; v++ {
				p.bufs[0].Buffer().MixAdd(e.Tail.bufs[v].Buffer())
			}
		}
	}
}

// mixControl takes the last edge's current value (last-writer-wins, in
// connection order, as spec.md §4.3 prescribes for control ports).
func (p *Port) mixControl() {
	if len(p.edges) == 0 {
		return
	}
	last := p.edges[len(p.edges)-1]
	for v := range p.bufs {
		srcV := v
		if len(last.Tail.bufs) == 1 {
			srcV = 0
		}
		p.bufs[v].Buffer().Value = last.Tail.bufs[srcV].Buffer().Value
	}
}

// mixSequence merges incoming event sequences by timestamp, tied by
// edge declaration order (spec.md §4.3).
func (p *Port) mixSequence() {
	for _, h := range p.bufs {
		h.Buffer().Clear()
	}
	for v := range p.bufs {
		var merged []struct {
			frame uint32
			typ   uint32
			body  []byte
		}
		for _, e := range p.edges {
			srcV := v
			if len(e.Tail.bufs) == 1 {
				srcV = 0
			}
			if srcV >= len(e.Tail.bufs) {
				continue
			}
			for _, ev := range e.Tail.bufs[srcV].Buffer().Events {
				merged = append(merged, struct {
					frame uint32
					typ   uint32
					body  []byte
				}{ev.Frame, ev.Type, ev.Body})
			}
		}
		// stable sort by frame, preserving edge-declaration order for ties
		for i := 1; i < len(merged); i++ {
			j := i
			for j > 0 && merged[j-1].frame > merged[j].frame {
				merged[j-1], merged[j] = merged[j], merged[j-1]
				j--
			}
		}
		for _, m := range merged {
			p.bufs[v].Buffer().AppendEvent(m.frame, m.typ, m.body)
		}
	}
}

// PostProcess does nothing for any port type: a sequence buffer's
// events are readable as soon as AppendEvent returns, and
// audio/control ports need no post-cycle step.
func (p *Port) PostProcess(ctx *rtproc.Context) {
	_ = ctx
}
