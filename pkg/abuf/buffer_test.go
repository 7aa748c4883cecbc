package abuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClearResetsByKind(t *testing.T) {
	audio := &Buffer{Kind: KindAudio, Samples: []float32{1, 2, 3}}
	audio.Clear()
	require.Equal(t, []float32{0, 0, 0}, audio.Samples)

	ctrl := &Buffer{Kind: KindControl, Value: 5}
	ctrl.Clear()
	require.Equal(t, float32(0), ctrl.Value)

	seq := &Buffer{Kind: KindSequence, Events: []Event{{Frame: 1}}}
	seq.Clear()
	require.Empty(t, seq.Events)
}

func TestSetBlockFillsRange(t *testing.T) {
	b := &Buffer{Kind: KindAudio, Samples: make([]float32, 8)}
	require.NoError(t, b.SetBlock(1.5, 2, 5))
	require.Equal(t, []float32{0, 0, 1.5, 1.5, 1.5, 0, 0, 0}, b.Samples)
}

func TestSetBlockRejectsWrongKindAndRange(t *testing.T) {
	b := &Buffer{Kind: KindAudio, Samples: make([]float32, 4)}
	require.ErrorIs(t, b.SetBlock(1, -1, 2), ErrRangeInvalid)
	require.ErrorIs(t, b.SetBlock(1, 0, 5), ErrRangeInvalid)
	require.ErrorIs(t, b.SetBlock(1, 3, 1), ErrRangeInvalid)

	ctrl := &Buffer{Kind: KindControl}
	require.ErrorIs(t, ctrl.SetBlock(1, 0, 0), ErrWrongKind)
}

func TestCopyFromCopiesRange(t *testing.T) {
	src := &Buffer{Kind: KindAudio, Samples: []float32{1, 2, 3, 4}}
	dst := &Buffer{Kind: KindAudio, Samples: make([]float32, 4)}
	require.NoError(t, dst.CopyFrom(src, 1, 3))
	require.Equal(t, []float32{0, 2, 3, 0}, dst.Samples)
}

func TestMixAddSumsSamples(t *testing.T) {
	a := &Buffer{Kind: KindAudio, Samples: []float32{1, 1, 1}}
	b := &Buffer{Kind: KindAudio, Samples: []float32{2, 2}}
	require.NoError(t, a.MixAdd(b))
	require.Equal(t, []float32{3, 3, 1}, a.Samples)
}

func TestAppendEventKeepsFrameOrder(t *testing.T) {
	b := &Buffer{Kind: KindSequence, cap: 8}
	require.True(t, b.AppendEvent(10, 1, nil))
	require.True(t, b.AppendEvent(5, 1, nil))
	require.True(t, b.AppendEvent(7, 1, nil))

	frames := []uint32{}
	for _, ev := range b.Events {
		frames = append(frames, ev.Frame)
	}
	require.Equal(t, []uint32{5, 7, 10}, frames)
}

func TestAppendEventRejectsWhenFull(t *testing.T) {
	b := &Buffer{Kind: KindSequence, cap: 1}
	require.True(t, b.AppendEvent(0, 1, nil))
	require.False(t, b.AppendEvent(1, 1, nil))
	require.Len(t, b.Events, 1)
}

func TestAppendEventRejectsWrongKind(t *testing.T) {
	b := &Buffer{Kind: KindControl}
	require.False(t, b.AppendEvent(0, 1, nil))
}

func TestPeakAndRMS(t *testing.T) {
	b := &Buffer{Kind: KindAudio, Samples: []float32{-2, 1, 0, -1}}
	require.Equal(t, float32(2), b.Peak())
	require.InDelta(t, 1.224744871, float64(b.RMS()), 1e-5)
}

func TestRMSOfEmptyBufferIsZero(t *testing.T) {
	b := &Buffer{Kind: KindAudio}
	require.Equal(t, float32(0), b.RMS())
}

func TestHandleRetainReleaseReturnsToPool(t *testing.T) {
	f := NewFactory()
	f.Grow(KindAudio, 4, 1)
	h := f.Acquire(KindAudio, 4)

	h.Retain()
	h.Release() // refs: 2 -> 1, not yet released
	h2 := f.Acquire(KindAudio, 4)
	require.NotSame(t, h, h2, "buffer still retained, pool should have had to allocate fresh")

	h.Release() // refs: 1 -> 0, now returned to the pool
	h3 := f.Acquire(KindAudio, 4)
	require.Same(t, h, h3, "released handle should be reused by the next Acquire")
}
