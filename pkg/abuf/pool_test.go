package abuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGrowPrefillsAcquirableBuffers(t *testing.T) {
	f := NewFactory()
	f.Grow(KindControl, 1, 3)

	seen := map[*Handle]bool{}
	for i := 0; i < 3; i++ {
		h := f.Acquire(KindControl, 1)
		require.False(t, seen[h], "Acquire must not hand out the same handle twice")
		seen[h] = true
	}
}

func TestAcquireFallsBackWhenPoolEmpty(t *testing.T) {
	f := NewFactory()
	h := f.Acquire(KindAudio, 4)
	require.NotNil(t, h)
	require.Equal(t, KindAudio, h.Buffer().Kind)
	require.Len(t, h.Buffer().Samples, 4)
}

func TestAcquireClearsReusedBuffer(t *testing.T) {
	f := NewFactory()
	f.Grow(KindAudio, 4, 1)
	h := f.Acquire(KindAudio, 4)
	h.Buffer().Samples[0] = 9
	h.Release()

	h2 := f.Acquire(KindAudio, 4)
	require.Equal(t, float32(0), h2.Buffer().Samples[0], "Acquire must clear a reused buffer")
}

func TestAcquireIsSegregatedByKindAndCapacity(t *testing.T) {
	f := NewFactory()
	f.Grow(KindAudio, 4, 1)
	f.Grow(KindAudio, 8, 1)
	f.Grow(KindControl, 4, 1)

	a4 := f.Acquire(KindAudio, 4)
	a8 := f.Acquire(KindAudio, 8)
	c4 := f.Acquire(KindControl, 4)

	require.Len(t, a4.Buffer().Samples, 4)
	require.Len(t, a8.Buffer().Samples, 8)
	require.Equal(t, KindControl, c4.Buffer().Kind)
}

func TestOnGrowHookFiresWithKindAndCount(t *testing.T) {
	f := NewFactory()
	type call struct {
		kind Kind
		n    int
	}
	var got []call
	f.OnGrow(func(kind Kind, n int) { got = append(got, call{kind, n}) })

	f.Grow(KindAudio, 4, 3)
	f.Grow(KindControl, 1, 1)

	require.Equal(t, []call{{KindAudio, 3}, {KindControl, 1}}, got)
}

func TestSequenceBuffersStartEmptyAfterGrow(t *testing.T) {
	f := NewFactory()
	f.Grow(KindSequence, 16, 1)
	h := f.Acquire(KindSequence, 16)
	require.Empty(t, h.Buffer().Events)
	require.True(t, h.Buffer().AppendEvent(0, 1, nil))
}
