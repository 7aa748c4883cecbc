package rtproc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextEnd(t *testing.T) {
	c := &Context{Start: 100, NFrames: 64}
	require.Equal(t, int64(164), c.End())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 44100.0, cfg.SampleRate)
	require.Equal(t, uint32(64), cfg.BlockSize)
	require.Equal(t, 0, cfg.Workers)
	require.Equal(t, 1024, cfg.RingCapacity)
}
