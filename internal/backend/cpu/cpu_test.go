package cpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFFT_DCTone(t *testing.T) {
	b := New(2)
	in := make([]complex128, 8)
	for i := range in {
		in[i] = complex(1, 0)
	}
	out := b.FFT(in)
	assert.InDelta(t, 8, real(out[0]), 1e-9)
	for i := 1; i < len(out); i++ {
		assert.InDelta(t, 0, real(out[i]), 1e-9)
		assert.InDelta(t, 0, imag(out[i]), 1e-9)
	}
}

func TestFFTShiftReal_EvenLength(t *testing.T) {
	b := New(1)
	in := []float32{0, 1, 2, 3}
	out := b.FFTShiftReal(in)
	assert.Equal(t, []float32{2, 3, 0, 1}, out)
}

func TestWindow_HannEndpointsNearZero(t *testing.T) {
	b := New(1)
	taps, err := b.Window("hann", 16)
	require.NoError(t, err)
	assert.InDelta(t, 0, taps[0], 1e-6)
}

func TestWindow_UnknownNameRejected(t *testing.T) {
	b := New(1)
	_, err := b.Window("not-a-window", 16)
	assert.Error(t, err)
}

func TestWindow_CachedBetweenCalls(t *testing.T) {
	b := New(1)
	first, err := b.Window("hamming", 32)
	require.NoError(t, err)
	second, err := b.Window("hamming", 32)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestVar_ConstantSequenceIsZero(t *testing.T) {
	b := New(1)
	v := b.Var([]float32{3, 3, 3, 3})
	assert.InDelta(t, 0, v, 1e-9)
}

func TestUnwrap_RemovesDiscontinuity(t *testing.T) {
	b := New(1)
	phase := []float32{3.0, -3.0, 3.0, -3.0}
	out := b.Unwrap(phase)
	for i := 1; i < len(out); i++ {
		assert.Less(t, math.Abs(float64(out[i]-out[i-1])), math.Pi+0.5)
	}
}

func TestStreamPool_RoundRobins(t *testing.T) {
	b := New(3)
	pool := b.Streams()
	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		seen[int(pool.Borrow())] = true
	}
	assert.Len(t, seen, 3)
}

func TestMemoryPool_CleanupResetsUsage(t *testing.T) {
	b := New(1)
	mem := b.Memory()
	mem.Note(100)
	assert.Equal(t, int64(100), mem.Used())
	mem.Cleanup()
	assert.Equal(t, int64(0), mem.Used())
}
