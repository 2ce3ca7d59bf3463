package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secondsight/rfengine/internal/backend/cpu"
	"github.com/secondsight/rfengine/internal/signal"
)

func TestWVD_ShapeMatchesNFFTAndTimePoints(t *testing.T) {
	b := cpu.New(1)
	block := tone(2048, 0.1, 1e6)

	tfd, err := WVD(b, block, WVDParams{NFFT: 64, NumTimePoints: 16})
	require.NoError(t, err)
	require.Len(t, tfd.Magnitude, len(tfd.TimeAxis))
	for _, row := range tfd.Magnitude {
		assert.Len(t, row, 64)
	}
	assert.Len(t, tfd.FreqAxis, 64)
}

func TestWVD_FreqAxisDCAtCenterIndex(t *testing.T) {
	b := cpu.New(1)
	block := tone(2048, 0.1, 1e6)

	tfd, err := WVD(b, block, WVDParams{NFFT: 64, NumTimePoints: 16})
	require.NoError(t, err)
	assert.InDelta(t, 0, tfd.FreqAxis[32], 1e-9)
	assert.True(t, tfd.FreqAxis[0] < tfd.FreqAxis[len(tfd.FreqAxis)-1])
}

func TestWVD_RejectsOddNFFT(t *testing.T) {
	b := cpu.New(1)
	block := tone(2048, 0.1, 1e6)
	_, err := WVD(b, block, WVDParams{NFFT: 63, NumTimePoints: 8})
	assert.Error(t, err)
}

func TestCWD_RejectsEmptyBlock(t *testing.T) {
	b := cpu.New(1)
	_, err := CWD(b, &signal.IQBlock{}, CWDParams{NFFT: 32, Sigma: 1.0})
	assert.Error(t, err)
}

func TestCWD_ProducesFiniteMagnitude(t *testing.T) {
	b := cpu.New(1)
	block := tone(2048, 0.15, 1e6)
	tfd, err := CWD(b, block, CWDParams{NFFT: 32, Sigma: 1.0, NumTimePoints: 8})
	require.NoError(t, err)
	for _, row := range tfd.Magnitude {
		for _, v := range row {
			assert.False(t, v < 0)
			assert.False(t, math.IsNaN(float64(v)) || math.IsInf(float64(v), 0))
		}
	}
}

func TestPadCentered_PlacesTapsInMiddle(t *testing.T) {
	taps := []float32{1, 1}
	out := padCentered(taps, 6)
	assert.Equal(t, []float32{0, 0, 1, 1, 0, 0}, out)
}
