package estimator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secondsight/rfengine/internal/signal"
)

func cfoTone(n int, fNorm, sampleRate float64) *signal.IQBlock {
	samples := make([]complex64, n)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * fNorm * float64(i)
		samples[i] = complex64(complex(math.Cos(theta), math.Sin(theta)))
	}
	return &signal.IQBlock{Samples: samples, SampleRate: sampleRate}
}

func TestCFOPower_RecoversKnownOffset(t *testing.T) {
	block := cfoTone(4096, 0.01, 1e6)
	res, err := CFOPower(block, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, res.Normalized, 1e-6)
	assert.InDelta(t, 10000, res.Hz, 1.0)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
}

func TestCFOPower_NormalizedWithinHalfRange(t *testing.T) {
	block := cfoTone(4096, 0.3, 1e6)
	res, err := CFOPower(block, 1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.Normalized, -0.5)
	assert.LessOrEqual(t, res.Normalized, 0.5)
}

func TestCFOKay_RecoversKnownOffset(t *testing.T) {
	block := cfoTone(4096, 0.01, 1e6)
	res, err := CFOKay(block)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, res.Normalized, 1e-3)
	assert.Equal(t, 0.9, res.Confidence)
}

func TestCFOFitz_RecoversKnownOffset(t *testing.T) {
	block := cfoTone(8192, 0.005, 1e6)
	res, err := CFOFitz(block, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.005, res.Normalized, 1e-3)
	assert.Equal(t, 0.85, res.Confidence)
}

func TestCFOPower_RejectsEmptyBlock(t *testing.T) {
	_, err := CFOPower(&signal.IQBlock{}, 1)
	assert.Error(t, err)
}

func TestCFOFitz_RejectsTooShortBlock(t *testing.T) {
	block := cfoTone(2, 0.01, 1e6)
	_, err := CFOFitz(block, 0)
	assert.Error(t, err)
}
