package estimator

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secondsight/rfengine/internal/signal"
)

func pulseShapedQPSK(numSymbols, sps int, seed int64) *signal.IQBlock {
	rng := rand.New(rand.NewSource(seed))
	constellation := []complex64{
		complex(1, 1), complex(-1, 1), complex(-1, -1), complex(1, -1),
	}
	n := numSymbols * sps
	samples := make([]complex64, n)
	for s := 0; s < numSymbols; s++ {
		c := constellation[rng.Intn(4)]
		for k := 0; k < sps; k++ {
			samples[s*sps+k] = c
		}
	}
	return &signal.IQBlock{Samples: samples, SampleRate: 1e6}
}

func TestGardner_RecoversApproximatelyOneSymbolPerSpS(t *testing.T) {
	sps := 8
	block := pulseShapedQPSK(200, sps, 1)
	res, err := Gardner(block, TimingParams{SamplesPerSymbol: float64(sps)})
	require.NoError(t, err)
	assert.InDelta(t, float64(sps), res.EffectiveSpS, float64(sps)*0.5)
	assert.NotEmpty(t, res.Symbols)
}

func TestGardner_RejectsZeroSpS(t *testing.T) {
	block := pulseShapedQPSK(10, 8, 1)
	_, err := Gardner(block, TimingParams{SamplesPerSymbol: 0})
	assert.Error(t, err)
}

func TestMuellerMuller_RequiresConstellation(t *testing.T) {
	block := pulseShapedQPSK(10, 8, 1)
	_, err := MuellerMuller(block, TimingParams{SamplesPerSymbol: 8})
	assert.Error(t, err)
}

func TestClampStep_BoundsToSpSRange(t *testing.T) {
	sps := 8.0
	assert.Equal(t, sps/2, clampStep(0, sps/2, 3*sps/2))
	assert.Equal(t, 3*sps/2, clampStep(100, sps/2, 3*sps/2))
	assert.Equal(t, sps, clampStep(sps, sps/2, 3*sps/2))
}

func TestFarrowInterpolate_ReturnsExactSampleAtZeroOffset(t *testing.T) {
	samples := []complex64{0, 1, 2, 3, 4, 5}
	v := farrowInterpolate(samples, 2, 0)
	assert.InDelta(t, 2, real(v), 1e-9)
}

func TestNearestPoint_PicksClosestConstellationEntry(t *testing.T) {
	constellation := []complex64{complex(1, 1), complex(-1, -1)}
	d := nearestPoint(complex(0.9, 0.9), constellation)
	assert.Equal(t, complex64(complex(1, 1)), d)
}
