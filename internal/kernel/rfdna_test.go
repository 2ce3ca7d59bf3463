package kernel

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secondsight/rfengine/internal/backend/cpu"
	"github.com/secondsight/rfengine/internal/signal"
)

func TestRFDNA_OutputLengthIs9TimesRegions(t *testing.T) {
	b := cpu.New(1)
	block := tone(4096, 0.1, 1e6)
	for _, regions := range []int{1, 4, 20} {
		features, err := RFDNA(b, block, RFDNAParams{Regions: regions})
		require.NoError(t, err)
		assert.Len(t, features, 9*regions)
	}
}

func TestRFDNA_RejectsZeroRegions(t *testing.T) {
	b := cpu.New(1)
	block := tone(4096, 0.1, 1e6)
	_, err := RFDNA(b, block, RFDNAParams{Regions: 0})
	assert.Error(t, err)
}

func TestPopulationMoments_ConstantSegmentIsDegenerate(t *testing.T) {
	v, s, k := populationMoments([]float32{5, 5, 5, 5})
	assert.InDelta(t, 0, v, 1e-9)
	assert.InDelta(t, 0, s, 1e-9)
	assert.InDelta(t, 0, k, 1e-9)
}

func TestPopulationMoments_SkewnessSignMatchesAsymmetry(t *testing.T) {
	// A right-skewed sample (one large outlier above an otherwise tight
	// cluster) should report positive skewness.
	_, skew, _ := populationMoments([]float32{1, 1, 1, 1, 10})
	assert.Greater(t, skew, float32(0))
}

func TestSplitRegions_DropsRemainderUniformly(t *testing.T) {
	// 17 samples split into 5 regions: floor(17/5)=3 per region, 2 samples
	// dropped rather than folded into the last region.
	series := make([]float32, 17)
	for i := range series {
		series[i] = float32(i)
	}
	regions := splitRegions(series, 5)
	require.Len(t, regions, 5)
	for _, r := range regions {
		assert.Len(t, r, 3)
	}
	// The dropped tail (indices 15, 16) must not appear anywhere.
	assert.Equal(t, float32(14), regions[4][2])
}

func TestRFDNA_ConstantAmplitudeHasZeroAmplitudeVariance(t *testing.T) {
	b := cpu.New(1)
	n := 4000
	samples := make([]complex64, n)
	for i := range samples {
		theta := 2 * math.Pi * 0.05 * float64(i)
		samples[i] = complex64(complex(math.Cos(theta), math.Sin(theta)))
	}
	block := &signal.IQBlock{Samples: samples, SampleRate: 1e6}

	features, err := RFDNA(b, block, RFDNAParams{Regions: 5})
	require.NoError(t, err)
	// Amplitude domain occupies the first 3*5=15 entries, variance first
	// within each region's (var, skew, kurt) triple.
	for r := 0; r < 5; r++ {
		assert.InDelta(t, 0, features[r*3], 1e-6)
	}
}
