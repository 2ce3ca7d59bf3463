package kernel

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secondsight/rfengine/internal/signal"
)

func TestComputeCumulants_RejectsEmptyBlock(t *testing.T) {
	_, err := ComputeCumulants(&signal.IQBlock{}, []int{4, 6})
	assert.Error(t, err)
}

func TestComputeCumulants_RejectsEmptyOrders(t *testing.T) {
	block := &signal.IQBlock{Samples: []complex64{complex(1, 0)}, SampleRate: 1e6}
	_, err := ComputeCumulants(block, nil)
	assert.Error(t, err)
}

func TestComputeCumulants_RejectsUnsupportedOrder(t *testing.T) {
	block := &signal.IQBlock{Samples: []complex64{complex(1, 0)}, SampleRate: 1e6}
	_, err := ComputeCumulants(block, []int{3})
	assert.Error(t, err)
}

func TestComputeCumulants_RespectsOrdersSubset(t *testing.T) {
	block := &signal.IQBlock{Samples: []complex64{complex(1, 0), complex(0, 1), complex(-1, 0), complex(0, -1)}, SampleRate: 1e6}

	c4, err := ComputeCumulants(block, []int{4})
	require.NoError(t, err)
	assert.True(t, c4.HasCum4)
	assert.False(t, c4.HasCum6)

	c6, err := ComputeCumulants(block, []int{6})
	require.NoError(t, err)
	assert.False(t, c6.HasCum4)
	assert.True(t, c6.HasCum6)
}

func TestComputeCumulants_CircularGaussianCum4NearZero(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	n := 200000
	samples := make([]complex64, n)
	for i := range samples {
		re := float32(rng.NormFloat64())
		im := float32(rng.NormFloat64())
		samples[i] = complex(re, im)
	}
	block := &signal.IQBlock{Samples: samples, SampleRate: 1e6}

	c, err := ComputeCumulants(block, []int{4, 6})
	require.NoError(t, err)

	// A circularly symmetric complex Gaussian has zero excess higher-order
	// cumulants; only finite-sample noise should remain.
	assert.Less(t, math.Abs(c.Cum4), 0.1)
}

func TestComputeCumulants_CenteringRemovesDCOffset(t *testing.T) {
	offset := complex64(complex(5, 5))
	samples := []complex64{complex(1, 0) + offset, complex(0, 1) + offset, complex(-1, 0) + offset, complex(0, -1) + offset}
	centered := []complex64{complex(1, 0), complex(0, 1), complex(-1, 0), complex(0, -1)}

	withOffset, err := ComputeCumulants(&signal.IQBlock{Samples: samples, SampleRate: 1e6}, []int{4})
	require.NoError(t, err)
	withoutOffset, err := ComputeCumulants(&signal.IQBlock{Samples: centered, SampleRate: 1e6}, []int{4})
	require.NoError(t, err)

	assert.InDelta(t, withoutOffset.Cum4, withOffset.Cum4, 1e-6)
}
