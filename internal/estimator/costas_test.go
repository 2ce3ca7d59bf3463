package estimator

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secondsight/rfengine/internal/signal"
)

// qpskCFOSignal generates SpS-oversampled QPSK symbols with a constant
// carrier offset, matching the seed scenario used for Costas convergence.
func qpskCFOSignal(numSymbols, sps int, cfoHz, fs float64, seed int64) *signal.IQBlock {
	rng := rand.New(rand.NewSource(seed))
	constellation := []complex128{
		complex(1, 1), complex(-1, 1), complex(-1, -1), complex(1, -1),
	}
	n := numSymbols * sps
	samples := make([]complex64, n)
	idx := 0
	for s := 0; s < numSymbols; s++ {
		c := constellation[rng.Intn(4)]
		for k := 0; k < sps; k++ {
			theta := 2 * math.Pi * cfoHz * float64(idx) / fs
			rot := complex(math.Cos(theta), math.Sin(theta))
			samples[idx] = complex64(c * rot)
			idx++
		}
	}
	return &signal.IQBlock{Samples: samples, SampleRate: fs}
}

func TestCostasRun_ConvergesOnInjectedCFO(t *testing.T) {
	fs := 1e6
	cfoHz := 1000.0
	sps := 10
	block := qpskCFOSignal(1000, sps, cfoHz, fs, 99)

	res, err := CostasRun(block, CostasParams{Mode: "qpsk", LoopBandwidth: 0.02, Damping: 0.707}, CostasState{})
	require.NoError(t, err)

	finalHz := res.FinalFreq * fs / (2 * math.Pi)
	assert.True(t, res.LockDetected, "expected lock_detected = true")
	if res.LockDetected {
		assert.Less(t, res.LockTime, 3000)
	}
	assert.InDelta(t, cfoHz, finalHz, 50)
}

func TestCostasRun_RejectsEmptyBlock(t *testing.T) {
	_, err := CostasRun(&signal.IQBlock{}, CostasParams{}, CostasState{})
	assert.Error(t, err)
}

func TestCostasStep_MatchesRunForFirstSample(t *testing.T) {
	block := qpskCFOSignal(50, 10, 500, 1e6, 5)
	run, err := CostasRun(block, CostasParams{Mode: "qpsk"}, CostasState{})
	require.NoError(t, err)

	y, _, _ := CostasStep(block.Samples[0], CostasParams{Mode: "qpsk"}, CostasState{})
	assert.InDelta(t, real(run.Corrected[0]), real(y), 1e-9)
	assert.InDelta(t, imag(run.Corrected[0]), imag(y), 1e-9)
}

func TestPhaseDetector_BPSKSignOfProduct(t *testing.T) {
	e := phaseDetector("bpsk", complex(1, 0.5))
	assert.InDelta(t, 0.5, e, 1e-9)
}

func TestPhaseDetector_8PSKWrapsToPrincipalRange(t *testing.T) {
	e := phaseDetector("8psk", complex(math.Cos(math.Pi/8), math.Sin(math.Pi/8)))
	assert.GreaterOrEqual(t, e, -math.Pi)
	assert.LessOrEqual(t, e, math.Pi)
}
