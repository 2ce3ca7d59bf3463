package estimator

import (
	"math"

	"github.com/secondsight/rfengine/internal/apperr"
	"github.com/secondsight/rfengine/internal/signal"
)

// SNRResult is the outcome of the M2M4 SNR estimator.
type SNRResult struct {
	DB           float64
	SignalPower  float64
	NoisePower   float64
	Method       string
	Segments     []float64 // populated only by the segmented variant
}

// kappaFor returns the modulation-dependent kurtosis correction used by
// the M2M4 estimator.
func kappaFor(modulation string) float64 {
	switch modulation {
	case "16qam", "16-qam":
		return 1.32
	case "64qam", "64-qam":
		return 1.38
	default:
		return 1.0
	}
}

const saturatedSNRLin = 100.0

// SNRM2M4 estimates SNR from the second and fourth envelope moments of
// the block.
func SNRM2M4(block *signal.IQBlock, modulation string) (*SNRResult, error) {
	if block.Len() == 0 {
		return nil, apperr.Dataf("empty IQ block")
	}
	m2, m4 := moments24(block.Samples)
	db, sig, noise := m2m4Reduce(m2, m4, kappaFor(modulation))
	return &SNRResult{DB: db, SignalPower: sig, NoisePower: noise, Method: "m2m4"}, nil
}

// SNRM2M4Segmented splits the block into K equal segments, estimates
// M2M4 SNR on each, and reports the mean alongside the per-segment
// vector.
func SNRM2M4Segmented(block *signal.IQBlock, modulation string, segments int) (*SNRResult, error) {
	if block.Len() == 0 {
		return nil, apperr.Dataf("empty IQ block")
	}
	if segments < 1 {
		return nil, apperr.Usagef("segments must be >= 1, got %d", segments)
	}
	n := block.Len()
	if n < segments {
		return nil, apperr.Dataf("IQ block of length %d too short for %d segments", n, segments)
	}

	kappa := kappaFor(modulation)
	chunk := n / segments
	dbs := make([]float64, segments)
	var sigSum, noiseSum float64

	for s := 0; s < segments; s++ {
		start := s * chunk
		end := start + chunk
		if s == segments-1 {
			end = n
		}
		m2, m4 := moments24(block.Samples[start:end])
		db, sig, noise := m2m4Reduce(m2, m4, kappa)
		dbs[s] = db
		sigSum += sig
		noiseSum += noise
	}

	var meanDB float64
	for _, d := range dbs {
		meanDB += d
	}
	meanDB /= float64(segments)

	return &SNRResult{
		DB:          meanDB,
		SignalPower: sigSum / float64(segments),
		NoisePower:  noiseSum / float64(segments),
		Method:      "m2m4_segmented",
		Segments:    dbs,
	}, nil
}

func moments24(samples []complex64) (m2, m4 float64) {
	n := float64(len(samples))
	for _, v := range samples {
		absSq := float64(real(v))*float64(real(v)) + float64(imag(v))*float64(imag(v))
		m2 += absSq
		m4 += absSq * absSq
	}
	return m2 / n, m4 / n
}

func m2m4Reduce(m2, m4, kappa float64) (db, signalPower, noisePower float64) {
	denom := kappa*m4 - m2*m2
	var snrLin float64
	if denom <= 0 {
		snrLin = saturatedSNRLin
	} else {
		snrLin = math.Sqrt(2 * m2 * m2 / denom)
	}
	db = 10 * math.Log10(snrLin)
	signalPower = m2 * snrLin / (1 + snrLin)
	noisePower = m2 / (1 + snrLin)
	return db, signalPower, noisePower
}
