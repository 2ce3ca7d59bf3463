// Package estimator implements the blind parameter estimators: carrier
// frequency offset, M2M4 SNR, Costas carrier tracking, and symbol-timing
// recovery. Estimators are pure functions over sample slices plus an
// explicit state struct where the algorithm is inherently recursive
// (Costas, timing recovery) — no package-level state is kept between
// calls.
package estimator

import (
	"math"

	"github.com/secondsight/rfengine/internal/apperr"
	"github.com/secondsight/rfengine/internal/signal"
)

// CFOResult is the outcome of any of the CFO estimators.
type CFOResult struct {
	Hz         float64
	Normalized float64
	Confidence float64
	Method     string
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// CFOPower estimates carrier offset from the lag-L autocorrelation phase.
func CFOPower(block *signal.IQBlock, lag int) (*CFOResult, error) {
	if block.Len() == 0 {
		return nil, apperr.Dataf("empty IQ block")
	}
	if lag < 1 {
		lag = 1
	}
	samples := block.Samples
	n := len(samples)
	if n <= lag {
		return nil, apperr.Dataf("IQ block of length %d too short for lag %d", n, lag)
	}

	var r complex128
	count := 0
	for i := lag; i < n; i++ {
		x := complex128(samples[i])
		xl := complex128(samples[i-lag])
		r += x * complex(real(xl), -imag(xl))
		count++
	}
	r /= complex(float64(count), 0)

	fNorm := math.Atan2(imag(r), real(r)) / (2 * math.Pi * float64(lag))
	conf := clampConfidence(math.Hypot(real(r), imag(r)))

	return &CFOResult{
		Hz:         fNorm * block.SampleRate,
		Normalized: fNorm,
		Confidence: conf,
		Method:     "power",
	}, nil
}

// CFOKay estimates carrier offset via Kay's weighted lag-1 phase
// difference estimator.
func CFOKay(block *signal.IQBlock) (*CFOResult, error) {
	if block.Len() == 0 {
		return nil, apperr.Dataf("empty IQ block")
	}
	samples := block.Samples
	n := len(samples)
	if n < 3 {
		return nil, apperr.Dataf("IQ block of length %d too short for Kay estimator", n)
	}

	diffs := make([]float64, n-1)
	for i := 1; i < n; i++ {
		x := complex128(samples[i])
		xl := complex128(samples[i-1])
		r := x * complex(real(xl), -imag(xl))
		diffs[i-1] = math.Atan2(imag(r), real(r))
	}

	nf := float64(n)
	var weighted, weightSum float64
	for k := 1; k <= len(diffs); k++ {
		kf := float64(k)
		w := 1.5 * nf / (nf*nf - 1) * (nf - kf) * kf / (nf - 1)
		weighted += w * diffs[k-1]
		weightSum += w
	}
	fNorm := weighted / weightSum / (2 * math.Pi)

	return &CFOResult{
		Hz:         fNorm * block.SampleRate,
		Normalized: fNorm,
		Confidence: 0.9,
		Method:     "kay",
	}, nil
}

// CFOFitz estimates carrier offset via Fitz's multi-lag weighted
// autocorrelation-phase estimator.
func CFOFitz(block *signal.IQBlock, lagMax int) (*CFOResult, error) {
	if block.Len() == 0 {
		return nil, apperr.Dataf("empty IQ block")
	}
	samples := block.Samples
	n := len(samples)

	maxLag := n / 4
	if lagMax > 0 && lagMax < maxLag {
		maxLag = lagMax
	}
	if maxLag < 1 {
		return nil, apperr.Dataf("IQ block of length %d too short for Fitz estimator", n)
	}

	weights := make([]float64, maxLag+1)
	phis := make([]float64, maxLag+1)
	var weightSum float64
	for m := 1; m <= maxLag; m++ {
		var r complex128
		count := 0
		for i := m; i < n; i++ {
			x := complex128(samples[i])
			xl := complex128(samples[i-m])
			r += x * complex(real(xl), -imag(xl))
			count++
		}
		if count == 0 {
			continue
		}
		r /= complex(float64(count), 0)
		phis[m] = math.Atan2(imag(r), real(r))
		w := float64(m) * float64(n-m)
		weights[m] = w
		weightSum += w
	}
	if weightSum == 0 {
		return nil, apperr.Degeneratef("Fitz estimator: degenerate weight sum")
	}

	var acc float64
	for m := 1; m <= maxLag; m++ {
		acc += (weights[m] / weightSum) * (phis[m] / float64(m))
	}
	fNorm := acc / (2 * math.Pi)

	return &CFOResult{
		Hz:         fNorm * block.SampleRate,
		Normalized: fNorm,
		Confidence: 0.85,
		Method:     "fitz",
	}, nil
}
