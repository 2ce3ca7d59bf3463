package kernel

import (
	"math"

	"github.com/secondsight/rfengine/internal/apperr"
	"github.com/secondsight/rfengine/internal/backend"
	"github.com/secondsight/rfengine/internal/signal"
)

// RFDNAParams configures RF-DNA feature extraction.
type RFDNAParams struct {
	Regions int
}

// rfdnaDomains fixes the canonical domain order features are emitted in.
var rfdnaDomains = []string{"amplitude", "phase", "frequency"}

// RFDNA extracts the RF-DNA fingerprint: for each of the amplitude, phase,
// and instantaneous-frequency domains, the signal is split into Regions
// equal contiguous chunks and the population variance, skewness, and
// excess kurtosis of each chunk are computed. The output is ordered
// domain-major, then region, then statistic, giving exactly 9*Regions
// values.
func RFDNA(b backend.Backend, block *signal.IQBlock, p RFDNAParams) ([]float32, error) {
	if block.Len() == 0 {
		return nil, apperr.Dataf("empty IQ block")
	}
	if p.Regions < 1 {
		return nil, apperr.Usagef("regions must be >= 1, got %d", p.Regions)
	}
	n := block.Len()
	if n < p.Regions {
		return nil, apperr.Dataf("IQ block of length %d too short for %d regions", n, p.Regions)
	}

	amplitude := make([]float32, n)
	phaseRaw := make([]float32, n)
	for i, v := range block.Samples {
		amplitude[i] = float32(math.Hypot(float64(real(v)), float64(imag(v))))
		phaseRaw[i] = float32(math.Atan2(float64(imag(v)), float64(real(v))))
	}
	phase := b.Unwrap(phaseRaw)

	// Instantaneous frequency is the discrete derivative of unwrapped
	// phase; the first sample has no predecessor and repeats the first
	// difference.
	freq := make([]float32, n)
	for i := 1; i < n; i++ {
		freq[i] = phase[i] - phase[i-1]
	}
	if n > 1 {
		freq[0] = freq[1]
	}

	domainSeries := map[string][]float32{
		"amplitude": amplitude,
		"phase":     phase,
		"frequency": freq,
	}

	// Ordering: outer axis domain, middle axis region, inner axis
	// statistic {variance, skewness, excess-kurtosis}.
	out := make([]float32, 0, 9*p.Regions)
	for _, domain := range rfdnaDomains {
		series := domainSeries[domain]
		regions := splitRegions(series, p.Regions)
		for _, seg := range regions {
			v, s, k := populationMoments(seg)
			out = append(out, v, s, k)
		}
	}

	return out, nil
}

// splitRegions truncates series to n*floor(len(series)/n) samples and
// reshapes the remainder uniformly into n equal-size regions; any leftover
// samples that don't fill a full region are dropped, not appended to the
// last region.
func splitRegions(series []float32, n int) [][]float32 {
	chunk := len(series) / n
	if chunk < 1 {
		chunk = 1
	}
	out := make([][]float32, n)
	for i := 0; i < n; i++ {
		start := i * chunk
		end := start + chunk
		if start >= len(series) {
			out[i] = nil
			continue
		}
		if end > len(series) {
			end = len(series)
		}
		out[i] = series[start:end]
	}
	return out
}

// populationMoments returns the population variance, skewness, and excess
// kurtosis of seg using the plain second/third/fourth standardized moment
// definitions (not gonum/stat's sample-corrected estimators, which use a
// different normalization than the standardized-moment formulas called for
// here).
func populationMoments(seg []float32) (variance, skewness, kurtosis float32) {
	n := len(seg)
	if n == 0 {
		return 0, 0, 0
	}
	var mean float64
	for _, v := range seg {
		mean += float64(v)
	}
	mean /= float64(n)

	var m2, m3, m4 float64
	for _, v := range seg {
		d := float64(v) - mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	m2 /= float64(n)
	m3 /= float64(n)
	m4 /= float64(n)

	variance = float32(m2)
	if m2 <= 0 {
		return variance, 0, 0
	}
	std := math.Sqrt(m2)
	skewness = float32(m3 / (std * std * std))
	kurtosis = float32(m4/(m2*m2) - 3)
	return variance, skewness, kurtosis
}
