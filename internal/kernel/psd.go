// Package kernel implements the numeric kernel catalogue: Welch PSD, FAM
// SCF, Wigner-Ville/Choi-Williams time-frequency distributions, RF-DNA
// features, higher-order cumulants, and matched filtering. Every kernel
// runs against a backend.Backend and never keeps device-side state
// between calls.
package kernel

import (
	"math"

	"github.com/secondsight/rfengine/internal/apperr"
	"github.com/secondsight/rfengine/internal/backend"
	"github.com/secondsight/rfengine/internal/signal"
)

const dbFloor = -120.0

// PSDParams configures Welch's method.
type PSDParams struct {
	FFTSize int
	Overlap float64
	Window  string
	Detrend bool
}

// PSD computes the Welch power spectral density in dB, FFT-shifted so DC
// sits at index FFTSize/2.
func PSD(b backend.Backend, block *signal.IQBlock, p PSDParams) ([]float32, error) {
	if block.Len() == 0 {
		return nil, apperr.Dataf("empty IQ block")
	}
	if p.FFTSize < 64 || p.FFTSize&(p.FFTSize-1) != 0 {
		return nil, apperr.Usagef("fft_size must be a power of two >= 64, got %d", p.FFTSize)
	}
	if p.Overlap < 0 || p.Overlap >= 1 {
		return nil, apperr.Usagef("overlap must be in [0, 1), got %v", p.Overlap)
	}

	samples := block.Samples
	if p.Detrend {
		samples = detrend(samples)
	}

	win, err := b.Window(p.Window, p.FFTSize)
	if err != nil {
		return nil, err
	}
	var winPower float64
	for _, w := range win {
		winPower += float64(w) * float64(w)
	}

	hop := int(float64(p.FFTSize) * (1 - p.Overlap))
	if hop <= 0 {
		hop = 1
	}
	n := len(samples)
	numSegments := (n-p.FFTSize)/hop + 1
	if numSegments < 1 {
		numSegments = 1
	}

	segments := make([][]complex128, 0, numSegments)
	for s := 0; s*hop+p.FFTSize <= n; s++ {
		start := s * hop
		seg := make([]complex128, p.FFTSize)
		for i := 0; i < p.FFTSize; i++ {
			v := samples[start+i]
			seg[i] = complex(float64(real(v))*float64(win[i]), float64(imag(v))*float64(win[i]))
		}
		segments = append(segments, seg)
	}
	if len(segments) == 0 {
		return nil, apperr.Dataf("IQ block of length %d too short for fft_size %d", n, p.FFTSize)
	}

	spectra := b.BatchFFT(segments)

	psd := make([]float64, p.FFTSize)
	for _, spec := range spectra {
		for i, c := range spec {
			mag := cmplxAbs(c)
			psd[i] += mag * mag
		}
	}
	for i := range psd {
		psd[i] = psd[i] / float64(len(spectra)) / winPower
	}

	psdDB := make([]float32, p.FFTSize)
	for i, v := range psd {
		db := 10 * math.Log10(v+1e-12)
		if db < dbFloor {
			db = dbFloor
		}
		psdDB[i] = float32(db)
	}

	return b.FFTShiftReal(psdDB), nil
}

func detrend(samples []complex64) []complex64 {
	var meanRe, meanIm float64
	for _, v := range samples {
		meanRe += float64(real(v))
		meanIm += float64(imag(v))
	}
	n := float64(len(samples))
	meanRe /= n
	meanIm /= n
	out := make([]complex64, len(samples))
	for i, v := range samples {
		out[i] = complex(real(v)-float32(meanRe), imag(v)-float32(meanIm))
	}
	return out
}

func cmplxAbs(v complex128) float64 {
	return math.Hypot(real(v), imag(v))
}
