package kernel

import (
	"math"

	"github.com/secondsight/rfengine/internal/apperr"
	"github.com/secondsight/rfengine/internal/backend"
	"github.com/secondsight/rfengine/internal/signal"
)

// TFD is a time-frequency distribution matrix plus its axes.
type TFD struct {
	Magnitude [][]float32
	TimeAxis  []float32
	FreqAxis  []float32
}

// WVDParams configures the Wigner-Ville / Pseudo-WVD kernel.
type WVDParams struct {
	NFFT           int
	NumTimePoints  int // 0 => N/4
	Smoothing      bool
	SmoothWindow   int
}

// WVD computes the Wigner-Ville Distribution (or its smoothed pseudo
// variant when Smoothing is set).
func WVD(b backend.Backend, block *signal.IQBlock, p WVDParams) (*TFD, error) {
	return timeFrequency(b, block, p.NFFT, p.NumTimePoints, p.Smoothing, p.SmoothWindow, 0, false)
}

// CWDParams configures the Choi-Williams Distribution.
type CWDParams struct {
	NFFT          int
	Sigma         float64
	NumTimePoints int
}

// CWD computes the Choi-Williams Distribution, which weights the
// instantaneous autocorrelation by an exponential kernel to suppress
// cross-terms.
func CWD(b backend.Backend, block *signal.IQBlock, p CWDParams) (*TFD, error) {
	sigma := p.Sigma
	if sigma == 0 {
		sigma = 1.0
	}
	return timeFrequency(b, block, p.NFFT, p.NumTimePoints, false, 0, sigma, true)
}

func timeFrequency(b backend.Backend, block *signal.IQBlock, nfft, numTimePoints int, smoothing bool, smoothWindow int, sigma float64, choiWilliams bool) (*TFD, error) {
	if block.Len() == 0 {
		return nil, apperr.Dataf("empty IQ block")
	}
	if nfft <= 0 || nfft%2 != 0 {
		return nil, apperr.Usagef("nfft must be a positive even number, got %d", nfft)
	}
	N := block.Len()
	if numTimePoints <= 0 {
		numTimePoints = N / 4
	}
	if numTimePoints <= 0 {
		return nil, apperr.Dataf("IQ block of length %d too short for any time points", N)
	}

	half := nfft / 2
	timeStep := N / numTimePoints
	if timeStep < 1 {
		timeStep = 1
	}

	tIdx := make([]int, 0, numTimePoints)
	for i := 0; i < numTimePoints; i++ {
		t := i*timeStep + half
		if t >= half && t < N-half {
			tIdx = append(tIdx, t)
		}
	}
	if len(tIdx) == 0 {
		return &TFD{
			Magnitude: [][]float32{make([]float32, nfft)},
			TimeAxis:  []float32{0},
			FreqAxis:  linspace(-0.5, 0.5-1.0/float64(nfft), nfft),
		}, nil
	}

	var smoothTaps []float32
	if smoothing && smoothWindow > 0 {
		taps, err := b.Window("hamming", smoothWindow)
		if err != nil {
			return nil, err
		}
		smoothTaps = padCentered(taps, nfft)
	}

	samples := block.Samples
	autocorr := make([][]complex128, len(tIdx))
	for i := range autocorr {
		autocorr[i] = make([]complex128, nfft)
	}

	for tauOffset := -half; tauOffset < half; tauOffset++ {
		tauIdx := tauOffset + half
		for row, t := range tIdx {
			idx1 := t + floorDiv(tauOffset, 2)
			idx2 := t - floorDiv(tauOffset, 2)
			if idx1 < 0 || idx1 >= N || idx2 < 0 || idx2 >= N {
				continue
			}
			v := complex128(samples[idx1]) * complex128(complexConj(samples[idx2]))
			if choiWilliams {
				tf := float64(t)
				kernel := math.Exp(-sigma * float64(tauOffset*tauOffset) / (tf*tf + 1e-10))
				v *= complex(kernel, 0)
			}
			if smoothTaps != nil {
				v *= complex(float64(smoothTaps[tauIdx]), 0)
			}
			autocorr[row][tauIdx] = v
		}
	}

	spectra := b.BatchFFT(autocorr)

	magnitude := make([][]float32, len(spectra))
	for i, row := range spectra {
		mag := make([]float32, nfft)
		for j, c := range row {
			mag[j] = float32(cmplxAbs(c))
		}
		magnitude[i] = b.FFTShiftReal(mag)
	}

	timeAxis := make([]float32, len(tIdx))
	for i, t := range tIdx {
		timeAxis[i] = float32(t)
	}

	// linspace(-0.5, 0.5-1/nfft, nfft) is already the fftshifted axis (DC
	// at index nfft/2); shifting it again would undo that.
	freqAxis := linspace(-0.5, 0.5-1.0/float64(nfft), nfft)

	return &TFD{Magnitude: magnitude, TimeAxis: timeAxis, FreqAxis: freqAxis}, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func complexConj(v complex64) complex64 {
	return complex(real(v), -imag(v))
}

func linspace(start, stop float64, n int) []float32 {
	out := make([]float32, n)
	if n == 1 {
		out[0] = float32(start)
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := 0; i < n; i++ {
		out[i] = float32(start + step*float64(i))
	}
	return out
}

// padCentered zero-pads taps to width, centering the original taps.
func padCentered(taps []float32, width int) []float32 {
	out := make([]float32, width)
	padLeft := (width - len(taps)) / 2
	for i, v := range taps {
		dst := padLeft + i
		if dst >= 0 && dst < width {
			out[dst] = v
		}
	}
	return out
}
