package kernel

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/secondsight/rfengine/internal/apperr"
	"github.com/secondsight/rfengine/internal/backend"
	"github.com/secondsight/rfengine/internal/signal"
)

// FAMParams configures the FFT Accumulation Method spectral correlation
// estimator.
type FAMParams struct {
	SampleRate float64
	NFFT       int
	Overlap    float64
	AlphaMax   float64
	Window     string
}

// SCF is the two-dimensional spectral correlation function map plus its
// axes and one-dimensional cyclic profile.
type SCF struct {
	Magnitude     [][]float32
	SpectralFreqs []float32
	CyclicFreqs   []float32
	CyclicProfile []float32
}

// FAM computes the SCF via the FFT Accumulation Method.
func FAM(b backend.Backend, block *signal.IQBlock, p FAMParams) (*SCF, error) {
	if block.Len() == 0 {
		return nil, apperr.Dataf("empty IQ block")
	}
	if p.NFFT < 2 {
		return nil, apperr.Usagef("nfft must be >= 2, got %d", p.NFFT)
	}
	if p.AlphaMax <= 0 || p.AlphaMax > 1 {
		return nil, apperr.Usagef("alpha_max must be in (0, 1], got %v", p.AlphaMax)
	}

	win, err := b.Window(p.Window, p.NFFT)
	if err != nil {
		return nil, err
	}

	hop := int(float64(p.NFFT) * (1 - p.Overlap))
	if hop <= 0 {
		hop = 1
	}
	n := block.Len()
	numBlocks := (n-p.NFFT)/hop + 1
	if n < p.NFFT || numBlocks < 1 {
		return nil, apperr.Dataf("IQ block of length %d too short for nfft %d", n, p.NFFT)
	}

	blocks := make([][]complex128, numBlocks)
	for s := 0; s < numBlocks; s++ {
		start := s * hop
		row := make([]complex128, p.NFFT)
		for i := 0; i < p.NFFT; i++ {
			v := block.Samples[start+i]
			row[i] = complex(float64(real(v))*float64(win[i]), float64(imag(v))*float64(win[i]))
		}
		blocks[s] = row
	}

	// Step 1+2: channelize — FFT each block along the sample axis.
	channels := b.BatchFFT(blocks)

	// Step 3: cyclic FFT along the block axis (columns).
	scfRaw := fftAlongColumns(b, channels, p.NFFT)

	// Step 4: magnitude + global-max normalization.
	magMat := mat.NewDense(numBlocks, p.NFFT, nil)
	var maxVal float64
	for i := 0; i < numBlocks; i++ {
		for j := 0; j < p.NFFT; j++ {
			m := cmplxAbs(scfRaw[i][j])
			magMat.Set(i, j, m)
			if m > maxVal {
				maxVal = m
			}
		}
	}
	if maxVal > 0 {
		magMat.Scale(1/maxVal, magMat)
	}

	// Step 5: cyclic profile — max-hold across the spectral axis.
	profile := make([]float64, numBlocks)
	for i := 0; i < numBlocks; i++ {
		row := mat.Row(nil, i, magMat)
		m := row[0]
		for _, v := range row[1:] {
			if v > m {
				m = v
			}
		}
		profile[i] = m
	}

	spectralFreqs := fftShiftFloat(fftFreq(p.NFFT, 1/p.SampleRate))
	cyclicFreqs := fftFreq(numBlocks, float64(hop)/p.SampleRate)

	alphaMaxHz := p.AlphaMax * p.SampleRate
	keep := make([]int, 0, numBlocks)
	for i, f := range cyclicFreqs {
		if math.Abs(f) <= alphaMaxHz {
			keep = append(keep, i)
		}
	}

	magnitude := make([][]float32, len(keep))
	outCyclic := make([]float32, len(keep))
	outProfile := make([]float32, len(keep))
	for idx, row := range keep {
		magnitude[idx] = make([]float32, p.NFFT)
		for j := 0; j < p.NFFT; j++ {
			magnitude[idx][j] = float32(magMat.At(row, j))
		}
		outCyclic[idx] = float32(cyclicFreqs[row])
		outProfile[idx] = float32(profile[row])
	}

	outSpectral := make([]float32, p.NFFT)
	for i, f := range spectralFreqs {
		outSpectral[i] = float32(f)
	}

	return &SCF{
		Magnitude:     magnitude,
		SpectralFreqs: outSpectral,
		CyclicFreqs:   outCyclic,
		CyclicProfile: outProfile,
	}, nil
}

// fftAlongColumns runs a forward FFT down each column of a row-major
// matrix (i.e. along the block/time axis), used by FAM's cyclic FFT step.
func fftAlongColumns(b backend.Backend, rows [][]complex128, ncols int) [][]complex128 {
	nrows := len(rows)
	cols := make([][]complex128, ncols)
	for j := 0; j < ncols; j++ {
		col := make([]complex128, nrows)
		for i := 0; i < nrows; i++ {
			col[i] = rows[i][j]
		}
		cols[j] = col
	}
	transformed := b.BatchFFT(cols)
	out := make([][]complex128, nrows)
	for i := range out {
		out[i] = make([]complex128, ncols)
	}
	for j, col := range transformed {
		for i, v := range col {
			out[i][j] = v
		}
	}
	return out
}

// fftFreq mirrors numpy.fft.fftfreq(n, d): n frequency bins spaced 1/(n*d),
// in FFT bin order (0, 1, ..., n/2-1, -n/2, ..., -1) * (1/(n*d)).
func fftFreq(n int, d float64) []float64 {
	freqs := make([]float64, n)
	if d == 0 {
		return freqs
	}
	val := 1 / (float64(n) * d)
	half := (n - 1) / 2
	for i := 0; i <= half; i++ {
		freqs[i] = float64(i) * val
	}
	for i := half + 1; i < n; i++ {
		freqs[i] = float64(i-n) * val
	}
	return freqs
}

func fftShiftFloat(in []float64) []float64 {
	n := len(in)
	out := make([]float64, n)
	mid := n / 2
	copy(out[:n-mid], in[mid:])
	copy(out[n-mid:], in[:mid])
	return out
}
