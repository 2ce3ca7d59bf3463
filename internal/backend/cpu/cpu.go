// Package cpu implements the CPU numeric backend. It is always available
// and is the reference implementation every kernel's correctness is
// validated against.
package cpu

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"github.com/secondsight/rfengine/internal/apperr"
	"github.com/secondsight/rfengine/internal/backend"
)

// Backend is the CPU numeric backend.
type Backend struct {
	streams *backend.StreamPool
	mem     *backend.MemoryPool
	windows *backend.WindowCache
}

// New constructs a CPU backend with the given stream pool size and the
// default 1 GiB memory-pool budget.
func New(numStreams int) backend.Backend {
	return NewWithCapacity(numStreams, 0)
}

// NewWithCapacity constructs a CPU backend with an explicit memory-pool
// capacity in bytes (0 selects the default budget).
func NewWithCapacity(numStreams int, capacityBytes int64) backend.Backend {
	b := &Backend{streams: backend.NewStreamPool(numStreams)}
	b.windows = backend.NewWindowCache(b.buildWindow)
	b.mem = backend.NewMemoryPool(capacityBytes, b.windows.Clear)
	return b
}

func (b *Backend) Name() string      { return "cpu" }
func (b *Backend) Available() bool   { return true }
func (b *Backend) Streams() *backend.StreamPool { return b.streams }
func (b *Backend) Memory() *backend.MemoryPool  { return b.mem }

// FFT computes the forward complex DFT of in.
func (b *Backend) FFT(in []complex128) []complex128 {
	fft := fourier.NewCmplxFFT(len(in))
	out := make([]complex128, len(in))
	return fft.Coefficients(out, in)
}

// BatchFFT runs FFT independently over each row, reusing one plan.
func (b *Backend) BatchFFT(in [][]complex128) [][]complex128 {
	if len(in) == 0 {
		return nil
	}
	fft := fourier.NewCmplxFFT(len(in[0]))
	out := make([][]complex128, len(in))
	for i, row := range in {
		dst := make([]complex128, len(row))
		out[i] = fft.Coefficients(dst, row)
	}
	return out
}

// FFTShift swaps the left and right halves so DC lands at index N/2.
func (b *Backend) FFTShift(in []complex128) []complex128 {
	n := len(in)
	out := make([]complex128, n)
	mid := n / 2
	copy(out[:n-mid], in[mid:])
	copy(out[n-mid:], in[:mid])
	return out
}

func (b *Backend) FFTShiftReal(in []float32) []float32 {
	n := len(in)
	out := make([]float32, n)
	mid := n / 2
	copy(out[:n-mid], in[mid:])
	copy(out[n-mid:], in[:mid])
	return out
}

func (b *Backend) Magnitude(in []complex128) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(cmplxAbs(v))
	}
	return out
}

func (b *Backend) Angle(in []complex128) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(math.Atan2(imag(v), real(v)))
	}
	return out
}

func (b *Backend) Conj(in []complex128) []complex128 {
	out := make([]complex128, len(in))
	for i, v := range in {
		out[i] = complex(real(v), -imag(v))
	}
	return out
}

// Unwrap removes 2π discontinuities from a phase sequence.
func (b *Backend) Unwrap(phase []float32) []float32 {
	if len(phase) == 0 {
		return nil
	}
	out := make([]float32, len(phase))
	out[0] = phase[0]
	for i := 1; i < len(phase); i++ {
		delta := phase[i] - phase[i-1]
		for delta > math.Pi {
			delta -= 2 * math.Pi
		}
		for delta < -math.Pi {
			delta += 2 * math.Pi
		}
		out[i] = out[i-1] + delta
	}
	return out
}

func (b *Backend) Sum(in []float32) float64 {
	var s float64
	for _, v := range in {
		s += float64(v)
	}
	return s
}

func (b *Backend) Mean(in []float32) float64 {
	if len(in) == 0 {
		return 0
	}
	return b.Sum(in) / float64(len(in))
}

func (b *Backend) Max(in []float32) float32 {
	if len(in) == 0 {
		return 0
	}
	m := in[0]
	for _, v := range in[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func (b *Backend) Var(in []float32) float64 {
	if len(in) == 0 {
		return 0
	}
	mean := b.Mean(in)
	var acc float64
	for _, v := range in {
		d := float64(v) - mean
		acc += d * d
	}
	return acc / float64(len(in))
}

// Convolve applies taps to a via complex convolution with "same" padding
// (output length equals len(a)).
func (b *Backend) Convolve(a []complex64, taps []complex64) []complex64 {
	n := len(a)
	m := len(taps)
	out := make([]complex64, n)
	half := m / 2
	for i := 0; i < n; i++ {
		var acc complex64
		for k := 0; k < m; k++ {
			srcIdx := i + half - k
			if srcIdx >= 0 && srcIdx < n {
				acc += a[srcIdx] * taps[k]
			}
		}
		out[i] = acc
	}
	return out
}

// Gather implements advanced indexing of the form
// A[outer[:,None]*stride + inner] for inner in [0, inner).
func (b *Backend) Gather(src []complex64, outer []int, stride, inner int) [][]complex64 {
	out := make([][]complex64, len(outer))
	for i, o := range outer {
		row := make([]complex64, inner)
		base := o * stride
		for j := 0; j < inner; j++ {
			row[j] = src[base+j]
		}
		out[i] = row
	}
	return out
}

func (b *Backend) Window(name string, length int) ([]float32, error) {
	return b.windows.Get(name, length)
}

func (b *Backend) buildWindow(name string, length int) ([]float32, error) {
	if length <= 0 {
		return nil, apperr.Usagef("window length must be positive, got %d", length)
	}
	seq := make([]float64, length)
	for i := range seq {
		seq[i] = 1
	}
	switch name {
	case "hann":
		window.Hann(seq)
	case "hamming":
		window.Hamming(seq)
	case "blackman":
		window.Blackman(seq)
	case "kaiser":
		kaiserTaps(seq, 14.0)
	default:
		return nil, apperr.Usagef("unknown window type: %s", name)
	}
	taps := make([]float32, length)
	for i, v := range seq {
		taps[i] = float32(v)
	}
	return taps, nil
}

// kaiserTaps fills seq in place with a Kaiser window of the given beta.
// gonum's dsp/window package has no Kaiser implementation; this is the one
// narrow piece of the numeric stack built directly on math: the modified
// Bessel function I0 is evaluated via the standard power-series expansion.
func kaiserTaps(seq []float64, beta float64) {
	n := len(seq)
	denom := besselI0(beta)
	m := float64(n - 1)
	for i := range seq {
		x := 2*float64(i)/m - 1
		arg := beta * math.Sqrt(1-x*x)
		seq[i] = besselI0(arg) / denom
	}
}

func besselI0(x float64) float64 {
	sum := 1.0
	term := 1.0
	halfX := x / 2
	for k := 1; k < 40; k++ {
		term *= (halfX * halfX) / (float64(k) * float64(k))
		sum += term
		if term < 1e-16*sum {
			break
		}
	}
	return sum
}

func cmplxAbs(v complex128) float64 {
	return math.Hypot(real(v), imag(v))
}
