// Package signal defines the I/Q block type shared by every kernel,
// estimator, and pipeline stage.
package signal

// IQBlock is an immutable, ordered sequence of complex-baseband samples
// plus the metadata needed to interpret them in physical units.
type IQBlock struct {
	Samples    []complex64
	SampleRate float64 // Hz
	SymbolRate float64 // Hz, 0 if unknown
	Modulation string  // e.g. "qpsk", "bpsk8", "", unknown
}

// Len returns the number of samples in the block.
func (b *IQBlock) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Samples)
}

// NewIQBlock builds an IQBlock from separate real/imaginary slices, the
// wire-level shape used by the serialization boundary.
func NewIQBlock(real, imag []float32, sampleRate float64) *IQBlock {
	n := len(real)
	if len(imag) < n {
		n = len(imag)
	}
	samples := make([]complex64, n)
	for i := 0; i < n; i++ {
		samples[i] = complex(real[i], imag[i])
	}
	return &IQBlock{Samples: samples, SampleRate: sampleRate}
}
