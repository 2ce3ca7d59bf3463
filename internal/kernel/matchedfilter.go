package kernel

import (
	"fmt"
	"math"
	"sync"

	"github.com/secondsight/rfengine/internal/apperr"
	"github.com/secondsight/rfengine/internal/backend"
)

// PulseFilter is a generated pulse-shaping/matched filter kernel.
type PulseFilter struct {
	Taps []complex64
}

// FilterCache caches generated pulse filters per (shape, parameter, taps
// length), created on first demand and living for the process lifetime —
// the same keyed-memoization pattern backend.WindowCache uses for window
// taps.
type FilterCache struct {
	mu      sync.Mutex
	filters map[filterKey]*PulseFilter
}

type filterKey struct {
	shape string
	param string
	taps  int
}

func NewFilterCache() *FilterCache {
	return &FilterCache{filters: make(map[filterKey]*PulseFilter)}
}

// RRC returns a cached root-raised-cosine filter for p, generating and
// storing it on first use.
func (c *FilterCache) RRC(p RRCParams) (*PulseFilter, error) {
	key := filterKey{shape: "rrc", param: fmt.Sprintf("%v", p.Rolloff), taps: p.Span * p.SamplesPerSymbol}
	return c.get(key, func() (*PulseFilter, error) { return RRC(p) })
}

// Gaussian returns a cached Gaussian pulse filter for p, generating and
// storing it on first use.
func (c *FilterCache) Gaussian(p GaussianParams) (*PulseFilter, error) {
	key := filterKey{shape: "gaussian", param: fmt.Sprintf("%v", p.BT), taps: p.Span * p.SamplesPerSymbol}
	return c.get(key, func() (*PulseFilter, error) { return Gaussian(p) })
}

func (c *FilterCache) get(key filterKey, build func() (*PulseFilter, error)) (*PulseFilter, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.filters[key]; ok {
		return f, nil
	}
	f, err := build()
	if err != nil {
		return nil, err
	}
	c.filters[key] = f
	return f, nil
}

// Clear drops every cached filter.
func (c *FilterCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = make(map[filterKey]*PulseFilter)
}

// RRCParams configures a root-raised-cosine filter.
type RRCParams struct {
	SamplesPerSymbol int
	Span             int // filter length in symbols
	Rolloff          float64
}

// RRC generates a root-raised-cosine filter, unit-energy normalized
// (sum of |tap|^2 == 1), with the two removable singularities (t=0 and
// t=+-Ts/(4*beta)) handled via their closed-form limits.
func RRC(p RRCParams) (*PulseFilter, error) {
	if p.SamplesPerSymbol < 1 || p.Span < 1 {
		return nil, apperr.Usagef("samples_per_symbol and span must be >= 1")
	}
	if p.Rolloff < 0 || p.Rolloff > 1 {
		return nil, apperr.Usagef("rolloff must be in [0, 1], got %v", p.Rolloff)
	}

	sps := float64(p.SamplesPerSymbol)
	n := p.Span*p.SamplesPerSymbol + 1
	taps := make([]float64, n)
	mid := n / 2
	beta := p.Rolloff

	for i := 0; i < n; i++ {
		t := float64(i-mid) / sps // in symbol periods (Ts = 1)
		taps[i] = rrcSample(t, beta)
	}

	energy := 0.0
	for _, v := range taps {
		energy += v * v
	}
	norm := 1.0
	if energy > 0 {
		norm = 1 / math.Sqrt(energy)
	}

	out := make([]complex64, n)
	for i, v := range taps {
		out[i] = complex(float32(v*norm), 0)
	}
	return &PulseFilter{Taps: out}, nil
}

func rrcSample(t, beta float64) float64 {
	if t == 0 {
		return 1 - beta + 4*beta/math.Pi
	}
	if beta > 0 && math.Abs(math.Abs(t)-1/(4*beta)) < 1e-9 {
		arg := math.Pi / (4 * beta)
		return (beta / math.Sqrt2) * ((1+2/math.Pi)*math.Sin(arg) + (1-2/math.Pi)*math.Cos(arg))
	}
	num := math.Sin(math.Pi*t*(1-beta)) + 4*beta*t*math.Cos(math.Pi*t*(1+beta))
	den := math.Pi * t * (1 - math.Pow(4*beta*t, 2))
	return num / den
}

// GaussianParams configures a Gaussian pulse-shaping filter (as used by
// GMSK-family modulations), parameterized by the bandwidth-time product.
type GaussianParams struct {
	SamplesPerSymbol int
	Span             int
	BT               float64
}

// Gaussian generates a Gaussian pulse filter (as used by GMSK-family
// modulations), h(t) = sqrt(pi)/alpha * exp(-(pi*t/alpha)^2) with
// alpha = sqrt(ln(2)/2)/BT, unit-sum normalized so it acts as a
// smoothing (not matched) filter.
func Gaussian(p GaussianParams) (*PulseFilter, error) {
	if p.SamplesPerSymbol < 1 || p.Span < 1 {
		return nil, apperr.Usagef("samples_per_symbol and span must be >= 1")
	}
	if p.BT <= 0 {
		return nil, apperr.Usagef("BT must be > 0, got %v", p.BT)
	}

	sps := float64(p.SamplesPerSymbol)
	n := p.Span*p.SamplesPerSymbol + 1
	mid := n / 2
	alpha := math.Sqrt(math.Log(2)/2) / p.BT

	taps := make([]float64, n)
	var sum float64
	for i := 0; i < n; i++ {
		t := float64(i-mid) / sps
		v := math.Sqrt(math.Pi) / alpha * math.Exp(-math.Pow(math.Pi*t/alpha, 2))
		taps[i] = v
		sum += v
	}
	norm := 1.0
	if sum > 0 {
		norm = 1 / sum
	}

	out := make([]complex64, n)
	for i, v := range taps {
		out[i] = complex(float32(v*norm), 0)
	}
	return &PulseFilter{Taps: out}, nil
}

// Apply runs the filter over samples as a "same"-length complex
// convolution (matched filtering / pulse shaping).
func (f *PulseFilter) Apply(b backend.Backend, samples []complex64) []complex64 {
	return b.Convolve(samples, f.Taps)
}
