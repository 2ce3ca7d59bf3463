package estimator

import (
	"math"

	"github.com/secondsight/rfengine/internal/apperr"
	"github.com/secondsight/rfengine/internal/signal"
)

// TimingParams configures symbol-timing recovery.
type TimingParams struct {
	SamplesPerSymbol float64
	Alpha            float64
	Beta             float64
	Constellation    []complex64 // required for Mueller-Müller
}

// TimingResult is the outcome of a timing-recovery run.
type TimingResult struct {
	Symbols       []complex64
	ErrorTrace    []float64
	EffectiveSpS  float64
}

// farrowInterpolate evaluates the cubic Farrow interpolator for the four
// samples centered on the integer cursor position base, at fractional
// offset mu in [0, 1).
func farrowInterpolate(samples []complex64, base int, mu float64) complex64 {
	idx := func(i int) complex128 {
		if i < 0 || i >= len(samples) {
			return 0
		}
		return complex(float64(real(samples[i])), float64(imag(samples[i])))
	}
	x0, x1, x2, x3 := idx(base-1), idx(base), idx(base+1), idx(base+2)

	a0 := x1
	a1 := (x2 - x0) / 2
	a2 := x0 - 5*x1/2 + 2*x2 - x3/2
	a3 := (x3-x0)/6 + (x1-x2)/2

	m := complex(mu, 0)
	v := a0 + a1*m + a2*m*m + a3*m*m*m
	return complex64(v)
}

func interpAt(samples []complex64, cursor float64) complex64 {
	base := int(math.Floor(cursor))
	mu := cursor - float64(base)
	return farrowInterpolate(samples, base, mu)
}

func nearestPoint(y complex64, constellation []complex64) complex64 {
	if len(constellation) == 0 {
		return y
	}
	best := constellation[0]
	bestDist := math.MaxFloat64
	yr, yi := real(y), imag(y)
	for _, c := range constellation {
		dr := float64(real(c) - yr)
		di := float64(imag(c) - yi)
		d := dr*dr + di*di
		if d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

// Gardner runs Gardner timing-error-detector recovery over block.
func Gardner(block *signal.IQBlock, p TimingParams) (*TimingResult, error) {
	return runTiming(block, p, true)
}

// MuellerMuller runs Mueller-Muller timing-error-detector recovery over
// block. Requires a non-empty Constellation in p.
func MuellerMuller(block *signal.IQBlock, p TimingParams) (*TimingResult, error) {
	if len(p.Constellation) == 0 {
		return nil, apperr.Usagef("mueller-muller timing recovery requires a constellation")
	}
	return runTiming(block, p, false)
}

func clampStep(step, spsMin, spsMax float64) float64 {
	if step < spsMin {
		return spsMin
	}
	if step > spsMax {
		return spsMax
	}
	return step
}

func runTiming(block *signal.IQBlock, p TimingParams, gardner bool) (*TimingResult, error) {
	if block.Len() == 0 {
		return nil, apperr.Dataf("empty IQ block")
	}
	sps := p.SamplesPerSymbol
	if sps <= 0 {
		return nil, apperr.Usagef("samples_per_symbol must be > 0, got %v", sps)
	}
	alpha := p.Alpha
	if alpha == 0 {
		alpha = 0.05
	}
	beta := p.Beta
	if beta == 0 {
		beta = 0.001
	}

	samples := block.Samples
	n := len(samples)
	spsMin := sps / 2
	spsMax := 3 * sps / 2

	cursor := sps / 2
	tau := 0.0

	symbols := make([]complex64, 0, n/int(sps)+1)
	errTrace := make([]float64, 0, n/int(sps)+1)

	var prevY complex64
	var prevDecision complex64
	haveHistory := false

	for cursor+sps < float64(n) {
		y := interpAt(samples, cursor)

		var e float64
		if gardner {
			half := interpAt(samples, cursor-sps/2)
			yc := complex(float64(real(y)), float64(imag(y)))
			prevc := complex(float64(real(prevY)), float64(imag(prevY)))
			halfc := complex(float64(real(half)), float64(imag(half)))
			e = real((yc - prevc) * complex(real(halfc), -imag(halfc)))
		} else if haveHistory {
			d := nearestPoint(y, p.Constellation)
			yc := complex(float64(real(y)), float64(imag(y)))
			prevYc := complex(float64(real(prevY)), float64(imag(prevY)))
			dc := complex(float64(real(d)), float64(imag(d)))
			prevDc := complex(float64(real(prevDecision)), float64(imag(prevDecision)))
			e = real(prevDc*complex(real(yc), -imag(yc)) - dc*complex(real(prevYc), -imag(prevYc)))
			prevDecision = d
		} else {
			prevDecision = nearestPoint(y, p.Constellation)
		}
		haveHistory = true

		symbols = append(symbols, y)
		errTrace = append(errTrace, e)

		tau += beta * e
		step := sps + alpha*e + tau
		step = clampStep(step, spsMin, spsMax)
		cursor += step
		prevY = y
	}

	effectiveSpS := sps
	if len(symbols) > 0 {
		effectiveSpS = float64(n) / float64(len(symbols))
	}

	return &TimingResult{
		Symbols:      symbols,
		ErrorTrace:   errTrace,
		EffectiveSpS: effectiveSpS,
	}, nil
}
