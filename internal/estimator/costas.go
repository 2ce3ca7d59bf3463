package estimator

import (
	"math"

	"github.com/secondsight/rfengine/internal/apperr"
	"github.com/secondsight/rfengine/internal/signal"
)

// CostasParams configures the type-II second-order Costas loop.
type CostasParams struct {
	Mode           string // "bpsk", "qpsk", or "8psk"
	LoopBandwidth  float64
	Damping        float64
}

// CostasState carries the loop's recursive state across a run. A zero
// value is a valid reset state.
type CostasState struct {
	Phase     float64
	Frequency float64
}

// CostasResult is the outcome of running the loop over a block of samples.
type CostasResult struct {
	Corrected     []complex64
	PhaseTrace    []float64
	FreqTrace     []float64
	ErrorTrace    []float64
	FinalFreq     float64
	LockDetected  bool
	LockTime      int
	FinalState    CostasState
}

func loopGains(bl, zeta float64) (alpha, beta float64) {
	theta := bl / (zeta + 1/(4*zeta))
	d := 1 + 2*zeta*theta + theta*theta
	alpha = 4 * zeta * theta / d
	beta = 4 * theta * theta / d
	return alpha, beta
}

func wrapPi(v float64) float64 {
	w := math.Mod(v+math.Pi, 2*math.Pi)
	if w < 0 {
		w += 2 * math.Pi
	}
	return w - math.Pi
}

func phaseDetector(mode string, y complex128) float64 {
	re, im := real(y), imag(y)
	switch mode {
	case "bpsk":
		return re * im
	case "8psk":
		angle := math.Atan2(im, re)
		const step = math.Pi / 4
		return wrapPi(angle - math.Round(angle/step)*step)
	default: // qpsk
		return re*sign(im) - im*sign(re)
	}
}

func sign(v float64) float64 {
	if v > 0 {
		return 1
	}
	if v < 0 {
		return -1
	}
	return 0
}

// CostasRun runs the Costas carrier-tracking loop over block, starting
// from state (the zero value resets phase and frequency to zero).
func CostasRun(block *signal.IQBlock, p CostasParams, state CostasState) (*CostasResult, error) {
	if block.Len() == 0 {
		return nil, apperr.Dataf("empty IQ block")
	}
	bl := p.LoopBandwidth
	if bl <= 0 {
		bl = 0.01
	}
	zeta := p.Damping
	if zeta <= 0 {
		zeta = 0.707
	}
	alpha, beta := loopGains(bl, zeta)

	mode := p.Mode
	if mode == "" {
		mode = "qpsk"
	}

	n := block.Len()
	corrected := make([]complex64, n)
	phaseTrace := make([]float64, n)
	freqTrace := make([]float64, n)
	errTrace := make([]float64, n)

	phi := state.Phase
	nu := state.Frequency

	for i, s := range block.Samples {
		x := complex(float64(real(s)), float64(imag(s)))
		y := x * complex(math.Cos(-phi), math.Sin(-phi))
		e := phaseDetector(mode, y)

		nu += beta * e
		if nu > 0.5 {
			nu = 0.5
		} else if nu < -0.5 {
			nu = -0.5
		}
		phi = wrapPi(phi + alpha*e + nu)

		corrected[i] = complex64(y)
		phaseTrace[i] = phi
		freqTrace[i] = nu
		errTrace[i] = e
	}

	lockTime := -1
	const window = 100
	for i := window; i <= n; i++ {
		v := varianceOf(errTrace[i-window : i])
		if v < 0.1 {
			lockTime = i - window
			break
		}
	}

	var finalFreq float64
	lockDetected := lockTime >= 0
	if lockDetected {
		finalFreq = meanOf(freqTrace[lockTime:])
	} else {
		tail := n / 5
		if tail < 1 {
			tail = 1
		}
		finalFreq = meanOf(freqTrace[n-tail:])
	}

	return &CostasResult{
		Corrected:    corrected,
		PhaseTrace:   phaseTrace,
		FreqTrace:    freqTrace,
		ErrorTrace:   errTrace,
		FinalFreq:    finalFreq,
		LockDetected: lockDetected,
		LockTime:     lockTime,
		FinalState:   CostasState{Phase: phi, Frequency: nu},
	}, nil
}

// CostasStep processes a single sample, mirroring the reference
// implementation's sample-at-a-time API for use inside a streaming
// pipeline stage.
func CostasStep(x complex64, p CostasParams, state CostasState) (y complex64, e float64, next CostasState) {
	bl := p.LoopBandwidth
	if bl <= 0 {
		bl = 0.01
	}
	zeta := p.Damping
	if zeta <= 0 {
		zeta = 0.707
	}
	alpha, beta := loopGains(bl, zeta)
	mode := p.Mode
	if mode == "" {
		mode = "qpsk"
	}

	xc := complex(float64(real(x)), float64(imag(x)))
	yc := xc * complex(math.Cos(-state.Phase), math.Sin(-state.Phase))
	err := phaseDetector(mode, yc)

	nu := state.Frequency + beta*err
	if nu > 0.5 {
		nu = 0.5
	} else if nu < -0.5 {
		nu = -0.5
	}
	phi := wrapPi(state.Phase + alpha*err + nu)

	return complex64(yc), err, CostasState{Phase: phi, Frequency: nu}
}

func varianceOf(v []float64) float64 {
	m := meanOf(v)
	var acc float64
	for _, x := range v {
		d := x - m
		acc += d * d
	}
	return acc / float64(len(v))
}

func meanOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}
