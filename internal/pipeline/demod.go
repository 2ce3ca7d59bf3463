// Package pipeline chains the estimator and kernel primitives into the
// fixed eight-stage demodulation sequence: CFO estimation, de-rotation,
// matched filtering, SNR estimation, carrier tracking, timing recovery,
// symbol decision, and EVM reporting.
package pipeline

import (
	"math"

	"github.com/secondsight/rfengine/internal/apperr"
	"github.com/secondsight/rfengine/internal/backend"
	"github.com/secondsight/rfengine/internal/estimator"
	"github.com/secondsight/rfengine/internal/kernel"
	"github.com/secondsight/rfengine/internal/signal"
)

// Params configures the demodulation pipeline. Zero values select the
// fixed-sequence defaults described in the component design.
type Params struct {
	RolloffBeta      float64 // default 0.35
	SamplesPerSymbol float64
	Modulation       string
}

// Result carries every diagnostic the pipeline produces.
type Result struct {
	CFO          *estimator.CFOResult
	SNR          *estimator.SNRResult
	Costas       *estimator.CostasResult
	Timing       *estimator.TimingResult
	SymbolCount  int
	MeanTimingError float64
	EVMRMS       float64
	EVMPercent   float64
	Symbols      []complex64
	Decisions    []complex64
	Indices      []int
}

var constellations = map[string][]complex64{
	"bpsk": {
		complex64(complex(1.0, 0.0)),
		complex64(complex(-1.0, 0.0)),
	},
	"qpsk": {
		complex64(complex(math.Sqrt2/2, math.Sqrt2/2)),
		complex64(complex(-math.Sqrt2/2, math.Sqrt2/2)),
		complex64(complex(-math.Sqrt2/2, -math.Sqrt2/2)),
		complex64(complex(math.Sqrt2/2, -math.Sqrt2/2)),
	},
	"8psk": eightPSKConstellation(),
	"16qam": sixteenQAMConstellation(),
}

func eightPSKConstellation() []complex64 {
	out := make([]complex64, 8)
	for i := range out {
		theta := float64(i) * math.Pi / 4
		out[i] = complex64(complex(math.Cos(theta), math.Sin(theta)))
	}
	return out
}

func sixteenQAMConstellation() []complex64 {
	levels := []float64{-3, -1, 1, 3}
	out := make([]complex64, 0, 16)
	var energy float64
	for _, i := range levels {
		for _, q := range levels {
			energy += i*i + q*q
		}
	}
	norm := math.Sqrt(energy / 16)
	for _, i := range levels {
		for _, q := range levels {
			out = append(out, complex64(complex(i/norm, q/norm)))
		}
	}
	return out
}

func constellationFor(modulation string) []complex64 {
	if c, ok := constellations[modulation]; ok {
		return c
	}
	return constellations["qpsk"]
}

// filterCache holds generated matched filters for the process lifetime so
// repeated Run calls with the same rolloff/span/samples-per-symbol don't
// regenerate RRC taps on every request.
var filterCache = kernel.NewFilterCache()

// Run executes the fixed eight-stage demodulation sequence over block.
func Run(b backend.Backend, block *signal.IQBlock, p Params) (*Result, error) {
	if block.Len() == 0 {
		return nil, apperr.Dataf("empty IQ block")
	}

	rolloff := p.RolloffBeta
	if rolloff == 0 {
		rolloff = 0.35
	}
	sps := p.SamplesPerSymbol
	if sps <= 0 {
		sps = 8
	}

	// 1. Fitz CFO estimate on raw I/Q.
	cfo, err := estimator.CFOFitz(block, 0)
	if err != nil {
		return nil, err
	}

	// 2. Complex de-rotation by the estimated CFO.
	derotated := deRotate(block, cfo.Normalized)

	// 3. RRC matched filtering.
	filt, err := filterCache.RRC(kernel.RRCParams{
		SamplesPerSymbol: int(math.Round(sps)),
		Span:             8,
		Rolloff:          rolloff,
	})
	if err != nil {
		return nil, err
	}
	filtered := filt.Apply(b, derotated.Samples)
	filteredBlock := &signal.IQBlock{Samples: filtered, SampleRate: block.SampleRate, SymbolRate: block.SymbolRate, Modulation: block.Modulation}

	// 4. M2M4 SNR on the filtered stream.
	snr, err := estimator.SNRM2M4(filteredBlock, p.Modulation)
	if err != nil {
		return nil, err
	}

	// 5. Costas tracking.
	mode := "qpsk"
	if isBPSK(p.Modulation) {
		mode = "bpsk"
	}
	costas, err := estimator.CostasRun(filteredBlock, estimator.CostasParams{Mode: mode}, estimator.CostasState{})
	if err != nil {
		return nil, err
	}
	trackedBlock := &signal.IQBlock{Samples: costas.Corrected, SampleRate: block.SampleRate, SymbolRate: block.SymbolRate, Modulation: block.Modulation}

	// 6. Gardner timing recovery.
	timing, err := estimator.Gardner(trackedBlock, estimator.TimingParams{SamplesPerSymbol: sps})
	if err != nil {
		return nil, err
	}

	// 7. Nearest-point decision against the modulation constellation.
	constellation := constellationFor(p.Modulation)
	decisions := make([]complex64, len(timing.Symbols))
	indices := make([]int, len(timing.Symbols))
	for i, y := range timing.Symbols {
		d := nearestDecision(y, constellation, &indices[i])
		decisions[i] = d
	}

	// 8. EVM.
	evmRMS, evmPercent := evm(timing.Symbols, decisions, constellation)

	var meanErr float64
	for _, e := range timing.ErrorTrace {
		meanErr += e
	}
	if len(timing.ErrorTrace) > 0 {
		meanErr /= float64(len(timing.ErrorTrace))
	}

	return &Result{
		CFO:             cfo,
		SNR:             snr,
		Costas:          costas,
		Timing:          timing,
		SymbolCount:     len(timing.Symbols),
		MeanTimingError: meanErr,
		EVMRMS:          evmRMS,
		EVMPercent:      evmPercent,
		Symbols:         timing.Symbols,
		Decisions:       decisions,
		Indices:         indices,
	}, nil
}

func isBPSK(modulation string) bool {
	return len(modulation) >= 4 && modulation[:4] == "bpsk"
}

func deRotate(block *signal.IQBlock, fNorm float64) *signal.IQBlock {
	out := make([]complex64, block.Len())
	for i, s := range block.Samples {
		theta := -2 * math.Pi * fNorm * float64(i)
		rot := complex(math.Cos(theta), math.Sin(theta))
		out[i] = complex64(complex(float64(real(s)), float64(imag(s))) * rot)
	}
	return &signal.IQBlock{Samples: out, SampleRate: block.SampleRate, SymbolRate: block.SymbolRate, Modulation: block.Modulation}
}

func nearestDecision(y complex64, constellation []complex64, index *int) complex64 {
	best := constellation[0]
	bestIdx := 0
	bestDist := math.MaxFloat64
	yr, yi := real(y), imag(y)
	for i, c := range constellation {
		dr := float64(real(c) - yr)
		di := float64(imag(c) - yi)
		d := dr*dr + di*di
		if d < bestDist {
			bestDist = d
			best = c
			bestIdx = i
		}
	}
	*index = bestIdx
	return best
}

func evm(symbols, decisions, constellation []complex64) (rms, percent float64) {
	if len(symbols) == 0 {
		return 0, 0
	}
	var errSq, refSq float64
	for i, y := range symbols {
		d := decisions[i]
		dr := float64(real(y) - real(d))
		di := float64(imag(y) - imag(d))
		errSq += dr*dr + di*di
	}
	errSq /= float64(len(symbols))
	rms = math.Sqrt(errSq)

	for _, c := range constellation {
		refSq += float64(real(c))*float64(real(c)) + float64(imag(c))*float64(imag(c))
	}
	refSq /= float64(len(constellation))
	refRMS := math.Sqrt(refSq)
	if refRMS > 0 {
		percent = rms / refRMS * 100
	}
	return rms, percent
}
