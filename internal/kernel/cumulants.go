package kernel

import (
	"math"

	"github.com/secondsight/rfengine/internal/apperr"
	"github.com/secondsight/rfengine/internal/signal"
)

// Cumulants holds the requested higher-order cumulants for sub-noise
// signal detection. Higher-order cumulants (order >= 3) are zero for
// Gaussian processes, so a non-zero cum4/cum6 flags a non-Gaussian
// signal even well below the noise floor.
type Cumulants struct {
	Cum4    float64
	Cum6    float64
	HasCum4 bool
	HasCum6 bool
}

// ComputeCumulants centers block by its sample mean, then computes the
// requested scalar cumulants from the 2nd/4th/6th absolute central
// moments. orders must be a non-empty subset of {4, 6}.
func ComputeCumulants(block *signal.IQBlock, orders []int) (*Cumulants, error) {
	n := block.Len()
	if n == 0 {
		return nil, apperr.Dataf("empty IQ block")
	}
	want4, want6, err := parseCumulantOrders(orders)
	if err != nil {
		return nil, err
	}

	var meanRe, meanIm float64
	for _, s := range block.Samples {
		meanRe += float64(real(s))
		meanIm += float64(imag(s))
	}
	meanRe /= float64(n)
	meanIm /= float64(n)

	var m2, m4, m6 float64
	for _, s := range block.Samples {
		re := float64(real(s)) - meanRe
		im := float64(imag(s)) - meanIm
		absSq := re*re + im*im
		m2 += absSq
		m4 += absSq * absSq
		m6 += absSq * absSq * absSq
	}
	m2 /= float64(n)
	m4 /= float64(n)
	m6 /= float64(n)

	out := &Cumulants{}
	if want4 {
		out.Cum4 = m4 - 3*m2*m2
		out.HasCum4 = true
	}
	if want6 {
		out.Cum6 = m6 - 15*m4*m2 + 30*math.Pow(m2, 3)
		out.HasCum6 = true
	}
	return out, nil
}

func parseCumulantOrders(orders []int) (want4, want6 bool, err error) {
	if len(orders) == 0 {
		return false, false, apperr.Usagef("orders must be a non-empty subset of {4, 6}")
	}
	for _, o := range orders {
		switch o {
		case 4:
			want4 = true
		case 6:
			want6 = true
		default:
			return false, false, apperr.Usagef("unsupported cumulant order: %d", o)
		}
	}
	return want4, want6, nil
}
