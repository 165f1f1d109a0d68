package metrics

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/san-kum/impactgen/internal/storage"
)

// minPulse is the fewest post-impact samples worth transforming.
const minPulse = 8

// PulseFrequency is the dominant frequency in Hz of the longitudinal
// acceleration from the first crash sample on. Zero when the pulse is too
// short to resolve.
type PulseFrequency struct {
	name    string
	pulse   []float64
	first   float64
	last    float64
	crashed bool
}

func NewPulseFrequency() *PulseFrequency {
	return &PulseFrequency{name: "pulse_hz"}
}

func (p *PulseFrequency) Name() string { return p.name }

func (p *PulseFrequency) Observe(r storage.Row) {
	if !p.crashed {
		if !r.Crash {
			return
		}
		p.crashed = true
		p.first = r.Time
	}
	p.pulse = append(p.pulse, r.GX)
	p.last = r.Time
}

func (p *PulseFrequency) Value() float64 {
	n := len(p.pulse)
	if n < minPulse || p.last <= p.first {
		return 0
	}
	dt := (p.last - p.first) / float64(n-1)

	var mean float64
	for _, v := range p.pulse {
		mean += v
	}
	mean /= float64(n)
	seq := make([]float64, n)
	for i, v := range p.pulse {
		seq[i] = v - mean
	}

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, seq)
	best, peak := 0, 0.0
	for i := 1; i < len(coeff); i++ {
		if a := cmplx.Abs(coeff[i]); a > peak {
			best, peak = i, a
		}
	}
	if best == 0 {
		return 0
	}
	return fft.Freq(best) / dt
}

func (p *PulseFrequency) Reset() {
	p.pulse = p.pulse[:0]
	p.first = 0
	p.last = 0
	p.crashed = false
}
