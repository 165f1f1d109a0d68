// Package metrics reduces a recorded trial to a handful of crash figures.
package metrics

import (
	"github.com/san-kum/impactgen/internal/storage"
)

// Metric accumulates one figure over the rows of a trial.
type Metric interface {
	Name() string
	Observe(r storage.Row)
	Value() float64
	Reset()
}

// Standard returns a fresh set of the metrics reported per trial.
func Standard() []Metric {
	return []Metric{
		NewPeakG(),
		NewDeltaV(),
		NewDamageGain(),
		NewImpactTime(),
		NewPulseFrequency(),
	}
}

// Analyze feeds every row of s through ms and collects their values by name.
func Analyze(s *storage.Series, ms ...Metric) map[string]float64 {
	if len(ms) == 0 {
		ms = Standard()
	}
	for _, m := range ms {
		m.Reset()
	}
	for i := 0; i < s.Len(); i++ {
		r := s.Row(i)
		for _, m := range ms {
			m.Observe(r)
		}
	}
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
