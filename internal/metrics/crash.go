package metrics

import (
	"math"

	"github.com/san-kum/impactgen/internal/storage"
)

// PeakG is the largest magnitude of the acceleration vector.
type PeakG struct {
	name string
	peak float64
}

func NewPeakG() *PeakG {
	return &PeakG{name: "peak_g"}
}

func (p *PeakG) Name() string { return p.name }

func (p *PeakG) Observe(r storage.Row) {
	g := math.Sqrt(r.GX*r.GX + r.GY*r.GY + r.GZ*r.GZ)
	p.peak = math.Max(p.peak, g)
}

func (p *PeakG) Value() float64 { return p.peak }

func (p *PeakG) Reset() { p.peak = 0 }

// DeltaV is the airspeed lost from the last sample before the crash flag
// first rises to the slowest sample after it. Zero without a crash.
type DeltaV struct {
	name    string
	before  float64
	minimum float64
	crashed bool
	samples int
}

func NewDeltaV() *DeltaV {
	return &DeltaV{name: "delta_v"}
}

func (d *DeltaV) Name() string { return d.name }

func (d *DeltaV) Observe(r storage.Row) {
	d.samples++
	if !d.crashed {
		if r.Crash {
			d.crashed = true
			if d.samples == 1 {
				d.before = r.Airspeed
			}
			d.minimum = r.Airspeed
			return
		}
		d.before = r.Airspeed
		return
	}
	d.minimum = math.Min(d.minimum, r.Airspeed)
}

func (d *DeltaV) Value() float64 {
	if !d.crashed {
		return 0
	}
	return math.Max(d.before-d.minimum, 0)
}

func (d *DeltaV) Reset() {
	d.before = 0
	d.minimum = 0
	d.crashed = false
	d.samples = 0
}

// DamageGain is the damage accumulated over the trial.
type DamageGain struct {
	name    string
	first   float64
	last    float64
	samples int
}

func NewDamageGain() *DamageGain {
	return &DamageGain{name: "damage_gain"}
}

func (d *DamageGain) Name() string { return d.name }

func (d *DamageGain) Observe(r storage.Row) {
	if d.samples == 0 {
		d.first = r.Damage
	}
	d.last = r.Damage
	d.samples++
}

func (d *DamageGain) Value() float64 { return d.last - d.first }

func (d *DamageGain) Reset() {
	d.first = 0
	d.last = 0
	d.samples = 0
}

// ImpactTime is the sim time of the first crash sample, -1 without one.
type ImpactTime struct {
	name string
	at   float64
	seen bool
}

func NewImpactTime() *ImpactTime {
	return &ImpactTime{name: "impact_time"}
}

func (i *ImpactTime) Name() string { return i.name }

func (i *ImpactTime) Observe(r storage.Row) {
	if !i.seen && r.Crash {
		i.at = r.Time
		i.seen = true
	}
}

func (i *ImpactTime) Value() float64 {
	if !i.seen {
		return -1
	}
	return i.at
}

func (i *ImpactTime) Reset() {
	i.at = 0
	i.seen = false
}
