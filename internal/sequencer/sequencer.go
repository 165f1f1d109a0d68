package sequencer

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "sequencer")

// Sequencer drives one trial through Driving, Braking, Settling and Done.
// It is not safe for concurrent use.
type Sequencer struct {
	cfg    Config
	period float64

	phase      Phase
	ticks      int
	started    bool
	driveStart float64
	brakeStart float64
	impacted   bool

	logged  bool
	lastLog float64

	onTransition func(Step)
}

func New(cfg Config) *Sequencer {
	period := 0.0
	if cfg.SampleRateHz > 0 {
		period = 1.0 / float64(cfg.SampleRateHz)
	}
	return &Sequencer{cfg: cfg, period: period, phase: Driving}
}

func (s *Sequencer) Phase() Phase { return s.phase }

// OnTransition registers fn to be called from Run with every step that
// changes phase.
func (s *Sequencer) OnTransition(fn func(Step)) { s.onTransition = fn }

func (s *Sequencer) Ticks() int { return s.ticks }

// Tick consumes the readings for the current simulation step, lead vehicle
// first, and returns the command and logging decision. At most one phase
// transition happens per tick.
func (s *Sequencer) Tick(readings []Reading) Step {
	step := Step{Tick: s.ticks, Phase: s.phase, From: s.phase}
	s.ticks++

	if len(readings) == 0 || s.phase == Done {
		step.Command = command(s.phase)
		return step
	}

	lead := readings[0]
	t := lead.Time
	step.Time = t
	if !s.started {
		s.started = true
		s.driveStart = t
	}

	switch s.phase {
	case Driving:
		hit := lead.Damage > s.cfg.DamageThreshold
		timedOut := s.cfg.MaxDriveTime > 0 && t-s.driveStart >= s.cfg.MaxDriveTime
		if hit || timedOut {
			s.impacted = hit
			s.brakeStart = t
			s.phase = Braking
		}
	case Braking:
		if s.allStopped(readings) {
			s.phase = Settling
		}
	case Settling:
		if t-s.brakeStart > s.cfg.SettleDelay {
			s.phase = Done
		}
	}

	if s.phase != step.From {
		step.Transitioned = true
		log.Debugf("[tick %07d] %s -> %s at t=%.3f", step.Tick, step.From, s.phase, t)
	}
	step.Phase = s.phase
	step.Command = command(s.phase)
	step.Log = s.logDue(t)
	return step
}

func (s *Sequencer) allStopped(readings []Reading) bool {
	for _, r := range readings {
		if r.Airspeed > s.cfg.StopSpeed {
			return false
		}
	}
	return true
}

func (s *Sequencer) logDue(t float64) bool {
	if !s.logged || t-s.lastLog >= s.period {
		s.logged = true
		s.lastLog = t
		return true
	}
	return false
}

func command(p Phase) Command {
	switch p {
	case Driving:
		return CommandSpeed
	case Braking:
		return CommandBrake
	case Settling:
		return CommandPark
	}
	return CommandNone
}

// Run ticks fleet until the trial is done. Fleet errors are returned as is.
func (s *Sequencer) Run(ctx context.Context, fleet Fleet) (Outcome, error) {
	var out Outcome
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if s.cfg.MaxTicks > 0 && s.ticks >= s.cfg.MaxTicks {
			return out, ErrTickLimit
		}

		readings, err := fleet.Poll(ctx)
		if err != nil {
			return out, err
		}

		step := s.Tick(readings)
		out.Ticks = s.ticks
		out.EndTime = step.Time
		if step.Transitioned && step.Phase == Braking {
			out.Impacted = s.impacted
			out.ImpactTime = step.Time
		}
		if step.Transitioned && s.onTransition != nil {
			s.onTransition(step)
		}

		if err := fleet.Apply(ctx, step); err != nil {
			return out, err
		}
		if step.Log {
			if err := fleet.Record(ctx, readings); err != nil {
				return out, err
			}
			out.Samples++
		}
		if step.Phase == Done {
			return out, nil
		}

		if err := fleet.Advance(ctx); err != nil {
			return out, err
		}
	}
}

// CrashDetector flags ticks where damage grew beyond a tolerance factor.
type CrashDetector struct {
	Tolerance float64
	// Rounded compares the integer damage that ends up in the CSV.
	Rounded bool

	prev float64
	seen bool
}

func NewCrashDetector(tolerance float64) *CrashDetector {
	return &CrashDetector{Tolerance: tolerance, Rounded: true}
}

// Observe records damage for the current tick and reports whether it rose
// above the previous tick's value scaled by Tolerance.
func (c *CrashDetector) Observe(damage float64) bool {
	if c.Rounded {
		damage = math.Round(damage)
	}
	crashed := c.seen && damage > c.prev*c.Tolerance
	c.prev = damage
	c.seen = true
	return crashed
}

func (c *CrashDetector) Reset() {
	c.prev = 0
	c.seen = false
}
