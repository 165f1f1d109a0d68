package vehicle

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/impactgen/internal/sequencer"
	"github.com/san-kum/impactgen/internal/session"
)

var log = logrus.WithField("module", "vehicle")

// Autopilot hands the lead vehicle to the simulator's AI, chasing Target.
type Autopilot struct {
	Target   string
	SpeedMPS float64
}

// Fleet runs a trial's vehicles under a sequencer. Vehicles[0] is the lead.
type Fleet struct {
	Sess     session.Session
	Vehicles []*Vehicle
	// Driven lists the vehicles that receive speed commands.
	Driven    []*Vehicle
	TargetKMH float64
	Autopilot *Autopilot

	engaged bool
}

var _ sequencer.Fleet = (*Fleet)(nil)

func (f *Fleet) Poll(ctx context.Context) ([]sequencer.Reading, error) {
	readings := make([]sequencer.Reading, 0, len(f.Vehicles))
	for _, v := range f.Vehicles {
		r, err := v.Poll(ctx)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, nil
}

func (f *Fleet) Apply(ctx context.Context, step sequencer.Step) error {
	switch step.Command {
	case sequencer.CommandSpeed:
		return f.drive(ctx)
	case sequencer.CommandBrake:
		if step.Transitioned {
			if err := f.Release(ctx); err != nil {
				return err
			}
		}
		for _, v := range f.Vehicles {
			if err := v.EmergencyBrake(ctx); err != nil {
				return err
			}
		}
	case sequencer.CommandPark:
		for _, v := range f.Vehicles {
			if err := v.Park(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Release takes the lead vehicle back from the AI. It does nothing when the
// autopilot is not engaged.
func (f *Fleet) Release(ctx context.Context) error {
	if !f.engaged {
		return nil
	}
	lead := f.Vehicles[0]
	if err := f.Sess.AISetMode(ctx, lead.ID, "disabled"); err != nil {
		return err
	}
	f.engaged = false
	log.Debugf("autopilot released on %s", lead.ID)
	return nil
}

func (f *Fleet) drive(ctx context.Context) error {
	if f.Autopilot != nil {
		if f.engaged {
			return nil
		}
		lead := f.Vehicles[0]
		if err := f.Sess.AISetTarget(ctx, lead.ID, f.Autopilot.Target); err != nil {
			return err
		}
		if err := f.Sess.AISetSpeed(ctx, lead.ID, f.Autopilot.SpeedMPS); err != nil {
			return err
		}
		f.engaged = true
		return nil
	}
	for _, v := range f.Driven {
		if err := v.SetSpeed(ctx, f.TargetKMH); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fleet) Record(ctx context.Context, readings []sequencer.Reading) error {
	for _, v := range f.Vehicles {
		if err := v.LogLine(); err != nil {
			return err
		}
	}
	return nil
}

func (f *Fleet) Advance(ctx context.Context) error {
	return f.Sess.Step(ctx, 1)
}

// Close closes every vehicle's writer and returns the first error.
func (f *Fleet) Close() error {
	var first error
	for _, v := range f.Vehicles {
		if err := v.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
