package sequencer

import (
	"context"
	"errors"
)

// ErrTickLimit indicates a trial ran out of ticks before reaching Done.
var ErrTickLimit = errors.New("sequencer: tick limit reached before trial completed")

type Phase int

const (
	Driving Phase = iota
	Braking
	Settling
	Done
)

func (p Phase) String() string {
	switch p {
	case Driving:
		return "driving"
	case Braking:
		return "braking"
	case Settling:
		return "settling"
	case Done:
		return "done"
	}
	return "unknown"
}

type Command int

const (
	CommandNone Command = iota
	CommandSpeed
	CommandBrake
	CommandPark
)

func (c Command) String() string {
	switch c {
	case CommandSpeed:
		return "speed"
	case CommandBrake:
		return "brake"
	case CommandPark:
		return "park"
	}
	return "none"
}

// Reading is one vehicle's sensor snapshot for a single tick.
type Reading struct {
	Vehicle  string
	Time     float64
	Airspeed float64
	GX       float64
	GY       float64
	GZ       float64
	Damage   float64
	Crash    bool
}

// Step is the decision taken for one tick.
type Step struct {
	Tick         int
	Time         float64
	Phase        Phase
	From         Phase
	Command      Command
	Log          bool
	Transitioned bool
}

type Config struct {
	DamageThreshold float64
	StopSpeed       float64
	SettleDelay     float64 // sim seconds, measured from entering Braking
	SampleRateHz    int
	DamageTolerance float64
	MaxDriveTime    float64 // sim seconds in Driving before braking anyway; 0 disables
	MaxTicks        int     // 0 disables
}

func DefaultConfig() Config {
	return Config{
		DamageThreshold: 10,
		StopSpeed:       1,
		SettleDelay:     5,
		SampleRateHz:    10,
		DamageTolerance: 1.0005,
		MaxTicks:        100000,
	}
}

// Fleet is the set of vehicles a trial drives, as seen by the tick loop.
type Fleet interface {
	// Poll returns one reading per vehicle, lead vehicle first.
	Poll(ctx context.Context) ([]Reading, error)
	Apply(ctx context.Context, step Step) error
	Record(ctx context.Context, readings []Reading) error
	// Advance moves the simulation forward by one tick.
	Advance(ctx context.Context) error
}

// Outcome summarises a completed trial.
type Outcome struct {
	Ticks      int
	Samples    int
	Impacted   bool
	ImpactTime float64
	EndTime    float64
}
