package scenario

import (
	"errors"
	"fmt"

	"github.com/san-kum/impactgen/internal/session"
	"github.com/san-kum/impactgen/internal/space"
)

const (
	Pole    = "pole"
	TBone   = "tbone"
	Linear  = "linear"
	NoCrash = "nocrash"
)

// Names lists the built-in categories in their default run order.
var Names = []string{Pole, TBone, Linear, NoCrash}

// Positions of the leading axes of every category space.
const (
	AxisFlip = iota
	AxisOffset
	AxisAngle
	AxisThrottle
	leadingAxes
)

var ErrSetting = errors.New("scenario: setting does not match category axes")

// Range is a continuous parameter discretized into N evenly spaced values.
type Range struct {
	Min float64 `yaml:"min" toml:"min"`
	Max float64 `yaml:"max" toml:"max"`
	N   int     `yaml:"n" toml:"n"`
}

func (r Range) Axis() space.Axis { return space.Linspace(r.Min, r.Max, r.N) }

// Spec is the parameter shape of one category.
type Spec struct {
	Offset   Range   `yaml:"offset" toml:"offset"`
	Angle    Range   `yaml:"angle" toml:"angle"`
	Throttle Range   `yaml:"throttle" toml:"throttle"`
	MaxSpeed float64 `yaml:"max_speed" toml:"max_speed"` // km/h at full throttle
	// Autopilot lets the simulator's AI drive the lead into the next vehicle.
	Autopilot bool `yaml:"autopilot" toml:"autopilot"`
	// Driven is how many vehicles, lead first, receive speed commands.
	Driven int `yaml:"driven" toml:"driven"`
}

// TrialConfig is the concrete simulator setup derived from one setting.
type TrialConfig struct {
	Category  string
	Setting   space.Setting
	Flip      bool
	Offset    float64
	Angle     float64
	Throttle  float64
	TargetKMH float64
	// Poses holds one pose per participating vehicle, lead first.
	Poses     []session.Pose
	Parts     map[string]string
	Driven    int
	Autopilot bool
}

// Category is a named family of trials sharing a layout and axis shape.
type Category struct {
	Name   string
	Space  *space.Space
	Spec   Spec
	Layout Layout
	Slots  []string
}

// New builds a category's option space: flip, offset, angle and throttle
// followed by one axis per part slot.
func New(name string, spec Spec, layout Layout, parts PartCatalog, opts ...space.Option) (*Category, error) {
	if len(layout.Poses) == 0 {
		return nil, fmt.Errorf("scenario: category %s: layout has no poses", name)
	}
	if layout.FlipVehicle < 0 || layout.FlipVehicle >= len(layout.Poses) {
		return nil, fmt.Errorf("scenario: category %s: flip vehicle %d out of range", name, layout.FlipVehicle)
	}
	if layout.OffsetAxis < 0 || layout.OffsetAxis > 2 {
		return nil, fmt.Errorf("scenario: category %s: offset axis %d out of range", name, layout.OffsetAxis)
	}

	axes := []space.Axis{
		space.Bools(),
		spec.Offset.Axis(),
		spec.Angle.Axis(),
		spec.Throttle.Axis(),
	}
	axes = append(axes, parts.Axes()...)

	sp, err := space.New(axes, opts...)
	if err != nil {
		return nil, fmt.Errorf("scenario: category %s: %w", name, err)
	}
	return &Category{
		Name:   name,
		Space:  sp,
		Spec:   spec,
		Layout: layout,
		Slots:  parts.SlotNames(),
	}, nil
}

// Map turns a setting into a trial configuration. It has no side effects.
func (c *Category) Map(s space.Setting) (TrialConfig, error) {
	if len(s) != leadingAxes+len(c.Slots) {
		return TrialConfig{}, fmt.Errorf("%w: %s has %d axes, got %d values",
			ErrSetting, c.Name, leadingAxes+len(c.Slots), len(s))
	}

	tc := TrialConfig{
		Category:  c.Name,
		Setting:   s,
		Flip:      s.Bool(AxisFlip),
		Offset:    s.Float(AxisOffset),
		Angle:     s.Float(AxisAngle),
		Throttle:  s.Float(AxisThrottle),
		Parts:     make(map[string]string, len(c.Slots)),
		Driven:    c.Spec.Driven,
		Autopilot: c.Spec.Autopilot,
	}
	tc.TargetKMH = tc.Throttle * c.Spec.MaxSpeed

	for i, part := range s.Tail(leadingAxes) {
		tc.Parts[c.Slots[i]] = part
	}

	tc.Poses = make([]session.Pose, len(c.Layout.Poses))
	copy(tc.Poses, c.Layout.Poses)

	lead := tc.Poses[0]
	lead.Rot[2] += tc.Angle
	lead.Pos[c.Layout.OffsetAxis] += tc.Offset
	tc.Poses[0] = lead

	if tc.Flip {
		tc.Poses[c.Layout.FlipVehicle].Rot[2] += 180
	}
	return tc, nil
}
