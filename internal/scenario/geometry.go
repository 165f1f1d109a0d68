package scenario

import (
	"github.com/san-kum/impactgen/internal/session"
)

// Layout is the base placement of one crash category. Poses are listed lead
// vehicle first; vehicles beyond len(Poses) sit at the geometry's Idle pose.
type Layout struct {
	Poses []session.Pose `yaml:"poses" toml:"poses"`
	// Obstacle marks a static object such as the pole, for the record only.
	Obstacle *session.Vec3 `yaml:"obstacle,omitempty" toml:"obstacle,omitempty"`
	// OffsetAxis is the coordinate (0=x, 1=y, 2=z) the offset shifts.
	OffsetAxis int `yaml:"offset_axis" toml:"offset_axis"`
	// FlipVehicle is the index of the pose that flip turns around.
	FlipVehicle int `yaml:"flip_vehicle" toml:"flip_vehicle"`
}

// Geometry is a level's set of crash layouts.
type Geometry struct {
	Level   string            `yaml:"level" toml:"level"`
	Spawn   []session.Pose    `yaml:"spawn" toml:"spawn"`
	Idle    session.Pose      `yaml:"idle" toml:"idle"`
	Layouts map[string]Layout `yaml:"layouts" toml:"layouts"`
}

func (g Geometry) Layout(category string) (Layout, bool) {
	l, ok := g.Layouts[category]
	return l, ok
}
