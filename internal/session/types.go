package session

import "context"

// Vec3 is a position in metres or an Euler rotation in degrees.
type Vec3 [3]float64

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

// Quat is a rotation quaternion in (x, y, z, w) order.
type Quat [4]float64

// Pose places a vehicle. Rot holds extrinsic xyz Euler angles in degrees.
type Pose struct {
	Pos Vec3 `yaml:"pos" toml:"pos" json:"pos"`
	Rot Vec3 `yaml:"rot" toml:"rot" json:"rot"`
}

// Control is a raw input command. Nil fields are left unchanged by the simulator.
type Control struct {
	Steering     *float64 `msgpack:"steering,omitempty"`
	Throttle     *float64 `msgpack:"throttle,omitempty"`
	Brake        *float64 `msgpack:"brake,omitempty"`
	ParkingBrake *float64 `msgpack:"parkingbrake,omitempty"`
	Gear         *int     `msgpack:"gear,omitempty"`
}

func value[T any](v T) *T { return &v }

// Release lets go of every brake so velocity commands take effect.
func Release() Control {
	return Control{Steering: value(0.0), Brake: value(0.0), ParkingBrake: value(0.0)}
}

// FullBrake cuts throttle and applies the service brake in neutral.
func FullBrake() Control {
	return Control{Steering: value(0.0), Throttle: value(0.0), Brake: value(1.0), Gear: value(0)}
}

// ParkBrake is FullBrake with the parking brake engaged.
func ParkBrake() Control {
	c := FullBrake()
	c.ParkingBrake = value(1.0)
	return c
}

// VehicleSpec is a vehicle placed into a scenario at load time.
type VehicleSpec struct {
	ID    string `msgpack:"vid"`
	Model string `msgpack:"model"`
	Pos   Vec3   `msgpack:"pos"`
	Rot   Quat   `msgpack:"rot"`
}

// Scenario describes the scene a session loads before any trial runs.
type Scenario struct {
	Level          string
	Name           string
	Vehicles       []VehicleSpec
	StepsPerSecond int
	Particles      bool
}

// Sensors is one poll of a vehicle's sensors.
type Sensors struct {
	Time     float64 `msgpack:"time"`
	Airspeed float64 `msgpack:"airspeed"`
	GX       float64 `msgpack:"gx"`
	GY       float64 `msgpack:"gy"`
	GZ       float64 `msgpack:"gz"`
	Damage   float64 `msgpack:"damage"`
	Pos      Vec3    `msgpack:"pos"`
}

// Session is the remote-control surface of a running simulator. Calls are
// synchronous and never retried.
type Session interface {
	Open(ctx context.Context) error
	Close() error

	LoadScenario(ctx context.Context, sc Scenario) error
	Reset(ctx context.Context) error
	Step(ctx context.Context, ticks int) error

	Teleport(ctx context.Context, vid string, pose Pose, reset bool) error
	SetParts(ctx context.Context, vid string, parts map[string]string) error
	Control(ctx context.Context, vid string, c Control) error
	SetVelocity(ctx context.Context, vid string, mps, seconds float64) error

	AISetTarget(ctx context.Context, vid, target string) error
	AISetSpeed(ctx context.Context, vid string, mps float64) error
	AISetMode(ctx context.Context, vid, mode string) error

	Poll(ctx context.Context, vid string) (Sensors, error)
}
