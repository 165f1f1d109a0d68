// Package sessiontest provides an in-memory Session for tests.
package sessiontest

import (
	"context"
	"sync"

	"github.com/samber/lo"

	"github.com/san-kum/impactgen/internal/session"
)

// Call is one recorded Session invocation.
type Call struct {
	Op      string
	Vehicle string
	Arg     any
}

// Fake is a scripted simulator. Feed produces the sensors of a vehicle at
// the current tick; Step advances the tick. Any op listed in Fail returns
// that error wrapped as a SessionError.
type Fake struct {
	Feed func(vid string, tick int) session.Sensors
	Fail map[string]error
	// FailAfter makes ops in Fail succeed until the tick reaches this value.
	FailAfter int

	mu     sync.Mutex
	tick   int
	open   bool
	closed int
	calls  []Call
}

var _ session.Session = (*Fake)(nil)

func New(feed func(vid string, tick int) session.Sensors) *Fake {
	return &Fake{Feed: feed, Fail: map[string]error{}}
}

func (f *Fake) record(op, vid string, arg any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: op, Vehicle: vid, Arg: arg})
	if err, ok := f.Fail[op]; ok && f.tick >= f.FailAfter {
		return &session.SessionError{Op: op, Err: err}
	}
	return nil
}

func (f *Fake) Open(ctx context.Context) error {
	if err := f.record("Open", "", nil); err != nil {
		return err
	}
	f.mu.Lock()
	f.open = true
	f.mu.Unlock()
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	f.open = false
	f.closed++
	f.mu.Unlock()
	return f.record("Close", "", nil)
}

func (f *Fake) LoadScenario(ctx context.Context, sc session.Scenario) error {
	return f.record("LoadScenario", "", sc)
}

func (f *Fake) Reset(ctx context.Context) error {
	f.mu.Lock()
	f.tick = 0
	f.mu.Unlock()
	return f.record("Reset", "", nil)
}

func (f *Fake) Step(ctx context.Context, ticks int) error {
	if err := f.record("Step", "", ticks); err != nil {
		return err
	}
	f.mu.Lock()
	f.tick += ticks
	f.mu.Unlock()
	return nil
}

func (f *Fake) Teleport(ctx context.Context, vid string, pose session.Pose, reset bool) error {
	return f.record("Teleport", vid, pose)
}

func (f *Fake) SetParts(ctx context.Context, vid string, parts map[string]string) error {
	return f.record("SetParts", vid, parts)
}

func (f *Fake) Control(ctx context.Context, vid string, c session.Control) error {
	return f.record("Control", vid, c)
}

func (f *Fake) SetVelocity(ctx context.Context, vid string, mps, seconds float64) error {
	return f.record("SetVelocity", vid, mps)
}

func (f *Fake) AISetTarget(ctx context.Context, vid, target string) error {
	return f.record("AISetTarget", vid, target)
}

func (f *Fake) AISetSpeed(ctx context.Context, vid string, mps float64) error {
	return f.record("AISetSpeed", vid, mps)
}

func (f *Fake) AISetMode(ctx context.Context, vid, mode string) error {
	return f.record("AISetMode", vid, mode)
}

func (f *Fake) Poll(ctx context.Context, vid string) (session.Sensors, error) {
	if err := f.record("Poll", vid, nil); err != nil {
		return session.Sensors{}, err
	}
	f.mu.Lock()
	tick := f.tick
	f.mu.Unlock()
	if f.Feed == nil {
		return session.Sensors{}, nil
	}
	return f.Feed(vid, tick), nil
}

// Calls returns the recorded calls, optionally filtered by op.
func (f *Fake) Calls(ops ...string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(ops) == 0 {
		return append([]Call(nil), f.calls...)
	}
	return lo.Filter(f.calls, func(c Call, _ int) bool { return lo.Contains(ops, c.Op) })
}

func (f *Fake) Tick() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tick
}

func (f *Fake) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *Fake) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
