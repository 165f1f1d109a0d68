package vehicle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/impactgen/internal/sequencer"
	"github.com/san-kum/impactgen/internal/session"
	"github.com/san-kum/impactgen/internal/session/sessiontest"
	"github.com/san-kum/impactgen/internal/storage"
)

const dt = 0.016

func damageFeed(damage []float64) func(string, int) session.Sensors {
	return func(vid string, tick int) session.Sensors {
		d := damage[len(damage)-1]
		if tick < len(damage) {
			d = damage[tick]
		}
		return session.Sensors{Time: float64(tick) * dt, Airspeed: 10, Damage: d}
	}
}

func TestVehicle_PollFlagsCrashEveryTick(t *testing.T) {
	fake := sessiontest.New(damageFeed([]float64{10, 10, 10.1, 12}))
	v := New(fake, "vehicle_a", "etk800", 1.0005)
	ctx := context.Background()

	var flags []bool
	for i := 0; i < 4; i++ {
		r, err := v.Poll(ctx)
		require.NoError(t, err)
		assert.Equal(t, "vehicle_a", r.Vehicle)
		flags = append(flags, r.Crash)
		require.NoError(t, fake.Step(ctx, 1))
	}
	assert.Equal(t, []bool{false, false, false, true}, flags)
}

func TestVehicle_LogLines(t *testing.T) {
	fake := sessiontest.New(damageFeed([]float64{0, 5.6}))
	v := New(fake, "vehicle_a", "etk800", 1.0005)
	ctx := context.Background()

	assert.Error(t, v.LogHeader(), "no writer attached")

	path := filepath.Join(t.TempDir(), "a.csv")
	w, err := storage.Create(path)
	require.NoError(t, err)
	v.Attach(w)

	require.NoError(t, v.LogHeader())
	_, err = v.Poll(ctx)
	require.NoError(t, err)
	require.NoError(t, v.LogLine())
	require.NoError(t, fake.Step(ctx, 1))
	_, err = v.Poll(ctx)
	require.NoError(t, err)
	require.NoError(t, v.LogLine())

	require.NoError(t, v.Close())
	require.NoError(t, v.Close())
	assert.Nil(t, v.Writer())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{
		"time,airspeed,gx,gy,gz,damage,crash_flag",
		"0,10,0,0,0,0,0",
		"0.016,10,0,0,0,6,1",
	}, lines)
}

func TestVehicle_Commands(t *testing.T) {
	fake := sessiontest.New(nil)
	v := New(fake, "vehicle_b", "etk800", 1.0005)
	ctx := context.Background()

	require.NoError(t, v.SetSpeed(ctx, 36))
	require.NoError(t, v.EmergencyBrake(ctx))
	require.NoError(t, v.Park(ctx))

	calls := fake.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, "Control", calls[0].Op)
	assert.Equal(t, session.Release(), calls[0].Arg)
	assert.Equal(t, "SetVelocity", calls[1].Op)
	assert.InDelta(t, 10.0, calls[1].Arg, 1e-9)
	assert.Equal(t, session.FullBrake(), calls[2].Arg)
	assert.Equal(t, session.ParkBrake(), calls[3].Arg)
	for _, c := range calls {
		assert.Equal(t, "vehicle_b", c.Vehicle)
	}
}

func TestVehicle_PollError(t *testing.T) {
	fake := sessiontest.New(nil)
	fake.Fail["Poll"] = errors.New("gone")
	v := New(fake, "vehicle_a", "etk800", 1.0005)

	_, err := v.Poll(context.Background())
	assert.ErrorIs(t, err, session.ErrSession)
}

func TestFleet_ScriptedDrive(t *testing.T) {
	fake := sessiontest.New(func(vid string, tick int) session.Sensors {
		s := session.Sensors{Time: float64(tick) * dt}
		switch {
		case tick < 30:
			s.Airspeed = 15
		case tick < 60:
			s.Airspeed = 5
			if vid == "vehicle_a" {
				s.Damage = 20
			}
		default:
			if vid == "vehicle_a" {
				s.Damage = 20
			}
		}
		return s
	})

	dir := t.TempDir()
	a := New(fake, "vehicle_a", "etk800", 1.0005)
	b := New(fake, "vehicle_b", "etk800", 1.0005)
	for _, v := range []*Vehicle{a, b} {
		w, err := storage.Create(filepath.Join(dir, v.ID+".csv"))
		require.NoError(t, err)
		v.Attach(w)
		require.NoError(t, v.LogHeader())
	}

	fleet := &Fleet{Sess: fake, Vehicles: []*Vehicle{a, b}, Driven: []*Vehicle{a}, TargetKMH: 50}
	defer fleet.Close()

	cfg := sequencer.DefaultConfig()
	cfg.SettleDelay = 1
	out, err := sequencer.New(cfg).Run(context.Background(), fleet)
	require.NoError(t, err)
	assert.True(t, out.Impacted)
	assert.Equal(t, out.Samples, a.Writer().Rows())
	assert.Equal(t, out.Samples, b.Writer().Rows())

	for _, c := range fake.Calls("SetVelocity") {
		assert.Equal(t, "vehicle_a", c.Vehicle, "only driven vehicles get speed commands")
	}
	assert.Len(t, fake.Calls("SetVelocity"), 30)
	assert.Empty(t, fake.Calls("AISetTarget"))
	require.NoError(t, fleet.Close())
}

func TestFleet_Autopilot(t *testing.T) {
	fake := sessiontest.New(func(vid string, tick int) session.Sensors {
		s := session.Sensors{Time: float64(tick) * dt}
		if tick >= 10 && vid == "vehicle_a" {
			s.Damage = 50
		}
		return s
	})
	a := New(fake, "vehicle_a", "etk800", 1.0005)
	b := New(fake, "vehicle_b", "etk800", 1.0005)
	fleet := &Fleet{
		Sess:      fake,
		Vehicles:  []*Vehicle{a, b},
		Autopilot: &Autopilot{Target: "vehicle_b", SpeedMPS: 15},
	}
	ctx := context.Background()

	require.NoError(t, fleet.Apply(ctx, sequencer.Step{Command: sequencer.CommandSpeed}))
	require.NoError(t, fleet.Apply(ctx, sequencer.Step{Command: sequencer.CommandSpeed}))
	require.Len(t, fake.Calls("AISetTarget"), 1, "autopilot engages once")
	assert.Equal(t, "vehicle_b", fake.Calls("AISetTarget")[0].Arg)
	assert.Equal(t, 15.0, fake.Calls("AISetSpeed")[0].Arg)

	require.NoError(t, fleet.Apply(ctx, sequencer.Step{
		Command: sequencer.CommandBrake, Transitioned: true, From: sequencer.Driving, Phase: sequencer.Braking,
	}))
	modes := fake.Calls("AISetMode")
	require.Len(t, modes, 1)
	assert.Equal(t, "disabled", modes[0].Arg)
	assert.Len(t, fake.Calls("Control"), 2)
	assert.Empty(t, fake.Calls("SetVelocity"))
}
