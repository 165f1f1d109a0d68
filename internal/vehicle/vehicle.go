package vehicle

import (
	"context"
	"fmt"

	"github.com/san-kum/impactgen/internal/sequencer"
	"github.com/san-kum/impactgen/internal/session"
	"github.com/san-kum/impactgen/internal/storage"
)

// Vehicle bundles a simulator vehicle with its crash detector and the CSV
// writer of the running trial.
type Vehicle struct {
	ID    string
	Model string
	Parts map[string]string

	sess  session.Session
	crash *sequencer.CrashDetector
	out   *storage.TrialWriter
	last  sequencer.Reading
}

func New(sess session.Session, id, model string, tolerance float64) *Vehicle {
	return &Vehicle{
		ID:    id,
		Model: model,
		sess:  sess,
		crash: sequencer.NewCrashDetector(tolerance),
	}
}

// Attach directs LogLine output to w and clears damage history for a new trial.
func (v *Vehicle) Attach(w *storage.TrialWriter) {
	v.out = w
	v.crash.Reset()
	v.last = sequencer.Reading{Vehicle: v.ID}
}

func (v *Vehicle) Writer() *storage.TrialWriter { return v.out }

// Poll reads the vehicle's sensors. The crash flag is evaluated on every
// poll, whether or not the reading is logged.
func (v *Vehicle) Poll(ctx context.Context) (sequencer.Reading, error) {
	s, err := v.sess.Poll(ctx, v.ID)
	if err != nil {
		return sequencer.Reading{}, err
	}
	v.last = sequencer.Reading{
		Vehicle:  v.ID,
		Time:     s.Time,
		Airspeed: s.Airspeed,
		GX:       s.GX,
		GY:       s.GY,
		GZ:       s.GZ,
		Damage:   s.Damage,
		Crash:    v.crash.Observe(s.Damage),
	}
	return v.last, nil
}

func (v *Vehicle) Last() sequencer.Reading { return v.last }

func (v *Vehicle) LogHeader() error {
	if v.out == nil {
		return fmt.Errorf("vehicle %s: no output attached", v.ID)
	}
	return v.out.WriteHeader()
}

// LogLine appends the most recent reading to the attached writer.
func (v *Vehicle) LogLine() error {
	if v.out == nil {
		return fmt.Errorf("vehicle %s: no output attached", v.ID)
	}
	r := v.last
	return v.out.WriteRow(storage.Row{
		Time:     r.Time,
		Airspeed: r.Airspeed,
		GX:       r.GX,
		GY:       r.GY,
		GZ:       r.GZ,
		Damage:   r.Damage,
		Crash:    r.Crash,
	})
}

// SetSpeed releases the brakes and pushes the vehicle to kmh over one second.
func (v *Vehicle) SetSpeed(ctx context.Context, kmh float64) error {
	if err := v.sess.Control(ctx, v.ID, session.Release()); err != nil {
		return err
	}
	return v.sess.SetVelocity(ctx, v.ID, kmh/3.6, 1.0)
}

func (v *Vehicle) EmergencyBrake(ctx context.Context) error {
	return v.sess.Control(ctx, v.ID, session.FullBrake())
}

func (v *Vehicle) Park(ctx context.Context) error {
	return v.sess.Control(ctx, v.ID, session.ParkBrake())
}

// Close closes the attached writer, if any. Safe to call more than once.
func (v *Vehicle) Close() error {
	if v.out == nil {
		return nil
	}
	err := v.out.Close()
	v.out = nil
	return err
}
