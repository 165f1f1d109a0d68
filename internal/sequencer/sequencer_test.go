package sequencer_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/impactgen/internal/sequencer"
)

const dt = 0.016

// scriptedFleet replays a sensor feed indexed by tick.
type scriptedFleet struct {
	tick     int
	feed     func(tick int, t float64) []sequencer.Reading
	steps    []sequencer.Step
	recorded []float64
	pollErr  error
	applyErr error
}

func (f *scriptedFleet) Poll(ctx context.Context) ([]sequencer.Reading, error) {
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	return f.feed(f.tick, float64(f.tick)*dt), nil
}

func (f *scriptedFleet) Apply(ctx context.Context, step sequencer.Step) error {
	f.steps = append(f.steps, step)
	return f.applyErr
}

func (f *scriptedFleet) Record(ctx context.Context, readings []sequencer.Reading) error {
	f.recorded = append(f.recorded, readings[0].Time)
	return nil
}

func (f *scriptedFleet) Advance(ctx context.Context) error {
	f.tick++
	return nil
}

func reading(t, airspeed, damage float64) sequencer.Reading {
	return sequencer.Reading{Vehicle: "vehicle_a", Time: t, Airspeed: airspeed, Damage: damage}
}

var _ = Describe("Sequencer", func() {
	var (
		cfg sequencer.Config
		seq *sequencer.Sequencer
	)

	BeforeEach(func() {
		cfg = sequencer.DefaultConfig()
		seq = sequencer.New(cfg)
	})

	Describe("Driving", func() {
		It("starts in Driving and issues speed commands", func() {
			step := seq.Tick([]sequencer.Reading{reading(0, 0, 0)})
			Expect(step.Phase).To(Equal(sequencer.Driving))
			Expect(step.Command).To(Equal(sequencer.CommandSpeed))
			Expect(step.Transitioned).To(BeFalse())
		})

		It("brakes exactly at the tick damage first exceeds the threshold", func() {
			for i := 0; i < 100; i++ {
				step := seq.Tick([]sequencer.Reading{reading(float64(i)*dt, 20, 0)})
				Expect(step.Phase).To(Equal(sequencer.Driving), "tick %d", i)
			}
			step := seq.Tick([]sequencer.Reading{reading(100*dt, 20, 15)})
			Expect(step.Tick).To(Equal(100))
			Expect(step.Transitioned).To(BeTrue())
			Expect(step.From).To(Equal(sequencer.Driving))
			Expect(step.Phase).To(Equal(sequencer.Braking))
			Expect(step.Command).To(Equal(sequencer.CommandBrake))
		})

		It("does not brake when damage equals the threshold", func() {
			step := seq.Tick([]sequencer.Reading{reading(0, 20, 10)})
			Expect(step.Phase).To(Equal(sequencer.Driving))
		})

		It("only looks at the lead vehicle's damage", func() {
			step := seq.Tick([]sequencer.Reading{reading(0, 20, 0), reading(0, 0, 50)})
			Expect(step.Phase).To(Equal(sequencer.Driving))
		})

		It("brakes after MaxDriveTime when nothing is hit", func() {
			cfg.MaxDriveTime = 1.0
			seq = sequencer.New(cfg)
			seq.Tick([]sequencer.Reading{reading(0.0, 20, 0)})
			Expect(seq.Tick([]sequencer.Reading{reading(0.5, 20, 0)}).Phase).To(Equal(sequencer.Driving))
			Expect(seq.Tick([]sequencer.Reading{reading(1.0, 20, 0)}).Phase).To(Equal(sequencer.Braking))
		})
	})

	Describe("Braking", func() {
		BeforeEach(func() {
			seq.Tick([]sequencer.Reading{reading(0, 30, 20)})
			Expect(seq.Phase()).To(Equal(sequencer.Braking))
		})

		It("settles exactly at the tick airspeed first reads at most the stop speed", func() {
			speeds := []float64{20, 15, 3, 0.5}
			phases := make([]sequencer.Phase, 0, len(speeds))
			for i, v := range speeds {
				step := seq.Tick([]sequencer.Reading{reading(float64(i+1)*dt, v, 20)})
				phases = append(phases, step.Phase)
			}
			Expect(phases).To(Equal([]sequencer.Phase{
				sequencer.Braking, sequencer.Braking, sequencer.Braking, sequencer.Settling,
			}))
		})

		It("waits for every vehicle to stop", func() {
			step := seq.Tick([]sequencer.Reading{reading(dt, 0.5, 20), reading(dt, 4, 0)})
			Expect(step.Phase).To(Equal(sequencer.Braking))
			step = seq.Tick([]sequencer.Reading{reading(2*dt, 0.5, 20), reading(2*dt, 1, 0)})
			Expect(step.Phase).To(Equal(sequencer.Settling))
			Expect(step.Command).To(Equal(sequencer.CommandPark))
		})
	})

	Describe("Settling", func() {
		It("finishes once the settle delay since braking has passed", func() {
			seq.Tick([]sequencer.Reading{reading(1.0, 30, 20)})
			seq.Tick([]sequencer.Reading{reading(2.0, 0, 20)})
			Expect(seq.Phase()).To(Equal(sequencer.Settling))

			Expect(seq.Tick([]sequencer.Reading{reading(6.0, 0, 20)}).Phase).To(Equal(sequencer.Settling))
			step := seq.Tick([]sequencer.Reading{reading(6.1, 0, 20)})
			Expect(step.Phase).To(Equal(sequencer.Done))
			Expect(step.Command).To(Equal(sequencer.CommandNone))

			Expect(seq.Tick([]sequencer.Reading{reading(7, 0, 20)}).Phase).To(Equal(sequencer.Done))
		})
	})

	Describe("logging cadence", func() {
		It("logs every 7th tick at 10 Hz with a 16 ms clock", func() {
			var logged []int
			var times []float64
			for i := 0; i < 70; i++ {
				t := float64(i) * dt
				if seq.Tick([]sequencer.Reading{reading(t, 20, 0)}).Log {
					logged = append(logged, i)
					times = append(times, t)
				}
			}
			Expect(logged).To(Equal([]int{0, 7, 14, 21, 28, 35, 42, 49, 56, 63}))
			for i := 1; i < len(times); i++ {
				Expect(times[i] - times[i-1]).To(BeNumerically(">=", 0.1))
			}
		})
	})

	Describe("Run", func() {
		It("drives a full trial to Done", func() {
			fleet := &scriptedFleet{feed: func(tick int, t float64) []sequencer.Reading {
				switch {
				case tick < 100:
					return []sequencer.Reading{reading(t, 40, 0), reading(t, 0, 0)}
				case tick < 200:
					return []sequencer.Reading{reading(t, 10, 15), reading(t, 5, 3)}
				default:
					return []sequencer.Reading{reading(t, 0, 15), reading(t, 0, 3)}
				}
			}}

			out, err := seq.Run(context.Background(), fleet)
			Expect(err).NotTo(HaveOccurred())
			Expect(seq.Phase()).To(Equal(sequencer.Done))
			Expect(out.Impacted).To(BeTrue())
			Expect(out.ImpactTime).To(BeNumerically("~", 100*dt, 1e-9))
			Expect(out.Samples).To(Equal(len(fleet.recorded)))
			Expect(out.EndTime - out.ImpactTime).To(BeNumerically(">", cfg.SettleDelay))

			last := fleet.steps[len(fleet.steps)-1]
			Expect(last.Phase).To(Equal(sequencer.Done))
		})

		It("reports each phase change once", func() {
			fleet := &scriptedFleet{feed: func(tick int, t float64) []sequencer.Reading {
				switch {
				case tick < 100:
					return []sequencer.Reading{reading(t, 40, 0)}
				case tick < 200:
					return []sequencer.Reading{reading(t, 10, 15)}
				default:
					return []sequencer.Reading{reading(t, 0, 15)}
				}
			}}

			var phases []sequencer.Phase
			seq.OnTransition(func(st sequencer.Step) {
				Expect(st.Transitioned).To(BeTrue())
				phases = append(phases, st.Phase)
			})

			_, err := seq.Run(context.Background(), fleet)
			Expect(err).NotTo(HaveOccurred())
			Expect(phases).To(Equal([]sequencer.Phase{sequencer.Braking, sequencer.Settling, sequencer.Done}))
		})

		It("fails with ErrTickLimit when the trial never completes", func() {
			cfg.MaxTicks = 50
			seq = sequencer.New(cfg)
			fleet := &scriptedFleet{feed: func(tick int, t float64) []sequencer.Reading {
				return []sequencer.Reading{reading(t, 40, 0)}
			}}
			out, err := seq.Run(context.Background(), fleet)
			Expect(err).To(MatchError(sequencer.ErrTickLimit))
			Expect(out.Ticks).To(Equal(50))
		})

		It("propagates fleet errors", func() {
			boom := errors.New("transport closed")
			fleet := &scriptedFleet{pollErr: boom}
			_, err := seq.Run(context.Background(), fleet)
			Expect(errors.Is(err, boom)).To(BeTrue())

			fleet = &scriptedFleet{
				applyErr: boom,
				feed: func(int, float64) []sequencer.Reading {
					return []sequencer.Reading{reading(0, 0, 0)}
				},
			}
			_, err = sequencer.New(cfg).Run(context.Background(), fleet)
			Expect(errors.Is(err, boom)).To(BeTrue())
		})

		It("stops when the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			fleet := &scriptedFleet{feed: func(int, float64) []sequencer.Reading { return nil }}
			_, err := seq.Run(ctx, fleet)
			Expect(err).To(MatchError(context.Canceled))
		})
	})
})

var _ = Describe("CrashDetector", func() {
	It("flags only damage increases beyond the tolerance", func() {
		det := sequencer.NewCrashDetector(1.0005)
		var flags []bool
		for _, d := range []float64{10.0, 10.0, 10.1, 12.0} {
			flags = append(flags, det.Observe(d))
		}
		Expect(flags).To(Equal([]bool{false, false, false, true}))
	})

	It("ignores increases that vanish after rounding", func() {
		det := sequencer.NewCrashDetector(1.0005)
		Expect(det.Observe(0)).To(BeFalse())
		Expect(det.Observe(0.4)).To(BeFalse())

		det.Reset()
		Expect(det.Observe(0.6)).To(BeFalse())
		Expect(det.Observe(1.4)).To(BeFalse())
		Expect(det.Observe(1.6)).To(BeTrue())
	})

	It("compares raw damage when rounding is off", func() {
		det := &sequencer.CrashDetector{Tolerance: 1.0005}
		Expect(det.Observe(10.0)).To(BeFalse())
		Expect(det.Observe(10.004)).To(BeFalse())
		Expect(det.Observe(10.2)).To(BeTrue())
	})

	It("forgets history on Reset", func() {
		det := sequencer.NewCrashDetector(1.0005)
		det.Observe(1)
		det.Reset()
		Expect(det.Observe(50)).To(BeFalse())
	})
})
