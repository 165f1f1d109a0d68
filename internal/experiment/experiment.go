package experiment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/san-kum/impactgen/internal/config"
	"github.com/san-kum/impactgen/internal/scenario"
	"github.com/san-kum/impactgen/internal/sequencer"
	"github.com/san-kum/impactgen/internal/session"
	"github.com/san-kum/impactgen/internal/storage"
	"github.com/san-kum/impactgen/internal/vehicle"
)

var log = logrus.WithField("module", "experiment")

const scenarioName = "impactgen"

// Experiment runs trials of every enabled category against one session,
// one trial at a time.
type Experiment struct {
	cfg       *config.Config
	sess      session.Session
	store     *storage.Store
	registry  *Registry
	observers []Observer
	now       func() time.Time

	geom     scenario.Geometry
	vehicles []*vehicle.Vehicle
}

func New(cfg *config.Config, sess session.Session, store *storage.Store) *Experiment {
	return &Experiment{
		cfg:      cfg,
		sess:     sess,
		store:    store,
		registry: NewRegistry(),
		now:      time.Now,
	}
}

func (e *Experiment) SetRegistry(r *Registry) { e.registry = r }

func (e *Experiment) AddObserver(o Observer) { e.observers = append(e.observers, o) }

func (e *Experiment) emit(ev Event) {
	for _, o := range e.observers {
		o.OnEvent(ev)
	}
}

// Run samples trials round-robin across categories until every space is
// exhausted, MaxTrials is reached or ctx is cancelled. Category construction
// errors are returned before the session is opened. The session is closed
// on every path.
func (e *Experiment) Run(ctx context.Context) (sum *Summary, err error) {
	geom, err := e.cfg.ResolveGeometry()
	if err != nil {
		return nil, err
	}
	cats, err := e.registry.Build(e.cfg, geom)
	if err != nil {
		return nil, err
	}
	if err := e.store.Init(); err != nil {
		return nil, err
	}
	e.geom = geom

	sum = newSummary(lo.Map(cats, func(c *scenario.Category, _ int) string { return c.Name }))
	sum.Started = e.now()
	for _, c := range cats {
		sum.PerCategory[c.Name].Space = c.Space.Count()
		log.Infof("category %s: %d settings", c.Name, c.Space.Count())
	}

	if err := e.sess.Open(ctx); err != nil {
		return sum, err
	}
	defer func() {
		if cerr := e.sess.Close(); cerr != nil {
			log.Warnf("closing session: %v", cerr)
			if err == nil {
				err = cerr
			}
		}
		sum.Elapsed = e.now().Sub(sum.Started)
		e.emit(Event{Kind: EventDone, Summary: sum, Err: err})
	}()

	if err := e.setup(ctx); err != nil {
		return sum, err
	}
	e.vehicles = lo.Map(e.cfg.Vehicles, func(v config.VehicleConfig, _ int) *vehicle.Vehicle {
		return vehicle.New(e.sess, v.ID, v.Model, e.cfg.Sequencer.DamageTolerance)
	})
	e.emit(Event{Kind: EventStart, Summary: sum})

	counters := make(map[string]int, len(cats))
	active := cats
	for len(active) > 0 {
		for _, cat := range active {
			if e.cfg.MaxTrials > 0 && sum.Trials >= e.cfg.MaxTrials {
				log.Infof("reached %d trials", sum.Trials)
				return sum, nil
			}
			if err := ctx.Err(); err != nil {
				return sum, err
			}

			setting, ok := cat.Space.SampleNew()
			if !ok {
				continue
			}
			tc, err := cat.Map(setting)
			if err != nil {
				return sum, err
			}
			counters[cat.Name]++
			id := fmt.Sprintf("%s_%05d", cat.Name, counters[cat.Name])

			meta, err := e.runWithRetries(ctx, tc, id)
			stats := sum.PerCategory[cat.Name]
			sum.Trials++
			stats.Trials++
			if err != nil {
				sum.Failures++
				stats.Failures++
				if errors.Is(err, sequencer.ErrTickLimit) {
					continue
				}
				return sum, fmt.Errorf("trial %s: %w", id, err)
			}
			if meta.Impacted {
				stats.Impacts++
			}
			stats.Samples += meta.Samples
		}

		remaining := lo.Filter(active, func(c *scenario.Category, _ int) bool { return !c.Space.Exhausted() })
		for _, c := range lo.Without(active, remaining...) {
			sum.PerCategory[c.Name].Exhausted = true
			log.Infof("category %s exhausted after %d draws", c.Name, c.Space.Drawn())
			e.emit(Event{Kind: EventExhausted, Category: c.Name, Summary: sum})
		}
		active = remaining
	}
	return sum, nil
}

func (e *Experiment) setup(ctx context.Context) error {
	specs := make([]session.VehicleSpec, len(e.cfg.Vehicles))
	for i, v := range e.cfg.Vehicles {
		pose := e.idlePose(i)
		if i < len(e.geom.Spawn) {
			pose = e.geom.Spawn[i]
		}
		specs[i] = session.VehicleSpec{
			ID:    v.ID,
			Model: v.Model,
			Pos:   pose.Pos,
			Rot:   session.EulerToQuat(pose.Rot),
		}
	}

	log.Debugf("loading %s on %s", scenarioName, e.geom.Level)
	return e.sess.LoadScenario(ctx, session.Scenario{
		Level:          e.geom.Level,
		Name:           scenarioName,
		Vehicles:       specs,
		StepsPerSecond: e.cfg.StepsPerSecond,
		Particles:      e.cfg.Particles,
	})
}

// idlePose parks non-participating vehicles side by side at the idle spot.
func (e *Experiment) idlePose(i int) session.Pose {
	pose := e.geom.Idle
	pose.Pos[0] += 6 * float64(i)
	return pose
}

func (e *Experiment) runWithRetries(ctx context.Context, tc scenario.TrialConfig, id string) (storage.TrialMeta, error) {
	for attempt := 1; ; attempt++ {
		e.emit(Event{Kind: EventTrialStart, Category: tc.Category, Trial: id, Attempt: attempt})

		meta, err := e.runTrial(ctx, tc, id, attempt)
		if err == nil {
			log.Infof("trial %s: %d samples, impacted=%t", id, meta.Samples, meta.Impacted)
			e.emit(Event{Kind: EventTrialDone, Category: tc.Category, Trial: id, Attempt: attempt, Meta: &meta})
			return meta, nil
		}
		e.emit(Event{Kind: EventTrialFailed, Category: tc.Category, Trial: id, Attempt: attempt, Meta: &meta, Err: err})

		if ctx.Err() != nil || attempt > e.cfg.Retries {
			log.Errorf("trial %s failed after %d attempt(s): %v", id, attempt, err)
			return meta, err
		}
		log.Warnf("trial %s attempt %d failed, retrying: %v", id, attempt, err)
		if rerr := e.recover(ctx, err); rerr != nil {
			return meta, rerr
		}
	}
}

// recover prepares the session for another attempt. Transport failures get
// a fresh connection and scenario. Other failures were already reset by
// abandon.
func (e *Experiment) recover(ctx context.Context, cause error) error {
	if !errors.Is(cause, session.ErrSession) {
		return nil
	}
	if err := e.sess.Close(); err != nil {
		log.Debugf("closing broken session: %v", err)
	}
	if err := e.sess.Open(ctx); err != nil {
		return err
	}
	return e.setup(ctx)
}

func (e *Experiment) runTrial(ctx context.Context, tc scenario.TrialConfig, id string, attempt int) (storage.TrialMeta, error) {
	meta := storage.TrialMeta{
		ID:        id,
		Category:  tc.Category,
		Timestamp: e.now(),
		Setting: lo.Map(tc.Setting, func(v any, _ int) string {
			return fmt.Sprint(v)
		}),
		Flip:        tc.Flip,
		Offset:      tc.Offset,
		Angle:       tc.Angle,
		Throttle:    tc.Throttle,
		TargetSpeed: tc.TargetKMH,
		Parts:       tc.Parts,
		Attempts:    attempt,
	}

	out, err := e.drive(ctx, tc, &meta)
	meta.Ticks = out.Ticks
	meta.Samples = out.Samples
	meta.Impacted = out.Impacted
	meta.ImpactTime = out.ImpactTime
	if err != nil {
		meta.Error = err.Error()
	}

	if serr := e.store.SaveMeta(meta); serr != nil && err == nil {
		err = serr
	}
	if err != nil {
		return meta, e.abandon(ctx, id, err)
	}
	return meta, e.sess.Reset(ctx)
}

// abandon restarts the scene after a failed trial so the next one starts
// clean. A broken transport is left to recover, which reconnects instead.
func (e *Experiment) abandon(ctx context.Context, id string, cause error) error {
	if errors.Is(cause, session.ErrSession) {
		return cause
	}
	if err := e.sess.Reset(ctx); err != nil {
		log.Warnf("trial %s: reset after failure: %v", id, err)
		if errors.Is(err, session.ErrSession) {
			return errors.Join(cause, err)
		}
	}
	return cause
}

// drive places the vehicles, opens one writer per participant and runs the
// sequencer. Writers are closed before it returns, whatever happened.
func (e *Experiment) drive(ctx context.Context, tc scenario.TrialConfig, meta *storage.TrialMeta) (out sequencer.Outcome, err error) {
	n := len(tc.Poses)
	if n > len(e.vehicles) {
		return out, fmt.Errorf("trial needs %d vehicles, have %d", n, len(e.vehicles))
	}
	participants := e.vehicles[:n]
	meta.Vehicles = lo.Map(participants, func(v *vehicle.Vehicle, _ int) string { return v.ID })

	for i, v := range e.vehicles {
		pose := e.idlePose(i - n)
		if i < n {
			pose = tc.Poses[i]
		}
		if err := e.sess.Teleport(ctx, v.ID, pose, true); err != nil {
			return out, err
		}
	}

	lead := participants[0]
	lead.Parts = tc.Parts
	if err := e.sess.SetParts(ctx, lead.ID, tc.Parts); err != nil {
		return out, err
	}
	if e.cfg.SpawnSettleTicks > 0 {
		if err := e.sess.Step(ctx, e.cfg.SpawnSettleTicks); err != nil {
			return out, err
		}
	}

	fleet := &vehicle.Fleet{
		Sess:      e.sess,
		Vehicles:  participants,
		Driven:    participants[:max(0, min(tc.Driven, n))],
		TargetKMH: tc.TargetKMH,
	}
	if tc.Autopilot && n > 1 {
		fleet.Autopilot = &vehicle.Autopilot{Target: participants[1].ID, SpeedMPS: tc.TargetKMH / 3.6}
	}
	defer func() {
		if err != nil && !errors.Is(err, session.ErrSession) {
			if rerr := fleet.Release(ctx); rerr != nil {
				log.Warnf("trial %s: releasing autopilot: %v", meta.ID, rerr)
			}
		}
		if cerr := fleet.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for _, v := range participants {
		path := e.store.CSVPath(*meta, v.ID)
		w, err := storage.Create(path)
		if err != nil {
			return out, err
		}
		v.Attach(w)
		meta.Files = append(meta.Files, path)
		if err := v.LogHeader(); err != nil {
			return out, err
		}
	}

	seq := sequencer.New(e.cfg.Sequencer.ToSequencer())
	seq.OnTransition(func(st sequencer.Step) {
		e.emit(Event{Kind: EventPhase, Category: meta.Category, Trial: meta.ID, Phase: st.Phase, Time: st.Time})
	})
	return seq.Run(ctx, fleet)
}
