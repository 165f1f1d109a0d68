package experiment

import (
	"time"

	"github.com/san-kum/impactgen/internal/sequencer"
	"github.com/san-kum/impactgen/internal/storage"
)

type EventKind int

const (
	EventStart EventKind = iota
	EventTrialStart
	EventTrialDone
	EventTrialFailed
	EventExhausted
	EventPhase
	EventDone
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventTrialStart:
		return "trial-start"
	case EventTrialDone:
		return "trial-done"
	case EventTrialFailed:
		return "trial-failed"
	case EventExhausted:
		return "exhausted"
	case EventPhase:
		return "phase"
	case EventDone:
		return "done"
	}
	return "unknown"
}

// Event reports progress of a run to observers.
type Event struct {
	Kind     EventKind
	Category string
	Trial    string
	Attempt  int
	Phase    sequencer.Phase // EventPhase only
	Time     float64         // sim time of the phase change
	Meta     *storage.TrialMeta
	Err      error
	Summary  *Summary
}

type Observer interface {
	OnEvent(e Event)
}

// ObserverFunc adapts a function to an Observer.
type ObserverFunc func(e Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

type CategoryStats struct {
	Trials    int
	Failures  int
	Impacts   int
	Samples   int
	Space     uint64
	Exhausted bool
}

type Summary struct {
	Trials      int
	Failures    int
	PerCategory map[string]*CategoryStats
	Order       []string
	Started     time.Time
	Elapsed     time.Duration
}

func newSummary(order []string) *Summary {
	s := &Summary{
		PerCategory: make(map[string]*CategoryStats, len(order)),
		Order:       order,
	}
	for _, name := range order {
		s.PerCategory[name] = &CategoryStats{}
	}
	return s
}
