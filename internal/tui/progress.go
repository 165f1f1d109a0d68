package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/impactgen/internal/experiment"
	"github.com/san-kum/impactgen/internal/sequencer"
	"github.com/san-kum/impactgen/internal/viz"
)

const (
	recentEvents  = 8
	sampleHistory = 40
)

type eventMsg experiment.Event

type doneMsg struct {
	sum *experiment.Summary
	err error
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type categoryRow struct {
	trials    int
	impacts   int
	space     uint64
	exhausted bool
}

type progressModel struct {
	limit  int
	cancel context.CancelFunc

	order   []string
	rows    map[string]*categoryRow
	current string
	attempt int
	phase   sequencer.Phase
	recent  []string
	samples []float64

	trials   int
	failures int
	frame    int
	width    int

	stopping bool
	done     bool
	err      error
}

func newProgressModel(limit int, cancel context.CancelFunc) progressModel {
	return progressModel{
		limit:  limit,
		cancel: cancel,
		rows:   make(map[string]*categoryRow),
		width:  80,
	}
}

func (m progressModel) Init() tea.Cmd { return tick() }

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if m.stopping || m.done {
				return m, tea.Quit
			}
			m.stopping = true
			m.log("stopping after the current tick...")
			if m.cancel != nil {
				m.cancel()
			}
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		m.frame++
		if m.done {
			return m, nil
		}
		return m, tick()
	case eventMsg:
		m.apply(experiment.Event(msg))
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m *progressModel) apply(e experiment.Event) {
	switch e.Kind {
	case experiment.EventStart:
		if e.Summary == nil {
			return
		}
		m.order = e.Summary.Order
		for _, name := range e.Summary.Order {
			m.rows[name] = &categoryRow{space: e.Summary.PerCategory[name].Space}
		}
	case experiment.EventTrialStart:
		m.current = e.Trial
		m.attempt = e.Attempt
		m.phase = sequencer.Driving
	case experiment.EventPhase:
		m.phase = e.Phase
	case experiment.EventTrialDone:
		m.trials++
		if row := m.row(e.Category); row != nil {
			row.trials++
			if e.Meta != nil && e.Meta.Impacted {
				row.impacts++
			}
		}
		samples := 0
		if e.Meta != nil {
			samples = e.Meta.Samples
		}
		m.samples = append(m.samples, float64(samples))
		if len(m.samples) > sampleHistory {
			m.samples = m.samples[len(m.samples)-sampleHistory:]
		}
		m.log(fmt.Sprintf("%s done, %d samples", e.Trial, samples))
	case experiment.EventTrialFailed:
		m.failures++
		m.log(fmt.Sprintf("%s attempt %d failed: %v", e.Trial, e.Attempt, e.Err))
	case experiment.EventExhausted:
		if row := m.row(e.Category); row != nil {
			row.exhausted = true
		}
		m.log(e.Category + " exhausted")
	case experiment.EventDone:
		if e.Summary != nil {
			m.trials = e.Summary.Trials
			for name, st := range e.Summary.PerCategory {
				if row := m.row(name); row != nil {
					row.trials, row.impacts = st.Trials, st.Impacts
				}
			}
		}
	}
}

func (m *progressModel) row(name string) *categoryRow {
	return m.rows[name]
}

func (m *progressModel) log(line string) {
	m.recent = append(m.recent, line)
	if len(m.recent) > recentEvents {
		m.recent = m.recent[len(m.recent)-recentEvents:]
	}
}

func (m progressModel) View() string {
	var sb strings.Builder

	status := viz.StatusOK.Render(viz.Spinner(m.frame) + " generating")
	switch {
	case m.done && m.err != nil:
		status = viz.StatusFailed.Render("✗ " + m.err.Error())
	case m.done:
		status = viz.StatusOK.Render("✓ finished")
	case m.stopping:
		status = viz.StatusWarn.Render(viz.Spinner(m.frame) + " stopping")
	}
	sb.WriteString(viz.Title.Render("impactgen") + "  " + status + "\n\n")

	barWidth := max(min(m.width-30, 50), 10)
	if m.limit > 0 {
		frac := float64(m.trials) / float64(m.limit)
		sb.WriteString(fmt.Sprintf("%s %d/%d\n", viz.ProgressBar(frac, barWidth), m.trials, m.limit))
	} else {
		sb.WriteString(fmt.Sprintf("%s %s\n", viz.MetricLabel.Render("trials"), viz.MetricValue.Render(fmt.Sprint(m.trials))))
	}
	if m.failures > 0 {
		sb.WriteString(viz.StatusWarn.Render(fmt.Sprintf("%d failed attempt(s)", m.failures)) + "\n")
	}
	if m.current != "" && !m.done {
		line := "running " + m.current
		if m.attempt > 1 {
			line += fmt.Sprintf(" (attempt %d)", m.attempt)
		}
		sb.WriteString(viz.Subtle.Render(line) + "  " + viz.PhaseStyle(m.phase).Render(m.phase.String()) + "\n")
	}
	if len(m.samples) > 1 {
		sb.WriteString(viz.MetricLabel.Render("samples/trial ") + viz.Sparkline(m.samples, sampleHistory) + "\n")
	}
	sb.WriteString("\n")

	for _, name := range m.order {
		row := m.rows[name]
		frac := 0.0
		if row.space > 0 {
			frac = float64(row.trials) / float64(row.space)
		}
		state := ""
		if row.exhausted {
			state = viz.StatusWarn.Render(" exhausted")
		}
		sb.WriteString(fmt.Sprintf("%-8s %s %s %s%s\n",
			name,
			viz.ProgressBar(frac, 20),
			viz.MetricValue.Render(fmt.Sprint(row.trials)),
			viz.MetricLabel.Render(fmt.Sprintf("impacts %d", row.impacts)),
			state,
		))
	}

	sb.WriteString("\n" + viz.Separator(min(m.width, 60)) + "\n")
	for _, line := range m.recent {
		sb.WriteString(viz.Subtle.Render(line) + "\n")
	}
	sb.WriteString("\n" + viz.KeyHint.Render("q stop  ·  q again to quit now"))
	return sb.String()
}

// RunProgress runs exp while showing live progress. limit is the expected
// number of trials, 0 when unknown. It returns once the run has finished and
// its session is closed.
func RunProgress(ctx context.Context, exp *experiment.Experiment, limit int) (*experiment.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(limit, cancel), tea.WithAltScreen())
	exp.AddObserver(experiment.ObserverFunc(func(e experiment.Event) {
		p.Send(eventMsg(e))
	}))

	result := make(chan doneMsg, 1)
	go func() {
		sum, err := exp.Run(ctx)
		d := doneMsg{sum: sum, err: err}
		result <- d
		p.Send(d)
	}()

	_, perr := p.Run()
	cancel()
	d := <-result
	if perr != nil && d.err == nil {
		return d.sum, perr
	}
	return d.sum, d.err
}
