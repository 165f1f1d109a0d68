package viz

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/impactgen/internal/experiment"
)

// RenderSummary formats a finished run as a bordered table.
func RenderSummary(sum *experiment.Summary) string {
	if sum == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(Header.Render("impactgen run"))
	sb.WriteString("\n\n")

	row := func(cells ...string) string {
		styled := make([]string, len(cells))
		for i, c := range cells {
			w := 10
			if i == 0 {
				w = 12
			}
			styled[i] = lipgloss.NewStyle().Width(w).Render(c)
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, styled...)
	}

	sb.WriteString(MetricLabel.Render(row("category", "trials", "failed", "impacts", "samples", "space")))
	sb.WriteString("\n")
	for _, name := range sum.Order {
		st := sum.PerCategory[name]
		label := name
		if st.Exhausted {
			label += "*"
		}
		line := row(label,
			fmt.Sprint(st.Trials),
			fmt.Sprint(st.Failures),
			fmt.Sprint(st.Impacts),
			fmt.Sprint(st.Samples),
			fmt.Sprint(st.Space),
		)
		if st.Failures > 0 {
			line = StatusWarn.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	status := StatusOK.Render("ok")
	if sum.Failures > 0 {
		status = StatusFailed.Render(fmt.Sprintf("%d failed", sum.Failures))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%s %s  %s %s  %s\n",
		MetricLabel.Render("trials"), MetricValue.Render(fmt.Sprint(sum.Trials)),
		MetricLabel.Render("elapsed"), MetricValue.Render(sum.Elapsed.Round(time.Second).String()),
		status,
	))
	sb.WriteString(KeyHint.Render("* space exhausted"))
	return Panel.Render(sb.String())
}
