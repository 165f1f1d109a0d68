package viz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/impactgen/internal/storage"
)

var ErrNoData = errors.New("viz: nothing to plot")

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Cyan,
	asciigraph.Yellow,
	asciigraph.Red,
	asciigraph.Green,
	asciigraph.Magenta,
	asciigraph.Blue,
}

// Plot draws the named columns of s against sample index.
func Plot(s *storage.Series, columns []string, width, height int) (string, error) {
	if s == nil || s.Len() == 0 {
		return "", ErrNoData
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("%w: no columns selected", ErrNoData)
	}

	data := make([][]float64, 0, len(columns))
	for _, name := range columns {
		col, err := s.Column(name)
		if err != nil {
			return "", err
		}
		data = append(data, resample(col, width))
	}

	caption := fmt.Sprintf("%s over %.2fs", strings.Join(columns, ", "), s.Time[s.Len()-1]-s.Time[0])
	opts := []asciigraph.Option{
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	}
	if len(columns) > 1 {
		opts = append(opts,
			asciigraph.SeriesColors(seriesColors[:min(len(columns), len(seriesColors))]...),
			asciigraph.SeriesLegends(columns...),
		)
	}
	return asciigraph.PlotMany(data, opts...), nil
}

// resample picks at most n evenly spaced points.
func resample(values []float64, n int) []float64 {
	if n < 2 || len(values) <= n {
		return values
	}
	out := make([]float64, n)
	step := float64(len(values)-1) / float64(n-1)
	for i := range out {
		out[i] = values[int(float64(i)*step+0.5)]
	}
	return out
}

// CrashMarkers renders at most width runes, '!' for any bucket of samples
// holding a set crash flag.
func CrashMarkers(s *storage.Series, width int) string {
	n := len(s.Crash)
	if n == 0 || width <= 0 {
		return ""
	}
	buckets := min(n, width)

	var sb strings.Builder
	for b := 0; b < buckets; b++ {
		hit := false
		for _, c := range s.Crash[b*n/buckets : (b+1)*n/buckets] {
			hit = hit || c
		}
		if hit {
			sb.WriteString(StatusFailed.Render("!"))
		} else {
			sb.WriteString(Subtle.Render("·"))
		}
	}
	return sb.String()
}
