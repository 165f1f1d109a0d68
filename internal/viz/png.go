package viz

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/impactgen/internal/storage"
)

// SavePNG writes a line chart of the named columns against sim time.
func SavePNG(s *storage.Series, columns []string, title, path string) error {
	if s == nil || s.Len() == 0 {
		return ErrNoData
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "value"
	p.Add(plotter.NewGrid())

	lines := make([]any, 0, 2*len(columns))
	for _, name := range columns {
		col, err := s.Column(name)
		if err != nil {
			return err
		}
		pts := make(plotter.XYs, s.Len())
		for i := range pts {
			pts[i].X = s.Time[i]
			pts[i].Y = col[i]
		}
		lines = append(lines, name, pts)
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return fmt.Errorf("viz: build plot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("viz: cannot create directory: %w", err)
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("viz: cannot write png: %w", err)
	}
	return nil
}
