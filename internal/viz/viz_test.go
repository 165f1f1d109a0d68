package viz

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/impactgen/internal/experiment"
	"github.com/san-kum/impactgen/internal/scenario"
	"github.com/san-kum/impactgen/internal/session"
	"github.com/san-kum/impactgen/internal/storage"
)

func testSeries(n int) *storage.Series {
	s := &storage.Series{}
	for i := 0; i < n; i++ {
		t := float64(i) * 0.1
		s.Time = append(s.Time, t)
		s.Airspeed = append(s.Airspeed, 20-t)
		s.GX = append(s.GX, 0)
		s.GY = append(s.GY, 0)
		s.GZ = append(s.GZ, 1)
		s.Damage = append(s.Damage, float64(i/10))
		s.Crash = append(s.Crash, i == n/2)
	}
	return s
}

func TestPlot(t *testing.T) {
	out, err := Plot(testSeries(200), []string{"airspeed", "damage"}, 60, 8)
	require.NoError(t, err)
	assert.Contains(t, out, "airspeed, damage")
	assert.Greater(t, len(strings.Split(out, "\n")), 8)

	_, err = Plot(testSeries(10), []string{"torque"}, 60, 8)
	assert.Error(t, err)

	_, err = Plot(&storage.Series{}, []string{"airspeed"}, 60, 8)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = Plot(testSeries(10), nil, 60, 8)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestResample(t *testing.T) {
	values := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, []float64{0, 5, 10}, resample(values, 3))
	assert.Equal(t, values, resample(values, 50))
	assert.Equal(t, values, resample(values, 1))
}

func TestCrashMarkers(t *testing.T) {
	out := CrashMarkers(testSeries(100), 10)
	assert.Equal(t, 1, strings.Count(out, "!"))
	assert.Equal(t, 9, strings.Count(out, "·"))
	assert.Empty(t, CrashMarkers(&storage.Series{}, 10))
}

func TestSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "trial.png")
	require.NoError(t, SavePNG(testSeries(50), []string{"airspeed", "gz"}, "pole_00001", path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.ErrorIs(t, SavePNG(&storage.Series{}, []string{"airspeed"}, "", path), ErrNoData)
}

func TestRenderSummary(t *testing.T) {
	sum := &experiment.Summary{
		Trials:   3,
		Failures: 1,
		Order:    []string{"pole", "tbone"},
		PerCategory: map[string]*experiment.CategoryStats{
			"pole":  {Trials: 2, Impacts: 2, Samples: 40, Space: 12, Exhausted: true},
			"tbone": {Trials: 1, Failures: 1, Space: 12},
		},
		Elapsed: 90 * time.Second,
	}
	out := RenderSummary(sum)
	assert.Contains(t, out, "pole*")
	assert.Contains(t, out, "tbone")
	assert.Contains(t, out, "1m30s")
	assert.Empty(t, RenderSummary(nil))
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, 10, strings.Count(ProgressBar(0.5, 10), "█")+strings.Count(ProgressBar(0.5, 10), "░"))
	assert.Equal(t, 10, strings.Count(ProgressBar(2, 10), "█"))
	assert.Equal(t, 10, strings.Count(ProgressBar(-1, 10), "░"))
}

func TestCanvas(t *testing.T) {
	c := NewCanvas(4, 2)
	c.DrawLine(0, 0, 7, 7)
	c.Set(-1, 3)
	c.Set(100, 100)

	out := c.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 2)
	assert.NotEqual(t, rune(blank), c.Grid[0][0])
	assert.NotEqual(t, rune(blank), c.Grid[1][3])
	assert.Equal(t, rune(blank), c.Grid[0][3])
}

func TestDrawLayout(t *testing.T) {
	geom := scenario.Geometry{
		Level: "test",
		Layouts: map[string]scenario.Layout{
			"pole": {
				Poses:    []session.Pose{{Pos: session.Vec3{0, 0, 0}}},
				Obstacle: &session.Vec3{0, -20, 0},
			},
			"empty": {},
		},
	}

	out, err := DrawLayout(geom, "pole", 20, 10)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 10)
	assert.NotEqual(t, strings.Repeat(string(rune(blank)), 20), lines[0], "pose drawn near the top")
	assert.NotEqual(t, strings.Repeat(string(rune(blank)), 20), lines[9], "obstacle drawn near the bottom")

	_, err = DrawLayout(geom, "tbone", 20, 10)
	assert.Error(t, err)
	_, err = DrawLayout(geom, "empty", 20, 10)
	assert.ErrorIs(t, err, ErrNoData)
}
