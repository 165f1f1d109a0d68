package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/impactgen/internal/scenario"
	"github.com/san-kum/impactgen/internal/session"
)

// Braille cells hold 2x4 dots:
// 1 4
// 2 5
// 3 6
// 7 8
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// headingLen is the length in metres of the heading tick drawn per pose.
const headingLen = 4.0

type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
	return c
}

// Set lights the dot at sub-pixel (x, y). The canvas is Width*2 by
// Height*4 dots; anything outside is ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

// DrawLine draws a line using Bresenham's algorithm.
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Cross draws a small x centred on (x, y).
func (c *Canvas) Cross(x, y int) {
	c.DrawLine(x-2, y-2, x+2, y+2)
	c.DrawLine(x-2, y+2, x+2, y-2)
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// DrawLayout renders a top-down view of a category's base poses. Each pose
// is a dot with a tick along its heading (vehicles face -y at zero yaw) and
// the obstacle is a cross. +y is up.
func DrawLayout(geom scenario.Geometry, category string, w, h int) (string, error) {
	layout, ok := geom.Layout(category)
	if !ok {
		return "", fmt.Errorf("level %s has no layout for %s", geom.Level, category)
	}
	if len(layout.Poses) == 0 {
		return "", ErrNoData
	}

	heading := func(p session.Pose) (float64, float64) {
		yaw := p.Rot[2] * math.Pi / 180
		return p.Pos[0] + headingLen*math.Sin(yaw), p.Pos[1] - headingLen*math.Cos(yaw)
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	grow := func(x, y float64) {
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	for _, p := range layout.Poses {
		grow(p.Pos[0], p.Pos[1])
		grow(heading(p))
	}
	if layout.Obstacle != nil {
		grow(layout.Obstacle[0], layout.Obstacle[1])
	}
	const pad = 2.0
	minX, minY, maxX, maxY = minX-pad, minY-pad, maxX+pad, maxY+pad

	c := NewCanvas(w, h)
	dotsW, dotsH := float64(w*2-1), float64(h*4-1)
	scale := math.Min(dotsW/(maxX-minX), dotsH/(maxY-minY))
	project := func(x, y float64) (int, int) {
		return int(math.Round((x - minX) * scale)), int(math.Round((maxY - y) * scale))
	}

	for _, p := range layout.Poses {
		x0, y0 := project(p.Pos[0], p.Pos[1])
		x1, y1 := project(heading(p))
		c.DrawLine(x0, y0, x1, y1)
		c.Set(x0+1, y0)
		c.Set(x0, y0+1)
		c.Set(x0+1, y0+1)
	}
	if layout.Obstacle != nil {
		c.Cross(project(layout.Obstacle[0], layout.Obstacle[1]))
	}
	return c.String(), nil
}
