package nav

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// Dump renders the grid between two world corners as text, one line per
// cell row. Each cell prints two characters: 'o' blocked, '-' claimed or
// '.' free, followed by 's' (start), 'g' (goal), 'A'+n (waypoint n) or a
// space. Querying the window rasterizes it.
func (g *OccupancyGrid) Dump(lo, hi, start, goal mgl64.Vec3, chain []mgl64.Vec3) string {
	a, b := g.window(lo, hi)

	marks := make(map[Cell]byte, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		m := byte('+')
		if i < 26 {
			m = byte('A' + i)
		}
		marks[g.CellOf(chain[i])] = m
	}
	sc, gc := g.CellOf(start), g.CellOf(goal)

	var sb strings.Builder
	fmt.Fprintf(&sb, "grid %d..%d x %d..%d\n", a.X, b.X, a.Y, b.Y)
	for y := a.Y; y <= b.Y; y++ {
		for x := a.X; x <= b.X; x++ {
			c := Cell{x, y}
			switch {
			case g.test(LayerBlocked, c):
				sb.WriteByte('o')
			case g.test(LayerClaimed, c):
				sb.WriteByte('-')
			default:
				sb.WriteByte('.')
			}
			switch m, ok := marks[c]; {
			case c == sc:
				sb.WriteByte('s')
			case c == gc:
				sb.WriteByte('g')
			case ok:
				sb.WriteByte(m)
			default:
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (g *OccupancyGrid) window(lo, hi mgl64.Vec3) (a, b Cell) {
	a, b = g.CellOf(lo), g.CellOf(hi)
	if a.X > b.X {
		a.X, b.X = b.X, a.X
	}
	if a.Y > b.Y {
		a.Y, b.Y = b.Y, a.Y
	}
	return a, b
}

// OverlayCell is one occupied cell, as drawn by a viewer.
type OverlayCell struct {
	Center  mgl64.Vec3
	Claimed bool // otherwise blocked
}

// Overlay lists the blocked and claimed cells between two world corners in
// row order. Like Dump, it rasterizes the window.
func (g *OccupancyGrid) Overlay(lo, hi mgl64.Vec3) []OverlayCell {
	a, b := g.window(lo, hi)
	var out []OverlayCell
	for y := a.Y; y <= b.Y; y++ {
		for x := a.X; x <= b.X; x++ {
			c := Cell{x, y}
			switch {
			case g.test(LayerBlocked, c):
				out = append(out, OverlayCell{Center: g.CellCenter(c)})
			case g.test(LayerClaimed, c):
				out = append(out, OverlayCell{Center: g.CellCenter(c), Claimed: true})
			}
		}
	}
	return out
}
