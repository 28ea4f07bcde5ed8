package nav

import "github.com/go-gl/mathgl/mgl64"

// Shortcutter skips intermediate waypoints whenever a later one is in direct
// line of sight on the blocked layer.
type Shortcutter struct {
	grid *OccupancyGrid
}

// NewShortcutter binds a shortcutter to grid.
func NewShortcutter(grid *OccupancyGrid) Shortcutter {
	return Shortcutter{grid: grid}
}

// Next returns the index of the waypoint to head for once the unit stands on
// chain[index]: the farthest point reachable in a straight clear line, or
// simply index+1. A result past the end means the chain is finished.
func (s Shortcutter) Next(chain []mgl64.Vec3, index int) int {
	last := len(chain) - 1
	for i := last; i >= index+2; i-- {
		if s.grid.TestLine(chain[index], chain[i], 0, false) {
			return i
		}
	}
	return index + 1
}

// Collapse applies Next from the first point to the end and returns the
// points that remain. The result is never longer than chain and keeps its
// first and last points.
func (s Shortcutter) Collapse(chain []mgl64.Vec3) []mgl64.Vec3 {
	if len(chain) <= 2 {
		return append([]mgl64.Vec3(nil), chain...)
	}
	out := []mgl64.Vec3{chain[0]}
	for i := 0; i < len(chain)-1; {
		i = s.Next(chain, i)
		out = append(out, chain[i])
	}
	return out
}
