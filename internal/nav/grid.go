package nav

import (
	"math"
	"math/bits"

	"github.com/go-gl/mathgl/mgl64"
)

// Layer selects one of the two occupancy bit planes.
type Layer int

const (
	// LayerBlocked marks cells the unit's locomotion class cannot enter.
	LayerBlocked Layer = iota
	// LayerClaimed marks cells crossed by the path the planner is tracing.
	LayerClaimed
	layerCount
)

// Cell addresses one grid cell. X follows world X, Y follows world Z.
type Cell struct {
	X, Y int
}

// Rasterizer fills in the blocked layer for one cell on first use.
type Rasterizer interface {
	RasterizeCell(g *OccupancyGrid, c Cell)
}

// OccupancyGrid is a square two-layer bit grid over the map, centred on the
// world origin. Terrain is rasterized lazily: the grid tracks the rectangle
// of cells already sampled and grows it whenever a query falls outside.
type OccupancyGrid struct {
	cellSize float64
	half     float64
	size     int
	stride   int // uint64 words per row
	bits     [layerCount][]uint64

	// Validity rectangle, inclusive. Empty while minX > maxX.
	minX, minY, maxX, maxY int
	lazyPad                int
	raster                 Rasterizer
	sampled                int
}

// NewOccupancyGrid creates an empty grid. r may be nil for a grid that never
// rasterizes (every cell starts free and stays free unless marked).
func NewOccupancyGrid(cfg GridConfig, r Rasterizer) *OccupancyGrid {
	size := int(cfg.Extent / cfg.CellSize)
	stride := (size + 63) / 64
	g := &OccupancyGrid{
		cellSize: cfg.CellSize,
		half:     cfg.Extent / 2,
		size:     size,
		stride:   stride,
		lazyPad:  cfg.LazyPad,
		raster:   r,
	}
	for l := range g.bits {
		g.bits[l] = make([]uint64, stride*size)
	}
	g.minX, g.minY = size, size
	g.maxX, g.maxY = -1, -1
	return g
}

// Size returns the number of cells along one side.
func (g *OccupancyGrid) Size() int { return g.size }

// CellSize returns the world size of one cell.
func (g *OccupancyGrid) CellSize() float64 { return g.cellSize }

// CellOf converts a world position to its cell.
func (g *OccupancyGrid) CellOf(p mgl64.Vec3) Cell {
	return Cell{
		X: int(math.Floor((p[0] + g.half) / g.cellSize)),
		Y: int(math.Floor((p[2] + g.half) / g.cellSize)),
	}
}

// CellOrigin returns the world position of the cell's low corner, which is
// where terrain is sampled.
func (g *OccupancyGrid) CellOrigin(c Cell) mgl64.Vec3 {
	return mgl64.Vec3{float64(c.X)*g.cellSize - g.half, 0, float64(c.Y)*g.cellSize - g.half}
}

// CellCenter returns the world position of the cell centre.
func (g *OccupancyGrid) CellCenter(c Cell) mgl64.Vec3 {
	return g.CellOrigin(c).Add(mgl64.Vec3{g.cellSize / 2, 0, g.cellSize / 2})
}

// InBounds reports whether c lies on the map.
func (g *OccupancyGrid) InBounds(c Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.size && c.Y < g.size
}

func (g *OccupancyGrid) index(c Cell) (int, uint64) {
	return c.Y*g.stride + c.X/64, 1 << uint(c.X%64)
}

func (g *OccupancyGrid) set(l Layer, c Cell) {
	if !g.InBounds(c) {
		return
	}
	i, m := g.index(c)
	g.bits[l][i] |= m
}

func (g *OccupancyGrid) clear(l Layer, c Cell) {
	if !g.InBounds(c) {
		return
	}
	i, m := g.index(c)
	g.bits[l][i] &^= m
}

// peek reads a bit without triggering rasterization.
func (g *OccupancyGrid) peek(l Layer, c Cell) bool {
	if !g.InBounds(c) {
		return false
	}
	i, m := g.index(c)
	return g.bits[l][i]&m != 0
}

// test reads a bit, rasterizing the cell's neighbourhood first if needed.
func (g *OccupancyGrid) test(l Layer, c Cell) bool {
	if !g.InBounds(c) {
		return false
	}
	if !g.Contains(c) {
		g.EnsureRasterized(
			Cell{c.X - g.lazyPad, c.Y - g.lazyPad},
			Cell{c.X + g.lazyPad, c.Y + g.lazyPad},
		)
	}
	return g.peek(l, c)
}

// IsBlocked reports whether the unit may not enter c. Cells off the map are
// always blocked.
func (g *OccupancyGrid) IsBlocked(c Cell) bool {
	if !g.InBounds(c) {
		return true
	}
	return g.test(LayerBlocked, c)
}

// IsClaimed reports whether the path being traced already crosses c.
func (g *OccupancyGrid) IsClaimed(c Cell) bool {
	return g.test(LayerClaimed, c)
}

// MarkBlocked sets the blocked bit of a single cell.
func (g *OccupancyGrid) MarkBlocked(c Cell) { g.set(LayerBlocked, c) }

// Claim sets the claimed bit of a single cell.
func (g *OccupancyGrid) Claim(c Cell) { g.set(LayerClaimed, c) }

// MarkCircle blocks every cell that overlaps the circle.
func (g *OccupancyGrid) MarkCircle(center mgl64.Vec3, radius float64) {
	cc := g.CellOf(center)
	ir := int(math.Ceil(radius/g.cellSize)) + 1
	for y := cc.Y - ir; y <= cc.Y+ir; y++ {
		for x := cc.X - ir; x <= cc.X+ir; x++ {
			c := Cell{x, y}
			o := g.CellOrigin(c)
			nx := mgl64.Clamp(center[0], o[0], o[0]+g.cellSize)
			nz := mgl64.Clamp(center[2], o[2], o[2]+g.cellSize)
			if math.Hypot(center[0]-nx, center[2]-nz) < radius {
				g.MarkBlocked(c)
			}
		}
	}
}

// ClearCircle frees the blocked bit of every cell whose index lies within
// radius of the cell holding center.
func (g *OccupancyGrid) ClearCircle(center mgl64.Vec3, radius float64) {
	g.circle(center, radius, func(c Cell) { g.clear(LayerBlocked, c) })
}

func (g *OccupancyGrid) circle(center mgl64.Vec3, radius float64, fn func(Cell)) {
	cc := g.CellOf(center)
	r := radius / g.cellSize
	ir := int(r)
	for y := cc.Y - ir; y <= cc.Y+ir; y++ {
		for x := cc.X - ir; x <= cc.X+ir; x++ {
			if math.Hypot(float64(x-cc.X), float64(y-cc.Y)) > r {
				continue
			}
			fn(Cell{x, y})
		}
	}
}

// --- Lazy rasterization ---

// Contains reports whether c lies inside the validity rectangle.
func (g *OccupancyGrid) Contains(c Cell) bool {
	return c.X >= g.minX && c.X <= g.maxX && c.Y >= g.minY && c.Y <= g.maxY
}

// Valid returns the validity rectangle. ok is false while nothing has been
// rasterized.
func (g *OccupancyGrid) Valid() (lo, hi Cell, ok bool) {
	if g.minX > g.maxX {
		return Cell{}, Cell{}, false
	}
	return Cell{g.minX, g.minY}, Cell{g.maxX, g.maxY}, true
}

// Sampled returns how many cells have been rasterized so far.
func (g *OccupancyGrid) Sampled() int { return g.sampled }

// EnsureRasterized grows the validity rectangle to the union of itself and
// [lo, hi] (clamped to the map), rasterizing only cells not yet sampled.
func (g *OccupancyGrid) EnsureRasterized(lo, hi Cell) {
	if lo.X > hi.X {
		lo.X, hi.X = hi.X, lo.X
	}
	if lo.Y > hi.Y {
		lo.Y, hi.Y = hi.Y, lo.Y
	}
	lo.X, lo.Y = max(lo.X, 0), max(lo.Y, 0)
	hi.X, hi.Y = min(hi.X, g.size-1), min(hi.Y, g.size-1)
	if lo.X > hi.X || lo.Y > hi.Y {
		return
	}

	_, _, had := g.Valid()
	if had {
		lo.X, lo.Y = min(lo.X, g.minX), min(lo.Y, g.minY)
		hi.X, hi.Y = max(hi.X, g.maxX), max(hi.Y, g.maxY)
		if lo.X >= g.minX && hi.X <= g.maxX && lo.Y >= g.minY && hi.Y <= g.maxY {
			return
		}
	}

	if g.raster != nil {
		for y := lo.Y; y <= hi.Y; y++ {
			for x := lo.X; x <= hi.X; x++ {
				c := Cell{x, y}
				if had && g.Contains(c) {
					continue
				}
				g.raster.RasterizeCell(g, c)
				g.sampled++
			}
		}
	}
	g.minX, g.minY, g.maxX, g.maxY = lo.X, lo.Y, hi.X, hi.Y
}

// EnsureRasterizedBox rasterizes the box spanned by two points, widened by
// pad cells on every side.
func (g *OccupancyGrid) EnsureRasterizedBox(a, b mgl64.Vec3, pad int) {
	ca, cb := g.CellOf(a), g.CellOf(b)
	g.EnsureRasterized(
		Cell{min(ca.X, cb.X) - pad, min(ca.Y, cb.Y) - pad},
		Cell{max(ca.X, cb.X) + pad, max(ca.Y, cb.Y) + pad},
	)
}

// ResetClaims wipes the claimed layer.
func (g *OccupancyGrid) ResetClaims() {
	clear(g.bits[LayerClaimed])
}

// Count returns the number of set bits in a layer.
func (g *OccupancyGrid) Count(l Layer) int {
	n := 0
	for _, w := range g.bits[l] {
		n += bits.OnesCount64(w)
	}
	return n
}

// --- Line tests ---

// TestLine walks the segment start→goal in half-cell steps and reports
// whether it avoids every blocked cell. The last sample is the goal itself.
//
// With claim set, the walk also maintains the claimed layer: the start cell
// is claimed, the line fails if it re-enters a claimed cell after its first
// few samples, and cells beyond the distance at which two neighbouring
// branches (stepAngle apart) separate by one cell diagonal are claimed.
func (g *OccupancyGrid) TestLine(start, goal mgl64.Vec3, stepAngle float64, claim bool) bool {
	dist := distXZ(start, goal)
	if dist == 0 {
		return true
	}
	step := g.cellSize * 0.5
	inc := mgl64.Vec3{(goal[0] - start[0]) * step / dist, 0, (goal[2] - start[2]) * step / dist}

	pos := start
	if claim {
		g.Claim(g.CellOf(pos))
	}

	n := int(dist / step)
	if n == 0 {
		n = 1
	}
	separation := g.cellSize * math.Sqrt2 / math.Sin(stepAngle)
	for i := 0; i < n; i++ {
		if i == n-1 {
			pos = goal
		} else {
			pos = pos.Add(inc)
		}
		c := g.CellOf(pos)

		if claim {
			if i > 2 && g.IsClaimed(c) {
				return false
			}
			if step*float64(i+1) > separation && i < n-2 {
				g.Claim(c)
			}
		}
		if g.IsBlocked(c) {
			return false
		}
	}
	return true
}
