package nav

import "github.com/go-gl/mathgl/mgl64"

// wadingDepth is how far below the water surface a floor may lie before
// non-submersible units refuse it.
const wadingDepth = 2.0

// terrainRasterizer decides, per cell, whether the terrain itself stops the
// unit's locomotion class.
type terrainRasterizer struct {
	terrain       Terrain
	class         Class
	slopeLimit    float64
	waterLevel    float64
	ceiling       float64
	ceilingMargin float64
}

func newTerrainRasterizer(t Terrain, class Class, cfg Config) *terrainRasterizer {
	return &terrainRasterizer{
		terrain:       t,
		class:         class,
		slopeLimit:    class.slopeLimitRad(),
		waterLevel:    t.WaterLevel(),
		ceiling:       t.FlyingCeiling(),
		ceilingMargin: cfg.Flight.CeilingMargin,
	}
}

// RasterizeCell implements Rasterizer.
func (r *terrainRasterizer) RasterizeCell(g *OccupancyGrid, c Cell) {
	p := g.CellOrigin(c)
	traits := r.class.traits()

	if traits.flies {
		if r.terrain.FloorHeight(p) >= r.ceiling-r.ceilingMargin {
			g.MarkBlocked(c)
		}
		return
	}

	if r.terrain.ResourceAt(p) != ResourceSolid {
		g.MarkBlocked(c)
		return
	}

	if !traits.acceptWater && r.terrain.FloorHeight(p) < r.waterLevel-wadingDepth {
		// Shorelines are widened by one cell.
		g.MarkCircle(p, g.CellSize())
		return
	}

	if r.terrain.FloorSlope(p) > r.slopeLimit {
		g.MarkBlocked(c)
	}
}

// obstacleStamp carries what stampEntities needs to know about the unit.
type obstacleStamp struct {
	self     EntityID
	skip     EntityID // loose cargo being approached; 0 when none
	radius   float64  // unit crash radius
	margin   float64
	band     float64
	altitude float64 // cruise altitude, 0 for ground units
	flying   bool
}

// stampEntities blocks a circle around every entity sphere that the unit
// could run into at its operating height.
func stampEntities(g *OccupancyGrid, terrain Terrain, entities []Entity, st obstacleStamp) int {
	stamped := 0
	for _, e := range entities {
		if e.ID == st.self || (st.skip != 0 && e.ID == st.skip) || e.Transported {
			continue
		}
		h := terrain.FloorHeight(e.Position)
		airborne := st.flying && st.altitude > 0
		if airborne {
			h += st.altitude
		}
		for _, s := range e.Spheres {
			top := s.Center[1] + s.Radius
			bottom := s.Center[1] - s.Radius
			if bottom > h+st.band {
				continue
			}
			if airborne && top < h-st.band {
				continue
			}
			r := s.Radius
			if e.Kind == KindInstallation && e.Installation == InstallLandingPad {
				r -= 2
			}
			g.MarkCircle(s.Center, r+st.radius+st.margin)
			stamped++
		}
	}
	return stamped
}

// entityBox returns the X/Z box around a and b widened by margin.
func entityBox(a, b mgl64.Vec3, margin float64) (lo, hi mgl64.Vec3) {
	lo = mgl64.Vec3{min(a[0], b[0]) - margin, 0, min(a[2], b[2]) - margin}
	hi = mgl64.Vec3{max(a[0], b[0]) + margin, 0, max(a[2], b[2]) + margin}
	return lo, hi
}
