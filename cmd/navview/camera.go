package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Garsondee/Nav-Sense/internal/sim"
)

// camera maps the world XZ plane onto a screen rectangle. World +Z points
// down the screen.
type camera struct {
	cx, cz float64 // world point at the viewport centre
	scale  float64 // pixels per world unit
	ox, oy float64 // viewport top-left on screen
	w, h   float64
}

// fitCamera frames the box [lo, hi] inside the viewport with pad pixels of
// margin on every side.
func fitCamera(lo, hi mgl64.Vec3, ox, oy, w, h, pad float64) camera {
	spanX := math.Max(hi[0]-lo[0], 1)
	spanZ := math.Max(hi[2]-lo[2], 1)
	scale := math.Min((w-2*pad)/spanX, (h-2*pad)/spanZ)
	if scale <= 0 {
		scale = 1
	}
	return camera{
		cx:    (lo[0] + hi[0]) / 2,
		cz:    (lo[2] + hi[2]) / 2,
		scale: scale,
		ox:    ox,
		oy:    oy,
		w:     w,
		h:     h,
	}
}

func (c camera) toScreen(p mgl64.Vec3) (float32, float32) {
	x := c.ox + c.w/2 + (p[0]-c.cx)*c.scale
	y := c.oy + c.h/2 + (p[2]-c.cz)*c.scale
	return float32(x), float32(y)
}

func (c camera) length(d float64) float32 { return float32(d * c.scale) }

// zoom scales the view about its centre.
func (c camera) zoom(f float64) camera {
	c.scale *= f
	return c
}

// pan moves the view by a screen-space offset.
func (c camera) pan(dx, dy float64) camera {
	c.cx += dx / c.scale
	c.cz += dy / c.scale
	return c
}

// sceneBounds covers every unit, goal, object and terrain feature of ts,
// clamped to the navigable map.
func sceneBounds(ts *sim.TestSim) (lo, hi mgl64.Vec3) {
	lo = mgl64.Vec3{math.Inf(1), 0, math.Inf(1)}
	hi = mgl64.Vec3{math.Inf(-1), 0, math.Inf(-1)}
	grow := func(p mgl64.Vec3, r float64) {
		lo[0] = math.Min(lo[0], p[0]-r)
		lo[2] = math.Min(lo[2], p[2]-r)
		hi[0] = math.Max(hi[0], p[0]+r)
		hi[2] = math.Max(hi[2], p[2]+r)
	}
	for _, u := range ts.World.Units() {
		grow(u.Position(), u.Profile().Radius)
		if o, ok := ts.OrderOf(u.ID()); ok && o.Request.Target == 0 {
			grow(o.Request.Goal, 0)
		}
	}
	for _, o := range ts.World.Objects() {
		grow(o.Pos, o.Radius)
	}
	for _, f := range ts.Terrain.Features() {
		grow(mgl64.Vec3{f.X, 0, f.Z}, f.Radius)
	}
	if math.IsInf(lo[0], 1) {
		return mgl64.Vec3{-50, 0, -50}, mgl64.Vec3{50, 0, 50}
	}
	half := ts.Config.Grid.Extent / 2
	for _, i := range []int{0, 2} {
		lo[i] = math.Max(lo[i], -half)
		hi[i] = math.Min(hi[i], half)
	}
	return lo, hi
}
