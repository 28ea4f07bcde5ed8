package sim

import (
	"math"

	"github.com/Garsondee/Nav-Sense/internal/nav"
	"github.com/go-gl/mathgl/mgl64"
)

// sweepHitT returns the first segment parameter t in [0,1] at which a
// circle of radius r moving from o to e touches the sphere's X/Z disk. A
// circle that already overlaps the disk hits at t = 0 only while it moves
// further in, so overlapping units can always back out.
func sweepHitT(o, e mgl64.Vec3, r float64, s nav.Sphere) (float64, bool) {
	dx := e[0] - o[0]
	dz := e[2] - o[2]
	fx := o[0] - s.Center[0]
	fz := o[2] - s.Center[2]
	reach := r + s.Radius

	c := fx*fx + fz*fz - reach*reach
	b := fx*dx + fz*dz
	if c <= 0 {
		if b < 0 {
			return 0, true
		}
		return 0, false
	}

	a := dx*dx + dz*dz
	if a < 1e-12 {
		return 0, false
	}
	disc := b*b - a*c
	if disc < 0 {
		return 0, false
	}
	t := (-b - math.Sqrt(disc)) / a
	if t < 0 || t > 1 {
		return 0, false
	}
	return t, true
}

// verticalOverlap reports whether a body centred at height y with radius r
// shares any height with the sphere.
func verticalOverlap(y, r float64, s nav.Sphere) bool {
	return math.Abs(y-s.Center[1]) < r+s.Radius
}

// ClearPath reports whether a circle of radius r can travel from a to b
// without touching any obstacle sphere of the listed entities. skip is
// ignored; transported entities never obstruct.
func ClearPath(a, b mgl64.Vec3, r float64, entities []nav.Entity, skip nav.EntityID) bool {
	for _, ent := range entities {
		if ent.ID == skip || ent.Transported {
			continue
		}
		for _, s := range ent.Spheres {
			if !verticalOverlap(a[1], r, s) {
				continue
			}
			if _, hit := sweepHitT(a, b, r, s); hit {
				return false
			}
		}
	}
	return true
}

// firstHit returns the earliest contact of the moving circle against the
// listed entities, or t = 1 when the move is free.
func firstHit(a, b mgl64.Vec3, r float64, entities []nav.Entity, skip nav.EntityID) (float64, nav.EntityID) {
	best, who := 1.0, nav.EntityID(0)
	for _, ent := range entities {
		if ent.ID == skip || ent.Transported {
			continue
		}
		for _, s := range ent.Spheres {
			if !verticalOverlap(a[1], r, s) {
				continue
			}
			if t, hit := sweepHitT(a, b, r, s); hit && t < best {
				best, who = t, ent.ID
			}
		}
	}
	return best, who
}
