package nav

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// normAngle wraps a into [0, 2π).
func normAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	return a
}

// turnError returns the signed rotation that takes heading a to heading g,
// in (-π, π]. Positive turns toward +Z.
func turnError(a, g float64) float64 {
	d := normAngle(g - a)
	if d > math.Pi {
		d -= 2 * math.Pi
	}
	return d
}

// headingOf returns the heading of the X/Z vector (dx, dz).
func headingOf(dx, dz float64) float64 {
	return normAngle(math.Atan2(dz, dx))
}

// headingVec returns the unit X/Z vector for heading a.
func headingVec(a float64) mgl64.Vec3 {
	return mgl64.Vec3{math.Cos(a), 0, math.Sin(a)}
}

// flat drops the vertical component.
func flat(v mgl64.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{v[0], 0, v[2]}
}

// distXZ is the distance projected on the ground plane.
func distXZ(a, b mgl64.Vec3) float64 {
	return math.Hypot(b[0]-a[0], b[2]-a[2])
}

// localToWorld maps a local X offset of an entity facing heading into world
// space, keeping the entity's height.
func localToWorld(origin mgl64.Vec3, heading, along float64) mgl64.Vec3 {
	return origin.Add(headingVec(heading).Mul(along))
}

func clampUnit(v float64) float64 {
	return mgl64.Clamp(v, -1, 1)
}
