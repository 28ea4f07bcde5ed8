package nav

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Motor is one set of normalized motor set-points.
type Motor struct {
	Linear, Angular, Vertical float64
}

// Steering turns targets into motor set-points. It holds no state.
type Steering struct {
	cfg SteeringConfig
}

// NewSteering creates a controller with the given tuning.
func NewSteering(cfg SteeringConfig) Steering {
	return Steering{cfg: cfg}
}

// Waypoint steers toward a point of the chain. last is set for the final
// approach point so the unit brakes in time. Unless express is set, the unit
// turns on the spot until roughly aligned.
func (s Steering) Waypoint(heading float64, pos, target mgl64.Vec3, last bool, stopLength float64, express bool) (lin, ang float64) {
	d := distXZ(pos, target)
	if d > 0 {
		ang = clampUnit(turnError(heading, headingOf(target[0]-pos[0], target[2]-pos[2])) * s.cfg.TurnGain)
	}
	if d < s.cfg.CloseRadius {
		ang *= d / s.cfg.CloseRadius
	}

	lin = 1
	if last {
		lin = math.Min(d/(stopLength*s.cfg.StopFactor), 1)
	}
	lin *= 1 - s.cfg.TurnSlowdown*math.Abs(ang)
	if !express && math.Abs(ang) >= s.cfg.TurnFirst {
		lin = 0
	}
	return lin, ang
}

// Direct steers straight at goal, bent by the horizontal repulsion vector.
func (s Steering) Direct(heading float64, pos, goal, repulse mgl64.Vec3, stopLength float64) (lin, ang float64) {
	d := distXZ(pos, goal)
	dir := repulse.Mul(s.cfg.RepulseGain)
	if d > 0 {
		dir = dir.Add(flat(goal.Sub(pos)).Mul(1 / d))
	}
	if dir[0] != 0 || dir[2] != 0 {
		ang = clampUnit(turnError(heading, headingOf(dir[0], dir[2])))
	}

	lin = math.Min(d/(stopLength*s.cfg.StopFactor), 1)
	lin *= 1 - s.cfg.TurnSlowdown*math.Abs(ang)
	if d < s.cfg.DirectNear && math.Abs(ang) >= s.cfg.DirectTurnFirst {
		lin = 0
	}
	return lin, ang
}

// Express keeps full speed and only steers.
func (s Steering) Express(heading float64, pos, goal mgl64.Vec3) (lin, ang float64) {
	if distXZ(pos, goal) > 0 {
		ang = clampUnit(turnError(heading, headingOf(goal[0]-pos[0], goal[2]-pos[2])))
	}
	return 1, ang
}

// Face rotates toward an absolute heading.
func (s Steering) Face(heading, want float64) float64 {
	return clampUnit(turnError(heading, want))
}

// Cruise returns the vertical set-point that holds a flyer within band of
// altitude above the floor. h is the current height above the floor.
func (s Steering) Cruise(h, altitude, band float64) float64 {
	switch {
	case h < altitude-band:
		return math.Min(0.2+((altitude-band)-h)*0.1, 1)
	case h > altitude+band:
		return -0.2
	}
	return 0
}

// --- Repulsion ---

// repulseUnit describes the unit being pushed away from obstacles.
type repulseUnit struct {
	id         EntityID
	class      Class
	sphere     Sphere
	goal       mgl64.Vec3
	onGround   bool
	stopLength float64
}

// margin returns the activation margin and falloff exponent for the unit,
// against an obstacle of kind.
func (u repulseUnit) margin(kind EntityKind) (add, fac float64) {
	t := u.class.traits()
	add, fac = t.repulseAdd, t.repulseFac
	if !u.onGround {
		add = t.repulseAddAir
	}
	if add == 0 {
		add = u.stopLength * 1.1
	}
	if u.class == ClassWasp && kind == KindWasp {
		add = 2
	}
	return add, fac
}

// Repulse sums a horizontal push away from every obstacle sphere within the
// activation radius. Obstacles lying at the goal or beyond it are ignored,
// as are spheres outside the unit's vertical extent.
func (s Steering) Repulse(u repulseUnit, entities []Entity) mgl64.Vec3 {
	alien := u.class.traits().alien
	iPos, iRadius := u.sphere.Center, u.sphere.Radius
	gDist := iPos.Sub(u.goal).Len()

	var dir mgl64.Vec3
	for _, e := range entities {
		if e.ID == u.id || e.Transported {
			continue
		}
		if alien && (e.Kind == KindCargo || e.Kind == KindFlora) {
			continue
		}
		add, fac := u.margin(e.Kind)
		for _, sp := range e.Spheres {
			oPos := sp.Center
			if oPos[1]-sp.Radius > iPos[1]+iRadius || oPos[1]+sp.Radius < iPos[1]-iRadius {
				continue
			}
			if oPos.Sub(u.goal).Len() <= 1 {
				continue
			}
			r := sp.Radius + iRadius + add
			d := distXZ(oPos, iPos)
			if d > gDist || d > r {
				continue
			}
			w := s.cfg.RepulseStrength * (1 - math.Pow(d/r, fac))
			dir = dir.Add(flat(iPos.Sub(oPos)).Mul(w))
		}
	}
	return dir
}

// FlyingRepulse returns a vertical push in [-1, 1] away from obstacle
// spheres horizontally close to a flyer. Spheres lying entirely below the
// flyer's band are ignored.
func (s Steering) FlyingRepulse(u repulseUnit, entities []Entity, band float64) float64 {
	iPos, iRadius := u.sphere.Center, u.sphere.Radius
	dir := 0.0
	for _, e := range entities {
		if e.ID == u.id || e.Transported {
			continue
		}
		for _, sp := range e.Spheres {
			if sp.Center[1]+sp.Radius < iPos[1]-iRadius-band {
				continue
			}
			r := sp.Radius + iRadius
			d := distXZ(sp.Center, iPos)
			if d > r {
				continue
			}
			w := s.cfg.RepulseStrength * (1 - math.Pow(d/r, 1.5))
			dir += (iPos[1] - sp.Center[1]) * w
		}
	}
	return clampUnit(dir)
}
